package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	hertz "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/ai"
	"github.com/KirkDiggler/gamemaster-api/internal/clients/content"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/handlers/game"
	"github.com/KirkDiggler/gamemaster-api/internal/handlers/httpapi"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	redisclient "github.com/KirkDiggler/gamemaster-api/internal/redis"
	"github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	"github.com/KirkDiggler/gamemaster-api/internal/services/character"
	"github.com/KirkDiggler/gamemaster-api/internal/services/rag"
)

// serverConfig is parsed from the environment; flags override
type serverConfig struct {
	HTTPAddress   string `env:"HTTP_ADDRESS"    envDefault:":8080"`
	GRPCPort      int    `env:"GRPC_PORT"       envDefault:"50051"`
	RedisAddress  string `env:"REDIS_ADDRESS"   envDefault:"localhost:6379"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	ContentAPIURL string `env:"CONTENT_API_URL"`
	MaxAIReruns   int    `env:"MAX_AI_RERUNS"   envDefault:"3"`
}

var (
	flagHTTPAddress   string
	flagGRPCPort      int
	flagRedisAddress  string
	flagRedisPoolSize int
	flagContentAPIURL string
	flagMaxAIReruns   int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the game server",
	Long:  `Start the gamemaster HTTP server and its gRPC ops listener.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&flagHTTPAddress, "http-address", ":8080", "HTTP listen address")
	serverCmd.Flags().IntVar(&flagGRPCPort, "grpc-port", 50051, "gRPC ops listener port")
	serverCmd.Flags().StringVar(&flagRedisAddress, "redis-address", "localhost:6379", "Redis endpoint")
	serverCmd.Flags().IntVar(&flagRedisPoolSize, "redis-pool-size", 10, "Redis connection pool size")
	serverCmd.Flags().StringVar(&flagContentAPIURL, "content-api-url", "", "D&D 5e content API base URL (empty uses the public API)")
	serverCmd.Flags().IntVar(&flagMaxAIReruns, "max-ai-reruns", 3, "AI rerun cap per player event")
}

// loadServerConfig resolves precedence: flag > environment > default
func loadServerConfig(cmd *cobra.Command) (*serverConfig, error) {
	cfg := &serverConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cmd.Flags().Changed("http-address") {
		cfg.HTTPAddress = flagHTTPAddress
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.GRPCPort = flagGRPCPort
	}
	if cmd.Flags().Changed("redis-address") {
		cfg.RedisAddress = flagRedisAddress
	}
	if cmd.Flags().Changed("redis-pool-size") {
		cfg.RedisPoolSize = flagRedisPoolSize
	}
	if cmd.Flags().Changed("content-api-url") {
		cfg.ContentAPIURL = flagContentAPIURL
	}
	if cmd.Flags().Changed("max-ai-reruns") {
		cfg.MaxAIReruns = flagMaxAIReruns
	}

	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal, gracefully stopping")
		cancel()
	}()

	gameHandler, err := buildGameHandler(cfg)
	if err != nil {
		return err
	}

	httpSrv := hertz.Default(hertz.WithHostPorts(cfg.HTTPAddress))
	httpapi.Handler{Events: gameHandler}.RegisterRoutes(httpSrv)

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(grpc_logging.LoggerFunc(logFunc)),
			grpc_recovery.StreamServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcSrv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("HTTP server starting", "address", cfg.HTTPAddress)
		if err := httpSrv.Run(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("gRPC ops listener starting", "port", cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown failed", "error", err)
		}

		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()

		select {
		case <-shutdownCtx.Done():
			slog.Warn("graceful shutdown timeout exceeded, forcing stop")
			grpcSrv.Stop()
		case <-stopped:
			slog.Info("server stopped gracefully")
		}

		return nil
	case err := <-errChan:
		return err
	}
}

// buildGameHandler wires the full orchestration stack against Redis
func buildGameHandler(cfg *serverConfig) (*game.Handler, error) {
	redisClient, err := redisclient.NewClient(cfg.RedisAddress, &redisclient.Options{
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	clk := clock.New()

	sessionRepo, err := sessionrepo.NewRedisRepository(&sessionrepo.Config{
		Client: redisClient,
		Clock:  clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session repository: %w", err)
	}

	requestRepo, err := airequest.NewRedisRepository(&airequest.Config{
		Client: redisClient,
		Clock:  clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI request repository: %w", err)
	}

	rollService, err := roll.NewOrchestrator(&roll.Config{
		Roller: roll.NewRandomRoller(),
		Clock:  clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create roll orchestrator: %w", err)
	}

	contentClient, err := content.New(&content.Config{
		BaseURL: cfg.ContentAPIURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content client: %w", err)
	}

	bus := events.NewBus()

	sessionService, err := session.NewOrchestrator(&session.Config{
		EventBus:          bus,
		RollService:       rollService,
		SessionRepository: sessionRepo,
		RAGService:        &noopRAGService{},
		ContentClient:     contentClient,
		IDGenerator:       idgen.NewPrefixed("req"),
		Clock:             clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session orchestrator: %w", err)
	}

	gameHandler, err := game.NewHandler(&game.Config{
		AIClient:          &stubAIClient{},
		SessionService:    sessionService,
		SessionRepository: sessionRepo,
		RequestRepository: requestRepo,
		CharacterService:  &stubCharacterService{},
		EventBus:          bus,
		IDGenerator:       idgen.NewUUID("evt"),
		Clock:             clk,
		MaxAIReruns:       cfg.MaxAIReruns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game handler: %w", err)
	}

	return gameHandler, nil
}

func logFunc(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	switch level {
	case grpc_logging.LevelDebug:
		slog.Debug(msg, fields...)
	case grpc_logging.LevelWarn:
		slog.Warn(msg, fields...)
	case grpc_logging.LevelError:
		slog.Error(msg, fields...)
	default:
		slog.Info(msg, fields...)
	}
}

// stubAIClient is a temporary stub implementation
// TODO: Remove when the model gateway client is wired in
type stubAIClient struct{}

func (s *stubAIClient) GenerateResponse(ctx context.Context, input *ai.GenerateResponseInput) (*ai.GenerateResponseOutput, error) {
	return nil, errors.Unavailable("AI client is not configured")
}

// stubCharacterService is a temporary stub implementation
// TODO: Remove when the campaign service client is wired in
type stubCharacterService struct{}

func (s *stubCharacterService) GetCharacter(ctx context.Context, input *character.GetCharacterInput) (*character.GetCharacterOutput, error) {
	return nil, errors.NotFoundf("character %s not found", input.CharacterID)
}

func (s *stubCharacterService) GetCharacterName(ctx context.Context, input *character.GetCharacterNameInput) (*character.GetCharacterNameOutput, error) {
	return nil, errors.NotFoundf("character %s not found", input.CharacterID)
}

// noopRAGService satisfies the context-refresh contract when no
// retrieval subsystem is deployed
type noopRAGService struct{}

func (s *noopRAGService) RefreshContext(ctx context.Context, input *rag.RefreshContextInput) error {
	return nil
}
