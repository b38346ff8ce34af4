package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/ai"
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/handlers/game"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	"github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
)

const demoSessionID = "sess_demo"

var demoSeed int64

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted encounter on an in-memory stack",
	Long: `Run a canned bandit encounter end to end: combat start, forced
initiative, an NPC attack narrated across an AI rerun, and victory by
removal. Rolls are seeded, so runs are reproducible.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 7, "dice roller seed")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	clk := clock.New()
	sessionRepo := sessionrepo.NewInMemory(clk)
	requestRepo := airequest.NewInMemory(clk)

	bus := events.NewBus()
	bus.SubscribeFunc(events.TypeAny, 0, func(_ context.Context, event events.Event) error {
		fmt.Printf("  [event] %s%s\n", event.EventType(), describeEvent(event))
		return nil
	})

	rollService, err := roll.NewOrchestrator(&roll.Config{
		Roller: roll.NewSeededRoller(demoSeed),
		Clock:  clk,
	})
	if err != nil {
		return err
	}

	sessionService, err := session.NewOrchestrator(&session.Config{
		EventBus:          bus,
		RollService:       rollService,
		SessionRepository: sessionRepo,
		RAGService:        &noopRAGService{},
		IDGenerator:       idgen.NewSequential("req"),
		Clock:             clk,
	})
	if err != nil {
		return err
	}

	gameHandler, err := game.NewHandler(&game.Config{
		AIClient:          &scriptedAIClient{responses: demoScript()},
		SessionService:    sessionService,
		SessionRepository: sessionRepo,
		RequestRepository: requestRepo,
		CharacterService:  &stubCharacterService{},
		EventBus:          bus,
		IDGenerator:       idgen.NewSequential("evt"),
		Clock:             clk,
	})
	if err != nil {
		return err
	}

	if _, err := sessionRepo.Save(ctx, &sessionrepo.SaveInput{Session: demoSession()}); err != nil {
		return err
	}

	fmt.Println("=== An ambush at Stonebridge Crossing ===")

	resp, err := runEvent(ctx, gameHandler, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: demoSessionID,
		PlayerID:  "player_demo",
		Action: &game.PlayerAction{
			CharacterID: "char_brynja",
			Text:        "We charge the bandits on the bridge.",
		},
	})
	if err != nil {
		return err
	}
	if len(resp.PendingRequests) == 0 {
		return errors.Internal("expected an initiative request after combat start")
	}

	if _, err := runEvent(ctx, gameHandler, &game.GameEvent{
		Type:      game.EventPlayerDiceSubmission,
		SessionID: demoSessionID,
		PlayerID:  "player_demo",
		DiceSubmission: &game.DiceSubmission{
			RequestID: resp.PendingRequests[0].ID,
		},
	}); err != nil {
		return err
	}

	if _, err := runEvent(ctx, gameHandler, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: demoSessionID,
		PlayerID:  "player_demo",
		Action: &game.PlayerAction{
			CharacterID: "char_brynja",
			Text:        "I cut down the last of them.",
		},
	}); err != nil {
		return err
	}

	return printEpilogue(ctx, sessionRepo)
}

// demoSession seeds one fighter at an old toll bridge
func demoSession() *entities.GameSession {
	return &entities.GameSession{
		ID: demoSessionID,
		Party: map[string]*entities.CharacterInstance{
			"char_brynja": {
				ID:                 "char_brynja",
				TemplateID:         "tmpl_fighter",
				Name:               "Brynja",
				Level:              3,
				CurrentHP:          24,
				MaxHP:              24,
				ArmorClass:         16,
				InitiativeModifier: 2,
				Gold:               50,
			},
		},
		KnownNPCs:    make(map[string]*entities.KnownNPC),
		ActiveQuests: make(map[string]*entities.Quest),
		CurrentLocation: &entities.Location{
			Name:        "Stonebridge Crossing",
			Description: "An old toll bridge over the Greywater",
		},
	}
}

// demoScript is the GM's side of the encounter, in the order the
// handler will request it: combat start, the bandit's attack, the
// rerun narrating its result, and the finish.
func demoScript() []*entities.AIResponse {
	endTurn := func(b bool) *bool { return &b }

	return []*entities.AIResponse{
		{
			Narrative: "Two bandits step from behind the toll house, blades drawn. Steel rings across the Greywater as the fight begins!",
			CombatStart: &entities.CombatStart{
				Combatants: []entities.NewCombatant{
					{ID: "npc_bandit_1", Name: "Bandit Leader", MaxHP: 11, ArmorClass: 12, InitiativeModifier: 1},
					{ID: "npc_bandit_2", Name: "Bandit Archer", MaxHP: 9, ArmorClass: 12, InitiativeModifier: 2},
				},
			},
		},
		{
			Narrative: "The order of battle settles. The bandit leader lunges at Brynja, scimitar flashing!",
			RollRequests: []entities.RollRequest{
				{
					CharacterIDs: []string{"npc_bandit_1"},
					RollType:     entities.RollTypeAttack,
					DiceFormula:  "1d20+3",
					Reason:       "scimitar swing at Brynja",
				},
			},
			EndTurn: endTurn(false),
		},
		{
			Narrative: "The scimitar bites into Brynja's shoulder. She staggers but keeps her feet.",
			HPChanges: []entities.HPChange{
				{
					CharacterID: "Brynja",
					Change:      -5,
					Attacker:    "Bandit Leader",
					Weapon:      "scimitar",
					DamageType:  "slashing",
				},
			},
			EndTurn: endTurn(true),
		},
		{
			Narrative: "Brynja's greatsword sweeps through the leader and the archer breaks and runs. The bridge falls silent; thirty gold glitters among the dropped packs.",
			CombatantRemovals: []entities.CombatantRemoval{
				{CharacterID: "npc_bandit_1", Reason: "cut down"},
				{CharacterID: "npc_bandit_2", Reason: "fled the bridge"},
			},
			GoldChanges: []entities.GoldChange{
				{CharacterID: "char_brynja", Amount: 30, Source: "bandit spoils"},
			},
			EndTurn: endTurn(true),
		},
	}
}

// runEvent prints the event, runs it, and prints what came back
func runEvent(ctx context.Context, handler *game.Handler, event *game.GameEvent) (*game.GameEventResponse, error) {
	fmt.Printf("\n> %s\n", describeGameEvent(event))

	resp, err := handler.HandleEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	fmt.Printf("  status: %s", resp.Status)
	if resp.StatusDetail != "" {
		fmt.Printf(" (%s)", resp.StatusDetail)
	}
	fmt.Println()
	if resp.Narrative != "" {
		fmt.Printf("  GM: %s\n", strings.ReplaceAll(resp.Narrative, "\n\n", "\n      "))
	}
	for _, req := range resp.PendingRequests {
		fmt.Printf("  waiting on %s: %s %s (%s)\n",
			strings.Join(req.CharacterIDs, ", "), req.Type, req.DiceFormula, req.Reason)
	}

	return resp, nil
}

func describeGameEvent(event *game.GameEvent) string {
	switch event.Type {
	case game.EventPlayerAction:
		return fmt.Sprintf("player action: %s", event.Action.Text)
	case game.EventPlayerDiceSubmission:
		return fmt.Sprintf("dice submission for %s", event.DiceSubmission.RequestID)
	default:
		return event.Type
	}
}

// describeEvent renders a one-line suffix for the event feed
func describeEvent(event events.Event) string {
	switch e := event.(type) {
	case *events.CombatStarted:
		names := make([]string, 0, len(e.Combatants))
		for _, c := range e.Combatants {
			names = append(names, c.Name)
		}
		return ": " + strings.Join(names, ", ")
	case *events.CombatEnded:
		return fmt.Sprintf(": %s after %d round(s)", e.Reason, e.Rounds)
	case *events.InitiativeSet:
		return fmt.Sprintf(": %s rolls %d", e.Name, e.Initiative)
	case *events.TurnAdvanced:
		return fmt.Sprintf(": %s acts (round %d)", e.Name, e.Round)
	case *events.DiceRequestAdded:
		return fmt.Sprintf(": %s owes %s (%s)", e.CharacterName, e.RollType, e.Formula)
	case *events.NPCRollProcessed:
		return fmt.Sprintf(": %s %s %s", e.Name, e.RollType, e.Result)
	case *events.CombatantHPChanged:
		return fmt.Sprintf(": %s %d -> %d", e.Name, e.OldHP, e.NewHP)
	case *events.CombatantRemoved:
		return fmt.Sprintf(": %s (%s)", e.Name, e.Reason)
	case *events.PartyMemberUpdated:
		return fmt.Sprintf(": %s %s", e.Name, e.Detail)
	case *events.GameError:
		return fmt.Sprintf(": %s: %s", e.Code, e.Message)
	case *events.MessageAppended:
		return fmt.Sprintf(" (%s)", e.Role)
	default:
		return ""
	}
}

func printEpilogue(ctx context.Context, repo sessionrepo.Repository) error {
	out, err := repo.Get(ctx, &sessionrepo.GetInput{SessionID: demoSessionID})
	if err != nil {
		return err
	}
	sess := out.Session

	fmt.Println("\n=== Epilogue ===")
	if brynja := sess.PartyMember("char_brynja"); brynja != nil {
		fmt.Printf("Brynja: HP %d/%d, gold %d\n", brynja.CurrentHP, brynja.MaxHP, brynja.Gold)
	}
	fmt.Printf("combat active: %v, transcript entries: %d\n",
		sess.CombatActive(), len(sess.Transcript))
	return nil
}

// scriptedAIClient replays canned GM responses in order
type scriptedAIClient struct {
	responses []*entities.AIResponse
	next      int
}

func (c *scriptedAIClient) GenerateResponse(ctx context.Context, input *ai.GenerateResponseInput) (*ai.GenerateResponseOutput, error) {
	if c.next >= len(c.responses) {
		return nil, errors.Unavailable("the script has no more responses")
	}
	resp := c.responses[c.next]
	c.next++
	return &ai.GenerateResponseOutput{Response: resp}, nil
}
