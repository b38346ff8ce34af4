package session_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	"github.com/KirkDiggler/gamemaster-api/internal/services/rag"
	"github.com/KirkDiggler/gamemaster-api/internal/testutils/builders"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

// scriptedRoller returns queued values in order. An unscripted roll
// lands in the middle of the die.
type scriptedRoller struct {
	mu    sync.Mutex
	queue []int
	err   error
}

func (r *scriptedRoller) push(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, values...)
}

func (r *scriptedRoller) Roll(size int) (int, error) {
	values, err := r.RollN(1, size)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func (r *scriptedRoller) RollN(count, size int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]int, count)
	for i := range out {
		if len(r.queue) > 0 {
			out[i] = r.queue[0]
			r.queue = r.queue[1:]
		} else {
			out[i] = (size + 1) / 2
		}
	}
	return out, nil
}

// recordingRAG captures refresh calls and signals each one
type recordingRAG struct {
	mu     sync.Mutex
	calls  []rag.RefreshContextInput
	notify chan struct{}
}

func newRecordingRAG() *recordingRAG {
	return &recordingRAG{notify: make(chan struct{}, 16)}
}

func (r *recordingRAG) RefreshContext(_ context.Context, input *rag.RefreshContextInput) error {
	r.mu.Lock()
	r.calls = append(r.calls, *input)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *recordingRAG) snapshot() []rag.RefreshContextInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rag.RefreshContextInput(nil), r.calls...)
}

// stubContent resolves monster names from a fixed table
type stubContent struct {
	keys map[string]string
}

func (c *stubContent) ResolveMonsterKey(_ context.Context, name string) (string, error) {
	if key, ok := c.keys[strings.ToLower(name)]; ok {
		return key, nil
	}
	return "", errors.NotFoundf("no monster matches %q", name)
}

// failingRepo simulates a persistence outage
type failingRepo struct{}

func (failingRepo) Save(_ context.Context, _ *sessionrepo.SaveInput) (*sessionrepo.SaveOutput, error) {
	return nil, errors.Internal("redis connection refused")
}

func (failingRepo) Get(_ context.Context, _ *sessionrepo.GetInput) (*sessionrepo.GetOutput, error) {
	return nil, errors.Internal("redis connection refused")
}

func (failingRepo) Delete(_ context.Context, _ *sessionrepo.DeleteInput) (*sessionrepo.DeleteOutput, error) {
	return nil, errors.Internal("redis connection refused")
}

// eventRecorder subscribes to every event and keeps them in delivery
// order
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) ofType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range r.all() {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) types() []events.Type {
	all := r.all()
	out := make([]events.Type, 0, len(all))
	for _, e := range all {
		out = append(out, e.EventType())
	}
	return out
}

// orchestratorFixture wires a session orchestrator against recording
// stubs. Concern-specific suites embed it.
type orchestratorFixture struct {
	suite.Suite

	bus           *events.Bus
	recorder      *eventRecorder
	roller        *scriptedRoller
	clock         *testClock
	idGen         idgen.Generator
	repo          sessionrepo.Repository
	ragService    *recordingRAG
	contentClient *stubContent

	orchestrator session.Service
}

func (f *orchestratorFixture) SetupTest() {
	f.bus = events.NewBus()
	f.recorder = &eventRecorder{}
	f.bus.SubscribeFunc(events.TypeAny, 0, f.recorder.handle)

	f.clock = &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	f.roller = &scriptedRoller{}
	f.idGen = idgen.NewSequential("id")
	f.repo = sessionrepo.NewInMemory(f.clock)
	f.ragService = newRecordingRAG()
	f.contentClient = &stubContent{keys: map[string]string{
		"goblin":    "goblin",
		"dire wolf": "dire-wolf",
	}}

	f.orchestrator = f.newOrchestrator(f.repo)
}

// newOrchestrator builds a service against the fixture's stubs,
// swapping in the given repository.
func (f *orchestratorFixture) newOrchestrator(repo sessionrepo.Repository) session.Service {
	rollService, err := roll.NewOrchestrator(&roll.Config{
		Roller: f.roller,
		Clock:  f.clock,
	})
	f.Require().NoError(err)

	svc, err := session.NewOrchestrator(&session.Config{
		EventBus:          f.bus,
		RollService:       rollService,
		SessionRepository: repo,
		RAGService:        f.ragService,
		ContentClient:     f.contentClient,
		IDGenerator:       f.idGen,
		Clock:             f.clock,
	})
	f.Require().NoError(err)
	return svc
}

// process applies a response and requires success
func (f *orchestratorFixture) process(
	sess *entities.GameSession, resp *entities.AIResponse,
) *session.ProcessAIResponseOutput {
	out, err := f.orchestrator.ProcessAIResponse(context.Background(), &session.ProcessAIResponseInput{
		Session:  sess,
		Response: resp,
	})
	f.Require().NoError(err)
	f.Require().NotNil(out)
	return out
}

// partySession builds a two-member party with no combat running
func partySession() *entities.GameSession {
	brynja := builders.NewPartyMemberBuilder().
		WithID("char_brynja").
		WithName("Brynja").
		WithHP(24, 24).
		WithInitiativeModifier(2).
		Build()
	kael := builders.NewPartyMemberBuilder().
		WithID("char_kael").
		WithName("Kael").
		WithHP(18, 18).
		WithInitiativeModifier(1).
		Build()

	return builders.NewSessionBuilder().
		WithID("sess_1").
		WithPartyMember(brynja).
		WithPartyMember(kael).
		Build()
}

// combatSession builds a one-player fight against a goblin, with
// initiative already rolled and the player up first.
func combatSession() *entities.GameSession {
	brynja := builders.NewPartyMemberBuilder().
		WithID("char_brynja").
		WithName("Brynja").
		WithHP(24, 24).
		WithInitiativeModifier(2).
		Build()

	combat := builders.NewCombatBuilder().
		WithCombatants(
			builders.NewCombatantBuilder().
				WithID("char_brynja").
				WithName("Brynja").
				AsPlayer().
				WithHP(24, 24).
				WithInitiative(18).
				WithInitiativeModifier(2).
				Build(),
			builders.NewCombatantBuilder().
				WithID("goblin_1").
				WithName("Goblin").
				WithHP(7, 7).
				WithInitiative(15).
				WithInitiativeModifier(2).
				Build(),
		).
		Build()

	return builders.NewSessionBuilder().
		WithID("sess_1").
		WithPartyMember(brynja).
		WithCombat(combat).
		Build()
}

func boolPtr(b bool) *bool {
	return &b
}
