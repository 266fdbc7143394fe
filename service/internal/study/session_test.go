package study

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/artifact"
	"github.com/jason-s-yu/burgerlab/service/internal/cache"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	stR0 = engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 0}
	stH0 = engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 1}
	stP0 = engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 2}
)

var testHumanAP = []string{"delivery_h", "patty_h", "buns_h", "tomato_h", "ketchup_h", "lettuce_h"}

// newTestBundle builds a three-state loop: the robot interacts, any
// observation is accepted, and the environment hands back to the robot.
// An engaged human at the tomato station is unsafe.
func newTestBundle(t *testing.T, safety []engine.Adviser) *artifact.Bundle {
	t.Helper()
	nodes := []engine.Node{
		{State: stR0, Owner: engine.PlayerRobot},
		{State: stH0, Owner: engine.PlayerHuman},
		{State: stP0, Owner: engine.PlayerEnvironment},
	}
	edges := []engine.Edge{
		{From: stR0, To: stH0, Action: engine.MoveIdle},
		{From: stR0, To: stH0, Action: engine.MoveInteract},
		{From: stH0, To: stP0, Guards: []string{"XXXXXX"}},
		{From: stP0, To: stR0, Probability: 1},
	}
	g, err := engine.NewGraph(nodes, edges, nil, stR0, testHumanAP, nil)
	require.NoError(t, err)
	if safety == nil {
		safety = []engine.Adviser{{State: stH0, Guards: []string{"XXX1XX"}}}
	}
	return &artifact.Bundle{
		Graph: g,
		Strategy: &engine.Strategy{
			Table:  map[engine.GraphState]engine.Move{stR0: engine.MoveInteract},
			Safety: safety,
		},
		Layout: engine.DefaultLayout(),
	}
}

func testRules(mode engine.AdviserMode) engine.StudyRules {
	rules := engine.DefaultStudyRules()
	rules.Mode = mode
	return rules
}

// mockBroadcaster captures snapshots for testing assertions.
type mockBroadcaster struct {
	mu    sync.Mutex
	snaps []models.Snapshot
}

func (mb *mockBroadcaster) broadcastFn(snap models.Snapshot) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.snaps = append(mb.snaps, snap)
}

func (mb *mockBroadcaster) last() *models.Snapshot {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.snaps) == 0 {
		return nil
	}
	return &mb.snaps[len(mb.snaps)-1]
}

// mockSink records persisted results, optionally taking delay per write.
type mockSink struct {
	mu      sync.Mutex
	results []models.StudyResult
	delay   time.Duration
}

func (m *mockSink) SaveSessionResult(_ context.Context, r models.StudyResult) error {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *mockSink) stored() []models.StudyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StudyResult(nil), m.results...)
}

// mockPublisher records published actions.
type mockPublisher struct {
	mu   sync.Mutex
	recs []cache.StudyActionRecord
}

func (m *mockPublisher) PublishStudyAction(_ context.Context, rec cache.StudyActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *mockPublisher) countType(actionType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recs {
		if r.ActionType == actionType {
			n++
		}
	}
	return n
}

type endCall struct {
	id     uuid.UUID
	result models.StudyResult
	reason string
}

// setupTestSession creates a session wired to mock collaborators.
func setupTestSession(t *testing.T, b *artifact.Bundle, rules engine.StudyRules) (*Session, *mockBroadcaster, *mockSink, *mockPublisher, *[]endCall) {
	t.Helper()
	st, err := engine.NewStudy(b.Graph, b.Strategy, b.Layout, rules, 654321)
	require.NoError(t, err)

	mb := &mockBroadcaster{}
	sink := &mockSink{}
	pub := &mockPublisher{}
	var ends []endCall

	s := NewSession(st, time.Millisecond)
	s.BroadcastFn = mb.broadcastFn
	s.Results = sink
	s.Actions = pub
	s.OnSessionEnd = func(id uuid.UUID, r models.StudyResult, reason string) {
		ends = append(ends, endCall{id, r, reason})
	}
	return s, mb, sink, pub, &ends
}

func TestStepBroadcastsSnapshot(t *testing.T) {
	s, mb, _, _, _ := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserLeastLimiting))

	over := s.Step(10 * time.Millisecond)
	require.False(t, over)

	snap := mb.last()
	require.NotNil(t, snap)
	assert.Equal(t, s.ID, snap.SessionID)
	assert.Equal(t, 654321, snap.ParticipantID)
	assert.Equal(t, "idle", snap.State)
	assert.Equal(t, 2, snap.Human.X)
	assert.Equal(t, 4, snap.Human.Y)
	assert.Equal(t, "LeastLimiting", snap.Advisers.Mode)
	assert.Equal(t, []string{"XXX1XX"}, snap.Advisers.Safety, "robot planning should surface the safety guard")
	assert.Empty(t, snap.Advisers.NextMove)
	assert.Positive(t, snap.RemainingMs)
}

func TestSnapshotShowsNextMoveOnly(t *testing.T) {
	s, _, _, _, _ := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserNextMove))
	s.Step(10 * time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, engine.PrescribedMove(0).String(), snap.Advisers.NextMove)
	assert.Empty(t, snap.Advisers.Safety)
	assert.Empty(t, snap.Advisers.Fairness)
}

func TestGuidedSessionDeliversBurger(t *testing.T) {
	s, _, _, pub, _ := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserNextMove))
	anim := s.study.Rules.AnimationDuration

	for i := 0; i < engine.GuidanceCycleLen; i++ {
		m, err := s.study.GuidedMove()
		require.NoError(t, err)
		require.NoError(t, s.SubmitMove(m.String()))
		require.False(t, s.Step(anim), "step %d", i)
	}

	res := s.Result()
	assert.Equal(t, uint32(1), res.HumanBurgers)
	assert.Equal(t, uint32(engine.GuidanceCycleLen), res.StepsTaken)
	assert.Zero(t, res.SafetyViolated)
	assert.Eventually(t, func() bool {
		return pub.countType("study_step") == engine.GuidanceCycleLen
	}, time.Second, 5*time.Millisecond)
}

func TestViolationPublishesReset(t *testing.T) {
	s, _, _, pub, _ := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserNextMove))
	rules := s.study.Rules

	// Idle at the start tile deviates from the scripted first move.
	require.NoError(t, s.SubmitKey("space"))
	s.Step(rules.AnimationDuration)
	assert.Equal(t, uint32(1), s.Result().SafetyViolated)
	assert.Equal(t, engine.StateFadingOut, s.study.State)

	s.Step(rules.FadeDuration)
	assert.Equal(t, engine.StateIdle, s.study.State)
	assert.Eventually(t, func() bool { return pub.countType("study_reset") == 1 }, time.Second, 5*time.Millisecond)
}

func TestSessionEndsWhenTimerExpires(t *testing.T) {
	rules := testRules(engine.AdviserNone)
	rules.SessionDuration = time.Second
	s, mb, sink, pub, ends := setupTestSession(t, newTestBundle(t, nil), rules)

	assert.True(t, s.Step(2*time.Second))
	assert.True(t, s.Over)
	assert.False(t, s.Aborted)
	assert.Equal(t, ReasonCompleted, s.Reason)

	require.Len(t, *ends, 1)
	assert.Equal(t, ReasonCompleted, (*ends)[0].reason)
	assert.Equal(t, s.ID, (*ends)[0].id)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.Zero(t, mb.last().RemainingMs)

	assert.Eventually(t, func() bool { return len(sink.stored()) == 1 }, time.Second, 5*time.Millisecond)
	stored := sink.stored()[0]
	assert.Equal(t, 654321, stored.ParticipantID)
	assert.Equal(t, uint32(2), stored.AdviserMode)
	assert.False(t, stored.Aborted)
	assert.Eventually(t, func() bool { return pub.countType("study_end") == 1 }, time.Second, 5*time.Millisecond)

	// Further steps are no-ops.
	assert.True(t, s.Step(time.Second))
	assert.Len(t, *ends, 1)
}

func TestIntegrityFaultAbortsSession(t *testing.T) {
	bad := []engine.Adviser{{State: stH0, Guards: []string{"XXX1XX", "XXXXX1"}}}
	s, _, sink, _, ends := setupTestSession(t, newTestBundle(t, bad), testRules(engine.AdviserLeastLimiting))

	assert.True(t, s.Step(10*time.Millisecond))
	assert.True(t, s.Aborted)
	assert.Equal(t, ReasonIntegrity, s.Reason)
	require.Len(t, *ends, 1)
	assert.True(t, (*ends)[0].result.Aborted)

	assert.Eventually(t, func() bool { return len(sink.stored()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, sink.stored()[0].Aborted)
}

func TestSubmitIntents(t *testing.T) {
	s, _, _, _, _ := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserLeastLimiting))

	require.NoError(t, s.HandleMessage(models.ClientMessage{Key: "left"}))
	m, ok := s.study.PendingHumanMove()
	require.True(t, ok)
	assert.Equal(t, engine.MoveInteract, m, "Left at the delivery tile interacts")

	require.NoError(t, s.HandleMessage(models.ClientMessage{Move: "Up"}))
	m, _ = s.study.PendingHumanMove()
	assert.Equal(t, engine.MoveUp, m)

	assert.Error(t, s.SubmitKey("escape"))
	assert.Error(t, s.SubmitMove("Sideways"))
	assert.Error(t, s.HandleMessage(models.ClientMessage{}))

	s.Cancel()
	assert.ErrorIs(t, s.SubmitKey("left"), ErrSessionOver)
	assert.ErrorIs(t, s.SubmitMove("Up"), ErrSessionOver)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, sink, _, ends := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserLeastLimiting))

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(finished)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	s.Mu.Lock()
	assert.True(t, s.Aborted)
	assert.Equal(t, ReasonCancelled, s.Reason)
	require.Len(t, *ends, 1)
	s.Mu.Unlock()
	assert.Eventually(t, func() bool { return len(sink.stored()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAttachOnce(t *testing.T) {
	s, _, _, _, ends := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserLeastLimiting))
	mb := &mockBroadcaster{}

	require.NoError(t, s.Attach(mb.broadcastFn))
	assert.ErrorIs(t, s.Attach(mb.broadcastFn), ErrAlreadyAttached)
	assert.False(t, s.ExpireIfUnclaimed())

	s.Step(10 * time.Millisecond)
	assert.NotNil(t, mb.last())

	s.Cancel()
	assert.ErrorIs(t, s.Attach(mb.broadcastFn), ErrSessionOver)
	assert.Len(t, *ends, 1)
}

func TestExpireIfUnclaimed(t *testing.T) {
	s, _, _, _, ends := setupTestSession(t, newTestBundle(t, nil), testRules(engine.AdviserLeastLimiting))

	assert.True(t, s.ExpireIfUnclaimed())
	assert.True(t, s.Aborted)
	require.Len(t, *ends, 1)
	assert.Equal(t, ReasonCancelled, (*ends)[0].reason)
	assert.False(t, s.ExpireIfUnclaimed())
}
