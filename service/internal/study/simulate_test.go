package study

import (
	"context"
	"testing"
	"time"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimStudy(t *testing.T, rules engine.StudyRules) *engine.Study {
	t.Helper()
	b := newTestBundle(t, nil)
	st, err := engine.NewStudy(b.Graph, b.Strategy, b.Layout, rules, 777777)
	require.NoError(t, err)
	return st
}

func TestSimulateGuided(t *testing.T) {
	rules := testRules(engine.AdviserNextMove)
	// Room for exactly one choreography cycle: the session expires on the
	// tick after the last step resolves.
	rules.SessionDuration = time.Duration(engine.GuidanceCycleLen)*rules.AnimationDuration + rules.AnimationDuration/2
	st := newSimStudy(t, rules)

	res, err := Simulate(context.Background(), st, rules.AnimationDuration, GuidedParticipant)
	require.NoError(t, err)
	assert.True(t, st.Ended())
	assert.Equal(t, 777777, res.ParticipantID)
	assert.Equal(t, uint32(engine.GuidanceCycleLen), res.StepsTaken)
	assert.Equal(t, uint32(1), res.HumanBurgers)
	assert.Zero(t, res.SafetyViolated)
}

func TestSimulateRandomIsReproducible(t *testing.T) {
	rules := testRules(engine.AdviserLeastLimiting)
	rules.SessionDuration = 30 * time.Second

	a, err := Simulate(context.Background(), newSimStudy(t, rules), 100*time.Millisecond, RandomParticipant(7))
	require.NoError(t, err)
	b, err := Simulate(context.Background(), newSimStudy(t, rules), 100*time.Millisecond, RandomParticipant(7))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Positive(t, a.StepsTaken)
	assert.LessOrEqual(t, a.SafetyViolated, a.StepsTaken)
}

func TestSimulateRejectsBadTick(t *testing.T) {
	_, err := Simulate(context.Background(), newSimStudy(t, testRules(engine.AdviserNone)), 0, GuidedParticipant)
	assert.Error(t, err)
}

func TestSimulateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulate(ctx, newSimStudy(t, testRules(engine.AdviserNone)), time.Millisecond, GuidedParticipant)
	assert.ErrorIs(t, err, context.Canceled)
}
