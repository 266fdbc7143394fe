package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	r0 = engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 0}
	h0 = engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 1}
)

func TestLoadDirYAML(t *testing.T) {
	b, err := LoadDir("testdata")
	require.NoError(t, err)

	assert.Equal(t, r0, b.Graph.Init)
	assert.Len(t, b.Graph.Nodes, 4)
	assert.Len(t, b.Graph.Edges, 6)
	assert.Equal(t, engine.PlayerEnvironment, b.Graph.Owner(engine.GraphState{Robot: "20", Human: "h", Monitor: "q0", Index: 2}))
	assert.Equal(t, []engine.Move{engine.MoveIdle, engine.MoveInteract}, b.Graph.ValidMoves(r0, engine.PlayerRobot))

	m, ok := b.Strategy.NextRobotMove(r0)
	require.True(t, ok)
	assert.Equal(t, engine.MoveInteract, m)

	require.Len(t, b.Strategy.Safety, 1)
	assert.Equal(t, h0, b.Strategy.Safety[0].State, "tuple-string state key")
	require.Len(t, b.Strategy.Fairness, 1)
	assert.Equal(t, h0, b.Strategy.Fairness[0].State, "sequence state key")

	// No layout file: the default kitchen applies.
	assert.Equal(t, engine.DefaultLayout(), b.Layout)
}

func TestLoadDirJSON(t *testing.T) {
	b, err := LoadDir(filepath.Join("testdata", "json"))
	require.NoError(t, err)

	assert.Len(t, b.Graph.Edges, 3)
	m, ok := b.Strategy.NextRobotMove(r0)
	require.True(t, ok)
	assert.Equal(t, engine.MoveIdle, m)

	require.Len(t, b.Layout.Robot, 2)
	sauce, ok := b.Layout.StandOf(engine.PlayerHuman, engine.StationSauce)
	require.True(t, ok, "ketchup parses as sauce")
	assert.Equal(t, engine.Position{X: 3, Y: 3}, sauce)
}

func TestLoadDirMissingFiles(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDecodeGameRejectsBadGuard(t *testing.T) {
	doc := `
init: ["20", "h", "q0", 0]
human_ap: [a, b]
nodes:
  - {state: ["20", "h", "q0", 0], owner: human}
  - {state: ["20", "h", "q0", 1], owner: prob}
edges:
  - {from: ["20", "h", "q0", 0], to: ["20", "h", "q0", 1], guards: ["1Y"]}
`
	_, err := DecodeGame(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 0, 1 and X")
}

func TestDecodeGameRejectsUnknownEdgeTarget(t *testing.T) {
	doc := `
init: ["20", "h", "q0", 0]
human_ap: [a]
nodes:
  - {state: ["20", "h", "q0", 0], owner: robot}
edges:
  - {from: ["20", "h", "q0", 0], to: ["20", "h", "q0", 9], action: Idle}
`
	_, err := DecodeGame(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrIntegrity))
}

func TestDecodeGameRejectsUnknownField(t *testing.T) {
	doc := `
init: ["20", "h", "q0", 0]
human_ap: [a]
nodez: []
`
	_, err := DecodeGame(strings.NewReader(doc))
	require.Error(t, err)
}

func TestDecodeGameRejectsEmpty(t *testing.T) {
	_, err := DecodeGame(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}

func TestDecodeStrategyBadKey(t *testing.T) {
	_, err := DecodeStrategy(strings.NewReader(`moves: {"20,h,q0,0": Idle}`))
	require.Error(t, err)

	_, err = DecodeStrategy(strings.NewReader(`moves: {"('20', 'h', 'q0', 0)": Jump}`))
	require.Error(t, err)
}

func TestStateTupleForms(t *testing.T) {
	doc := `
safety:
  - {state: ["21i", "h2", "q1", 7], guards: ["X"]}
  - {state: "('21i', 'h2', 'q1', 7)", guards: ["1"]}
`
	s, err := DecodeStrategy(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, s.Safety, 2)
	assert.Equal(t, s.Safety[0].State, s.Safety[1].State)
	assert.Equal(t, 7, s.Safety[0].State.Index)

	_, err = DecodeStrategy(strings.NewReader(`safety: [{state: {robot: "20"}, guards: ["X"]}]`))
	require.Error(t, err)
	_, err = DecodeStrategy(strings.NewReader(`safety: [{state: ["20", "h", "q0"], guards: ["X"]}]`))
	require.Error(t, err)
}

func TestBundleValidateAdviserSingleton(t *testing.T) {
	b, err := LoadDir("testdata")
	require.NoError(t, err)

	b.Strategy.Safety = append(b.Strategy.Safety, engine.Adviser{State: h0, Guards: []string{"XXXXXX", "XXXXX1"}})
	err = b.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrIntegrity))
}

func TestBundleValidateUnboundProposition(t *testing.T) {
	b, err := LoadDir("testdata")
	require.NoError(t, err)

	b.Graph.HumanAP = append([]string(nil), b.Graph.HumanAP...)
	b.Graph.HumanAP[0] = "fryer_h"
	err = b.Validate()
	require.Error(t, err)
}

func TestDecodeLayoutValidates(t *testing.T) {
	doc := `
size: 5
human_start: [2, 4]
robot_start: [2, 0]
human:
  - {station: delivery, stand: [2, 4], facing: Up, moves: [Idle]}
`
	_, err := DecodeLayout(strings.NewReader(doc))
	require.Error(t, err, "anchor off the grid")
}
