package artifact

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	engine "github.com/jason-s-yu/burgerlab/engine"
	"gopkg.in/yaml.v3"
)

// stateTuple decodes a graph state written either as a sequence
// [robot, human, monitor, index] or as the legacy tuple string
// "('20', 'h', 'q0', 1)".
type stateTuple engine.GraphState

func (s *stateTuple) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		st, err := engine.ParseGraphState(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*s = stateTuple(st)
		return nil
	case yaml.SequenceNode:
		if len(value.Content) != 4 {
			return fmt.Errorf("line %d: graph state wants 4 fields, got %d", value.Line, len(value.Content))
		}
		idx, err := strconv.Atoi(value.Content[3].Value)
		if err != nil {
			return fmt.Errorf("line %d: bad state index %q", value.Line, value.Content[3].Value)
		}
		*s = stateTuple{
			Robot:   value.Content[0].Value,
			Human:   value.Content[1].Value,
			Monitor: value.Content[2].Value,
			Index:   idx,
		}
		return nil
	}
	return fmt.Errorf("line %d: graph state must be a sequence or a tuple string", value.Line)
}

// ---------------------------------------------------------------------------
// Game graph
// ---------------------------------------------------------------------------

type gameDoc struct {
	Init      stateTuple   `yaml:"init"`
	HumanAP   []string     `yaml:"human_ap"`
	RobotAP   []string     `yaml:"robot_ap"`
	Nodes     []nodeDoc    `yaml:"nodes"`
	Edges     []edgeDoc    `yaml:"edges"`
	Accepting []stateTuple `yaml:"accepting"`
}

type nodeDoc struct {
	State stateTuple `yaml:"state"`
	Owner string     `yaml:"owner"`
	Label string     `yaml:"label"`
}

type edgeDoc struct {
	From        stateTuple `yaml:"from"`
	To          stateTuple `yaml:"to"`
	Action      string     `yaml:"action"`
	Guards      []string   `yaml:"guards"`
	Probability float64    `yaml:"probability"`
}

// DecodeGame reads a game graph document.
func DecodeGame(r io.Reader) (*engine.Graph, error) {
	var doc gameDoc
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	if len(doc.HumanAP) == 0 {
		return nil, fmt.Errorf("decode game: human_ap is empty")
	}

	nodes := make([]engine.Node, 0, len(doc.Nodes))
	for i, n := range doc.Nodes {
		owner, err := engine.ParsePlayer(n.Owner)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes = append(nodes, engine.Node{State: engine.GraphState(n.State), Owner: owner, Label: n.Label})
	}

	edges := make([]engine.Edge, 0, len(doc.Edges))
	for i, e := range doc.Edges {
		action, err := engine.ParseMove(e.Action)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		if action != engine.MoveNone && len(e.Guards) > 0 {
			return nil, fmt.Errorf("edge %d: carries both an action and guards", i)
		}
		for _, g := range e.Guards {
			if err := checkGuard(g); err != nil {
				return nil, fmt.Errorf("edge %d: %w", i, err)
			}
		}
		edges = append(edges, engine.Edge{
			From:        engine.GraphState(e.From),
			To:          engine.GraphState(e.To),
			Action:      action,
			Guards:      e.Guards,
			Probability: e.Probability,
		})
	}

	accepting := make([]engine.GraphState, len(doc.Accepting))
	for i, s := range doc.Accepting {
		accepting[i] = engine.GraphState(s)
	}
	return engine.NewGraph(nodes, edges, accepting, engine.GraphState(doc.Init), doc.HumanAP, doc.RobotAP)
}

func checkGuard(g string) error {
	if g == "" {
		return fmt.Errorf("empty guard")
	}
	if strings.Trim(g, "01X") != "" {
		return fmt.Errorf("guard %q: only 0, 1 and X are allowed", g)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Strategy
// ---------------------------------------------------------------------------

type strategyDoc struct {
	// Moves is keyed by the tuple string of a robot state.
	Moves    map[string]string `yaml:"moves"`
	Safety   []adviserDoc      `yaml:"safety"`
	Fairness []adviserDoc      `yaml:"fairness"`
}

type adviserDoc struct {
	State  stateTuple `yaml:"state"`
	Guards []string   `yaml:"guards"`
}

// DecodeStrategy reads a strategy document. String state keys are parsed
// here, once, into structural keys.
func DecodeStrategy(r io.Reader) (*engine.Strategy, error) {
	var doc strategyDoc
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}
	s := &engine.Strategy{Table: make(map[engine.GraphState]engine.Move, len(doc.Moves))}
	for key, label := range doc.Moves {
		st, err := engine.ParseGraphState(key)
		if err != nil {
			return nil, fmt.Errorf("strategy: %w", err)
		}
		m, err := engine.ParseMove(label)
		if err != nil {
			return nil, fmt.Errorf("strategy entry %s: %w", st, err)
		}
		if m == engine.MoveNone {
			return nil, fmt.Errorf("strategy entry %s: empty move", st)
		}
		s.Table[st] = m
	}
	var err error
	if s.Safety, err = advisers(doc.Safety, "safety"); err != nil {
		return nil, err
	}
	if s.Fairness, err = advisers(doc.Fairness, "fairness"); err != nil {
		return nil, err
	}
	return s, nil
}

func advisers(docs []adviserDoc, class string) ([]engine.Adviser, error) {
	out := make([]engine.Adviser, 0, len(docs))
	for i, d := range docs {
		for _, g := range d.Guards {
			if err := checkGuard(g); err != nil {
				return nil, fmt.Errorf("%s adviser %d: %w", class, i, err)
			}
		}
		out = append(out, engine.Adviser{State: engine.GraphState(d.State), Guards: d.Guards})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

type layoutDoc struct {
	Size       int          `yaml:"size"`
	HumanStart [2]int       `yaml:"human_start"`
	RobotStart [2]int       `yaml:"robot_start"`
	Human      []stationDoc `yaml:"human"`
	Robot      []stationDoc `yaml:"robot"`
}

type stationDoc struct {
	Station     string   `yaml:"station"`
	Stand       [2]int   `yaml:"stand"`
	Facing      string   `yaml:"facing"`
	Moves       []string `yaml:"moves"`
	Proposition string   `yaml:"proposition"`
}

// DecodeLayout reads a kitchen layout document.
func DecodeLayout(r io.Reader) (*engine.Layout, error) {
	var doc layoutDoc
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	l := &engine.Layout{
		Size:       doc.Size,
		HumanStart: engine.Position{X: doc.HumanStart[0], Y: doc.HumanStart[1]},
		RobotStart: engine.Position{X: doc.RobotStart[0], Y: doc.RobotStart[1]},
	}
	if l.Size == 0 {
		l.Size = engine.NumTiles
	}
	var err error
	if l.Human, err = workstations(doc.Human); err != nil {
		return nil, fmt.Errorf("layout human: %w", err)
	}
	if l.Robot, err = workstations(doc.Robot); err != nil {
		return nil, fmt.Errorf("layout robot: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func workstations(docs []stationDoc) ([]engine.Workstation, error) {
	out := make([]engine.Workstation, 0, len(docs))
	for i, d := range docs {
		st, err := engine.ParseStation(d.Station)
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", i, err)
		}
		facing, err := engine.ParseMove(d.Facing)
		if err != nil {
			return nil, fmt.Errorf("station %d: %w", i, err)
		}
		w := engine.Workstation{
			Station:     st,
			Stand:       engine.Position{X: d.Stand[0], Y: d.Stand[1]},
			Facing:      facing,
			Proposition: d.Proposition,
		}
		for _, label := range d.Moves {
			m, err := engine.ParseMove(label)
			if err != nil {
				return nil, fmt.Errorf("station %d: %w", i, err)
			}
			w.Moves = append(w.Moves, m)
		}
		out = append(out, w)
	}
	return out, nil
}
