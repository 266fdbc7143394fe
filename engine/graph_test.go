package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseGraphState(t *testing.T) {
	tests := []struct {
		in      string
		want    GraphState
		wantErr bool
	}{
		{in: "('20', 'h3', 'q0', 1)", want: GraphState{"20", "h3", "q0", 1}},
		{in: `("21i","h","q2",0)`, want: GraphState{"21i", "h", "q2", 0}},
		{in: "  ('01', 'x', 'q1', 12)  ", want: GraphState{"01", "x", "q1", 12}},
		{in: "'20', 'h', 'q0', 1", wantErr: true},
		{in: "('20', 'h', 'q0')", wantErr: true},
		{in: "('20', 'h', 'q0', one)", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseGraphState(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseGraphState(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGraphState(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseGraphState(%q) = %v, want %v", tc.in, got, tc.want)
		}
		// Canonical form round-trips.
		back, err := ParseGraphState(got.String())
		if err != nil || back != got {
			t.Errorf("round-trip of %v = %v, %v", got, back, err)
		}
	}
}

func TestNewGraphRejectsUnknownEndpoints(t *testing.T) {
	nodes := []Node{{State: stR0, Owner: PlayerRobot}}
	edges := []Edge{{From: stR0, To: stH0, Action: MoveIdle}}
	if _, err := NewGraph(nodes, edges, nil, stR0, testHumanAP, nil); !errors.Is(err, ErrIntegrity) {
		t.Errorf("unknown edge target: err = %v, want ErrIntegrity", err)
	}
	if _, err := NewGraph(nodes, nil, nil, stH0, testHumanAP, nil); !errors.Is(err, ErrIntegrity) {
		t.Errorf("unknown init: err = %v, want ErrIntegrity", err)
	}
	if _, err := NewGraph(nodes, nil, []GraphState{stP0}, stR0, testHumanAP, nil); !errors.Is(err, ErrIntegrity) {
		t.Errorf("unknown accepting state: err = %v, want ErrIntegrity", err)
	}
	dup := []Node{{State: stR0}, {State: stR0}}
	if _, err := NewGraph(dup, nil, nil, stR0, testHumanAP, nil); !errors.Is(err, ErrIntegrity) {
		t.Errorf("duplicate node: err = %v, want ErrIntegrity", err)
	}
}

func TestApplyActionMove(t *testing.T) {
	g := newTestGraph(t)

	for i := 0; i < 3; i++ {
		next, err := g.ApplyActionMove(stR0, PlayerRobot, MoveInteract)
		if err != nil {
			t.Fatalf("ApplyActionMove: %v", err)
		}
		if next != stH0 || !g.HasNode(next) {
			t.Fatalf("ApplyActionMove = %s, want %s", next, stH0)
		}
	}

	if _, err := g.ApplyActionMove(stR0, PlayerRobot, MoveLeft); !errors.Is(err, ErrIntegrity) {
		t.Errorf("missing edge: err = %v, want ErrIntegrity", err)
	}
	if _, err := g.ApplyActionMove(stR0, PlayerHuman, MoveIdle); !errors.Is(err, ErrIntegrity) {
		t.Errorf("wrong owner: err = %v, want ErrIntegrity", err)
	}
}

func TestApplyObservation(t *testing.T) {
	h1 := GraphState{"20", "h", "q0", 10}
	safe := GraphState{"20", "h", "q0", 11}
	unsafe := GraphState{"20", "h", "q0", 12}
	nodes := []Node{{State: h1}, {State: safe}, {State: unsafe}}
	edges := []Edge{
		{From: h1, To: unsafe, Guards: []string{"X1X0"}},
		{From: h1, To: safe, Guards: []string{"1XXX", "0XX1"}},
	}
	g, err := NewGraph(nodes, edges, nil, h1, []string{"a", "b", "c", "d"}, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	tests := []struct {
		obs  string
		want GraphState
	}{
		{"0100", unsafe},
		{"1100", unsafe}, // first matching edge wins
		{"1011", safe},
		{"0011", safe},
	}
	for _, tc := range tests {
		got, err := g.ApplyObservation(h1, tc.obs)
		if err != nil {
			t.Errorf("ApplyObservation(%q): %v", tc.obs, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ApplyObservation(%q) = %s, want %s", tc.obs, got, tc.want)
		}
	}

	if _, err := g.ApplyObservation(h1, "0010"); !errors.Is(err, ErrIntegrity) {
		t.Errorf("unmatched observation: err = %v, want ErrIntegrity", err)
	}
	if _, err := g.ApplyObservation(h1, "01"); !errors.Is(err, ErrIntegrity) {
		t.Errorf("short observation: err = %v, want ErrIntegrity", err)
	}
}

func TestSkipEnvironmentState(t *testing.T) {
	g := newTestGraph(t)
	next, err := g.SkipEnvironmentState(stP0)
	if err != nil || next != stR0 {
		t.Fatalf("SkipEnvironmentState = %s, %v, want %s", next, err, stR0)
	}

	// No unlabelled edge out of a robot state.
	if _, err := g.SkipEnvironmentState(stR0); !errors.Is(err, ErrIntegrity) {
		t.Errorf("no environment edge: err = %v, want ErrIntegrity", err)
	}

	branch := GraphState{"20", "h", "q0", 20}
	nodes := []Node{{State: branch, Owner: PlayerEnvironment}, {State: stR0}, {State: stH0}}
	edges := []Edge{
		{From: branch, To: stR0, Probability: 0.5},
		{From: branch, To: stH0, Probability: 0.5},
	}
	g2, err := NewGraph(nodes, edges, nil, branch, testHumanAP, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if _, err := g2.SkipEnvironmentState(branch); !errors.Is(err, ErrIntegrity) {
		t.Errorf("branching environment: err = %v, want ErrIntegrity", err)
	}
	if err := g2.Validate(); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Validate on branching environment: err = %v, want ErrIntegrity", err)
	}
}

func TestValidMoves(t *testing.T) {
	g := newTestGraph(t)

	got := g.ValidMoves(stR0, PlayerRobot)
	if len(got) != 2 || got[0] != MoveIdle || got[1] != MoveInteract {
		t.Errorf("ValidMoves(R0) = %v, want [Idle Interact]", got)
	}
	if got := g.ValidMoves(stR0, PlayerHuman); got != nil {
		t.Errorf("ValidMoves for non-owner = %v, want nil", got)
	}
	if got := g.ValidMoves(stH0, PlayerHuman); len(got) != 0 {
		t.Errorf("ValidMoves(H0) = %v, want none", got)
	}
}

func TestGraphValidate(t *testing.T) {
	lonely := GraphState{"20", "h", "q0", 30}
	g, err := NewGraph([]Node{{State: lonely, Owner: PlayerRobot}}, nil, nil, lonely, testHumanAP, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := g.Validate(); !errors.Is(err, ErrIntegrity) {
		t.Errorf("robot state without actions: err = %v, want ErrIntegrity", err)
	}

	nodes := []Node{{State: stH0, Owner: PlayerHuman}, {State: stP0}}
	edges := []Edge{{From: stH0, To: stP0, Guards: []string{"XX"}}}
	g, err = NewGraph(nodes, edges, nil, stH0, testHumanAP, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := g.Validate(); !errors.Is(err, ErrIntegrity) {
		t.Errorf("narrow guard: err = %v, want ErrIntegrity", err)
	}
}

func TestReachable(t *testing.T) {
	g := newTestGraph(t)
	seen := g.Reachable(stH0)
	for _, s := range []GraphState{stR0, stH0, stP0} {
		if _, ok := seen[s]; !ok {
			t.Errorf("%s not reachable from %s", s, stH0)
		}
	}
}

func TestWriteDOT(t *testing.T) {
	g := newTestGraph(t)
	var buf bytes.Buffer
	if err := g.WriteDOT(&buf); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"digraph ProductGame {",
		`start -> "('20', 'h', 'q0', 0)";`,
		`[label="Interact"]`,
		`[label="XXXXXX"]`,
		"shape=box",
		"shape=diamond",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
}
