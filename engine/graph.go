// Package engine implements the game-state resolution engine of the
// human/robot cooperation study.
//
// The engine advances a synthesized product game graph in lockstep with a
// human and a robot, consults the precomputed strategy and its adviser
// annotations, runs the per-agent interaction state machine, tracks burger
// progress, and detects violations that roll the study back to its start.
// It is single-threaded and allocation-light; the service layer owns the
// tick loop and all I/O.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// GraphState identifies a node of the product automaton. It mirrors the
// tuple emitted by the synthesis tool: robot location label, human location
// label, task-monitor state, and an index. The value is comparable and is
// used directly as a map key.
type GraphState struct {
	Robot   string
	Human   string
	Monitor string
	Index   int
}

// String renders the canonical tuple form, e.g. ('20', 'h3', 'q0', 1).
func (s GraphState) String() string {
	return fmt.Sprintf("('%s', '%s', '%s', %d)", s.Robot, s.Human, s.Monitor, s.Index)
}

// ParseGraphState parses the canonical tuple form produced by String.
// It exists so legacy string-keyed tables can be converted into structural
// keys once, at load time.
func ParseGraphState(key string) (GraphState, error) {
	trimmed := strings.TrimSpace(key)
	if !strings.HasPrefix(trimmed, "(") || !strings.HasSuffix(trimmed, ")") {
		return GraphState{}, fmt.Errorf("graph state %q: missing parentheses", key)
	}
	parts := strings.Split(trimmed[1:len(trimmed)-1], ",")
	if len(parts) != 4 {
		return GraphState{}, fmt.Errorf("graph state %q: want 4 fields, got %d", key, len(parts))
	}
	unquote := func(s string) string {
		s = strings.TrimSpace(s)
		return strings.Trim(s, `'"`)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return GraphState{}, fmt.Errorf("graph state %q: bad index: %w", key, err)
	}
	return GraphState{
		Robot:   unquote(parts[0]),
		Human:   unquote(parts[1]),
		Monitor: unquote(parts[2]),
		Index:   idx,
	}, nil
}

// Node is a graph vertex with its owning player and optional proposition label.
type Node struct {
	State GraphState
	Owner Player
	Label string
}

// Edge is a directed transition. Action edges carry a Move, observation
// edges carry guards, and environment edges carry neither. Probability is
// recorded but never sampled: environment states must have exactly one
// outgoing edge.
type Edge struct {
	From        GraphState
	To          GraphState
	Action      Move
	Guards      []string
	Probability float64
}

// isEnvironment reports whether e is an unlabelled environment edge.
func (e *Edge) isEnvironment() bool { return e.Action == MoveNone && len(e.Guards) == 0 }

// Graph is the immutable product game graph.
type Graph struct {
	Nodes     []Node
	Edges     []Edge
	Accepting map[GraphState]struct{}
	Init      GraphState
	HumanAP   []string // observation bit order
	RobotAP   []string

	nodeIdx map[GraphState]int
	out     map[GraphState][]int // source -> edge indices, in artifact order
}

// NewGraph builds a Graph and indexes its edges. Every edge endpoint, every
// accepting state and the initial state must be a declared node.
func NewGraph(nodes []Node, edges []Edge, accepting []GraphState, init GraphState, humanAP, robotAP []string) (*Graph, error) {
	g := &Graph{
		Nodes:     nodes,
		Edges:     edges,
		Accepting: make(map[GraphState]struct{}, len(accepting)),
		Init:      init,
		HumanAP:   humanAP,
		RobotAP:   robotAP,
		nodeIdx:   make(map[GraphState]int, len(nodes)),
		out:       make(map[GraphState][]int, len(nodes)),
	}
	for i, n := range nodes {
		if _, dup := g.nodeIdx[n.State]; dup {
			return nil, integrityf("duplicate node %s", n.State)
		}
		g.nodeIdx[n.State] = i
	}
	if !g.HasNode(init) {
		return nil, integrityf("initial state %s is not a node", init)
	}
	for i := range edges {
		e := &edges[i]
		if !g.HasNode(e.From) {
			return nil, integrityf("edge %d: source %s is not a node", i, e.From)
		}
		if !g.HasNode(e.To) {
			return nil, integrityf("edge %d: target %s is not a node", i, e.To)
		}
		g.out[e.From] = append(g.out[e.From], i)
	}
	for _, s := range accepting {
		if !g.HasNode(s) {
			return nil, integrityf("accepting state %s is not a node", s)
		}
		g.Accepting[s] = struct{}{}
	}
	return g, nil
}

// HasNode reports whether s is a declared node.
func (g *Graph) HasNode(s GraphState) bool {
	_, ok := g.nodeIdx[s]
	return ok
}

// Owner returns the owning player of s, or PlayerUnknown.
func (g *Graph) Owner(s GraphState) Player {
	if i, ok := g.nodeIdx[s]; ok {
		return g.Nodes[i].Owner
	}
	return PlayerUnknown
}

// OutEdges returns the edges sourced at s in artifact order.
func (g *Graph) OutEdges(s GraphState) []Edge {
	idxs := g.out[s]
	edges := make([]Edge, len(idxs))
	for i, idx := range idxs {
		edges[i] = g.Edges[idx]
	}
	return edges
}

// ownedBy reports whether player may act at s. Nodes without a recorded
// owner accept any player.
func (g *Graph) ownedBy(s GraphState, player Player) bool {
	owner := g.Owner(s)
	return owner == PlayerUnknown || player == PlayerUnknown || owner == player
}

// ApplyActionMove follows the action edge labelled move out of state.
// A missing edge means the strategy and the graph disagree.
func (g *Graph) ApplyActionMove(state GraphState, player Player, move Move) (GraphState, error) {
	if !g.ownedBy(state, player) {
		return GraphState{}, integrityf("state %s is owned by %s, not %s", state, g.Owner(state), player)
	}
	for _, idx := range g.out[state] {
		e := &g.Edges[idx]
		if e.Action != MoveNone && e.Action == move {
			return e.To, nil
		}
	}
	return GraphState{}, integrityf("no transition found for %s move %s from %s", player, move, state)
}

// ApplyObservation follows the first observation edge out of state whose
// guard set matches obs.
func (g *Graph) ApplyObservation(state GraphState, obs string) (GraphState, error) {
	for _, idx := range g.out[state] {
		e := &g.Edges[idx]
		for _, guard := range e.Guards {
			ok, err := MatchGuard(obs, guard)
			if err != nil {
				return GraphState{}, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
			}
			if ok {
				return e.To, nil
			}
		}
	}
	return GraphState{}, integrityf("no transition found for observation %q from %s", obs, state)
}

// SkipEnvironmentState follows the single unlabelled edge out of state.
// Weighted branching is not supported, so more than one candidate edge is
// reported as an integrity fault rather than sampled.
func (g *Graph) SkipEnvironmentState(state GraphState) (GraphState, error) {
	var (
		next  GraphState
		count int
	)
	for _, idx := range g.out[state] {
		e := &g.Edges[idx]
		if e.isEnvironment() {
			if count == 0 {
				next = e.To
			}
			count++
		}
	}
	switch count {
	case 0:
		return GraphState{}, integrityf("no environment transition from %s", state)
	case 1:
		return next, nil
	default:
		return GraphState{}, integrityf("environment state %s has %d outgoing edges; probabilistic branching is unsupported", state, count)
	}
}

// IsAccepting reports whether state completes the task automaton.
func (g *Graph) IsAccepting(state GraphState) bool {
	_, ok := g.Accepting[state]
	return ok
}

// ValidMoves returns the distinct action labels of edges sourced at state,
// in artifact order. It returns nil when player does not own state.
func (g *Graph) ValidMoves(state GraphState, player Player) []Move {
	if !g.ownedBy(state, player) {
		return nil
	}
	var moves []Move
	for _, idx := range g.out[state] {
		m := g.Edges[idx].Action
		if m != MoveNone && !containsMove(moves, m) {
			moves = append(moves, m)
		}
	}
	return moves
}

// Reachable returns every state reachable from start, start included.
func (g *Graph) Reachable(start GraphState) map[GraphState]struct{} {
	seen := map[GraphState]struct{}{start: {}}
	queue := []GraphState{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, idx := range g.out[cur] {
			to := g.Edges[idx].To
			if _, ok := seen[to]; !ok {
				seen[to] = struct{}{}
				queue = append(queue, to)
			}
		}
	}
	return seen
}

// Validate checks the structural invariants the resolver relies on, over
// the states reachable from Init:
//   - robot-owned states have at least one action edge
//   - every observation guard is as wide as HumanAP
//   - states with environment edges have exactly one of them
func (g *Graph) Validate() error {
	width := len(g.HumanAP)
	for s := range g.Reachable(g.Init) {
		var actions, env int
		for _, idx := range g.out[s] {
			e := &g.Edges[idx]
			if e.Action != MoveNone {
				actions++
			}
			if e.isEnvironment() {
				env++
			}
			for _, guard := range e.Guards {
				if len(guard) != width {
					return integrityf("guard %q on %s -> %s has width %d, want %d", guard, e.From, e.To, len(guard), width)
				}
			}
		}
		if g.Owner(s) == PlayerRobot && actions == 0 {
			return integrityf("robot state %s has no action edge", s)
		}
		if env > 1 {
			return integrityf("environment state %s has %d outgoing edges", s, env)
		}
	}
	return nil
}
