package engine

// Adviser is a state-keyed guard annotation. The synthesis tool emits a guard
// set per state; in this design every set is a singleton.
type Adviser struct {
	State  GraphState
	Guards []string
}

// Strategy is the precomputed robot strategy and its adviser annotations.
type Strategy struct {
	Table    map[GraphState]Move
	Safety   []Adviser
	Fairness []Adviser
}

// NextRobotMove looks up the prescribed robot move for state.
func (s *Strategy) NextRobotMove(state GraphState) (Move, bool) {
	m, ok := s.Table[state]
	return m, ok
}

// Validate checks the strategy against g: table moves must be legal at
// their state, and every adviser must carry exactly one guard as wide as
// the human proposition list.
func (s *Strategy) Validate(g *Graph) error {
	for state, m := range s.Table {
		if !g.HasNode(state) {
			return integrityf("strategy entry for unknown state %s", state)
		}
		if !containsMove(g.ValidMoves(state, PlayerRobot), m) {
			return integrityf("strategy move %s is not legal at %s", m, state)
		}
	}
	width := len(g.HumanAP)
	for _, class := range []struct {
		name string
		list []Adviser
	}{{"safety", s.Safety}, {"fairness", s.Fairness}} {
		for _, adv := range class.list {
			if len(adv.Guards) != 1 {
				return integrityf("%s adviser at %s has %d guards, want 1", class.name, adv.State, len(adv.Guards))
			}
			if len(adv.Guards[0]) != width {
				return integrityf("%s adviser guard %q has width %d, want %d", class.name, adv.Guards[0], len(adv.Guards[0]), width)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scripted delivery override
// ---------------------------------------------------------------------------

// ResetTriggerLabel is the robot label at which the accepting-state override
// restarts the task automaton.
const ResetTriggerLabel = "20i"

// deliveryMoves walks the robot from any ingredient stand to the delivery
// counter and deposits the burger once the task automaton has accepted.
// Labels are robot locations "xy", with an "i" suffix while interacting.
// This is a fixed script layered over the strategy, not derived from the graph.
var deliveryMoves = map[string]Move{
	"01":  MoveRight,
	"11":  MoveRight,
	"21":  MoveDown,
	"31":  MoveLeft,
	"41":  MoveLeft,
	"01i": MoveInteract,
	"11i": MoveInteract,
	"21i": MoveInteract,
	"31i": MoveInteract,
	"41i": MoveInteract,
	"20":  MoveInteract,
	"20i": MoveInteract,
}

// DeliveryMove returns the scripted delivery move for a robot label.
func DeliveryMove(label string) (Move, error) {
	m, ok := deliveryMoves[label]
	if !ok {
		return MoveNone, integrityf("no scripted delivery move for robot label %q", label)
	}
	return m, nil
}

// SelectRobotMove picks the robot move at state, in priority order:
//  1. accepting state: the scripted delivery move; at ResetTriggerLabel the
//     task restarts from Init with the robot label kept, so the next planning
//     step stays on the script
//  2. the strategy table
//  3. the first graph-legal robot move
//
// It returns the move and the state the move must be applied from.
func SelectRobotMove(g *Graph, s *Strategy, state GraphState) (Move, GraphState, error) {
	if g.IsAccepting(state) {
		m, err := DeliveryMove(state.Robot)
		if err != nil {
			return MoveNone, state, err
		}
		if state.Robot == ResetTriggerLabel {
			state = g.Init
			state.Robot = ResetTriggerLabel
		}
		return m, state, nil
	}
	if m, ok := s.NextRobotMove(state); ok {
		return m, state, nil
	}
	moves := g.ValidMoves(state, PlayerRobot)
	if len(moves) == 0 {
		return MoveNone, state, integrityf("no strategy entry and no legal robot move at %s", state)
	}
	return moves[0], state, nil
}
