package engine

import "fmt"

// Phase is the interaction phase of one agent.
type Phase uint8

const (
	PhaseIdle     Phase = iota // 0: not interacting
	PhaseEntering              // 1: stepped toward the workstation this step
	PhaseHolding               // 2: still engaged
	PhaseExiting               // 3: stepping back out this step
)

var phaseNames = [...]string{"idle", "entering", "holding", "exiting"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Interaction is an agent's interaction state. Anchor is meaningful for
// every phase except PhaseIdle.
type Interaction struct {
	Phase  Phase
	Anchor Position
}

// Engaged reports whether the agent is entering or holding an interaction.
// Workstation effects apply, and only Interact is legal, while engaged.
func (in Interaction) Engaged() bool {
	return in.Phase == PhaseEntering || in.Phase == PhaseHolding
}

// Step advances the state machine by one resolved move:
//
//	Idle/Exiting      + Interact → Entering(anchor of pos)
//	Idle/Exiting      + other    → Idle
//	Entering/Holding  + Interact → Exiting(anchor)
//	Entering/Holding  + other    → Holding(anchor)
func (in Interaction) Step(move Move, pos Position, layout *Layout) (Interaction, error) {
	switch in.Phase {
	case PhaseIdle, PhaseExiting:
		if move != MoveInteract {
			return Interaction{}, nil
		}
		anchor, err := layout.Anchor(pos)
		if err != nil {
			return Interaction{}, err
		}
		return Interaction{Phase: PhaseEntering, Anchor: anchor}, nil
	case PhaseEntering, PhaseHolding:
		if move == MoveInteract {
			return Interaction{Phase: PhaseExiting, Anchor: in.Anchor}, nil
		}
		return Interaction{Phase: PhaseHolding, Anchor: in.Anchor}, nil
	}
	return Interaction{}, fmt.Errorf("interaction: invalid phase %d", in.Phase)
}
