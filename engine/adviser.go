package engine

// ActiveAdvisers holds the adviser guards applicable at the current graph
// state, plus the prescribed human move in strict-guidance mode. It is
// rebuilt from scratch after every robot planning step.
type ActiveAdvisers struct {
	Safety   []string
	Fairness []string
	NextMove Move // MoveNone unless the mode is AdviserNextMove
}

// Clear drops every active adviser.
func (a *ActiveAdvisers) Clear() {
	a.Safety = a.Safety[:0]
	a.Fairness = a.Fairness[:0]
	a.NextMove = MoveNone
}

// Refresh clears a and collects the guards of every adviser keyed to state.
// A matching entry with more than one guard is an integrity fault. In
// AdviserNextMove mode the scripted move for step is also recorded.
func (a *ActiveAdvisers) Refresh(state GraphState, s *Strategy, mode AdviserMode, step int) error {
	a.Clear()
	var err error
	if a.Safety, err = collectGuards(a.Safety, s.Safety, state, "safety"); err != nil {
		return err
	}
	if a.Fairness, err = collectGuards(a.Fairness, s.Fairness, state, "fairness"); err != nil {
		return err
	}
	if mode == AdviserNextMove {
		a.NextMove = PrescribedMove(step)
	}
	return nil
}

func collectGuards(dst []string, advisers []Adviser, state GraphState, class string) ([]string, error) {
	for _, adv := range advisers {
		if adv.State != state {
			continue
		}
		if len(adv.Guards) != 1 {
			return dst, integrityf("%s adviser at %s has %d guards, want 1", class, state, len(adv.Guards))
		}
		dst = append(dst, adv.Guards[0])
	}
	return dst, nil
}

// SafetyViolated reports whether obs matches any active safety guard.
func (a *ActiveAdvisers) SafetyViolated(obs string) (bool, error) {
	for _, guard := range a.Safety {
		ok, err := MatchGuard(obs, guard)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// guidanceCycle is the scripted choreography shown in strict-guidance mode:
// one full burger for the human, assisting the robot with sauce on the way.
// Directions toward a workstation stand for Interact (see Study.Resolve).
var guidanceCycle = [...]Move{
	MoveDown,
	MoveLeft,
	MoveDown, // grab buns
	MoveLeft,
	MoveLeft,
	MoveDown, // grab patty
	MoveRight,
	MoveRight,
	MoveRight,
	MoveRight,
	MoveDown, // assist with sauce
	MoveDown,
	MoveDown, // grab sauce
	MoveRight,
	MoveRight,
	MoveDown, // grab lettuce
	MoveLeft,
	MoveLeft,
	MoveLeft,
	MoveDown, // grab tomato
	MoveUp,
	MoveUp,
	MoveLeft, // deliver
	MoveDown,
}

// GuidanceCycleLen is the length of the strict-guidance choreography.
const GuidanceCycleLen = len(guidanceCycle)

// PrescribedMove returns the scripted strict-guidance move for a step counter.
func PrescribedMove(step int) Move {
	i := step % GuidanceCycleLen
	if i < 0 {
		i += GuidanceCycleLen
	}
	return guidanceCycle[i]
}
