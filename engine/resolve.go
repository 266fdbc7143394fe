package engine

import "fmt"

// Outcome summarizes one resolved step.
type Outcome struct {
	Resolved    bool // false when the step is still waiting on the participant
	HumanMove   Move
	RobotMove   Move
	Observation string
	Violated    bool
	HumanBurger bool
	RobotBurger bool
}

// PrepareRobotMove selects the robot's next move, advances the graph past
// the robot's action and refreshes the advisers for the resulting human
// state. The move itself is held until the next resolution.
func (s *Study) PrepareRobotMove() error {
	m, from, err := SelectRobotMove(s.Graph, s.Strategy, s.GraphState)
	if err != nil {
		return err
	}
	next, err := s.Graph.ApplyActionMove(from, PlayerRobot, m)
	if err != nil {
		return err
	}
	if err := s.Advisers.Refresh(next, s.Strategy, s.Rules.Mode, s.StepCounter); err != nil {
		return err
	}
	s.GraphState = next
	s.robotMove, s.hasRobotMove = m, true
	return nil
}

// selectHumanMove returns the move to resolve for the human. A queued move
// is used when legal and replaced by the first legal move otherwise. With
// nothing queued the step only proceeds when a single move is legal.
func (s *Study) selectHumanMove(legal []Move) (Move, bool) {
	if s.hasHumanMove {
		if containsMove(legal, s.humanMove) {
			return s.humanMove, true
		}
		return legal[0], true
	}
	if len(legal) == 1 {
		return legal[0], true
	}
	return MoveNone, false
}

// Resolve advances the study by one step when it is idle and both moves are
// available: both agents run their interaction machines and workstation
// effects, the human's observation drives the graph back to a robot state,
// and the step is checked for a violation. A violation starts the fade-out
// that ends in a full reset; otherwise the animation window starts.
func (s *Study) Resolve() (Outcome, error) {
	if s.State != StateIdle || !s.hasRobotMove {
		return Outcome{}, nil
	}
	legal, err := s.HumanMoves()
	if err != nil {
		return Outcome{}, err
	}
	hm, ok := s.selectHumanMove(legal)
	if !ok {
		return Outcome{}, nil
	}
	rm := s.robotMove

	s.humanMove, s.hasHumanMove = MoveNone, false
	s.robotMove, s.hasRobotMove = MoveNone, false
	s.Clock.Animation.Reset()
	s.results.StepsTaken++
	s.StepCounter++

	humanIn, err := s.Human.Interaction.Step(hm, s.Human.Pos, s.Layout)
	if err != nil {
		return Outcome{}, err
	}
	robotIn, err := s.Robot.Interaction.Step(rm, s.Robot.Pos, s.Layout)
	if err != nil {
		return Outcome{}, err
	}
	s.Human.Interaction = humanIn
	s.Robot.Interaction = robotIn

	out := Outcome{Resolved: true, HumanMove: hm, RobotMove: rm}
	out.HumanBurger, out.RobotBurger = s.applyEffects()
	if out.HumanBurger {
		s.results.HumanBurgers++
	}
	if out.RobotBurger {
		s.results.RobotBurgers++
	}

	if s.Human.Next, err = s.nextPosition(s.Human.Pos, hm); err != nil {
		return Outcome{}, err
	}
	if s.Robot.Next, err = s.nextPosition(s.Robot.Pos, rm); err != nil {
		return Outcome{}, err
	}

	obs := EncodeObservation(s.Human.Next, s.Human.Interaction, s.Graph.HumanAP, s.Layout)
	s.observation = obs
	out.Observation = obs
	env, err := s.Graph.ApplyObservation(s.GraphState, obs)
	if err != nil {
		return Outcome{}, err
	}
	if s.GraphState, err = s.Graph.SkipEnvironmentState(env); err != nil {
		return Outcome{}, err
	}

	if out.Violated, err = s.violated(hm, legal, obs); err != nil {
		return Outcome{}, err
	}
	if out.Violated {
		s.results.SafetyViolated++
		s.Clock.Animation.SetDuration(s.Rules.FadeDuration)
		s.Clock.Animation.Reset()
		s.State = StateFadingOut
		s.StepCounter = 0
	} else {
		s.Clock.Animation.SetDuration(s.Rules.AnimationDuration)
		s.State = StateAnimating
	}
	return out, nil
}

// applyEffects applies workstation effects for every agent whose new phase
// is engaged, at the station of its pre-move stand. Sauce cooperation looks
// at the partner's new phase and current stand.
func (s *Study) applyEffects() (humanBurger, robotBurger bool) {
	humanAtSauce := s.engagedAt(s.Human, PlayerHuman, StationSauce)
	robotAtSauce := s.engagedAt(s.Robot, PlayerRobot, StationSauce)
	if s.Human.Interaction.Engaged() {
		if w, ok := s.Layout.HumanStation(s.Human.Pos); ok {
			humanBurger = s.Human.Progress.applyStation(PlayerHuman, w.Station, robotAtSauce)
		}
	}
	if s.Robot.Interaction.Engaged() {
		if w, ok := s.Layout.RobotStation(s.Robot.Pos); ok {
			robotBurger = s.Robot.Progress.applyStation(PlayerRobot, w.Station, humanAtSauce)
		}
	}
	return humanBurger, robotBurger
}

func (s *Study) engagedAt(a Agent, player Player, st Station) bool {
	if !a.Interaction.Engaged() {
		return false
	}
	stand, ok := s.Layout.StandOf(player, st)
	return ok && stand == a.Pos
}

// nextPosition returns the tile an agent occupies after move. Interact and
// Idle keep the agent on its stand.
func (s *Study) nextPosition(pos Position, m Move) (Position, error) {
	next := pos.Step(m)
	if next.X < 0 || next.Y < 0 || next.X >= s.Layout.Size || next.Y >= s.Layout.Size {
		return pos, integrityf("move %s from %s leaves the grid", m, pos)
	}
	return next, nil
}

// violated applies the mode's violation rule. legal is the human's move set
// before the step. In strict guidance the participant must make the
// scripted move, or Interact when the scripted direction is not legal.
func (s *Study) violated(hm Move, legal []Move, obs string) (bool, error) {
	switch s.Rules.Mode {
	case AdviserLeastLimiting, AdviserNone:
		return s.Advisers.SafetyViolated(obs)
	case AdviserNextMove:
		want := s.Advisers.NextMove
		if containsMove(legal, want) {
			return hm != want, nil
		}
		return hm != MoveInteract, nil
	}
	return false, fmt.Errorf("resolve: invalid adviser mode %d", s.Rules.Mode)
}
