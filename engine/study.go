package engine

import (
	"fmt"
	"time"
)

// StudyState gates when a new step may be resolved.
type StudyState uint8

const (
	StateIdle      StudyState = iota // 0: ready to resolve
	StateAnimating                   // 1: normal post-resolution window
	StateFadingOut                   // 2: violation window; full reset on expiry
	StateEnded                       // 3: session timer expired
)

var studyStateNames = [...]string{"idle", "animating", "fading_out", "ended"}

func (s StudyState) String() string {
	if int(s) < len(studyStateNames) {
		return studyStateNames[s]
	}
	return fmt.Sprintf("StudyState(%d)", uint8(s))
}

// Agent is one participant of the study on the grid.
type Agent struct {
	Pos         Position // committed position
	Next        Position // target of the current animation window
	Interaction Interaction
	Progress    Progress
}

func newAgent(start Position) Agent {
	return Agent{Pos: start, Next: start}
}

// Study is the complete state of one study session. It is owned by a single
// caller that runs the tick loop; nothing in it is shared or global.
type Study struct {
	Graph    *Graph
	Strategy *Strategy
	Layout   *Layout
	Rules    StudyRules

	State       StudyState
	GraphState  GraphState
	Human       Agent
	Robot       Agent
	Advisers    ActiveAdvisers
	Clock       Clock
	StepCounter int // strict-guidance choreography index; zeroed on violation

	results Results

	humanMove    Move
	hasHumanMove bool
	robotMove    Move
	hasRobotMove bool
	observation  string
}

// NewStudy creates a study at its session-start state.
func NewStudy(g *Graph, s *Strategy, layout *Layout, rules StudyRules, participantID int) (*Study, error) {
	if g == nil || s == nil || layout == nil {
		return nil, fmt.Errorf("new study: graph, strategy and layout are required")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	st := &Study{
		Graph:    g,
		Strategy: s,
		Layout:   layout,
		Rules:    rules,
		Clock:    NewClock(rules),
		results: Results{
			ParticipantID: participantID,
			AdviserMode:   rules.Mode,
		},
	}
	st.reset()
	return st, nil
}

// reset rolls the study back to session start: agents, progress, graph
// state, pending moves and advisers. Counters in results are kept.
func (s *Study) reset() {
	s.Human = newAgent(s.Layout.HumanStart)
	s.Robot = newAgent(s.Layout.RobotStart)
	s.GraphState = s.Graph.Init
	s.humanMove, s.hasHumanMove = MoveNone, false
	s.robotMove, s.hasRobotMove = MoveNone, false
	s.Advisers.Clear()
	s.observation = ""
	s.State = StateIdle
}

// Results returns a copy of the session's counters.
func (s *Study) Results() Results { return s.results }

// Ended reports whether the session timer has expired.
func (s *Study) Ended() bool { return s.State == StateEnded }

// Remaining returns the session time left.
func (s *Study) Remaining() time.Duration { return s.Clock.Session.Remaining() }

// LastObservation returns the observation string of the latest resolution.
func (s *Study) LastObservation() string { return s.observation }

// PendingRobotMove returns the robot move awaiting resolution, if any.
func (s *Study) PendingRobotMove() (Move, bool) { return s.robotMove, s.hasRobotMove }

// PendingHumanMove returns the queued human move, if any.
func (s *Study) PendingHumanMove() (Move, bool) { return s.humanMove, s.hasHumanMove }

// QueueHumanMove records the participant's latest intent. A later intent
// replaces an earlier one until the next resolution consumes it.
func (s *Study) QueueHumanMove(m Move) {
	if m == MoveNone {
		return
	}
	s.humanMove, s.hasHumanMove = m, true
}

// QueueKey maps a key press through the layout and queues the result. Keys
// pressed during an animation apply to the tile the human is heading to.
func (s *Study) QueueKey(k Key) {
	if m, ok := s.Layout.MoveForKey(k, s.Human.Next); ok {
		s.QueueHumanMove(m)
	}
}

// HumanMoves returns the moves legal for the human's next step, judged at
// the animation target. Next equals Pos whenever the study is idle.
func (s *Study) HumanMoves() ([]Move, error) {
	return s.Layout.HumanMoves(s.Human.Next, s.Human.Interaction)
}

// GuidedMove returns the move a fully compliant participant would make for
// the next step: the scripted move when it is legal, Interact otherwise.
func (s *Study) GuidedMove() (Move, error) {
	legal, err := s.HumanMoves()
	if err != nil {
		return MoveNone, err
	}
	m := PrescribedMove(s.StepCounter)
	if containsMove(legal, m) {
		return m, nil
	}
	return MoveInteract, nil
}

// TickEvent describes what happened during one Tick.
type TickEvent struct {
	Ended        bool     // session timer has expired
	WindowClosed bool     // an animation or fade window finished
	ResetApplied bool     // the finished window was a violation fade-out
	RobotPlanned bool     // a new robot move was prepared
	Outcome      *Outcome // set when a step was resolved
}

// Tick runs one frame: advance the clock, end the session on expiry, close
// a finished animation/fade window (committing positions or resetting),
// plan the robot if needed, and resolve a step when idle.
func (s *Study) Tick(dt time.Duration) (TickEvent, error) {
	var ev TickEvent
	if s.State == StateEnded {
		ev.Ended = true
		return ev, nil
	}

	s.Clock.Tick(dt)
	if s.Clock.Session.Finished() {
		s.State = StateEnded
		ev.Ended = true
		return ev, nil
	}

	if s.State != StateIdle && s.Clock.Animation.Finished() {
		ev.WindowClosed = true
		ev.ResetApplied = s.State == StateFadingOut
		s.closeWindow()
	}

	if s.State != StateFadingOut && !s.hasRobotMove {
		if err := s.PrepareRobotMove(); err != nil {
			return ev, err
		}
		ev.RobotPlanned = true
	}

	if s.State == StateIdle {
		out, err := s.Resolve()
		if err != nil {
			return ev, err
		}
		if out.Resolved {
			ev.Outcome = &out
		}
	}
	return ev, nil
}

// closeWindow ends the post-resolution window. After a fade-out the whole
// study rolls back to session start; otherwise both agents arrive at their
// animation targets.
func (s *Study) closeWindow() {
	if s.State == StateFadingOut {
		s.reset()
		return
	}
	s.Human.Pos = s.Human.Next
	s.Robot.Pos = s.Robot.Next
	s.State = StateIdle
}
