package study

import (
	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
)

// Snapshot returns the presentation state of the session.
func (s *Session) Snapshot() models.Snapshot {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds the snapshot pushed to the participant.
// Assumes lock is held by caller.
func (s *Session) snapshotLocked() models.Snapshot {
	st := s.study
	res := st.Results()
	snap := models.Snapshot{
		SessionID:     s.ID,
		ParticipantID: res.ParticipantID,
		State:         st.State.String(),
		Human:         agentView(st.Human),
		Robot:         agentView(st.Robot),
		Advisers:      adviserView(st),
		Observation:   st.LastObservation(),
		StepsTaken:    res.StepsTaken,
		Violations:    res.SafetyViolated,
		RemainingMs:   st.Remaining().Milliseconds(),
		Aborted:       s.Aborted,
	}
	if snap.RemainingMs < 0 {
		snap.RemainingMs = 0
	}
	return snap
}

func agentView(a engine.Agent) models.AgentView {
	v := models.AgentView{
		X:           a.Pos.X,
		Y:           a.Pos.Y,
		NextX:       a.Next.X,
		NextY:       a.Next.Y,
		Phase:       a.Interaction.Phase.String(),
		Ingredients: a.Progress.Flags(),
		Burgers:     a.Progress.Burgers,
	}
	if a.Interaction.Phase != engine.PhaseIdle {
		v.AnchorX, v.AnchorY = a.Interaction.Anchor.X, a.Interaction.Anchor.Y
	}
	return v
}

// adviserView shows only what the session's mode displays.
func adviserView(st *engine.Study) models.AdviserView {
	mode := st.Rules.Mode
	v := models.AdviserView{Mode: mode.String()}
	switch mode {
	case engine.AdviserLeastLimiting:
		v.Safety = append([]string(nil), st.Advisers.Safety...)
		v.Fairness = append([]string(nil), st.Advisers.Fairness...)
	case engine.AdviserNextMove:
		if st.Advisers.NextMove != engine.MoveNone {
			v.NextMove = st.Advisers.NextMove.String()
		}
	}
	return v
}
