// Package models holds the wire and storage shapes shared by the service
// packages.
package models

import (
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/burgerlab/engine"
)

// StudyResult is one participant's summary as submitted to POST /data and
// stored in the study_data table. Field names follow the results consumer.
type StudyResult struct {
	ParticipantID  int    `json:"participant_id"`
	AdviserMode    uint32 `json:"adviser_mode"`
	StepsTaken     uint32 `json:"steps_taken"`
	SafetyViolated uint32 `json:"safety_violated"`
	HumanBurgers   uint32 `json:"human_burgers"`
	RobotBurgers   uint32 `json:"robot_burgers"`

	SessionID uuid.UUID `json:"session_id,omitempty"`
	Aborted   bool      `json:"aborted,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ResultFromEngine converts engine results into the stored record.
func ResultFromEngine(sessionID uuid.UUID, r engine.Results, aborted bool) StudyResult {
	return StudyResult{
		ParticipantID:  r.ParticipantID,
		AdviserMode:    r.AdviserMode.Num(),
		StepsTaken:     r.StepsTaken,
		SafetyViolated: r.SafetyViolated,
		HumanBurgers:   r.HumanBurgers,
		RobotBurgers:   r.RobotBurgers,
		SessionID:      sessionID,
		Aborted:        aborted,
	}
}

// Validate rejects records that could not have come from a session.
func (r *StudyResult) Validate() error {
	if r.ParticipantID < MinParticipantID || r.ParticipantID > MaxParticipantID {
		return errInvalid("participant_id out of range")
	}
	if _, err := engine.AdviserModeFromNum(r.AdviserMode); err != nil {
		return errInvalid(err.Error())
	}
	if r.SafetyViolated > r.StepsTaken {
		return errInvalid("safety_violated exceeds steps_taken")
	}
	return nil
}

// Participant ids are six-digit numbers.
const (
	MinParticipantID = 100000
	MaxParticipantID = 999999
)

type validationError string

func (e validationError) Error() string { return "invalid study result: " + string(e) }

func errInvalid(msg string) error { return validationError(msg) }

// ---------------------------------------------------------------------------
// Presentation snapshots
// ---------------------------------------------------------------------------

// AgentView is the presentation state of one agent.
type AgentView struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	NextX       int     `json:"nextX"`
	NextY       int     `json:"nextY"`
	Phase       string  `json:"phase"`
	AnchorX     int     `json:"anchorX"`
	AnchorY     int     `json:"anchorY"`
	Ingredients [5]bool `json:"ingredients"` // buns, patty, lettuce, tomato, sauce
	Burgers     int     `json:"burgers"`
}

// AdviserView lists what the participant is shown.
type AdviserView struct {
	Mode     string   `json:"mode"`
	Safety   []string `json:"safety,omitempty"`
	Fairness []string `json:"fairness,omitempty"`
	NextMove string   `json:"nextMove,omitempty"`
}

// Snapshot is pushed to the client after every tick.
type Snapshot struct {
	SessionID     uuid.UUID   `json:"sessionId"`
	ParticipantID int         `json:"participantId"`
	State         string      `json:"state"`
	Human         AgentView   `json:"human"`
	Robot         AgentView   `json:"robot"`
	Advisers      AdviserView `json:"advisers"`
	Observation   string      `json:"observation,omitempty"`
	StepsTaken    uint32      `json:"stepsTaken"`
	Violations    uint32      `json:"violations"`
	RemainingMs   int64       `json:"remainingMs"`
	Aborted       bool        `json:"aborted,omitempty"`
}

// ClientMessage is a participant intent received over the websocket. Key
// carries a raw key name ("left", "space"), Move an explicit move label.
type ClientMessage struct {
	Key  string `json:"key,omitempty"`
	Move string `json:"move,omitempty"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	AdviserMode *string `json:"adviser_mode,omitempty"`
}

// CreateSessionResponse is returned by POST /sessions.
type CreateSessionResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID int       `json:"participant_id"`
	AdviserMode   string    `json:"adviser_mode"`
	Token         string    `json:"token"`
}
