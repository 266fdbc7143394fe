// Package study runs study sessions: one engine.Study per participant,
// advanced by a ticker, fed by websocket intents, and persisted when it ends.
package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/cache"
	"github.com/jason-s-yu/burgerlab/service/internal/metrics"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/sirupsen/logrus"
)

// Reasons a session ends, as reported to metrics and the end callback.
const (
	ReasonCompleted = "completed" // session timer expired
	ReasonIntegrity = "integrity" // artifact integrity fault
	ReasonCancelled = "cancelled" // participant left or server shut down
)

// OnSessionEndFunc is called once when a session ends, with the lock held.
type OnSessionEndFunc func(sessionID uuid.UUID, result models.StudyResult, reason string)

// ResultSink persists final results. The session's record replaces any
// row already stored for the same session.
type ResultSink interface {
	SaveSessionResult(ctx context.Context, r models.StudyResult) error
}

// ActionPublisher receives per-step records for offline analysis.
type ActionPublisher interface {
	PublishStudyAction(ctx context.Context, rec cache.StudyActionRecord) error
}

// Session wraps one engine.Study with its tick loop and I/O callbacks.
type Session struct {
	ID           uuid.UUID
	TickInterval time.Duration

	study *engine.Study

	Started bool
	Over    bool
	Aborted bool
	Reason  string

	Mu sync.Mutex // protects every field above and the study

	// Communication callbacks
	BroadcastFn  func(snap models.Snapshot) // receives a snapshot after every tick
	OnSessionEnd OnSessionEndFunc

	Results ResultSink      // nil disables persistence
	Actions ActionPublisher // nil disables action publishing

	attached    bool
	actionIndex int
	persisting  *sync.WaitGroup // tracks in-flight result writes, may be nil
	done        chan struct{}
	log         *logrus.Entry
}

// NewSession wraps st in a session with a fresh id.
func NewSession(st *engine.Study, tickInterval time.Duration) *Session {
	id := uuid.New()
	return &Session{
		ID:           id,
		TickInterval: tickInterval,
		study:        st,
		done:         make(chan struct{}),
		log: logrus.WithFields(logrus.Fields{
			"session":     id,
			"participant": st.Results().ParticipantID,
			"mode":        st.Rules.Mode,
		}),
	}
}

// ParticipantID returns the participant bound to the session.
func (s *Session) ParticipantID() int { return s.study.Results().ParticipantID }

// Mode returns the session's adviser mode.
func (s *Session) Mode() engine.AdviserMode { return s.study.Rules.Mode }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run ticks the session every TickInterval until it ends or ctx is cancelled.
// Cancellation ends the session as aborted.
func (s *Session) Run(ctx context.Context) {
	s.Mu.Lock()
	if s.Started || s.Over {
		s.log.Warn("Run called on a session that already ran")
		s.Mu.Unlock()
		return
	}
	s.Started = true
	s.Mu.Unlock()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	s.log.Info("Session started")

	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.Mu.Lock()
			if !s.Over {
				s.finish(ReasonCancelled, true)
			}
			s.Mu.Unlock()
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if over := s.Step(dt); over {
				return
			}
		}
	}
}

// Step advances the session by dt and broadcasts the resulting snapshot.
// It reports whether the session is over.
func (s *Session) Step(dt time.Duration) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Over {
		return true
	}

	start := time.Now()
	ev, err := s.study.Tick(dt)
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.abort(err)
		return true
	}
	s.recordEvent(ev)
	if ev.Ended {
		s.finish(ReasonCompleted, false)
		return true
	}
	s.broadcast()
	return false
}

// recordEvent reports what a tick did to metrics and the action log.
// Assumes lock is held by caller.
func (s *Session) recordEvent(ev engine.TickEvent) {
	mode := s.study.Rules.Mode.String()
	if ev.ResetApplied {
		s.log.Debug("Fade-out finished, study reset to start")
		s.logAction("study_reset", nil)
	}
	out := ev.Outcome
	if out == nil {
		return
	}
	outcome := metrics.OutcomeClean
	if out.Violated {
		outcome = metrics.OutcomeViolated
	}
	metrics.StepsResolved.WithLabelValues(mode, outcome).Inc()
	if out.HumanBurger {
		metrics.BurgersDelivered.WithLabelValues("human").Inc()
	}
	if out.RobotBurger {
		metrics.BurgersDelivered.WithLabelValues("robot").Inc()
	}
	if out.Violated {
		s.log.WithFields(logrus.Fields{"human": out.HumanMove, "obs": out.Observation}).Info("Violation, fading out")
	}
	s.logAction("study_step", map[string]any{
		"humanMove":   out.HumanMove.String(),
		"robotMove":   out.RobotMove.String(),
		"observation": out.Observation,
		"violated":    out.Violated,
		"graphState":  s.study.GraphState.String(),
	})
}

// SubmitKey queues a raw key press.
func (s *Session) SubmitKey(name string) error {
	k, err := engine.ParseKey(name)
	if err != nil {
		return err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Over {
		return ErrSessionOver
	}
	s.study.QueueKey(k)
	return nil
}

// SubmitMove queues an explicit move.
func (s *Session) SubmitMove(label string) error {
	m, err := engine.ParseMove(label)
	if err != nil {
		return err
	}
	if m == engine.MoveNone {
		return fmt.Errorf("empty move")
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Over {
		return ErrSessionOver
	}
	s.study.QueueHumanMove(m)
	return nil
}

// HandleMessage applies a client intent. A key takes precedence over a move.
func (s *Session) HandleMessage(msg models.ClientMessage) error {
	switch {
	case msg.Key != "":
		return s.SubmitKey(msg.Key)
	case msg.Move != "":
		return s.SubmitMove(msg.Move)
	}
	return fmt.Errorf("message carries neither key nor move")
}

var (
	// ErrSessionOver is returned for intents that arrive after the end.
	ErrSessionOver = errors.New("session is over")
	// ErrAlreadyAttached is returned when a second client claims a session.
	ErrAlreadyAttached = errors.New("session already has a client")
)

// Attach binds the participant's connection to the session. Only one
// client may attach, and only before the session ends.
func (s *Session) Attach(fn func(snap models.Snapshot)) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.Over {
		return ErrSessionOver
	}
	if s.attached {
		return ErrAlreadyAttached
	}
	s.attached = true
	s.BroadcastFn = fn
	s.logAction("client_attach", nil)
	return nil
}

// ExpireIfUnclaimed cancels a session no client has attached to. It reports
// whether the session was cancelled.
func (s *Session) ExpireIfUnclaimed() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.attached || s.Over {
		return false
	}
	s.log.Info("No client attached in time, expiring session")
	s.finish(ReasonCancelled, true)
	return true
}

// Cancel ends a running or idle session as aborted.
func (s *Session) Cancel() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if !s.Over {
		s.finish(ReasonCancelled, true)
	}
}

// Result returns the session's current results record.
func (s *Session) Result() models.StudyResult {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return models.ResultFromEngine(s.ID, s.study.Results(), s.Aborted)
}

// abort ends the session after an engine error.
// Assumes lock is held by caller.
func (s *Session) abort(err error) {
	if errors.Is(err, engine.ErrIntegrity) {
		metrics.IntegrityFaults.Inc()
		s.log.WithError(err).Error("Artifact integrity violation, aborting session")
	} else {
		s.log.WithError(err).Error("Engine error, aborting session")
	}
	s.finish(ReasonIntegrity, true)
}

// finish marks the session over, persists and broadcasts the results, and
// runs the end callback.
// Assumes lock is held by caller.
func (s *Session) finish(reason string, aborted bool) {
	s.Over = true
	s.Aborted = aborted
	s.Reason = reason
	result := models.ResultFromEngine(s.ID, s.study.Results(), aborted)

	metrics.SessionsEnded.WithLabelValues(s.study.Rules.Mode.String(), reason).Inc()
	s.logAction("study_end", map[string]any{
		"reason":         reason,
		"stepsTaken":     result.StepsTaken,
		"safetyViolated": result.SafetyViolated,
		"humanBurgers":   result.HumanBurgers,
		"robotBurgers":   result.RobotBurgers,
	})
	if s.Results != nil {
		if s.persisting != nil {
			s.persisting.Add(1)
		}
		go s.persistResult(result)
	}
	s.broadcast()
	if s.OnSessionEnd != nil {
		s.OnSessionEnd(s.ID, result, reason)
	}
	close(s.done)
	s.log.WithFields(logrus.Fields{
		"reason":     reason,
		"steps":      result.StepsTaken,
		"violations": result.SafetyViolated,
		"burgers":    result.HumanBurgers + result.RobotBurgers,
	}).Info("Session ended")
}

func (s *Session) persistResult(r models.StudyResult) {
	if s.persisting != nil {
		defer s.persisting.Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Results.SaveSessionResult(ctx, r); err != nil {
		metrics.ResultsStored.WithLabelValues("session", "error").Inc()
		s.log.WithError(err).Error("Failed to persist study result")
		return
	}
	metrics.ResultsStored.WithLabelValues("session", "ok").Inc()
}

// broadcast pushes the current snapshot through BroadcastFn.
// Assumes lock is held by caller.
func (s *Session) broadcast() {
	if s.BroadcastFn != nil {
		s.BroadcastFn(s.snapshotLocked())
	}
}

// logAction queues a study event for the historian.
// Assumes lock is held by caller.
func (s *Session) logAction(actionType string, payload map[string]any) {
	s.actionIndex++
	if s.Actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	rec := cache.StudyActionRecord{
		SessionID:     s.ID,
		ParticipantID: s.study.Results().ParticipantID,
		ActionIndex:   s.actionIndex,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.StudyActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Actions.PublishStudyAction(ctx, rec); err != nil {
			s.log.WithError(err).Warnf("Failed publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}(rec)
}
