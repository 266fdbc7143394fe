package study

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/artifact"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNoParticipantID is returned when no free participant id was found.
var ErrNoParticipantID = errors.New("no free participant id")

const maxIDAttempts = 10

// ParticipantReserver claims participant ids so no two sessions share one.
type ParticipantReserver interface {
	Reserve(ctx context.Context, participantID int) (bool, error)
	Release(ctx context.Context, participantID int) error
}

// ManagerConfig wires a Manager's collaborators. Nil collaborators disable
// their feature.
type ManagerConfig struct {
	Rules        engine.StudyRules
	TickInterval time.Duration
	Reserver     ParticipantReserver
	Results      ResultSink
	Actions      ActionPublisher
	// OnSessionEnd runs after the manager has dropped an ended session.
	OnSessionEnd OnSessionEndFunc
}

// Manager owns every live session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	bundle *artifact.Bundle
	cfg    ManagerConfig

	persisting sync.WaitGroup

	randID func() int
}

// NewManager returns a Manager creating sessions from bundle.
func NewManager(bundle *artifact.Bundle, cfg ManagerConfig) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		bundle:   bundle,
		cfg:      cfg,
		randID: func() int {
			return models.MinParticipantID + rand.IntN(models.MaxParticipantID-models.MinParticipantID+1)
		},
	}
}

// Create builds a session with a fresh participant id. A nil mode uses the
// configured default. The session is registered but not started.
func (m *Manager) Create(ctx context.Context, mode *engine.AdviserMode) (*Session, error) {
	rules := m.cfg.Rules
	if mode != nil {
		rules.Mode = *mode
	}
	pid, err := m.allocateParticipant(ctx)
	if err != nil {
		return nil, err
	}
	st, err := engine.NewStudy(m.bundle.Graph, m.bundle.Strategy, m.bundle.Layout, rules, pid)
	if err != nil {
		m.releaseParticipant(ctx, pid)
		return nil, err
	}

	s := NewSession(st, m.cfg.TickInterval)
	s.Results = m.cfg.Results
	s.persisting = &m.persisting
	s.Actions = m.cfg.Actions
	s.OnSessionEnd = func(id uuid.UUID, result models.StudyResult, reason string) {
		m.Remove(id)
		if m.cfg.OnSessionEnd != nil {
			m.cfg.OnSessionEnd(id, result, reason)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.log.Info("Session created")
	return s, nil
}

// allocateParticipant draws random six-digit ids until the reserver accepts
// one. Without a reserver, or when it is unreachable, the first draw wins.
func (m *Manager) allocateParticipant(ctx context.Context) (int, error) {
	for range maxIDAttempts {
		pid := m.randID()
		if m.cfg.Reserver == nil {
			return pid, nil
		}
		ok, err := m.cfg.Reserver.Reserve(ctx, pid)
		if err != nil {
			logrus.WithError(err).Warn("Participant id reservation unavailable, using unreserved id")
			return pid, nil
		}
		if ok {
			return pid, nil
		}
		logrus.Debugf("Participant id %d already taken, retrying", pid)
	}
	return 0, ErrNoParticipantID
}

// releaseParticipant frees an id whose session was never created.
func (m *Manager) releaseParticipant(ctx context.Context, pid int) {
	if m.cfg.Reserver == nil {
		return
	}
	if err := m.cfg.Reserver.Release(ctx, pid); err != nil {
		logrus.WithError(err).Warnf("Failed to release participant id %d", pid)
	}
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the registry. It does not end it.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CancelAll ends every live session as aborted. Used on shutdown.
func (m *Manager) CancelAll() {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()
	for _, s := range live {
		s.Cancel()
	}
}

// Wait blocks until every ended session's result write has finished or ctx
// is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.persisting.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
