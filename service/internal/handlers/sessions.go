package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	engine "github.com/jason-s-yu/burgerlab/engine"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/jason-s-yu/burgerlab/service/internal/study"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes = 1 << 14
	writeTimeout = 5 * time.Second
	// snapshotBuffer absorbs a slow client; when full the oldest snapshot
	// is dropped.
	snapshotBuffer = 16
)

// createSession handles POST /sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var mode *engine.AdviserMode
	if req.AdviserMode != nil {
		m, err := engine.ParseAdviserMode(*req.AdviserMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = &m
	}

	sess, err := s.opts.Manager.Create(r.Context(), mode)
	if err != nil {
		logrus.WithError(err).Error("Failed to create session")
		if errors.Is(err, study.ErrNoParticipantID) {
			writeError(w, http.StatusServiceUnavailable, "no participant id available")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	token, err := s.opts.Issuer.Issue(sess.ID, sess.ParticipantID())
	if err != nil {
		logrus.WithError(err).Error("Failed to sign session token")
		sess.Cancel()
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	time.AfterFunc(s.opts.ClaimTimeout, func() { sess.ExpireIfUnclaimed() })

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID:     sess.ID,
		ParticipantID: sess.ParticipantID(),
		AdviserMode:   sess.Mode().String(),
		Token:         token,
	})
}

// sessionSocket handles GET /sessions/{id}/ws. The session starts ticking
// once the socket is open and ends, aborted, if the socket drops.
func (s *Server) sessionSocket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	tokenSession, _, err := s.opts.Issuer.Parse(requestToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if tokenSession != id {
		writeError(w, http.StatusForbidden, "token was issued for another session")
		return
	}
	sess, ok := s.opts.Manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	updates := make(chan models.Snapshot, snapshotBuffer)
	push := func(snap models.Snapshot) { pushLatest(updates, snap) }
	if err := sess.Attach(push); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		logrus.WithError(err).WithField("session", id).Warn("Websocket upgrade failed")
		sess.Cancel()
		return
	}
	defer conn.CloseNow()

	log := logrus.WithFields(logrus.Fields{"session": id, "participant": sess.ParticipantID()})
	log.Info("Participant connected")

	ctx, cancel := context.WithCancel(s.sessionsCtx)
	defer cancel()
	go sess.Run(ctx)
	go readIntents(ctx, cancel, conn, sess, log)

	if err := writeSnapshot(ctx, conn, sess.Snapshot()); err != nil {
		log.WithError(err).Debug("Initial snapshot write failed")
		return
	}
	for {
		select {
		case snap := <-updates:
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				log.WithError(err).Debug("Snapshot write failed, dropping client")
				return
			}
		case <-sess.Done():
			final := sess.Snapshot()
			wctx, wcancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := wsjson.Write(wctx, conn, final); err != nil {
				log.WithError(err).Debug("Final snapshot write failed")
			}
			wcancel()
			conn.Close(websocket.StatusNormalClosure, "session ended")
			log.Info("Session closed")
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

// pushLatest queues snap without blocking, evicting the oldest queued
// snapshot when ch is full. ch must have a single sender.
func pushLatest(ch chan models.Snapshot, snap models.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// readIntents forwards client messages to the session until the socket
// closes, then cancels ctx.
func readIntents(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *study.Session, log *logrus.Entry) {
	defer cancel()
	for {
		var msg models.ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("Participant disconnected")
			default:
				if ctx.Err() == nil {
					log.WithError(err).Warn("Websocket read failed")
				}
			}
			return
		}
		if err := sess.HandleMessage(msg); err != nil {
			if errors.Is(err, study.ErrSessionOver) {
				return
			}
			log.WithError(err).Debug("Ignoring client message")
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}

// requestToken reads the session token from the Authorization header or,
// for browser websockets, the token query parameter.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
