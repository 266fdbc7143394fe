// Package handlers exposes study sessions over HTTP: session creation, the
// participant websocket, result submission and the admin export.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/burgerlab/service/internal/auth"
	"github.com/jason-s-yu/burgerlab/service/internal/metrics"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/jason-s-yu/burgerlab/service/internal/study"
	"github.com/sirupsen/logrus"
)

// ResultStore persists and lists study results.
type ResultStore interface {
	InsertStudyResult(ctx context.Context, r models.StudyResult) error
	ListStudyResults(ctx context.Context) ([]models.StudyResult, error)
}

// Options configures a Server.
type Options struct {
	Addr              string
	Manager           *study.Manager
	Issuer            *auth.Issuer
	Results           ResultStore // nil disables /data and /results.csv
	AdminPasswordHash string      // bcrypt; empty disables /results.csv
	OriginPatterns    []string    // websocket origins accepted besides the host
	ClaimTimeout      time.Duration
}

// DefaultClaimTimeout is how long a created session waits for its client.
const DefaultClaimTimeout = 2 * time.Minute

// Server routes study traffic.
type Server struct {
	opts       Options
	router     *mux.Router
	httpServer *http.Server

	// sessionsCtx parents every session's run loop; cancelled on shutdown.
	sessionsCtx    context.Context
	cancelSessions context.CancelFunc
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = DefaultClaimTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:           opts,
		router:         mux.NewRouter(),
		sessionsCtx:    ctx,
		cancelSessions: cancel,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/sessions/{id}/ws", s.sessionSocket).Methods(http.MethodGet)
	s.router.HandleFunc("/data", s.submitResult).Methods(http.MethodPost, http.MethodOptions)
	s.router.HandleFunc("/results.csv", s.exportResults).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		sig, ok := <-stop
		if !ok {
			return
		}
		logrus.Infof("Received signal %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			logrus.WithError(err).Error("Error during shutdown")
		}
	}()

	logrus.WithField("addr", s.opts.Addr).Info("burgerlab server listening")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// ListenAndServe returns as soon as Shutdown starts; result writes of
	// the cancelled sessions must land before the caller closes the store.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.opts.Manager.Wait(ctx); err != nil {
		logrus.WithError(err).Error("Session results still pending at exit")
	}
	logrus.Info("Server stopped")
	return nil
}

// Shutdown aborts live sessions, waits for their results to be stored and
// stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelSessions()
	s.opts.Manager.CancelAll()
	if err := s.opts.Manager.Wait(ctx); err != nil {
		logrus.WithError(err).Error("Gave up waiting for session results to be stored")
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.opts.Manager.Len(),
	})
}

// corsMiddleware adds CORS headers and answers preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
