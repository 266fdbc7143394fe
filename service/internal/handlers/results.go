package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/burgerlab/service/internal/auth"
	"github.com/jason-s-yu/burgerlab/service/internal/metrics"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/sirupsen/logrus"
)

// csvHeader is the column order of the results export.
var csvHeader = []string{
	"participant_id", "adviser_mode", "steps_taken", "safety_violated",
	"human_burgers", "robot_burgers", "session_id", "aborted", "created_at",
}

// submitResult handles POST /data: a client-reported results record, bound
// to the session named by the bearer token. A running session cannot report;
// once it ends the server's own record takes precedence over this one.
func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		writeError(w, http.StatusServiceUnavailable, "result storage disabled")
		return
	}
	sessionID, pid, err := s.opts.Issuer.Parse(requestToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if _, live := s.opts.Manager.Get(sessionID); live {
		writeError(w, http.StatusConflict, "session still running")
		return
	}

	var res models.StudyResult
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := res.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.ParticipantID != pid {
		writeError(w, http.StatusForbidden, "participant does not match token")
		return
	}
	res.SessionID = sessionID

	if err := s.opts.Results.InsertStudyResult(r.Context(), res); err != nil {
		metrics.ResultsStored.WithLabelValues("client", "error").Inc()
		logrus.WithError(err).WithField("participant", pid).Error("Failed to store submitted result")
		writeError(w, http.StatusInternalServerError, "could not store result")
		return
	}
	metrics.ResultsStored.WithLabelValues("client", "ok").Inc()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

// exportResults handles GET /results.csv behind basic auth.
func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil || s.opts.AdminPasswordHash == "" {
		writeError(w, http.StatusNotFound, "export disabled")
		return
	}
	_, password, ok := r.BasicAuth()
	if !ok || !auth.CheckPassword(s.opts.AdminPasswordHash, password) {
		w.Header().Set("WWW-Authenticate", `Basic realm="burgerlab"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	results, err := s.opts.Results.ListStudyResults(r.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to list results")
		writeError(w, http.StatusInternalServerError, "could not list results")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		logrus.WithError(err).Warn("Failed writing CSV header")
		return
	}
	for _, res := range results {
		if err := cw.Write(csvRow(res)); err != nil {
			logrus.WithError(err).Warn("Failed writing CSV row")
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logrus.WithError(err).Warn("Failed flushing CSV export")
	}
}

func csvRow(r models.StudyResult) []string {
	u := func(n uint32) string { return strconv.FormatUint(uint64(n), 10) }
	row := []string{
		strconv.Itoa(r.ParticipantID), u(r.AdviserMode), u(r.StepsTaken), u(r.SafetyViolated),
		u(r.HumanBurgers), u(r.RobotBurgers), "", strconv.FormatBool(r.Aborted), "",
	}
	if r.SessionID != uuid.Nil {
		row[6] = r.SessionID.String()
	}
	if !r.CreatedAt.IsZero() {
		row[8] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}
