package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/spektr-org/datadash/dataset"
	"github.com/spektr-org/datadash/engine"
	"github.com/spektr-org/datadash/schema"
	"github.com/spektr-org/datadash/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportRequest is the body of POST /v1/sessions/{id}/report.
type ReportRequest struct {
	Filters engine.Selection `json:"filters"`
	TopN    int              `json:"top_n"`
	RankBy  string           `json:"rank_by"`
}

// SessionResponse describes a session and, after an upload, the detected
// column types.
type SessionResponse struct {
	session.Snapshot
	Detection *schema.Detection `json:"detection,omitempty"`
}

// ReportResponse carries a report, plus its tables when ?tables=true and
// its charts when ?charts=true.
type ReportResponse struct {
	*engine.Report
	Tables []*engine.TableData `json:"tables,omitempty"`
	Charts []*engine.ChartData `json:"charts,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
}

// createSession starts a session, loading the request body when present.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.store.Create()
	s.metrics.Sessions.Set(float64(s.store.Len()))

	resp := SessionResponse{}
	if r.ContentLength != 0 {
		det, err := s.load(w, r, sess)
		if err != nil {
			_ = s.store.Delete(sess.ID)
			s.metrics.Sessions.Set(float64(s.store.Len()))
			writeError(w, statusFor(err), err)
			return
		}
		resp.Detection = det
	}
	resp.Snapshot = sess.Snapshot()
	writeJSON(w, http.StatusCreated, resp)
}

// uploadData replaces a session's dataset.
func (s *Server) uploadData(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	det, err := s.load(w, r, sess)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: sess.Snapshot(), Detection: det})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.store.IDs()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: sess.Snapshot()})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.Sessions.Set(float64(s.store.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// setMapping installs a role → column mapping, e.g. {"sales": "Amount"}.
func (s *Server) setMapping(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var m schema.Mapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, statusFor(err), fmt.Errorf("decode mapping: %w", err))
		return
	}
	if err := sess.SetMapping(m); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Snapshot: sess.Snapshot()})
}

func (s *Server) getOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	opts, err := sess.Options()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// computeReport installs the posted filters and computes a report.
func (s *Server) computeReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode report request: %w", err))
			return
		}
	}
	rankBy := s.opts.RankBy
	if req.RankBy != "" {
		m, ok := engine.ParseRankMetric(req.RankBy)
		if !ok {
			log.Debug().Str("rank_by", req.RankBy).Msg("unknown rank metric, ranking by sales")
		}
		rankBy = m
	}

	sess.SetFilters(req.Filters)

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReportTimeout)
	defer cancel()

	start := time.Now()
	report, err := sess.ComputeWith(ctx, req.TopN, rankBy)
	s.metrics.ReportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Reports.WithLabelValues(outcome(err)).Inc()
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.Reports.WithLabelValues("ok").Inc()
	for role, n := range report.Quality {
		if n > 0 {
			s.metrics.Defaults.WithLabelValues(role).Add(float64(n))
		}
	}

	resp := ReportResponse{Report: report}
	if r.URL.Query().Get("tables") == "true" {
		resp.Tables = report.Tables(r.URL.Query().Get("currency"))
	}
	if r.URL.Query().Get("charts") == "true" {
		resp.Charts = report.Charts()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return sess, true
}

// load reads a CSV or xlsx body into sess.
func (s *Server) load(w http.ResponseWriter, r *http.Request, sess *session.Session) (*schema.Detection, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var ds *dataset.Dataset
	if isExcel(r) {
		ds, err = dataset.ReadExcel(bytes.NewReader(body), r.URL.Query().Get("sheet"))
	} else {
		ds, err = dataset.ParseCSV(body)
	}
	if err != nil {
		return nil, err
	}

	name := r.URL.Query().Get("name")
	det := sess.Load(ds, name)
	s.metrics.RowsIngested.Add(float64(ds.Len()))
	log.Info().Str("session", sess.ID).Int("rows", ds.Len()).Int("columns", ds.Width()).Msg("dataset loaded")
	return &det, nil
}

func isExcel(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.EqualFold(f, "xlsx")
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == xlsxContentType
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoDataset), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, engine.ErrSalesNotMapped),
		errors.Is(err, schema.ErrUnknownRole),
		errors.Is(err, schema.ErrColumnNotFound),
		errors.Is(err, schema.ErrColumnReused),
		errors.Is(err, schema.ErrDuplicateRole):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dataset.ErrEmpty), errors.Is(err, dataset.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// outcome labels a failed report for metrics.
func outcome(err error) string {
	switch statusFor(err) {
	case http.StatusConflict:
		if errors.Is(err, session.ErrSuperseded) {
			return "superseded"
		}
		return "no_data"
	case http.StatusUnprocessableEntity:
		return "invalid"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	return "error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
