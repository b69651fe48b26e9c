// Package handlers implements the HTTP endpoints for sessions and their
// analysis results.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkurbatov/spendlens/internal/analysis"
	"github.com/dkurbatov/spendlens/internal/api/middleware"
	"github.com/dkurbatov/spendlens/internal/categorize"
	"github.com/dkurbatov/spendlens/internal/store"
	bqstore "github.com/dkurbatov/spendlens/internal/store/bigquery"
	"github.com/dkurbatov/spendlens/internal/synthetic"
)

// Upload size cap. CSV exports are small; anything bigger is a mistake.
const maxUploadBytes = 10 << 20

// SessionsHandler handles session creation and analysis endpoints.
type SessionsHandler struct {
	store store.Store
	deps  analysis.Deps
	log   zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(st store.Store, deps analysis.Deps, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{store: st, deps: deps, log: log}
}

// UploadCSV handles POST /api/sessions/upload. The body is the raw CSV; the
// filename comes from the X-Filename header. The full analysis runs
// synchronously and the completed session is returned.
func (h *SessionsHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := r.Header.Get("X-Filename")
	if filename == "" {
		filename = "upload.csv"
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload body")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty upload")
		return
	}
	if len(data) > maxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds 10MB limit")
		return
	}

	state := &analysis.State{Filename: filename, CSVBytes: data}
	if err := analysis.NewUploadPipeline(h.deps).Execute(ctx, state); err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Session analysis failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Could not analyze the uploaded file")
		return
	}

	h.log.Info().
		Str("session_id", state.Session.ID).
		Int("transactions", len(state.Transactions)).
		Int("anomalies", len(state.Anomalies)).
		Int("recurring", len(state.Recurring)).
		Msg("Session analyzed")

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"session":         state.Session,
		"anomaly_count":   len(state.Anomalies),
		"recurring_count": len(state.Recurring),
	})
}

// CreateSample handles POST /api/sessions/sample: generates a synthetic
// session and analyzes it, so the product can be demoed without real data.
func (h *SessionsHandler) CreateSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, txs := synthetic.Generate(synthetic.Options{Seed: time.Now().UnixNano()})
	state := &analysis.State{Session: session, Transactions: txs}

	if err := analysis.NewSeededPipeline(h.deps).Execute(ctx, state); err != nil {
		h.log.Error().Err(err).Msg("Sample session analysis failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create sample session")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"session":         state.Session,
		"anomaly_count":   len(state.Anomalies),
		"recurring_count": len(state.Recurring),
	})
}

// ListSessions handles GET /api/sessions
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions, err := h.store.ListSessions(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list sessions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	session, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, session)
}

// ResultsHandler serves a session's derived records.
type ResultsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(st store.Store, log zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{store: st, log: log}
}

// ListTransactions handles GET /api/sessions/{id}/transactions
func (h *ResultsHandler) ListTransactions(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	txs, err := h.store.ListTransactions(ctx, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// ListAnomalies handles GET /api/sessions/{id}/anomalies
func (h *ResultsHandler) ListAnomalies(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	anomalies, err := h.store.ListAnomalies(ctx, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list anomalies")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list anomalies")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// ListRecurring handles GET /api/sessions/{id}/recurring
func (h *ResultsHandler) ListRecurring(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	charges, err := h.store.ListRecurring(ctx, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list recurring charges")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list recurring charges")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recurring_charges": charges,
		"count":             len(charges),
	})
}

// ListInsights handles GET /api/sessions/{id}/insights
func (h *ResultsHandler) ListInsights(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	insights, err := h.store.ListInsights(ctx, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to list insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list insights")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"insights": insights,
		"count":    len(insights),
	})
}

// CategoriesHandler serves the reference taxonomy.
type CategoriesHandler struct {
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := categorize.Categories()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// GrayChargeLister is the cross-session reporting source. The BigQuery
// exporter is the production implementation.
type GrayChargeLister interface {
	QueryGrayCharges(ctx context.Context, since time.Time) ([]*bqstore.RecurringChargeRow, error)
}

var _ GrayChargeLister = (*bqstore.Exporter)(nil)

// ReportsHandler serves reports over the exported dataset.
type ReportsHandler struct {
	lister GrayChargeLister
	log    zerolog.Logger
}

// NewReportsHandler creates a reports handler. A nil lister means no export
// sink is configured and reporting is unavailable.
func NewReportsHandler(lister GrayChargeLister, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{lister: lister, log: log}
}

// GrayCharges handles GET /api/reports/gray-charges?days=N: every gray
// charge exported across sessions within the last N days (default 90),
// newest first.
func (h *ReportsHandler) GrayCharges(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Reporting requires a configured BigQuery export")
		return
	}

	days := 90
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := h.lister.QueryGrayCharges(r.Context(), since)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query gray charges")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query gray charges")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gray_charges": rows,
		"count":        len(rows),
		"since":        since.Format("2006-01-02"),
	})
}
