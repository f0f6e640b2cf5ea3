// ABOUTME: Local ops HTTP API: health probe plus JWT-protected moderation endpoints
// ABOUTME: Read-only views of stats, queues and audit, with a mode switch for tooling

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/joinguard/internal/auth"
	"github.com/2389/joinguard/internal/moderation"
	"github.com/2389/joinguard/internal/policy"
	"github.com/2389/joinguard/internal/store"
)

// Config holds the ops API server settings.
type Config struct {
	Addr        string
	JWTSecret   string
	ReviewerIDs []int64
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Mode        string         `json:"mode"`
	WindowHours int            `json:"window_hours"`
	Counts      map[string]int `json:"counts"`
	Total       int            `json:"total"`
}

// RequestSummary is the JSON shape of one join request in API responses.
type RequestSummary struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"display_name"`
	Status      string   `json:"status"`
	SubmittedAt string   `json:"submitted_at"`
	RiskScore   int      `json:"risk_score"`
	RiskReasons []string `json:"risk_reasons,omitempty"`
	AgeDays     *int     `json:"age_days,omitempty"`
	IsFlagged   bool     `json:"is_flagged"`
	Note        string   `json:"note,omitempty"`
}

// PendingResponse is the JSON response for GET /api/v1/pending.
type PendingResponse struct {
	Pending []RequestSummary `json:"pending"`
}

// ModeResponse is the JSON response for mode reads and writes.
type ModeResponse struct {
	Mode string `json:"mode"`
}

// setModeRequest is the JSON request body for PUT /api/v1/mode.
type setModeRequest struct {
	Mode string `json:"mode"`
}

// AuditEntryResponse is the JSON shape of one audit entry.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	ActorID   int64          `json:"actor_id"`
	Action    string         `json:"action"`
	RequestID *int64         `json:"request_id,omitempty"`
	Timestamp string         `json:"ts"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// AuditResponse is the JSON response for GET /api/v1/audit.
type AuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}

// Server is the local ops API server.
type Server struct {
	service    *moderation.Service
	store      store.Store
	logger     *slog.Logger
	httpServer *http.Server
	handler    http.Handler
}

// New creates the ops API server. Routes are mounted immediately; nothing
// listens until Run is called.
func New(cfg Config, svc *moderation.Service, st store.Store) *Server {
	s := &Server{
		service: svc,
		store:   st,
		logger:  slog.Default().With("component", "api"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("/healthz", s.handleHealth)

	verifier := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
	protect := auth.Middleware(verifier, cfg.ReviewerIDs)
	mux.Handle("/api/v1/stats", protect(http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/v1/pending", protect(http.HandlerFunc(s.handlePending)))
	mux.Handle("/api/v1/mode", protect(http.HandlerFunc(s.handleMode)))
	mux.Handle("/api/v1/audit", protect(http.HandlerFunc(s.handleAudit)))

	s.handler = mux
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves the API until the context is canceled, then shuts down
// gracefully. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("ops API server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down ops API: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStats handles GET /api/v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.logger.Error("assembling stats", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	counts := make(map[string]int, len(data.Counts))
	for status, n := range data.Counts {
		counts[string(status)] = n
	}

	s.sendJSON(w, StatsResponse{
		Mode:        string(data.Mode),
		WindowHours: int(data.Window / time.Hour),
		Counts:      counts,
		Total:       data.Counts.Total(),
	})
}

// handlePending handles GET /api/v1/pending.
// Supports an optional ?limit=N query parameter, default 50.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	pending, err := s.service.PendingReview(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing pending requests", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := PendingResponse{Pending: make([]RequestSummary, len(pending))}
	for i, rec := range pending {
		response.Pending[i] = summarize(rec)
	}
	s.sendJSON(w, response)
}

// handleMode routes mode requests by HTTP method.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.sendJSON(w, ModeResponse{Mode: string(s.service.Mode(r.Context()))})
	case http.MethodPut:
		s.handleSetMode(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSetMode handles PUT /api/v1/mode. The authenticated reviewer becomes
// the audit actor for the change.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := s.service.SetMode(r.Context(), policy.Mode(req.Mode), identity.ReviewerID); err != nil {
		if errors.Is(err, policy.ErrInvalidMode) {
			s.sendJSONError(w, http.StatusBadRequest, "mode must be hybrid or manual")
			return
		}
		s.logger.Error("setting moderation mode", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, ModeResponse{Mode: req.Mode})
}

// handleAudit handles GET /api/v1/audit.
// Filters: ?limit=N, ?action=X, ?actor_id=N, ?request_id=N, ?since=RFC3339.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.ListAuditLog(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit log", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := AuditResponse{Entries: make([]AuditEntryResponse, len(entries))}
	for i, e := range entries {
		response.Entries[i] = AuditEntryResponse{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			RequestID: e.RequestID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Detail:    e.Detail,
		}
	}
	s.sendJSON(w, response)
}

// parseAuditFilter builds an audit query filter from request query params.
func parseAuditFilter(r *http.Request) (store.AuditFilter, error) {
	var filter store.AuditFilter
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}

	if raw := q.Get("action"); raw != "" {
		action := store.AuditAction(raw)
		if !validAuditAction(action) {
			return filter, fmt.Errorf("unknown action %q", raw)
		}
		filter.Action = &action
	}

	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.New("actor_id must be an integer")
		}
		filter.ActorID = &id
	}

	if raw := q.Get("request_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.New("request_id must be an integer")
		}
		filter.RequestID = &id
	}

	if raw := q.Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("since must be an RFC3339 timestamp")
		}
		filter.Since = &ts
	}

	return filter, nil
}

func validAuditAction(action store.AuditAction) bool {
	for _, a := range store.ValidAuditActions {
		if a == action {
			return true
		}
	}
	return false
}

// summarize converts a stored join request into its API shape.
func summarize(rec *store.JoinRequest) RequestSummary {
	return RequestSummary{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Username:    rec.Username,
		DisplayName: rec.DisplayName(),
		Status:      string(rec.Status),
		SubmittedAt: rec.SubmittedAt.UTC().Format(time.RFC3339),
		RiskScore:   rec.RiskScore,
		RiskReasons: rec.RiskReasons,
		AgeDays:     rec.AgeDays,
		IsFlagged:   rec.IsFlagged,
		Note:        rec.DecisionNote,
	}
}

// sendJSON writes a JSON response body.
func (s *Server) sendJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
