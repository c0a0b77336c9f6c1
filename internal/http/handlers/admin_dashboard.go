package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wrenchline/wrenchline/internal/calllog"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// callLedger reads the call outcome ledger.
type callLedger interface {
	GetSummary(ctx context.Context, tenantID string, start, end *time.Time) (*calllog.Summary, error)
	BookedPerDay(ctx context.Context, tenantID string, days int) ([]calllog.DayCount, error)
	Recent(ctx context.Context, tenantID string, limit int) ([]calllog.CallRecord, error)
}

// tenantConfigs reads and writes tenant configuration.
type tenantConfigs interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
	Set(ctx context.Context, cfg *tenant.Config) error
}

// AdminDashboardHandler serves the owner dashboard API.
type AdminDashboardHandler struct {
	calls   callLedger
	tenants tenantConfigs
	logger  *logging.Logger
}

// NewAdminDashboardHandler creates an AdminDashboardHandler. A nil call
// ledger disables the summary and call-list endpoints with 503.
func NewAdminDashboardHandler(calls callLedger, tenants tenantConfigs, logger *logging.Logger) *AdminDashboardHandler {
	if tenants == nil {
		panic("handlers: tenant config store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	// A nil *calllog.Store wrapped in the interface is still non-nil and
	// would slip past the ledger guards below. Flatten it.
	if s, ok := calls.(*calllog.Store); ok && s == nil {
		calls = nil
	}
	return &AdminDashboardHandler{calls: calls, tenants: tenants, logger: logger}
}

// GetSummary returns aggregated call outcomes for a tenant.
// GET /admin/tenants/{tenantID}/summary?start=RFC3339&end=RFC3339
func (h *AdminDashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		http.Error(w, "call ledger not configured", http.StatusServiceUnavailable)
		return
	}
	tenantID := chi.URLParam(r, "tenantID")

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid start time, expected RFC3339", http.StatusBadRequest)
			return
		}
		start = &t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid end time, expected RFC3339", http.StatusBadRequest)
			return
		}
		end = &t
	}
	if (start == nil) != (end == nil) {
		http.Error(w, "start and end must be provided together", http.StatusBadRequest)
		return
	}

	summary, err := h.calls.GetSummary(r.Context(), tenantID, start, end)
	if err != nil {
		h.logger.Error("admin: summary query failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetBookedPerDay returns the trailing booked-per-day series for a tenant.
// GET /admin/tenants/{tenantID}/bookings/daily?days=N
func (h *AdminDashboardHandler) GetBookedPerDay(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		http.Error(w, "call ledger not configured", http.StatusServiceUnavailable)
		return
	}
	tenantID := chi.URLParam(r, "tenantID")

	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}

	series, err := h.calls.BookedPerDay(r.Context(), tenantID, days)
	if err != nil {
		h.logger.Error("admin: bookings per day failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []calllog.DayCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": series})
}

// ListCalls returns the newest call records for a tenant.
// GET /admin/tenants/{tenantID}/calls?limit=N
func (h *AdminDashboardHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		http.Error(w, "call ledger not configured", http.StatusServiceUnavailable)
		return
	}
	tenantID := chi.URLParam(r, "tenantID")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := h.calls.Recent(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("admin: call list failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []calllog.CallRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": recs})
}

// GetConfig returns a tenant's configuration.
// GET /admin/tenants/{tenantID}/config
func (h *AdminDashboardHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	cfg, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Warn("admin: config lookup failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "tenant not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PutConfig replaces a tenant's configuration. The tenant ID in the URL wins
// over whatever the body claims.
// PUT /admin/tenants/{tenantID}/config
func (h *AdminDashboardHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var cfg tenant.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&cfg); err != nil {
		http.Error(w, "invalid config body", http.StatusBadRequest)
		return
	}
	cfg.TenantID = tenantID

	if err := h.tenants.Set(r.Context(), &cfg); err != nil {
		h.logger.Error("admin: config save failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
