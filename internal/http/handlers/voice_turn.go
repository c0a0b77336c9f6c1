// Package handlers contains the HTTP surface: telephony webhooks and the
// owner admin API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/wrenchline/wrenchline/internal/calllog"
	"github.com/wrenchline/wrenchline/internal/dialog"
	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/observability/metrics"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// Signature headers sent by the telephony provider.
const (
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"
)

// tenantResolver maps the called number to a tenant and loads its config.
type tenantResolver interface {
	LookupByNumber(ctx context.Context, number string) (string, error)
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
}

// turnProcessor runs one conversational turn.
type turnProcessor interface {
	HandleTurn(ctx context.Context, cfg *tenant.Config, in dialog.TurnInput) dialog.TurnResult
}

// callRecorder persists the outcome of a finished call.
type callRecorder interface {
	Record(ctx context.Context, rec calllog.CallRecord) (calllog.CallRecord, error)
}

// signatureVerifier checks webhook authenticity.
type signatureVerifier interface {
	Verify(timestamp, signature string, payload []byte) error
}

// VoiceTurnEvent is the provider's speech-to-text webhook for one caller
// utterance. Transcript is empty on a silence timeout.
type VoiceTurnEvent struct {
	CallID     string  `json:"callId"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// VoiceTurnResponse is spoken back to the caller by the provider's TTS.
type VoiceTurnResponse struct {
	Message string `json:"message"`
	// EndCall tells the provider to hang up after speaking Message.
	EndCall bool `json:"endCall"`
}

// VoiceTurnHandler handles POST /webhooks/voice/turn.
type VoiceTurnHandler struct {
	tenants  tenantResolver
	machine  turnProcessor
	callLog  callRecorder
	verifier signatureVerifier
	metrics  *metrics.IntakeMetrics
	logger   *logging.Logger
}

// VoiceTurnHandlerConfig configures the VoiceTurnHandler. CallLog and
// Verifier are optional; Metrics may be nil.
type VoiceTurnHandlerConfig struct {
	Tenants  tenantResolver
	Machine  turnProcessor
	CallLog  callRecorder
	Verifier signatureVerifier
	Metrics  *metrics.IntakeMetrics
	Logger   *logging.Logger
}

// NewVoiceTurnHandler creates a VoiceTurnHandler.
func NewVoiceTurnHandler(cfg VoiceTurnHandlerConfig) *VoiceTurnHandler {
	if cfg.Tenants == nil {
		panic("handlers: tenant resolver is required")
	}
	if cfg.Machine == nil {
		panic("handlers: turn processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceTurnHandler{
		tenants:  cfg.Tenants,
		machine:  cfg.Machine,
		callLog:  cfg.CallLog,
		verifier: cfg.Verifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// HandleTurn is the HTTP handler for POST /webhooks/voice/turn.
func (h *VoiceTurnHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("voice: failed to read body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body); err != nil {
			h.logger.Warn("voice: signature verification failed", "error", err)
			h.metrics.ObserveTurn("voice", "rejected")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event VoiceTurnEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("voice: failed to parse event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event.CallID == "" {
		http.Error(w, "callId is required", http.StatusBadRequest)
		return
	}

	to := messaging.NormalizeE164(event.To)
	cfg, err := h.resolveTenant(ctx, to)
	if err != nil {
		h.logger.Warn("voice: tenant lookup failed", "to", to, "error", err)
		h.metrics.ObserveTurn("voice", "unknown_tenant")
		http.Error(w, "tenant not found", http.StatusNotFound)
		return
	}

	start := time.Now()
	res := h.machine.HandleTurn(ctx, cfg, dialog.TurnInput{
		CallID:      event.CallID,
		CallerPhone: messaging.NormalizeE164(event.From),
		Transcript:  event.Transcript,
		Confidence:  event.Confidence,
	})
	h.metrics.ObserveTurnLatency("voice", time.Since(start).Seconds())
	h.metrics.ObserveTurn("voice", "ok")

	if res.Done {
		h.recordCall(ctx, cfg.TenantID, event, res)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(VoiceTurnResponse{
		Message: res.Message,
		EndCall: res.Done,
	})
}

func (h *VoiceTurnHandler) resolveTenant(ctx context.Context, toNumber string) (*tenant.Config, error) {
	tenantID, err := h.tenants.LookupByNumber(ctx, toNumber)
	if err != nil {
		return nil, err
	}
	return h.tenants.Get(ctx, tenantID)
}

// recordCall writes the call ledger row. The ledger is best effort: a
// database outage must not break the goodbye message.
func (h *VoiceTurnHandler) recordCall(ctx context.Context, tenantID string, event VoiceTurnEvent, res dialog.TurnResult) {
	if h.callLog == nil {
		return
	}
	rec := calllog.CallRecord{
		TenantID:    tenantID,
		CallID:      event.CallID,
		CallerPhone: messaging.NormalizeE164(event.From),
		Outcome:     calllog.Outcome(res.Outcome),
	}
	if res.Details != nil {
		rec.Intent = res.Details.Intent
		rec.Name = res.Details.Name
		rec.Job = res.Details.Job
		rec.Address = res.Details.Address
		rec.BookedStart = res.Details.BookedStart
		rec.EventID = res.Details.EventID
	}
	if _, err := h.callLog.Record(ctx, rec); err != nil {
		h.logger.Error("voice: failed to record call outcome",
			"call_id", event.CallID,
			"tenant_id", tenantID,
			"error", err,
		)
	}
}
