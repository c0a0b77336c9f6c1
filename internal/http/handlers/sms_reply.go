package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/observability/metrics"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// smsReplier resolves an inbound confirmation text to a reply.
type smsReplier interface {
	HandleReply(ctx context.Context, tenantID, fromPhone, body string) (string, error)
}

// tenantLookup maps the receiving number to a tenant ID.
type tenantLookup interface {
	LookupByNumber(ctx context.Context, number string) (string, error)
}

// SMSReplyEvent is the provider's inbound-message webhook. Attachments are
// accepted so MMS payloads decode cleanly, but intake only reads the text.
type SMSReplyEvent struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	Text           string   `json:"text"`
	AttachmentURLs []string `json:"attachmentUrls"`
}

// SMSReplyResponse carries the text sent back to the customer.
type SMSReplyResponse struct {
	Reply string `json:"reply"`
}

// SMSReplyHandler handles POST /webhooks/sms/inbound.
type SMSReplyHandler struct {
	tenants  tenantLookup
	resolver smsReplier
	verifier signatureVerifier
	metrics  *metrics.IntakeMetrics
	logger   *logging.Logger
}

// SMSReplyHandlerConfig configures the SMSReplyHandler.
type SMSReplyHandlerConfig struct {
	Tenants  tenantLookup
	Resolver smsReplier
	Verifier signatureVerifier
	Metrics  *metrics.IntakeMetrics
	Logger   *logging.Logger
}

// NewSMSReplyHandler creates an SMSReplyHandler.
func NewSMSReplyHandler(cfg SMSReplyHandlerConfig) *SMSReplyHandler {
	if cfg.Tenants == nil {
		panic("handlers: tenant lookup is required")
	}
	if cfg.Resolver == nil {
		panic("handlers: sms resolver is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SMSReplyHandler{
		tenants:  cfg.Tenants,
		resolver: cfg.Resolver,
		verifier: cfg.Verifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// HandleInbound is the HTTP handler for POST /webhooks/sms/inbound.
func (h *SMSReplyHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("sms: failed to read body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body); err != nil {
			h.logger.Warn("sms: signature verification failed", "error", err)
			h.metrics.ObserveTurn("sms", "rejected")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event SMSReplyEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("sms: failed to parse event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(event.From) == "" {
		http.Error(w, "from is required", http.StatusBadRequest)
		return
	}

	to := messaging.NormalizeE164(event.To)
	tenantID, err := h.tenants.LookupByNumber(ctx, to)
	if err != nil {
		h.logger.Warn("sms: tenant lookup failed", "to", to, "error", err)
		h.metrics.ObserveTurn("sms", "unknown_tenant")
		http.Error(w, "tenant not found", http.StatusNotFound)
		return
	}

	start := time.Now()
	reply, err := h.resolver.HandleReply(ctx, tenantID, event.From, event.Text)
	h.metrics.ObserveTurnLatency("sms", time.Since(start).Seconds())
	if err != nil {
		// A 5xx makes the provider redeliver, so the customer's "Y" is not
		// lost to a transient store failure.
		h.logger.Error("sms: reply handling failed", "tenant_id", tenantID, "error", err)
		h.metrics.ObserveTurn("sms", "error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveTurn("sms", "ok")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SMSReplyResponse{Reply: reply})
}
