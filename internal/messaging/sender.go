package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

// Sender delivers an outbound SMS.
type Sender interface {
	SendSMS(ctx context.Context, to, from, body string) error
}

const sendTimeout = 10 * time.Second

// ProviderClient sends SMS through the configured messaging provider's REST
// API.
type ProviderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewProviderClient creates an SMS provider client.
func NewProviderClient(baseURL, apiKey string, logger *logging.Logger) *ProviderClient {
	return &ProviderClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: sendTimeout},
		logger:     logger,
	}
}

var _ Sender = (*ProviderClient)(nil)

// SendSMS posts one outbound message. Numbers are normalized before send.
func (c *ProviderClient) SendSMS(ctx context.Context, to, from, body string) error {
	to = NormalizeE164(to)
	if to == "" {
		return fmt.Errorf("messaging: invalid destination number")
	}

	payload, err := json.Marshal(map[string]string{
		"to":   to,
		"from": NormalizeE164(from),
		"text": body,
	})
	if err != nil {
		return fmt.Errorf("messaging: marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("messaging: create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("sms send rejected", "to", to, "status", resp.StatusCode)
		return fmt.Errorf("messaging: send sms: status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// StubSender records messages instead of sending them. Used in tests and
// local development.
type StubSender struct {
	mu   sync.Mutex
	Sent []OutboundMessage
	Err  error
}

// OutboundMessage is one recorded stub send.
type OutboundMessage struct {
	To   string
	From string
	Body string
}

var _ Sender = (*StubSender)(nil)

func (s *StubSender) SendSMS(_ context.Context, to, from, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, OutboundMessage{To: NormalizeE164(to), From: NormalizeE164(from), Body: body})
	return nil
}

// Messages returns a copy of what was sent.
func (s *StubSender) Messages() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundMessage(nil), s.Sent...)
}
