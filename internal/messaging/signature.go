package messaging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultMaxSkew = 5 * time.Minute

// SignatureVerifier validates webhook signatures from the telephony provider.
// The provider signs hex(HMAC-SHA256(secret, "<unix-ts>.<body>")) and sends
// the timestamp and signature as headers.
type SignatureVerifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
}

// NewSignatureVerifier creates a verifier. An empty secret makes every
// verification fail, so misconfiguration can't silently accept forgeries.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{
		secret:  secret,
		maxSkew: defaultMaxSkew,
		now:     time.Now,
	}
}

// Verify checks the signature over the raw request body.
func (v *SignatureVerifier) Verify(timestamp, signature string, payload []byte) error {
	if v.secret == "" {
		return errors.New("messaging: webhook secret not configured")
	}
	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return errors.New("messaging: missing signature timestamp")
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("messaging: invalid signature timestamp: %w", err)
	}
	sentAt := time.Unix(sec, 0)
	if diff := v.now().Sub(sentAt); diff > v.maxSkew || diff < -v.maxSkew {
		return fmt.Errorf("messaging: signature timestamp skew %s exceeds limit", diff)
	}

	unsigned := ts + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(unsigned))
	expected := hex.EncodeToString(mac.Sum(nil))

	actual := strings.ToLower(strings.TrimSpace(signature))
	if actual == "" {
		return errors.New("messaging: missing signature header")
	}
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return errors.New("messaging: signature mismatch")
	}
	return nil
}
