// Package webhook verifies identity provider deliveries signed with the
// svix scheme.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"

	// DefaultTolerance bounds how far a delivery timestamp may drift from now.
	DefaultTolerance = 5 * time.Minute
)

var errInvalidSecret = errors.New("webhook secret is not valid base64")

// Verifier checks svix signatures and decodes the event body.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier builds a Verifier from a "whsec_" prefixed secret. A
// non-positive tolerance selects DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil || len(key) == 0 {
		return nil, errInvalidSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{key: key, tolerance: tolerance, now: time.Now}, nil
}

// Verify authenticates d and decodes its body. The body is parsed only after
// the signature matches.
func (v *Verifier) Verify(d domain.WebhookDelivery) (*domain.IdentityEvent, error) {
	if !d.HasHeaders() {
		return nil, domain.ErrMissingWebhookHeaders
	}

	ts, err := strconv.ParseInt(d.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("timestamp %q: %w", d.Timestamp, domain.ErrInvalidSignature)
	}
	sent := time.Unix(ts, 0)
	if drift := v.now().Sub(sent); drift > v.tolerance || drift < -v.tolerance {
		return nil, fmt.Errorf("timestamp outside tolerance: %w", domain.ErrInvalidSignature)
	}

	if !v.matches(v.sign(d.ID, d.Timestamp, d.Body), d.Signature) {
		return nil, domain.ErrInvalidSignature
	}

	var evt domain.IdentityEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %v: %w", err, domain.ErrInvalidPayload)
	}
	if evt.Type == "" {
		return nil, domain.ErrInvalidPayload
	}
	return &evt, nil
}

// Sign returns the signature header value for a delivery, as the provider
// would send it.
func (v *Verifier) Sign(id string, timestamp time.Time, body []byte) string {
	return signatureVersion + "," + v.sign(id, strconv.FormatInt(timestamp.Unix(), 10), body)
}

func (v *Verifier) sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// matches reports whether any "v1,<sig>" entry of the space separated header
// equals expected.
func (v *Verifier) matches(expected, header string) bool {
	for _, entry := range strings.Fields(header) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}
