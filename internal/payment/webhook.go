package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nazeru/storefront-go/internal/domain"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" computed over
// "<unix>.<body>" with the shared webhook secret.
const SignatureHeader = "Gateway-Signature"

// DefaultTolerance bounds how old a signed timestamp may be; replays
// outside it are rejected.
const DefaultTolerance = 5 * time.Minute

// WebhookEvent is the provider's push notification envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Intent `json:"object"`
	} `json:"data"`
}

const (
	EventTypeIntentSucceeded = "payment_intent.succeeded"
	EventTypeIntentFailed    = "payment_intent.payment_failed"
)

// ComputeSignature produces the signed payload for timestamp ts; the
// gateway and tests both sign this way.
func ComputeSignature(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks header against payload. Every failure returns
// the same constant error so a caller cannot learn which part of the
// check failed.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return domain.ErrSignatureVerification
			}
			ts = parsed
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return domain.ErrSignatureVerification
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < -tolerance || age > tolerance {
		return domain.ErrSignatureVerification
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return domain.ErrSignatureVerification
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(decoded, expectedRaw) {
		return domain.ErrSignatureVerification
	}
	return nil
}
