// Package payment adapts the external payment provider: intent
// creation, the confirm reconciliation path, and signed webhook
// ingestion. Amounts cross this boundary in integer minor units; the
// rest of the system speaks decimal major units.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Intent statuses the workflow cares about; the provider may report
// others (e.g. "requires_payment_method"), all treated as not complete.
const IntentSucceeded = "succeeded"

// MinimumChargeMinor is the provider's charge floor in cents.
const MinimumChargeMinor = 50

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// ToMinorUnits converts a major-unit decimal amount to cents, rounding
// half away from zero. This is the only place the conversion happens.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// HTTPGateway talks to the provider's REST API with a bounded client
// timeout on top of the request context.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPGateway(baseURL, secretKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"metadata": metadata,
	}
	var intent Intent
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (g *HTTPGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	var intent Intent
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode gateway request")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "call payment gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("payment gateway returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode gateway response")
	}
	return nil
}

var _ Gateway = (*HTTPGateway)(nil)
