// Package relay contains the client side of the relay-network integration:
// the trigger client that hands an issuance request to the relay, and the
// callback types the relay posts back to the trade API.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/monsele/Converge/config"
)

// IssuanceRequest is the payload handed to the relay network when a trade
// is initiated. Maturity travels as epoch seconds; the conversion ratio
// stays in its decimal string form.
type IssuanceRequest struct {
	IssuerID        string `json:"issuer_id"`
	ISIN            string `json:"isin"`
	Currency        string `json:"currency"`
	TotalSize       int64  `json:"total_size"`
	FaceValue       int64  `json:"face_value"`
	Maturity        int64  `json:"maturity"`
	ConversionRatio string `json:"conversion_ratio"`
	ConversionPrice string `json:"conversion_price"`
}

// IssuanceResult reports whether the relay accepted the request. Success
// only means acceptance: settlement is learned later through the callback.
type IssuanceResult struct {
	Success bool
	Error   string
	Body    []byte
}

// Trigger submits issuance requests to the relay network.
type Trigger interface {
	SubmitIssuance(ctx context.Context, req IssuanceRequest) (*IssuanceResult, error)
}

// HTTPTrigger posts issuance requests to the relay's intake endpoint.
// A missing endpoint is a degraded-but-legal configuration: submissions
// report failure the same way a network error would, and the trade intent
// stays queryable.
type HTTPTrigger struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewHTTPTrigger builds the production trigger client from configuration.
func NewHTTPTrigger(cfg config.RelayConfig, log zerolog.Logger) *HTTPTrigger {
	return &HTTPTrigger{
		endpoint: cfg.TriggerEndpoint,
		client: &http.Client{
			Timeout: time.Duration(cfg.TriggerTimeoutSeconds) * time.Second,
		},
		log: log.With().Str("component", "relay_trigger").Logger(),
	}
}

// SubmitIssuance performs the synchronous hand-off. The returned error is
// non-nil only for context cancellation; every other failure mode comes
// back as an unsuccessful IssuanceResult so the caller can persist it.
func (t *HTTPTrigger) SubmitIssuance(ctx context.Context, req IssuanceRequest) (*IssuanceResult, error) {
	if t.endpoint == "" {
		t.log.Warn().Str("isin", req.ISIN).Msg("relay trigger endpoint not configured")
		return &IssuanceResult{Success: false, Error: "relay trigger endpoint not configured"}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &IssuanceResult{Success: false, Error: fmt.Sprintf("encode issuance request: %v", err)}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return &IssuanceResult{Success: false, Error: fmt.Sprintf("build issuance request: %v", err)}, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation abandons the call cleanly; the caller leaves the
			// intent untouched.
			return nil, ctx.Err()
		}
		t.log.Error().Err(err).Str("isin", req.ISIN).Msg("relay trigger call failed")
		return &IssuanceResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &IssuanceResult{Success: false, Error: fmt.Sprintf("read relay response: %v", err)}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.log.Warn().
			Int("status", resp.StatusCode).
			Str("isin", req.ISIN).
			Msg("relay rejected issuance request")
		return &IssuanceResult{
			Success: false,
			Error:   fmt.Sprintf("relay returned status %d", resp.StatusCode),
			Body:    respBody,
		}, nil
	}

	t.log.Info().Str("isin", req.ISIN).Msg("relay accepted issuance request")
	return &IssuanceResult{Success: true, Body: respBody}, nil
}
