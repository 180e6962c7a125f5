package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/monsele/Converge/config"
)

func testRequest() IssuanceRequest {
	return IssuanceRequest{
		IssuerID:        "issuer-admin",
		ISIN:            "US0000000001",
		Currency:        "USD",
		TotalSize:       1_000_000,
		FaceValue:       1000,
		Maturity:        time.Now().Add(365 * 24 * time.Hour).Unix(),
		ConversionRatio: "2.0",
		ConversionPrice: "500",
	}
}

func newTrigger(endpoint string) *HTTPTrigger {
	return NewHTTPTrigger(config.RelayConfig{
		TriggerEndpoint:       endpoint,
		TriggerTimeoutSeconds: 2,
	}, zerolog.Nop())
}

func TestSubmitIssuanceSuccess(t *testing.T) {
	var received IssuanceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	result, err := newTrigger(srv.URL).SubmitIssuance(context.Background(), testRequest())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.JSONEq(t, `{"accepted":true}`, string(result.Body))
	require.Equal(t, "US0000000001", received.ISIN)
	require.Equal(t, "2.0", received.ConversionRatio)
}

func TestSubmitIssuanceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"isin already registered"}`))
	}))
	defer srv.Close()

	result, err := newTrigger(srv.URL).SubmitIssuance(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "422")
	require.Contains(t, string(result.Body), "isin already registered")
}

func TestSubmitIssuanceNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	result, err := newTrigger(srv.URL).SubmitIssuance(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestSubmitIssuanceUnconfiguredEndpoint(t *testing.T) {
	result, err := newTrigger("").SubmitIssuance(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "not configured")
}

func TestSubmitIssuanceCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	result, err := newTrigger(srv.URL).SubmitIssuance(ctx, testRequest())
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, result)
}
