package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeNotFound, "trade missing")
	require.Equal(t, "[NOT_FOUND] trade missing", err.Error())

	cause := fmt.Errorf("record not found")
	wrapped := New(ErrCodeDatabase, "lookup failed").WithCause(cause)
	require.Contains(t, wrapped.Error(), "lookup failed")
	require.Contains(t, wrapped.Error(), "record not found")
	require.ErrorIs(t, wrapped, cause)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrCodeValidation, CodeOf(New(ErrCodeValidation, "bad")))

	// Codes survive wrapping with plain fmt.Errorf.
	wrapped := fmt.Errorf("handler: %w", New(ErrCodeAuthorization, "no"))
	require.Equal(t, ErrCodeAuthorization, CodeOf(wrapped))

	// Uncategorized errors default to INTERNAL.
	require.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("plain")))
	require.Equal(t, ErrCodeInternal, CodeOf(nil))
}

func TestHasCode(t *testing.T) {
	err := Newf(ErrCodeInsufficientBalance, "has %d, needs %d", 5, 10)
	require.True(t, HasCode(err, ErrCodeInsufficientBalance))
	require.False(t, HasCode(err, ErrCodeValidation))

	wrapped := Wrap(err, "while burning")
	require.True(t, HasCode(wrapped, ErrCodeInsufficientBalance))
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeUpstream, "relay returned status 503").
		WithContext("trade_id", "trade-123")
	require.Equal(t, "trade-123", err.Context["trade_id"])
}
