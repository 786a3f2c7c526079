package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSourceError("src-1", "connecting to mail server", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "src-1")
	assert.Contains(t, err.Error(), "connecting to mail server")
}

func TestSourceError_LogMessage(t *testing.T) {
	err := NewSourceError("src-1", "listing directory", errors.New("permission denied"))
	assert.Equal(t, "listing directory: permission denied", err.LogMessage())

	bare := NewSourceError("src-1", "mailbox empty response", nil)
	assert.Equal(t, "mailbox empty response", bare.LogMessage())
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("path", "directory does not exist").
		Add("interval", "must be positive")

	// Fields are reported in sorted order.
	assert.Equal(t, "validation failed: interval: must be positive; path: directory does not exist", err.Error())
}

func TestAsValidationError(t *testing.T) {
	inner := NewValidationError("host", "required")
	wrapped := errors.Join(errors.New("saving source"), inner)

	ve, ok := AsValidationError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "required", ve.Fields["host"])

	_, ok = AsValidationError(errors.New("plain"))
	assert.False(t, ok)
}
