package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(BackendFailure, "orchestrator", "embed call failed", errors.New("boom"))
	assert.Equal(t, "[orchestrator:backend_failure] embed call failed", err.Error())
	assert.True(t, err.Retryable)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(StoreError, "store", "insert failed", cause)
	require.ErrorIs(t, err, err)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestIsKind(t *testing.T) {
	err := New(BackendUnavailable, "models", "ocr not loaded", nil)
	assert.True(t, IsKind(err, BackendUnavailable))
	assert.False(t, IsKind(err, Timeout))
	assert.False(t, IsKind(nil, Timeout))
}

func TestDefaultRetryable(t *testing.T) {
	assert.True(t, New(BackendFailure, "x", "", nil).Retryable)
	assert.True(t, New(Timeout, "x", "", nil).Retryable)
	assert.False(t, New(BackendUnavailable, "x", "", nil).Retryable)
	assert.False(t, New(DataInvalid, "x", "", nil).Retryable)
	assert.False(t, New(ConfigError, "x", "", nil).Retryable)
	assert.False(t, New(StoreError, "x", "", nil).Retryable)
}

func TestWithRetryableOverride(t *testing.T) {
	err := New(DataInvalid, "parser", "bad chunk", nil).WithRetryable(true)
	assert.True(t, err.Retryable)
	assert.True(t, IsRetryable(err))
}

func TestErrorsIsByKind(t *testing.T) {
	a := New(ConfigError, "config", "bad json", nil)
	b := New(ConfigError, "config", "different message", nil)
	assert.True(t, errors.Is(a, b))
}
