package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

var (
	errInner = errors.New("inner")
	errPlain = errors.New("plain error")
)

func TestExitCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"success", nil, scopeerr.ExitSuccess},
		{"general error", scopeerr.ErrGeneral, scopeerr.ExitGeneral},
		{"input error", scopeerr.ErrInvalidInput, scopeerr.ExitInput},
		{"not found error", scopeerr.ErrNotFound, scopeerr.ExitNotFound},
		{"already running", scopeerr.ErrAlreadyRunning, scopeerr.ExitConflict},
		{"not running", scopeerr.ErrNotRunning, scopeerr.ExitConflict},
		{"payload too large", scopeerr.ErrPayloadTooLarge, scopeerr.ExitInput},
		{"plain error", errPlain, scopeerr.ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, scopeerr.ExitCode(tt.err))
		})
	}
}

func TestWrapPreservesIdentity(t *testing.T) {
	t.Parallel()

	sentinels := []*scopeerr.ScopeError{
		scopeerr.ErrInvalidInput,
		scopeerr.ErrRPC,
		scopeerr.ErrNotRunning,
		scopeerr.ErrInsufficientDeposit,
	}
	for _, s := range sentinels {
		wrapped := scopeerr.Wrap(s, "context")
		require.ErrorIs(t, wrapped, s)
		assert.Equal(t, s.ExitCode, scopeerr.ExitCode(wrapped))
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, scopeerr.Wrap(nil, "ignored"))
	})

	t.Run("plain error becomes general", func(t *testing.T) {
		t.Parallel()
		wrapped := scopeerr.Wrap(errInner, "fetching header %d", 7)
		assert.Equal(t, "GENERAL_ERROR", scopeerr.Code(wrapped))
		assert.Equal(t, "fetching header 7: inner", wrapped.Error())
		require.ErrorIs(t, wrapped, errInner)
	})

	t.Run("scope error prefixes message", func(t *testing.T) {
		t.Parallel()
		wrapped := scopeerr.Wrap(scopeerr.ErrNotFound, "block 9")
		assert.Equal(t, "block 9: resource not found", wrapped.Error())
	})
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	err := scopeerr.WithCause(scopeerr.ErrRPC, errInner)
	require.ErrorIs(t, err, scopeerr.ErrRPC)
	require.ErrorIs(t, err, errInner)
	assert.Equal(t, "node request failed: inner", err.Error())
}

func TestWithDetailsSortedOutput(t *testing.T) {
	t.Parallel()

	err := scopeerr.WithDetails(scopeerr.ErrInvalidInput, map[string]string{
		"b": "2",
		"a": "1",
	})
	assert.Equal(t, "invalid input (a: 1) (b: 2)", err.Error())
	assert.NoError(t, scopeerr.WithDetails(nil, nil))
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	err := scopeerr.WithSuggestion(scopeerr.ErrNotRunning, "start it first")
	var se *scopeerr.ScopeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "start it first", se.Suggestion)
	assert.Equal(t, "NOT_RUNNING", se.Code)

	plain := scopeerr.WithSuggestion(errPlain, "retry")
	require.ErrorAs(t, plain, &se)
	assert.Equal(t, "GENERAL_ERROR", se.Code)
}

func TestToFailure(t *testing.T) {
	t.Parallel()

	assert.Nil(t, scopeerr.ToFailure(nil))

	f := scopeerr.ToFailure(scopeerr.ErrPayloadTooLarge)
	require.NotNil(t, f)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", f.Code)
	assert.Equal(t, "data store payload exceeds maximum size", f.Error)

	f = scopeerr.ToFailure(errPlain)
	assert.Equal(t, "GENERAL_ERROR", f.Code)
	assert.Equal(t, "plain error", f.Error)
}

func TestIsDistinguishesCodes(t *testing.T) {
	t.Parallel()

	assert.False(t, scopeerr.Is(scopeerr.ErrNotRunning, scopeerr.ErrAlreadyRunning))
	assert.True(t, scopeerr.Is(scopeerr.New("NOT_RUNNING", "x"), scopeerr.ErrNotRunning))
}
