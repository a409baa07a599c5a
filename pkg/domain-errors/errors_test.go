package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryNumbers pins the numeric codes existing clients rely on.
func TestRegistryNumbers(t *testing.T) {
	expected := map[Code]uint16{
		CodeNotAuthorized:      100,
		CodeInvalidID:          101,
		CodeAlreadyExists:      102,
		CodeNotOwner:           103,
		CodeInvalidRevision:    104,
		CodeCertExpired:        105,
		CodeTransferRestricted: 106,
		CodeInvalidLog:         107,
		CodeMaxLogsReached:     108,
		CodeInvalidInput:       109,
	}
	for code, want := range expected {
		got, ok := code.Number()
		require.True(t, ok, "code %s must have a number", code)
		assert.Equal(t, want, got, "code %s", code)

		back, ok := CodeFromNumber(want)
		require.True(t, ok)
		assert.Equal(t, code, back)
	}

	_, ok := CodeInternal.Number()
	assert.False(t, ok)
	_, ok = CodeFromNumber(999)
	assert.False(t, ok)
}

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotOwner, "caller is not the custodian")
		assert.True(t, HasCode(err, CodeNotOwner))
		assert.False(t, HasCode(err, CodeNotAuthorized))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeInvalidID, "asset not found"))
		assert.True(t, HasCode(err, CodeInvalidID))
		assert.Equal(t, CodeInvalidID, CodeOf(err))
	})

	t.Run("nil and plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load asset")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to load asset")
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}
