package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	notFound := NewDomainError("student", "Find", ErrNotFound, "student not found")

	t.Run("message carries domain and operation", func(t *testing.T) {
		assert.Equal(t, "student.Find: student not found", notFound.Error())
	})

	t.Run("matches its kind", func(t *testing.T) {
		assert.ErrorIs(t, notFound, ErrNotFound)
		assert.True(t, IsNotFound(notFound))
		assert.False(t, IsValidation(notFound))
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("load student 42: %w", notFound)
		assert.ErrorIs(t, wrapped, notFound)
		assert.ErrorIs(t, wrapped, ErrNotFound)
	})

	t.Run("wrap keeps the underlying cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := WrapError("statsapi", "GetStats", ErrServiceUnavailable, "request failed", cause)

		require.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "statsapi.GetStats")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestClassifiers(t *testing.T) {
	t.Run("validation kinds", func(t *testing.T) {
		for _, kind := range []error{ErrValidation, ErrInvalidID, ErrInvalidInput, ErrEmptyValue, ErrNegativeValue, ErrMissingKeys} {
			err := NewDomainError("student", "New", kind, "bad input")
			assert.True(t, IsValidation(err), kind.Error())
		}
	})

	t.Run("retryable kinds", func(t *testing.T) {
		assert.True(t, IsRetryable(NewDomainError("feed", "Load", ErrTimeout, "timeout")))
		assert.True(t, IsRetryable(NewDomainError("feed", "Load", ErrServiceUnavailable, "down")))
		assert.False(t, IsRetryable(NewDomainError("feed", "Load", ErrValidation, "bad row")))
	})

	t.Run("evaluation kind", func(t *testing.T) {
		err := WrapError("challenge", "Award", ErrEvaluation, "rule failed", errors.New("unknown identifier"))
		assert.True(t, IsEvaluation(err))
		assert.False(t, IsRetryable(err))
	})
}
