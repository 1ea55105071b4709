package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "ErrNotFound",
			err:      ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound",
			err:      fmt.Errorf("failed to load: %w", ErrNotFound),
			expected: true,
		},
		{
			name:     "ErrProgressNotFound",
			err:      ErrProgressNotFound,
			expected: true,
		},
		{
			name:     "store error wrapping ErrProgressNotFound",
			err:      NewStoreError("progress", "load", "region overworld", ErrProgressNotFound),
			expected: true,
		},
		{
			name:     "ErrStoreClosed",
			err:      ErrStoreClosed,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Run("with wrapped error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewStoreError("progress", "save", "failed to write record", cause)

		assert.Equal(t,
			"save operation on progress failed: failed to write record: connection refused",
			err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("without wrapped error", func(t *testing.T) {
		err := NewStoreError("progress", "delete", "store is read-only", nil)

		assert.Equal(t, "delete operation on progress failed: store is read-only", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})

	t.Run("errors.As", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", NewStoreError("progress", "load", "bad row", ErrInvalidEntity))

		var storeErr *StoreError
		assert.True(t, errors.As(wrapped, &storeErr))
		assert.Equal(t, "load", storeErr.Operation)
		assert.ErrorIs(t, wrapped, ErrInvalidEntity)
	})
}
