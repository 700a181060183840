package dbretry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkline/counters/internal/database/dbretry"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil error", err: nil, retryable: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, retryable: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), retryable: true},
		{name: "broken pipe", err: errors.New("write: broken pipe"), retryable: true},
		{name: "constraint violation", err: errors.New("duplicate key value violates unique constraint"), retryable: false},
		{name: "plain error", err: errors.New("something else"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.retryable, dbretry.IsRetryableError(tt.err))
		})
	}
}

func TestOperationPermanentErrorStopsRetrying(t *testing.T) {
	t.Parallel()

	calls := 0
	wantErr := errors.New("column does not exist")

	_, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		calls++
		return 0, wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestOperationReturnsResult(t *testing.T) {
	t.Parallel()

	got, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestNoResultRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	calls := 0

	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("read: connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
