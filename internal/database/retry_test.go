package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusy(t *testing.T) {
	busy := []error{
		errors.New("database is locked"),
		errors.New("database table is locked"),
		errors.New("SQLITE_BUSY: cannot start transaction"),
		errors.New("ERROR: could not serialize access due to concurrent update"),
		errors.New("deadlock detected"),
	}
	for _, err := range busy {
		assert.True(t, IsBusy(err), "%v", err)
	}

	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("syntax error")))
}

func TestWithRetryRetriesBusyErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	wantErr := errors.New("constraint violation")
	err := WithRetry(context.Background(), func() error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("database is locked")
	})
	require.Error(t, err)
}
