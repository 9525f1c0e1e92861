package database

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsBusy reports whether err is a transient contention error worth
// retrying: SQLite lock/busy errors or PostgreSQL serialization failures.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"),
		strings.Contains(msg, "could not serialize access"),
		strings.Contains(msg, "deadlock detected"):
		return true
	}
	return false
}

// WithRetry runs op, retrying transient contention errors with
// exponential backoff. Non-busy errors abort immediately.
func WithRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 2 * time.Second

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, 7), ctx))
}
