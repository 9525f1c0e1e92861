package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/praxishq/praxis/internal/database"
)

// LeaseStore implements DB-row leases for worker leader election. A lease
// is acquired by inserting the row, or by overwriting it when it is owned
// by the caller (renewal) or has expired. The compare-and-swap runs inside
// a transaction so concurrent workers cannot both win.
type LeaseStore struct {
	db database.Database
}

// NewLeaseStore creates a LeaseStore.
func NewLeaseStore(db database.Database) *LeaseStore {
	return &LeaseStore{db: db}
}

// Acquire attempts to take or renew the named lease for owner. It reports
// whether the caller holds the lease afterwards.
func (s *LeaseStore) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := database.WithRetry(ctx, func() error {
		acquired = false
		now := time.Now().UTC()
		return s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
			var lease LeaseEntity
			err := tx.Where("name = ?", name).Take(&lease).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				lease = LeaseEntity{
					Name:      name,
					Owner:     owner,
					CreatedAt: now,
					ExpiresAt: now.Add(ttl),
				}
				if err := tx.Create(&lease).Error; err != nil {
					return fmt.Errorf("insert lease: %w", err)
				}
				acquired = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("read lease: %w", err)
			}

			if lease.Owner != owner && lease.ExpiresAt.After(now) {
				return nil
			}

			lease.Owner = owner
			lease.ExpiresAt = now.Add(ttl)
			if err := tx.Save(&lease).Error; err != nil {
				return fmt.Errorf("update lease: %w", err)
			}
			acquired = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release drops the lease if owner still holds it.
func (s *LeaseStore) Release(ctx context.Context, name, owner string) error {
	return database.WithRetry(ctx, func() error {
		err := s.db.Session(ctx).
			Where("name = ? AND owner = ?", name, owner).
			Delete(&LeaseEntity{}).Error
		if err != nil {
			return fmt.Errorf("release lease: %w", err)
		}
		return nil
	})
}
