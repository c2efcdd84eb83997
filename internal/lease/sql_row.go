package lease

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jrjohn/railscron-go/internal/clock"
)

// LockRow is the persisted shape of one row-based lease, stored in
// rails_cron_locks with a unique constraint on Key.
type LockRow struct {
	ID        uint64 `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex;size:255"`
	AcquiredAt time.Time
	ExpiresAt  time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (LockRow) TableName() string {
	return "rails_cron_locks"
}

// SQLRow is a lease backend over any SQL dialect gorm supports (mysql,
// postgres, sqlite), using a row with a unique key constraint instead of
// a database-native lock primitive. Unlike the advisory and named-lock
// backends, this one enforces ttl itself: acquisition fails only while an
// un-expired row exists for the key.
type SQLRow struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewSQLRow constructs a row-based backend over db and c (used to compute
// acquired_at/expires_at and to judge staleness consistently with the
// rest of the process).
func NewSQLRow(db *gorm.DB, c clock.Clock) *SQLRow {
	return &SQLRow{db: db, clock: c}
}

// AutoMigrate creates or updates the backing table.
func (s *SQLRow) AutoMigrate() error {
	return s.db.AutoMigrate(&LockRow{})
}

// Acquire inserts a row for key. If the unique constraint rejects the
// insert, it prunes expired rows for this key and retries once: the
// retry is what lets an expired lease be reclaimed without an explicit
// release, matching the TTL semantics the other backends get for free.
func (s *SQLRow) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.insert(ctx, key, ttl)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	if err := s.pruneExpired(ctx, key); err != nil {
		return false, err
	}
	return s.insert(ctx, key, ttl)
}

func (s *SQLRow) insert(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()
	row := LockRow{
		Key:        key,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, newBackendError("sql_row", err)
}

func (s *SQLRow) pruneExpired(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at < ?", key, s.clock.Now()).
		Delete(&LockRow{}).Error
	if err != nil {
		return newBackendError("sql_row", err)
	}
	return nil
}

func (s *SQLRow) Release(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Where("key = ?", key).Delete(&LockRow{})
	if res.Error != nil {
		return false, newBackendError("sql_row", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLRow) Close() error {
	return nil
}

// isUniqueViolation reports whether err looks like a unique-constraint
// failure. gorm does not normalize this across dialects, so this checks
// for gorm's own duplicated-key sentinel plus the common driver-level
// substrings for mysql, postgres, and sqlite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{"Duplicate entry", "duplicate key value violates unique constraint", "UNIQUE constraint failed"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
