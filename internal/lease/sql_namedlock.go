package lease

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// maxNamedLockLength is the limit on MySQL's GET_LOCK name before the
// server itself truncates it silently; names are shortened before that
// point so truncation never happens.
const maxNamedLockLength = 64

// SQLNamedLock is a MySQL named-lock backend using GET_LOCK/RELEASE_LOCK.
// The ttl parameter is ignored: the lock is scoped to the connection that
// acquired it, so TTL-based exclusion is substituted by connection
// lifetime, same as the advisory backend on Postgres.
type SQLNamedLock struct {
	db     *gorm.DB
	prefix string
}

// NewSQLNamedLock constructs a backend over db, which must be a *gorm.DB
// opened with the mysql dialector. prefix is prepended to shortened names
// so collisions across namespaces remain visually distinguishable.
func NewSQLNamedLock(db *gorm.DB, prefix string) *SQLNamedLock {
	return &SQLNamedLock{db: db, prefix: prefix}
}

func (s *SQLNamedLock) Acquire(ctx context.Context, key string, _ time.Duration) (bool, error) {
	name := s.normalize(key)
	var result int
	err := s.db.WithContext(ctx).
		Raw("SELECT GET_LOCK(?, 0)", name).
		Scan(&result).Error
	if err != nil {
		return false, newBackendError("sql_namedlock", err)
	}
	return result == 1, nil
}

func (s *SQLNamedLock) Release(ctx context.Context, key string) (bool, error) {
	name := s.normalize(key)
	var result int
	err := s.db.WithContext(ctx).
		Raw("SELECT RELEASE_LOCK(?)", name).
		Scan(&result).Error
	if err != nil {
		return false, newBackendError("sql_namedlock", err)
	}
	return result == 1, nil
}

func (s *SQLNamedLock) Close() error {
	return nil
}

// normalize shortens key deterministically if it exceeds MySQL's 64-byte
// lock name limit, using the first 16 hex characters of its SHA-256 hash
// to avoid collisions between long keys that share a common prefix.
func (s *SQLNamedLock) normalize(key string) string {
	if len(key) <= maxNamedLockLength {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return s.prefix + ":" + hex.EncodeToString(sum[:])[:16]
}
