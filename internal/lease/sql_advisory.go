package lease

import (
	"context"
	"hash/fnv"
	"time"

	"gorm.io/gorm"
)

// SQLAdvisory is a Postgres advisory-lock backend. The ttl parameter is
// ignored: the lease lives until the underlying connection is closed or
// the process explicitly unlocks it, so the coordinator's TTL-based
// exclusion is substituted by connection-lifetime exclusion.
type SQLAdvisory struct {
	db *gorm.DB
}

// NewSQLAdvisory constructs a backend over db, which must be a
// *gorm.DB opened with the postgres dialector.
func NewSQLAdvisory(db *gorm.DB) *SQLAdvisory {
	return &SQLAdvisory{db: db}
}

func (s *SQLAdvisory) Acquire(ctx context.Context, key string, _ time.Duration) (bool, error) {
	var acquired bool
	err := s.db.WithContext(ctx).
		Raw("SELECT pg_try_advisory_lock(?)", advisoryKeyHash(key)).
		Scan(&acquired).Error
	if err != nil {
		return false, newBackendError("sql_advisory", err)
	}
	return acquired, nil
}

func (s *SQLAdvisory) Release(ctx context.Context, key string) (bool, error) {
	var released bool
	err := s.db.WithContext(ctx).
		Raw("SELECT pg_advisory_unlock(?)", advisoryKeyHash(key)).
		Scan(&released).Error
	if err != nil {
		return false, newBackendError("sql_advisory", err)
	}
	return released, nil
}

func (s *SQLAdvisory) Close() error {
	return nil
}

// advisoryKeyHash maps a lock key to the signed 64-bit integer Postgres's
// advisory lock functions take. FNV-1a gives a uniform, fast, stable hash;
// collisions merely over-serialize two unrelated keys, which is safe.
func advisoryKeyHash(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
