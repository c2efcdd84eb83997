package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the default retention for a Redis dispatch record. Records
// simply expire; there is no separate Cleanup pass for this backend.
const DefaultTTL = 7 * 24 * time.Hour

// Redis is a Redis-backed audit backend: one key per dispatch record,
// storing a JSON-encoded Record with a TTL. Expiration is the cleanup
// mechanism, so Cleanup is a no-op here.
type Redis struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedis constructs a backend over client, keying records under
// namespace and expiring them after ttl (DefaultTTL if zero).
func NewRedis(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) key(jobKey string, firingInstant time.Time) string {
	return fmt.Sprintf("%s:cron_dispatch:%s:%d", r.namespace, jobKey, firingInstant.Unix())
}

func (r *Redis) Log(ctx context.Context, jobKey string, firingInstant time.Time, nodeID string, status Status) error {
	rec := Record{
		JobKey:        jobKey,
		FiringInstant: firingInstant,
		NodeID:        nodeID,
		Status:        status,
		DispatchedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dispatch record: %w", err)
	}
	return r.client.Set(ctx, r.key(jobKey, firingInstant), payload, r.ttl).Err()
}

func (r *Redis) Find(ctx context.Context, jobKey string, firingInstant time.Time) (*Record, bool, error) {
	payload, err := r.client.Get(ctx, r.key(jobKey, firingInstant)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal dispatch record: %w", err)
	}
	return &rec, true, nil
}

func (r *Redis) Dispatched(ctx context.Context, jobKey string, firingInstant time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jobKey, firingInstant)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cleanup is a no-op: expiry already reclaims stale records.
func (r *Redis) Cleanup(_ context.Context, _ time.Duration) error {
	return nil
}

func (r *Redis) Close() error {
	return nil
}
