package lease

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes key only if its current value still matches the
// token supplied by the caller, so a process can never release a lease it
// does not hold (e.g. one it previously held that has since expired and
// been re-acquired by someone else).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Redis is a Redis-backed lease. Acquisition is a single SET ... NX PX,
// which Redis guarantees atomic across all callers; release is a
// compare-and-delete Lua script guarding against releasing a foreign
// holder's lease.
type Redis struct {
	client *redis.Client

	// tokens remembers the random token this process used to acquire
	// each key it currently believes it holds, so Release can present it
	// to the compare-and-delete script.
	mu     sync.Mutex
	tokens map[string]string
}

// NewRedis constructs a lease backend over an existing Redis client. The
// caller owns the client's lifecycle beyond Close, which does not close
// the underlying client since it may be shared with other components
// (audit, queues).
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		tokens: make(map[string]string),
	}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := randomToken()
	if err != nil {
		return false, newBackendError("redis", err)
	}

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, newBackendError("redis", err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

func (r *Redis) Release(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	token, known := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()

	if !known {
		return false, nil
	}

	res, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		return false, newBackendError("redis", err)
	}
	return res == 1, nil
}

func (r *Redis) Close() error {
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lease token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
