package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("resource lock not acquired")
)

// Locker guards the check-then-write section of a booking. Keys are the
// resources the booking occupies (doctor, room).
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// DoctorKey and RoomKey build the lock keys of a booking.
func DoctorKey(id uuid.UUID) string { return "lock:doctor:" + id.String() }
func RoomKey(id uuid.UUID) string   { return "lock:room:" + id.String() }

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker that holds one Redis key per resource.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = dedupeSorted(keys)
	token := uuid.NewString()

	// Keys are taken in sorted order so two bookings sharing a doctor and a
	// room never wait on each other in opposite order.
	acquired := make([]string, 0, len(keys))
	defer func() {
		for _, key := range acquired {
			_ = l.release(context.WithoutCancel(ctx), key, token)
		}
	}()

	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		acquired = append(acquired, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NoopLocker runs fn directly. Used when Redis is not configured; the
// storage exclusion constraint still rejects overlapping rows.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
