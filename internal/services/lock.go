package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrSweepInProgress is returned when another sweep holds the lease
var ErrSweepInProgress = &Error{Kind: KindInvalidState, Message: "A cleanup run is already in progress"}

// Locker grants a single-flight lease. ok is false when someone else holds
// it; unlock must be called exactly once when ok is true.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// LocalLocker serializes sweeps within one process
type LocalLocker struct {
	mu sync.Mutex
}

// TryLock takes the lease without waiting
func (l *LocalLocker) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes sweeps across every instance sharing a Redis.
// The lease expires after ttl if its holder dies.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a lease on key
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// TryLock sets the key if absent with a random owner token
func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			log.Error().Err(err).Str("key", l.key).Msg("Failed to release sweep lease")
		}
	}
	return unlock, true, nil
}
