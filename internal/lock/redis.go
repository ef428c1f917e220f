package lock

import (
	"context"
	"log/slog"
	"time"

	"fitbuddy/backend/internal/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fitbuddy:lock:"

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance pointing at the same Redis.
// Holds expire after ttl so a crashed holder cannot block a key forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis locker.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
		logger: slog.Default(),
	}
}

// Lock implements Locker. Unlike a fail-fast SETNX it polls until the key is
// free so that a racing request observes the winner's result.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			r.logger.Error("Failed to acquire lock", "key", key, "error", err)
			return nil, apperror.ErrLockFailed.Wrap(err)
		}
		if ok {
			return func() {
				// Release must run even when the request context is gone.
				if err := releaseScript.Run(context.Background(), r.client, []string{redisKey}, token).Err(); err != nil {
					r.logger.Warn("Failed to release lock", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			r.logger.Warn("Lock wait exhausted", "key", key)
			return nil, apperror.ErrLockFailed.Wrap(ctx.Err())
		case <-time.After(r.retry):
		}
	}
}
