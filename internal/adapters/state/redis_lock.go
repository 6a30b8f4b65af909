package state

import (
	"context"
	"fleet-routing-service/internal/platform/obs"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// releaseLock deletes the lock only while it still carries the caller's token,
// so a holder whose lease expired cannot free someone else's lock.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTripLocker is a per-trip lease (SET NX PX) shared by every instance
// consuming the same position feed. A crashed holder blocks the trip for at
// most one lease.
type RedisTripLocker struct {
	client *redis.Client
	lease  time.Duration
}

func NewRedisTripLocker(client *redis.Client, lease time.Duration) *RedisTripLocker {
	if lease <= 0 {
		lease = 5 * time.Second
	}
	return &RedisTripLocker{client: client, lease: lease}
}

func lockKey(tripID string) string { return "proximity:lock:" + tripID }

func (l *RedisTripLocker) Lock(ctx context.Context, tripID string) (func(), error) {
	key := lockKey(tripID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("lock trip %q: %w", tripID, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock trip %q: %w", tripID, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		// Released even when ctx was cancelled while the lock was held.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		if err := releaseLock.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			slog.WarnContext(ctx, "trip lock release failed",
				"req_id", obs.RequestID(ctx), "trip_id", tripID, "error", err)
		}
	}, nil
}
