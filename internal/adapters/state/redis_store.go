package state

import (
	"context"
	"encoding/json"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per trip: field = stop id, value = JSON state.
// Every save refreshes the hash TTL so abandoned trips expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func tripKey(tripID string) string { return "proximity:trip:" + tripID }

func (s *RedisStore) Load(ctx context.Context, tripID string) (_ map[string]domain.ProximityState, err error) {
	defer obs.Time(ctx, "proximity.store.Load")(&err)

	fields, err := s.client.HGetAll(ctx, tripKey(tripID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load proximity states trip=%q: %w", tripID, err)
	}

	out := make(map[string]domain.ProximityState, len(fields))
	for stopID, raw := range fields {
		var st domain.ProximityState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("load proximity states trip=%q stop=%q: decode: %w", tripID, stopID, err)
		}
		out[stopID] = st
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, tripID string, states []domain.ProximityState) (err error) {
	defer obs.Time(ctx, "proximity.store.Save")(&err)

	if len(states) == 0 {
		return nil
	}

	values := make([]any, 0, 2*len(states))
	for _, st := range states {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("save proximity states trip=%q: encode: %w", tripID, err)
		}
		values = append(values, st.StopID, data)
	}

	key := tripKey(tripID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save proximity states trip=%q: %w", tripID, err)
	}
	return nil
}

func (s *RedisStore) DeleteTrip(ctx context.Context, tripID string) error {
	if err := s.client.Del(ctx, tripKey(tripID)).Err(); err != nil {
		return fmt.Errorf("delete proximity states trip=%q: %w", tripID, err)
	}
	return nil
}
