package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "insight:cooldown:"

type cooldownValue struct {
	Phase     entity.CooldownPhase `json:"phase"`
	ArmedAt   time.Time            `json:"armedAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// CooldownStore uses SET NX as the test-and-set so that every instance
// agrees on a single trigger winner.
type CooldownStore struct {
	rdb *redis.Client
}

var _ contract.CooldownStore = (*CooldownStore)(nil)

func NewCooldownStore(rdb *redis.Client) *CooldownStore {
	return &CooldownStore{rdb: rdb}
}

func cooldownKey(sessionID string) string {
	return cooldownKeyPrefix + sessionID
}

func (s *CooldownStore) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	payload, err := json.Marshal(cooldownValue{
		Phase:     entity.CooldownArmed,
		ArmedAt:   now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, cooldownKey(sessionID), payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire cooldown %s: %w", sessionID, err)
	}
	return ok, nil
}

// markRunningScript swaps the marker only if it still holds the exact value
// the caller read, so a release and re-acquire in between is never clobbered.
var markRunningScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
return 1
`)

func (s *CooldownStore) MarkRunning(ctx context.Context, sessionID string) (bool, error) {
	raw, err := s.rdb.Get(ctx, cooldownKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get cooldown %s: %w", sessionID, err)
	}
	return s.swapRunning(ctx, sessionID, raw)
}

func (s *CooldownStore) swapRunning(ctx context.Context, sessionID string, raw []byte) (bool, error) {
	var v cooldownValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("decode cooldown %s: %w", sessionID, err)
	}
	if v.Phase != entity.CooldownArmed {
		return false, nil
	}

	v.Phase = entity.CooldownRunning
	payload, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	swapped, err := markRunningScript.Run(ctx, s.rdb, []string{cooldownKey(sessionID)}, raw, payload).Int()
	if err != nil {
		return false, fmt.Errorf("redis mark cooldown running %s: %w", sessionID, err)
	}
	return swapped == 1, nil
}

func (s *CooldownStore) Release(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, cooldownKey(sessionID)).Err()
}

func (s *CooldownStore) Get(ctx context.Context, sessionID string) (*entity.CooldownMarker, error) {
	raw, err := s.rdb.Get(ctx, cooldownKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cooldown %s: %w", sessionID, err)
	}

	var v cooldownValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode cooldown %s: %w", sessionID, err)
	}
	return &entity.CooldownMarker{
		SessionId: sessionID,
		Phase:     v.Phase,
		ArmedAt:   v.ArmedAt,
		ExpiresAt: v.ExpiresAt,
	}, nil
}

// Sweep is a no-op: keys carry the cooldown ceiling as their TTL.
func (s *CooldownStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
