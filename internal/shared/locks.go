package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another request currently mutates the same entity.
var ErrLockHeld = errors.New("entity is being updated by another request")

// MutationLocker serializes concurrent writes to one entity. Two requests
// updating the same document's pending amount or status must not interleave.
type MutationLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMutationLocker constructs a locker with the given lock TTL.
func NewMutationLocker(client *redis.Client, ttl time.Duration) *MutationLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &MutationLocker{client: client, ttl: ttl}
}

// Acquire takes the per-entity lock, returning a release func. Callers must
// release within the TTL; the TTL bounds the damage of a crashed holder.
func (l *MutationLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		// Locker is optional wiring; single-node tests run without redis.
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.redisKey(key), token, l.ttl).Result()
	if err != nil {
		return nil, NewTransientError(err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// Only the holder may release; compare the token before deleting.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.Background(), script, []string{l.redisKey(key)}, token).Err()
	}
	return release, nil
}

// EntityLockKey builds the canonical lock key for an entity mutation.
func EntityLockKey(entity string, id int64) string {
	return fmt.Sprintf("%s:%d:mutation", entity, id)
}

func (l *MutationLocker) redisKey(key string) string {
	return "lock:" + key
}
