package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("cache: lock is held by another owner")

// DistributedLock is a token-fenced lease. It expires on its own if the
// holder dies before Unlock.
type DistributedLock struct {
	Key        string
	Token      string
	Expiration time.Duration
	AcquiredAt time.Time
}

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken by another owner is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock does not wait. Callers that lose get ErrLockNotAcquired.
func (r *RedisCache) Lock(ctx context.Context, name string, expiration time.Duration) (*DistributedLock, error) {
	lock := &DistributedLock{
		Key:        r.key("lock:" + name),
		Token:      uuid.NewString(),
		Expiration: expiration,
		AcquiredAt: time.Now(),
	}
	ok, err := r.client.SetNX(ctx, lock.Key, lock.Token, expiration).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

func (r *RedisCache) Unlock(ctx context.Context, lock *DistributedLock) error {
	if lock == nil {
		return nil
	}
	return releaseScript.Run(ctx, r.client, []string{lock.Key}, lock.Token).Err()
}

// Seen reports whether a processed-event marker exists for key.
func (r *RedisCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key("seen:"+key)).Result()
	return n > 0, err
}

// Remember records key as processed for ttl.
func (r *RedisCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key("seen:"+key), time.Now().Unix(), ttl).Err()
}
