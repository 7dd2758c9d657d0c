package services

import (
	"context"
	"time"

	"dealdrop/pkg/cache"
)

// Locker guards claim intake for one (deal, customer) pair across replicas.
// *cache.RedisCache satisfies it.
type Locker interface {
	Lock(ctx context.Context, key string, expiration time.Duration) (*cache.DistributedLock, error)
	Unlock(ctx context.Context, lock *cache.DistributedLock) error
}

// EventDeduper remembers processed webhook deliveries. *cache.RedisCache
// satisfies it.
type EventDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
}

type clockFunc func() time.Time

func (c clockFunc) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
