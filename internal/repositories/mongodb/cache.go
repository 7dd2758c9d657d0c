package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealdrop/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CacheService is the read-through cache some repositories consult before Mongo.
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// translateError maps driver errors onto the repository sentinels.
func translateError(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", action, interfaces.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", action, interfaces.ErrDuplicateKey, err)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

// stamp fills in an ID and creation time the caller left unset. Services
// assign both from their own clock before writing.
func stamp(id *primitive.ObjectID, createdAt *time.Time) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
