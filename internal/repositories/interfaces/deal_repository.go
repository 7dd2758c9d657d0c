package interfaces

import (
	"context"
	"time"

	"dealdrop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Deal, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Capacity counter. IncrementClaimsCount returns ErrConflict when the deal
	// is already at max_claims.
	IncrementClaimsCount(ctx context.Context, id primitive.ObjectID) error
	DecrementClaimsCount(ctx context.Context, id primitive.ObjectID) error

	ExpirePastDeals(ctx context.Context, now time.Time) (int64, error)
}
