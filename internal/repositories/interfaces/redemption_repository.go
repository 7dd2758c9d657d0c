package interfaces

import (
	"context"

	"dealdrop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RedemptionRepository interface {
	// Create returns ErrDuplicateKey when the claim already has a redemption.
	Create(ctx context.Context, redemption *models.Redemption) error
	GetByClaimID(ctx context.Context, claimID primitive.ObjectID) (*models.Redemption, error)
	ListByVendor(ctx context.Context, vendorID primitive.ObjectID, limit int) ([]*models.Redemption, error)
}
