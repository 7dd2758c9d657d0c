package interfaces

import (
	"context"
	"time"

	"dealdrop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoyaltyRepository interface {
	GetActiveProgram(ctx context.Context, vendorID primitive.ObjectID) (*models.LoyaltyProgram, error)
	FindOrCreateCard(ctx context.Context, program *models.LoyaltyProgram, customerID primitive.ObjectID) (*models.LoyaltyCard, error)
	IncrementCard(ctx context.Context, cardID primitive.ObjectID, punches, points int64, now time.Time) error
	// CreateTransaction returns ErrDuplicateKey when the redemption was already awarded.
	CreateTransaction(ctx context.Context, tx *models.LoyaltyTransaction) error
}
