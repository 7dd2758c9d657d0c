package mongodb

import (
	"context"
	"fmt"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type redemptionRepository struct {
	collection *mongo.Collection
}

func NewRedemptionRepository(db *mongo.Database) interfaces.RedemptionRepository {
	return &redemptionRepository{
		collection: db.Collection("redemptions"),
	}
}

func (r *redemptionRepository) Create(ctx context.Context, redemption *models.Redemption) error {
	stamp(&redemption.ID, &redemption.CreatedAt)

	_, err := r.collection.InsertOne(ctx, redemption)
	return translateError(err, "create redemption")
}

func (r *redemptionRepository) GetByClaimID(ctx context.Context, claimID primitive.ObjectID) (*models.Redemption, error) {
	var redemption models.Redemption
	if err := r.collection.FindOne(ctx, bson.M{"claim_id": claimID}).Decode(&redemption); err != nil {
		return nil, translateError(err, "get redemption")
	}
	return &redemption, nil
}

func (r *redemptionRepository) ListByVendor(ctx context.Context, vendorID primitive.ObjectID, limit int) ([]*models.Redemption, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "redeemed_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"vendor_id": vendorID}, opts)
	if err != nil {
		return nil, translateError(err, "list redemptions")
	}
	defer cursor.Close(ctx)

	var redemptions []*models.Redemption
	if err := cursor.All(ctx, &redemptions); err != nil {
		return nil, fmt.Errorf("failed to decode redemptions: %w", err)
	}
	return redemptions, nil
}
