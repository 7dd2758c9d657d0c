package mongodb

import (
	"context"
	"fmt"
	"time"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type dealRepository struct {
	collection *mongo.Collection
}

func NewDealRepository(db *mongo.Database) interfaces.DealRepository {
	return &dealRepository{
		collection: db.Collection("deals"),
	}
}

func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) error {
	deal.ID = primitive.NewObjectID()
	deal.CreatedAt = time.Now()
	deal.UpdatedAt = time.Now()
	if deal.Status == "" {
		deal.Status = models.DealStatusActive
	}

	_, err := r.collection.InsertOne(ctx, deal)
	return translateError(err, "create deal")
}

func (r *dealRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Deal, error) {
	var deal models.Deal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&deal)
	if err != nil {
		return nil, translateError(err, "get deal")
	}
	return &deal, nil
}

func (r *dealRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return translateError(err, "update deal")
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("update deal: %w", interfaces.ErrNotFound)
	}
	return nil
}

// IncrementClaimsCount bumps the counter only while it is below max_claims,
// so concurrent confirmations can never oversell.
func (r *dealRepository) IncrementClaimsCount(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"max_claims": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$claims_count", "$max_claims"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"claims_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return translateError(err, "increment claims count")
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("increment claims count: %w", interfaces.ErrConflict)
	}
	return nil
}

func (r *dealRepository) DecrementClaimsCount(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "claims_count": bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{"claims_count": -1},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return translateError(err, "decrement claims count")
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("decrement claims count: %w", interfaces.ErrConflict)
	}
	return nil
}

func (r *dealRepository) ExpirePastDeals(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":     bson.M{"$in": bson.A{models.DealStatusActive, models.DealStatusPaused}},
		"expires_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{"status": models.DealStatusExpired, "updated_at": now}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, translateError(err, "expire deals")
	}
	return result.ModifiedCount, nil
}
