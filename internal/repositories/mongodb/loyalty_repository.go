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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type loyaltyRepository struct {
	programs     *mongo.Collection
	cards        *mongo.Collection
	transactions *mongo.Collection
}

func NewLoyaltyRepository(db *mongo.Database) interfaces.LoyaltyRepository {
	return &loyaltyRepository{
		programs:     db.Collection("loyalty_programs"),
		cards:        db.Collection("loyalty_cards"),
		transactions: db.Collection("loyalty_transactions"),
	}
}

func (r *loyaltyRepository) GetActiveProgram(ctx context.Context, vendorID primitive.ObjectID) (*models.LoyaltyProgram, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var program models.LoyaltyProgram
	err := r.programs.FindOne(ctx, bson.M{"vendor_id": vendorID, "is_active": true}, opts).Decode(&program)
	if err != nil {
		return nil, translateError(err, "get loyalty program")
	}
	return &program, nil
}

// FindOrCreateCard upserts the customer's card for the program. Two racing
// upserts can collide on the unique (program_id, customer_id) index; the
// loser re-reads the winner's card.
func (r *loyaltyRepository) FindOrCreateCard(ctx context.Context, program *models.LoyaltyProgram, customerID primitive.ObjectID) (*models.LoyaltyCard, error) {
	now := time.Now()
	filter := bson.M{"program_id": program.ID, "customer_id": customerID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":                  primitive.NewObjectID(),
		"vendor_id":            program.VendorID,
		"current_punches":      0,
		"total_punches_earned": 0,
		"current_points":       0,
		"total_points_earned":  0,
		"created_at":           now,
		"updated_at":           now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var card models.LoyaltyCard
	err := r.cards.FindOneAndUpdate(ctx, filter, update, opts).Decode(&card)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		err = r.cards.FindOne(ctx, filter).Decode(&card)
	}
	if err != nil {
		return nil, translateError(err, "find or create loyalty card")
	}
	return &card, nil
}

func (r *loyaltyRepository) IncrementCard(ctx context.Context, cardID primitive.ObjectID, punches, points int64, now time.Time) error {
	update := bson.M{
		"$inc": bson.M{
			"current_punches":      punches,
			"total_punches_earned": punches,
			"current_points":       points,
			"total_points_earned":  points,
		},
		"$set": bson.M{"last_activity_at": now, "updated_at": now},
	}

	result, err := r.cards.UpdateOne(ctx, bson.M{"_id": cardID}, update)
	if err != nil {
		return translateError(err, "increment loyalty card")
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("increment loyalty card: %w", interfaces.ErrNotFound)
	}
	return nil
}

func (r *loyaltyRepository) CreateTransaction(ctx context.Context, tx *models.LoyaltyTransaction) error {
	stamp(&tx.ID, &tx.CreatedAt)

	_, err := r.transactions.InsertOne(ctx, tx)
	return translateError(err, "create loyalty transaction")
}
