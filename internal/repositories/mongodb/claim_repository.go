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

type claimRepository struct {
	collection *mongo.Collection
}

func NewClaimRepository(db *mongo.Database) interfaces.ClaimRepository {
	return &claimRepository{
		collection: db.Collection("claims"),
	}
}

// Create keeps an ID and timestamps the caller already assigned.
func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) error {
	stamp(&claim.ID, &claim.CreatedAt)
	if claim.UpdatedAt.IsZero() {
		claim.UpdatedAt = claim.CreatedAt
	}

	_, err := r.collection.InsertOne(ctx, claim)
	return translateError(err, "create claim")
}

func (r *claimRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "get claim")
}

func (r *claimRepository) GetByRedemptionCode(ctx context.Context, code string) (*models.Claim, error) {
	return r.findOne(ctx, bson.M{"redemption_code": code}, "get claim by redemption code")
}

func (r *claimRepository) GetByQRCode(ctx context.Context, qrCode string) (*models.Claim, error) {
	return r.findOne(ctx, bson.M{"qr_code": qrCode}, "get claim by qr code")
}

func (r *claimRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Claim, error) {
	return r.findOne(ctx, bson.M{"checkout_session_id": sessionID}, "get claim by checkout session")
}

func (r *claimRepository) GetByPaymentReference(ctx context.Context, vendorID primitive.ObjectID, reference string) (*models.Claim, error) {
	return r.findOne(ctx, bson.M{"vendor_id": vendorID, "payment_reference": reference}, "get claim by payment reference")
}

func (r *claimRepository) FindLiveClaim(ctx context.Context, dealID, customerID primitive.ObjectID, now time.Time) (*models.Claim, error) {
	filter := bson.M{
		"deal_id":      dealID,
		"customer_id":  customerID,
		"redeemed":     false,
		"cancelled_at": nil,
		"expires_at":   bson.M{"$gt": now},
	}
	return r.findOne(ctx, filter, "find live claim")
}

func (r *claimRepository) ListByCustomer(ctx context.Context, customerID primitive.ObjectID, filter interfaces.ClaimStatusFilter, now time.Time, limit int) ([]*models.Claim, error) {
	query := bson.M{"customer_id": customerID}
	switch filter {
	case interfaces.ClaimFilterActive:
		query["redeemed"] = false
		query["cancelled_at"] = nil
		query["expires_at"] = bson.M{"$gt": now}
	case interfaces.ClaimFilterExpired:
		query["redeemed"] = false
		query["cancelled_at"] = nil
		query["expires_at"] = bson.M{"$lte": now}
	case interfaces.ClaimFilterRedeemed:
		query["redeemed"] = true
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, translateError(err, "list claims")
	}
	defer cursor.Close(ctx)

	var claims []*models.Claim
	if err := cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return claims, nil
}

func (r *claimRepository) SetCheckoutSession(ctx context.Context, id primitive.ObjectID, sessionID string) error {
	return r.guardedUpdate(ctx, bson.M{"_id": id}, bson.M{"checkout_session_id": sessionID}, "set checkout session")
}

func (r *claimRepository) ConfirmWithCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials, now time.Time) error {
	filter := bson.M{
		"_id":               id,
		"deposit_confirmed": false,
		"cancelled_at":      nil,
	}
	set := bson.M{
		"deposit_confirmed":    true,
		"deposit_confirmed_at": now,
		"qr_code":              creds.QRCode,
		"redemption_code":      creds.RedemptionCode,
	}
	return r.guardedUpdate(ctx, filter, set, "confirm claim")
}

func (r *claimRepository) SetCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials) error {
	filter := bson.M{
		"_id":               id,
		"deposit_confirmed": true,
		"cancelled_at":      nil,
		"redemption_code":   bson.M{"$exists": false},
	}
	set := bson.M{
		"qr_code":         creds.QRCode,
		"redemption_code": creds.RedemptionCode,
	}
	return r.guardedUpdate(ctx, filter, set, "set claim credentials")
}

func (r *claimRepository) SetQRCodeURL(ctx context.Context, id primitive.ObjectID, url string) error {
	filter := bson.M{
		"_id":         id,
		"qr_code_url": bson.M{"$in": bson.A{nil, ""}},
	}
	return r.guardedUpdate(ctx, filter, bson.M{"qr_code_url": url}, "set qr code url")
}

func (r *claimRepository) MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	filter := bson.M{
		"_id":          id,
		"redeemed":     false,
		"cancelled_at": nil,
	}
	return r.guardedUpdate(ctx, filter, bson.M{"redeemed": true, "redeemed_at": now}, "mark claim redeemed")
}

func (r *claimRepository) MarkCancelled(ctx context.Context, id primitive.ObjectID, now time.Time, unredeemedOnly bool) (*models.Claim, error) {
	filter := cancelFilter(id, unredeemedOnly)
	update := bson.M{"$set": bson.M{
		"cancelled_at": now,
		"redeemed":     false,
		"redeemed_at":  nil,
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Claim
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("cancel claim: %w", interfaces.ErrConflict)
		}
		return nil, translateError(err, "cancel claim")
	}
	return &before, nil
}

func cancelFilter(id primitive.ObjectID, unredeemedOnly bool) bson.M {
	filter := bson.M{"_id": id, "cancelled_at": nil}
	if unredeemedOnly {
		filter["redeemed"] = false
	}
	return filter
}

func (r *claimRepository) UpdateExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error {
	return r.guardedUpdate(ctx, bson.M{"_id": id}, bson.M{"expires_at": expiresAt}, "update claim expiry")
}

func (r *claimRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	set := bson.M{}
	for k, v := range updates {
		set[k] = v
	}
	return r.guardedUpdate(ctx, bson.M{"_id": id}, set, "update claim")
}

func (r *claimRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	var deleted models.Claim
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if err != nil {
		return nil, translateError(err, "delete claim")
	}
	return &deleted, nil
}

func (r *claimRepository) DeleteIfUnconfirmed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "deposit_confirmed": false})
	if err != nil {
		return false, translateError(err, "delete unconfirmed claim")
	}
	return result.DeletedCount > 0, nil
}

func (r *claimRepository) FindAbandonedCheckouts(ctx context.Context, before time.Time, limit int) ([]*models.Claim, error) {
	filter := bson.M{
		"payment_tier":        models.PaymentTierIntegrated,
		"deposit_confirmed":   false,
		"checkout_expires_at": bson.M{"$lt": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "checkout_expires_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, translateError(err, "find abandoned checkouts")
	}
	defer cursor.Close(ctx)

	var claims []*models.Claim
	if err := cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return claims, nil
}

func (r *claimRepository) findOne(ctx context.Context, filter bson.M, action string) (*models.Claim, error) {
	var claim models.Claim
	if err := r.collection.FindOne(ctx, filter).Decode(&claim); err != nil {
		return nil, translateError(err, action)
	}
	return &claim, nil
}

// guardedUpdate applies set when filter still matches and reports
// ErrConflict when it no longer does.
func (r *claimRepository) guardedUpdate(ctx context.Context, filter, set bson.M, action string) error {
	set["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return translateError(err, action)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", action, interfaces.ErrConflict)
	}
	return nil
}
