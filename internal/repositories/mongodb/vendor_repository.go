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

const vendorCacheTTL = 5 * time.Minute

type vendorRepository struct {
	collection *mongo.Collection
	cache      CacheService
}

func NewVendorRepository(db *mongo.Database, cache CacheService) interfaces.VendorRepository {
	return &vendorRepository{
		collection: db.Collection("vendors"),
		cache:      cache,
	}
}

func (r *vendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	vendor.ID = primitive.NewObjectID()
	vendor.CreatedAt = time.Now()
	vendor.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, vendor)
	return translateError(err, "create vendor")
}

func (r *vendorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Vendor, error) {
	if vendor := r.getVendorFromCache(ctx, id); vendor != nil {
		return vendor, nil
	}

	var vendor models.Vendor
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vendor); err != nil {
		return nil, translateError(err, "get vendor")
	}

	r.cacheVendor(ctx, &vendor)
	return &vendor, nil
}

func (r *vendorRepository) cacheVendor(ctx context.Context, vendor *models.Vendor) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, vendorCacheKey(vendor.ID), vendor, vendorCacheTTL)
}

func (r *vendorRepository) getVendorFromCache(ctx context.Context, id primitive.ObjectID) *models.Vendor {
	if r.cache == nil {
		return nil
	}

	var vendor models.Vendor
	if err := r.cache.Get(ctx, vendorCacheKey(id), &vendor); err != nil {
		return nil
	}
	return &vendor
}

func vendorCacheKey(id primitive.ObjectID) string {
	return fmt.Sprintf("vendor:%s", id.Hex())
}
