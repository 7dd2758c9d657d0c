package mongodb

import (
	"context"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type auditLogRepository struct {
	collection *mongo.Collection
}

func NewAuditLogRepository(db *mongo.Database) interfaces.AuditLogRepository {
	return &auditLogRepository{collection: db.Collection("audit_logs")}
}

// Create keeps an ID and timestamp the caller already assigned.
func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	stamp(&entry.ID, &entry.CreatedAt)
	_, err := r.collection.InsertOne(ctx, entry)
	return translateError(err, "create audit log")
}

func (r *auditLogRepository) ListForResource(ctx context.Context, resource, resourceID string, limit int) ([]*models.AuditLog, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"resource": resource, "resource_id": resourceID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, translateError(err, "list audit logs")
	}
	defer cursor.Close(ctx)

	entries := make([]*models.AuditLog, 0, limit)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, translateError(err, "decode audit logs")
	}
	return entries, nil
}
