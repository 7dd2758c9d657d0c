package interfaces

import (
	"context"

	"dealdrop/internal/models"
)

// AuditLogRepository is append-only.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	// ListForResource returns the newest entries first.
	ListForResource(ctx context.Context, resource, resourceID string, limit int) ([]*models.AuditLog, error)
}
