package interfaces

import (
	"context"
	"time"

	"dealdrop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClaimStatusFilter string

const (
	ClaimFilterAll      ClaimStatusFilter = ""
	ClaimFilterActive   ClaimStatusFilter = "active"
	ClaimFilterExpired  ClaimStatusFilter = "expired"
	ClaimFilterRedeemed ClaimStatusFilter = "redeemed"
)

type ClaimRepository interface {
	// Create returns ErrDuplicateKey when a unique credential or reference collides.
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Claim, error)
	GetByRedemptionCode(ctx context.Context, code string) (*models.Claim, error)
	GetByQRCode(ctx context.Context, qrCode string) (*models.Claim, error)
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Claim, error)
	GetByPaymentReference(ctx context.Context, vendorID primitive.ObjectID, reference string) (*models.Claim, error)
	FindLiveClaim(ctx context.Context, dealID, customerID primitive.ObjectID, now time.Time) (*models.Claim, error)
	ListByCustomer(ctx context.Context, customerID primitive.ObjectID, filter ClaimStatusFilter, now time.Time, limit int) ([]*models.Claim, error)

	SetCheckoutSession(ctx context.Context, id primitive.ObjectID, sessionID string) error

	// Guarded transitions. Each returns ErrConflict when the claim is no longer
	// in the state the transition starts from.
	ConfirmWithCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials, now time.Time) error
	SetCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials) error
	SetQRCodeURL(ctx context.Context, id primitive.ObjectID, url string) error
	MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error
	// MarkCancelled returns the claim as it was before cancellation. With
	// unredeemedOnly set a redeemed claim is left alone and ErrConflict returned.
	MarkCancelled(ctx context.Context, id primitive.ObjectID, now time.Time, unredeemedOnly bool) (*models.Claim, error)

	UpdateExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Delete returns the removed claim.
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Claim, error)
	DeleteIfUnconfirmed(ctx context.Context, id primitive.ObjectID) (bool, error)
	FindAbandonedCheckouts(ctx context.Context, before time.Time, limit int) ([]*models.Claim, error)
}
