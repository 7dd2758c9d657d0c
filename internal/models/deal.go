package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DealStatus string

const (
	DealStatusDraft   DealStatus = "draft"
	DealStatusActive  DealStatus = "active"
	DealStatusPaused  DealStatus = "paused"
	DealStatusExpired DealStatus = "expired"
)

type Deal struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VendorID      primitive.ObjectID `json:"vendor_id" bson:"vendor_id" validate:"required"`
	Title         string             `json:"title" bson:"title" validate:"required,min=3,max=120"`
	Description   string             `json:"description" bson:"description"`
	ImageURL      string             `json:"image_url" bson:"image_url"`
	OriginalPrice float64            `json:"original_price" bson:"original_price" validate:"gte=0"`
	DealPrice     float64            `json:"deal_price" bson:"deal_price" validate:"gte=0"`
	DepositAmount *float64           `json:"deposit_amount" bson:"deposit_amount"`
	MaxClaims     *int               `json:"max_claims" bson:"max_claims"`
	ClaimsCount   int                `json:"claims_count" bson:"claims_count"`
	Status        DealStatus         `json:"status" bson:"status" validate:"required"`
	ExpiresAt     time.Time          `json:"expires_at" bson:"expires_at" validate:"required"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// RequiresDeposit reports whether customers must pay up front to claim.
func (d *Deal) RequiresDeposit() bool {
	return d.DepositAmount != nil && *d.DepositAmount > 0
}

func (d *Deal) Deposit() float64 {
	if !d.RequiresDeposit() {
		return 0
	}
	return *d.DepositAmount
}

// RemainingBalance is what the customer still owes the vendor at redemption.
func (d *Deal) RemainingBalance() float64 {
	remaining := d.DealPrice - d.Deposit()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (d *Deal) IsSoldOut() bool {
	return d.MaxClaims != nil && d.ClaimsCount >= *d.MaxClaims
}

func (d *Deal) IsExpiredAt(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
