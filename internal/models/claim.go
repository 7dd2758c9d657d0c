package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentTier string

const (
	PaymentTierNone       PaymentTier = "none"
	PaymentTierIntegrated PaymentTier = "integrated"
	PaymentTierManual     PaymentTier = "manual"
	PaymentTierLink       PaymentTier = "link"
)

type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending_payment"
	ClaimStatusActive    ClaimStatus = "active"
	ClaimStatusRedeemed  ClaimStatus = "redeemed"
	ClaimStatusExpired   ClaimStatus = "expired"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

type Claim struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DealID             primitive.ObjectID `json:"deal_id" bson:"deal_id"`
	VendorID           primitive.ObjectID `json:"vendor_id" bson:"vendor_id"`
	CustomerID         primitive.ObjectID `json:"customer_id" bson:"customer_id"`
	SessionToken       string             `json:"session_token" bson:"session_token"`
	PaymentTier        PaymentTier        `json:"payment_tier" bson:"payment_tier"`
	PaymentMethodType  string             `json:"payment_method_type,omitempty" bson:"payment_method_type,omitempty"`
	PaymentReference   string             `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	CheckoutSessionID  string             `json:"checkout_session_id,omitempty" bson:"checkout_session_id,omitempty"`
	CheckoutExpiresAt  *time.Time         `json:"checkout_expires_at,omitempty" bson:"checkout_expires_at,omitempty"`
	DepositAmount      float64            `json:"deposit_amount" bson:"deposit_amount"`
	DepositConfirmed   bool               `json:"deposit_confirmed" bson:"deposit_confirmed"`
	DepositConfirmedAt *time.Time         `json:"deposit_confirmed_at,omitempty" bson:"deposit_confirmed_at,omitempty"`
	QRCode             string             `json:"qr_code,omitempty" bson:"qr_code,omitempty"`
	QRCodeURL          string             `json:"qr_code_url,omitempty" bson:"qr_code_url,omitempty"`
	RedemptionCode     string             `json:"redemption_code,omitempty" bson:"redemption_code,omitempty"`
	Redeemed           bool               `json:"redeemed" bson:"redeemed"`
	RedeemedAt         *time.Time         `json:"redeemed_at" bson:"redeemed_at"`
	CancelledAt        *time.Time         `json:"cancelled_at" bson:"cancelled_at"`
	AdminNotes         string             `json:"admin_notes,omitempty" bson:"admin_notes,omitempty"`
	ExpiresAt          time.Time          `json:"expires_at" bson:"expires_at"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// Credentials are the redemption secrets issued once a claim is confirmed.
type Credentials struct {
	QRCode         string `json:"qr_code" bson:"qr_code"`
	RedemptionCode string `json:"redemption_code" bson:"redemption_code"`
}

func (c *Claim) HasCredentials() bool {
	return c.RedemptionCode != "" && c.QRCode != ""
}

func (c *Claim) IsCancelled() bool {
	return c.CancelledAt != nil
}

func (c *Claim) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsLive reports whether the claim still blocks the customer from claiming the same deal again.
func (c *Claim) IsLive(now time.Time) bool {
	return !c.Redeemed && !c.IsCancelled() && !c.IsExpiredAt(now)
}

func (c *Claim) StatusAt(now time.Time) ClaimStatus {
	switch {
	case c.IsCancelled():
		return ClaimStatusCancelled
	case c.Redeemed:
		return ClaimStatusRedeemed
	case c.IsExpiredAt(now):
		return ClaimStatusExpired
	case !c.DepositConfirmed:
		return ClaimStatusPending
	default:
		return ClaimStatusActive
	}
}
