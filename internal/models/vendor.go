package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethodType string

const (
	PaymentMethodStripe   PaymentMethodType = "stripe"
	PaymentMethodRazorpay PaymentMethodType = "razorpay"
	PaymentMethodVenmo    PaymentMethodType = "venmo"
	PaymentMethodCashApp  PaymentMethodType = "cashapp"
	PaymentMethodZelle    PaymentMethodType = "zelle"
	PaymentMethodPayPal   PaymentMethodType = "paypal"
	PaymentMethodLink     PaymentMethodType = "link"
)

type Vendor struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID         primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	BusinessName    string             `json:"business_name" bson:"business_name" validate:"required"`
	Phone           string             `json:"phone" bson:"phone"`
	Email           string             `json:"email" bson:"email"`
	PaymentSettings PaymentSettings    `json:"payment_settings" bson:"payment_settings"`
	IsActive        bool               `json:"is_active" bson:"is_active"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

type PaymentSettings struct {
	PrimaryMethod      PaymentMethodType     `json:"primary_method" bson:"primary_method"`
	Methods            []VendorPaymentMethod `json:"methods" bson:"methods"`
	IntegratedProvider string                `json:"integrated_provider" bson:"integrated_provider"`
	ConnectedAccountID string                `json:"connected_account_id" bson:"connected_account_id"`
	ChargesEnabled     bool                  `json:"charges_enabled" bson:"charges_enabled"`
	DetailsSubmitted   bool                  `json:"details_submitted" bson:"details_submitted"`
	PaymentLink        string                `json:"payment_link" bson:"payment_link"`
	LegacyPaymentLink  string                `json:"legacy_payment_link" bson:"legacy_payment_link"`
}

type VendorPaymentMethod struct {
	Type       PaymentMethodType `json:"type" bson:"type"`
	Handle     string            `json:"handle" bson:"handle"`
	URL        string            `json:"url" bson:"url"`
	Integrated bool              `json:"integrated" bson:"integrated"`
}

// IntegratedReady reports whether the vendor's connected account can take card payments.
func (p *PaymentSettings) IntegratedReady() bool {
	return p.ConnectedAccountID != "" && p.ChargesEnabled && p.DetailsSubmitted
}

func (p *PaymentSettings) Method(t PaymentMethodType) *VendorPaymentMethod {
	for i := range p.Methods {
		if p.Methods[i].Type == t {
			return &p.Methods[i]
		}
	}
	return nil
}

// ConfiguredLink returns the vendor's payment link, falling back to the legacy field.
func (p *PaymentSettings) ConfiguredLink() string {
	if p.PaymentLink != "" {
		return p.PaymentLink
	}
	return p.LegacyPaymentLink
}

func IsManualPaymentMethod(t PaymentMethodType) bool {
	switch t {
	case PaymentMethodVenmo, PaymentMethodCashApp, PaymentMethodZelle, PaymentMethodPayPal:
		return true
	}
	return false
}

// PrimaryIntegrated reports whether the vendor flagged their primary method
// for hosted checkout.
func (p *PaymentSettings) PrimaryIntegrated() bool {
	m := p.Method(p.PrimaryMethod)
	return m != nil && m.Integrated
}

// IntegratedProviderName is the checkout provider that serves the vendor's
// connected account.
func (p *PaymentSettings) IntegratedProviderName() string {
	if p.IntegratedProvider != "" {
		return p.IntegratedProvider
	}
	return string(p.PrimaryMethod)
}
