package utils

import "time"

// Application Constants
const (
	AppName = "DealDrop"

	DefaultCurrency    = "USD"
	DefaultCountryCode = "+1"

	// Authentication
	JWTClockSkew = 30 * time.Second

	// Credentials
	RedemptionCodeLength   = 6
	PaymentReferenceLength = 6

	// Lists
	MaxClaimListSize      = 100
	MaxRedemptionListSize = 50
	MaxAuditHistorySize   = 50
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrNotFound         = "not found"
	ErrConflict         = "conflict"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheClaimLockPrefix = "claim:"
	CacheWebhookPrefix   = "webhook:"
)

// Event Types
const (
	EventClaimCreated      = "claim_created"
	EventClaimCancelled    = "claim_cancelled"
	EventClaimDeleted      = "claim_deleted"
	EventDepositConfirmed  = "deposit_confirmed"
	EventCredentialsIssued = "credentials_issued"
	EventCheckoutOpened    = "checkout_opened"
	EventCheckoutFailed    = "checkout_failed"
	EventCheckoutExpired   = "checkout_expired"
	EventClaimRedeemed     = "claim_redeemed"
	EventLoyaltyAwarded    = "loyalty_awarded"
)

// Payment reference alphabet. Ambiguous glyphs (0/O, 1/I/L) are left out so
// references read back cleanly from a payment note.
const paymentReferenceAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
