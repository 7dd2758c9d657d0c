package payment

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

const (
	MetadataClaimID      = "claim_id"
	MetadataSessionToken = "session_token"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// CheckoutProvider opens hosted checkouts on a vendor's connected account
// and turns the provider's webhook deliveries into WebhookEvents.
type CheckoutProvider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, request *CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error)
}

type CheckoutRequest struct {
	AccountID    string    `json:"account_id"`
	ClaimID      string    `json:"claim_id"`
	SessionToken string    `json:"session_token"`
	CustomerID   string    `json:"customer_id"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	SuccessURL   string    `json:"success_url"`
	CancelURL    string    `json:"cancel_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type CheckoutSession struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type WebhookEventKind string

const (
	WebhookEventCompleted WebhookEventKind = "completed"
	WebhookEventExpired   WebhookEventKind = "expired"
	WebhookEventIgnored   WebhookEventKind = "ignored"
)

type WebhookEvent struct {
	EventID      string           `json:"event_id"`
	EventType    string           `json:"event_type"`
	Kind         WebhookEventKind `json:"kind"`
	SessionID    string           `json:"session_id"`
	ClaimID      string           `json:"claim_id"`
	SessionToken string           `json:"session_token"`
	CreatedAt    int64            `json:"created_at"`
}

// ToMinorUnits converts a decimal amount to cents or paise.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
