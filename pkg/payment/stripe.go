package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeProvider{
		client:        sc,
		webhookSecret: webhookSecret,
	}
}

func (s *StripeProvider) Name() string {
	return "stripe"
}

// CreateCheckoutSession opens a Checkout Session on the vendor's connected
// account so the deposit settles directly with the vendor.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, request *CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(request.Currency),
					UnitAmount: stripe.Int64(ToMinorUnits(request.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(request.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(request.SuccessURL),
		CancelURL:         stripe.String(request.CancelURL),
		ClientReferenceID: stripe.String(request.SessionToken),
		ExpiresAt:         stripe.Int64(request.ExpiresAt.Unix()),
	}
	params.Context = ctx
	params.SetStripeAccount(request.AccountID)
	params.AddMetadata(MetadataClaimID, request.ClaimID)
	params.AddMetadata(MetadataSessionToken, request.SessionToken)

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{
		ID:        session.ID,
		URL:       session.URL,
		ExpiresAt: time.Unix(session.ExpiresAt, 0),
	}, nil
}

func (s *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(stripeSignatureHeader), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		Kind:      WebhookEventIgnored,
		CreatedAt: event.Created,
	}

	var kind WebhookEventKind
	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		kind = WebhookEventCompleted
	case "checkout.session.expired":
		kind = WebhookEventExpired
	default:
		return result, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	// Delayed payment methods complete the session before the money moves;
	// those are confirmed by the async_payment_succeeded event instead.
	if kind == WebhookEventCompleted && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return result, nil
	}

	result.Kind = kind
	result.SessionID = session.ID
	result.ClaimID = session.Metadata[MetadataClaimID]
	result.SessionToken = session.Metadata[MetadataSessionToken]
	if result.SessionToken == "" {
		result.SessionToken = session.ClientReferenceID
	}
	return result, nil
}
