package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/razorpay/razorpay-go"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
	razorpayAccountHeader   = "X-Razorpay-Account"
)

type RazorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayProvider(keyID, keySecret, webhookSecret string) *RazorpayProvider {
	client := razorpay.NewClient(keyID, keySecret)

	return &RazorpayProvider{
		client:        client,
		webhookSecret: webhookSecret,
	}
}

func (r *RazorpayProvider) Name() string {
	return "razorpay"
}

type razorpayResult struct {
	body map[string]interface{}
	err  error
}

// CreateCheckoutSession creates a payment link on the vendor's linked account.
// The client library has no context support, so the call runs in its own
// goroutine and the caller stops waiting when ctx is done.
func (r *RazorpayProvider) CreateCheckoutSession(ctx context.Context, request *CheckoutRequest) (*CheckoutSession, error) {
	data := map[string]interface{}{
		"amount":          ToMinorUnits(request.Amount),
		"currency":        request.Currency,
		"description":     request.Description,
		"reference_id":    request.ClaimID,
		"expire_by":       request.ExpiresAt.Unix(),
		"callback_url":    request.SuccessURL,
		"callback_method": "get",
		"notes": map[string]interface{}{
			MetadataClaimID:      request.ClaimID,
			MetadataSessionToken: request.SessionToken,
		},
	}
	headers := map[string]string{razorpayAccountHeader: request.AccountID}

	done := make(chan razorpayResult, 1)
	go func() {
		body, err := r.client.PaymentLink.Create(data, headers)
		done <- razorpayResult{body: body, err: err}
	}()

	var res razorpayResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to create payment link: %w", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", res.err)
	}

	id, _ := res.body["id"].(string)
	url, _ := res.body["short_url"].(string)
	if id == "" || url == "" {
		return nil, fmt.Errorf("failed to create payment link: incomplete response")
	}

	expiresAt := request.ExpiresAt
	if v, ok := res.body["expire_by"].(float64); ok && v > 0 {
		expiresAt = time.Unix(int64(v), 0)
	}

	return &CheckoutSession{
		ID:        id,
		URL:       url,
		ExpiresAt: expiresAt,
	}, nil
}

type razorpayWebhook struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		PaymentLink struct {
			Entity struct {
				ID          string            `json:"id"`
				ReferenceID string            `json:"reference_id"`
				Status      string            `json:"status"`
				Notes       map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

func (r *RazorpayProvider) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error) {
	expectedSignature := r.generateSignature(payload)
	if !hmac.Equal([]byte(headers.Get(razorpaySignatureHeader)), []byte(expectedSignature)) {
		return nil, ErrInvalidSignature
	}

	var event razorpayWebhook
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	link := event.Payload.PaymentLink.Entity
	result := &WebhookEvent{
		EventID:   headers.Get(razorpayEventIDHeader),
		EventType: event.Event,
		Kind:      WebhookEventIgnored,
		CreatedAt: event.CreatedAt,
	}
	if result.EventID == "" {
		result.EventID = fmt.Sprintf("%s:%s", event.Event, link.ID)
	}

	switch event.Event {
	case "payment_link.paid":
		result.Kind = WebhookEventCompleted
	case "payment_link.expired", "payment_link.cancelled":
		result.Kind = WebhookEventExpired
	default:
		return result, nil
	}

	result.SessionID = link.ID
	result.ClaimID = link.Notes[MetadataClaimID]
	if result.ClaimID == "" {
		result.ClaimID = link.ReferenceID
	}
	result.SessionToken = link.Notes[MetadataSessionToken]
	return result, nil
}

func (r *RazorpayProvider) generateSignature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(r.webhookSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
