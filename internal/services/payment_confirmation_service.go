package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"dealdrop/internal/config"
	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/payment"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentConfirmationService finalises integrated-tier claims from checkout
// provider webhooks. Deliveries are at least once; handling an event twice
// has the same effect as handling it once.
type PaymentConfirmationService interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
	HandleEvent(ctx context.Context, provider string, event *payment.WebhookEvent) error
}

type paymentConfirmationService struct {
	claimRepo interfaces.ClaimRepository
	issuer    CredentialIssuer
	providers CheckoutProviders
	deduper   EventDeduper
	cfg       *config.ClaimsConfig
	logger    *logger.Logger
}

// NewPaymentConfirmationService builds the webhook handler. deduper may be
// nil; the guarded writes keep redeliveries harmless without it.
func NewPaymentConfirmationService(
	claimRepo interfaces.ClaimRepository,
	issuer CredentialIssuer,
	providers CheckoutProviders,
	deduper EventDeduper,
	cfg *config.ClaimsConfig,
	log *logger.Logger,
) PaymentConfirmationService {
	return &paymentConfirmationService{
		claimRepo: claimRepo,
		issuer:    issuer,
		providers: providers,
		deduper:   deduper,
		cfg:       cfg,
		logger:    log,
	}
}

func (s *paymentConfirmationService) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	p, ok := s.providers[provider]
	if !ok {
		return ErrUnknownProvider
	}

	event, err := p.ParseWebhook(ctx, payload, headers)
	if errors.Is(err, payment.ErrInvalidSignature) {
		s.logger.LogSecurityEvent("webhook_signature_invalid", "medium", map[string]interface{}{"provider": provider})
		return ErrInvalidSignature.Wrap(err)
	}
	if err != nil {
		return ErrInvalidWebhook.Wrap(err)
	}
	return s.HandleEvent(ctx, provider, event)
}

func (s *paymentConfirmationService) HandleEvent(ctx context.Context, provider string, event *payment.WebhookEvent) error {
	log := s.logger.WithFields(map[string]interface{}{
		"provider":   provider,
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"session_id": event.SessionID,
	})

	if event.Kind == payment.WebhookEventIgnored {
		log.Debug("Ignoring webhook event")
		return nil
	}

	markerKey := utils.CacheWebhookPrefix + provider + ":" + event.EventID
	if s.alreadyProcessed(ctx, markerKey, event) {
		log.Debug("Webhook event already processed")
		return nil
	}

	var err error
	switch event.Kind {
	case payment.WebhookEventCompleted:
		err = s.complete(ctx, provider, event, log)
	case payment.WebhookEventExpired:
		err = s.expire(ctx, event, log)
	default:
		log.Warn("Unhandled webhook event kind")
		return nil
	}
	if err != nil {
		return err
	}

	s.remember(ctx, markerKey, event, log)
	return nil
}

func (s *paymentConfirmationService) complete(ctx context.Context, provider string, event *payment.WebhookEvent, log *logger.Logger) error {
	claim, err := s.findClaim(ctx, event)
	if errors.Is(err, ErrClaimNotFound) {
		log.Warn("Payment completed for unknown claim")
		return nil
	}
	if err != nil {
		return err
	}
	log = log.WithClaimID(claim.ID)

	if claim.DepositConfirmed {
		return nil
	}

	_, err = s.issuer.ConfirmAndIssue(ctx, claim.ID)
	switch {
	case err == nil:
		s.logger.LogPaymentEvent(provider, utils.EventDepositConfirmed, event.SessionID, claim.DepositAmount, "")
		return nil
	case errors.Is(err, ErrAlreadyConfirmed):
		return nil
	case errors.Is(err, ErrClaimCancelled), errors.Is(err, ErrClaimNotFound):
		log.Warn("Payment completed for a claim that no longer exists or was cancelled; refund required")
		return nil
	case errors.Is(err, ErrSoldOut):
		log.Error("Payment completed after deal sold out; refund required")
		return nil
	default:
		return fmt.Errorf("failed to confirm claim: %w", err)
	}
}

func (s *paymentConfirmationService) expire(ctx context.Context, event *payment.WebhookEvent, log *logger.Logger) error {
	claim, err := s.findClaim(ctx, event)
	if errors.Is(err, ErrClaimNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := s.claimRepo.DeleteIfUnconfirmed(ctx, claim.ID)
	if err != nil {
		return fmt.Errorf("failed to remove expired checkout claim: %w", err)
	}
	if deleted {
		s.logger.LogClaimEvent(claim.ID, utils.EventCheckoutExpired, map[string]interface{}{"deal_id": claim.DealID.Hex()})
	} else {
		log.WithClaimID(claim.ID).Debug("Checkout expired for a confirmed claim, keeping it")
	}
	return nil
}

// findClaim correlates an event to a claim by checkout session id, falling
// back to the claim id carried in session metadata. The session token must
// match whenever the event carries one.
func (s *paymentConfirmationService) findClaim(ctx context.Context, event *payment.WebhookEvent) (*models.Claim, error) {
	var (
		claim *models.Claim
		err   error = interfaces.ErrNotFound
	)
	if event.SessionID != "" {
		claim, err = s.claimRepo.GetByCheckoutSessionID(ctx, event.SessionID)
	}
	if errors.Is(err, interfaces.ErrNotFound) && event.ClaimID != "" {
		id, parseErr := primitive.ObjectIDFromHex(event.ClaimID)
		if parseErr != nil {
			return nil, ErrClaimNotFound
		}
		claim, err = s.claimRepo.GetByID(ctx, id)
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find claim for webhook: %w", err)
	}

	if event.SessionToken != "" && event.SessionToken != claim.SessionToken {
		s.logger.LogSecurityEvent("webhook_session_token_mismatch", "high", map[string]interface{}{
			"claim_id": claim.ID.Hex(),
			"event_id": event.EventID,
		})
		return nil, ErrClaimNotFound
	}
	return claim, nil
}

func (s *paymentConfirmationService) alreadyProcessed(ctx context.Context, key string, event *payment.WebhookEvent) bool {
	if s.deduper == nil || event.EventID == "" {
		return false
	}
	seen, err := s.deduper.Seen(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Webhook dedupe lookup failed")
		return false
	}
	return seen
}

func (s *paymentConfirmationService) remember(ctx context.Context, key string, event *payment.WebhookEvent, log *logger.Logger) {
	if s.deduper == nil || event.EventID == "" {
		return
	}
	if err := s.deduper.Remember(ctx, key, s.cfg.WebhookDedupeTTL); err != nil {
		log.WithError(err).Warn("Failed to remember webhook event")
	}
}
