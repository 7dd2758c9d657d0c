package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealdrop/internal/config"
	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/cache"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/payment"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClaimService interface {
	// Intake
	CreateClaim(ctx context.Context, customerID, dealID primitive.ObjectID) (*ClaimResult, error)
	ListClaims(ctx context.Context, customerID primitive.ObjectID, filter interfaces.ClaimStatusFilter) ([]*ClaimView, error)
	CancelClaim(ctx context.Context, customerID, claimID primitive.ObjectID) (*models.Claim, error)

	// Vendor side of manual and link payments
	VendorConfirmDeposit(ctx context.Context, vendorID, claimID primitive.ObjectID) (*models.Claim, error)
	FindByPaymentReference(ctx context.Context, vendorID primitive.ObjectID, reference string) (*models.Claim, error)
}

// ClaimResult is what the customer gets back from a claim attempt. Exactly one
// of Credentials, RedirectURL and PaymentInstructions is set.
type ClaimResult struct {
	Claim               *models.Claim        `json:"claim"`
	Tier                models.PaymentTier   `json:"payment_tier"`
	Credentials         *models.Credentials  `json:"credentials,omitempty"`
	RedirectURL         string               `json:"redirect_url,omitempty"`
	PaymentInstructions *PaymentInstructions `json:"payment_instructions,omitempty"`
}

type PaymentInstructions struct {
	Method        models.PaymentMethodType `json:"method"`
	Handle        string                   `json:"handle,omitempty"`
	URL           string                   `json:"url,omitempty"`
	Amount        float64                  `json:"amount"`
	AmountDisplay string                   `json:"amount_display"`
	Reference     string                   `json:"reference"`
	Note          string                   `json:"note"`
}

// ClaimView is a claim with its status evaluated at read time.
type ClaimView struct {
	*models.Claim
	Status models.ClaimStatus `json:"status"`
}

// CheckoutProviders indexes the configured checkout providers by name.
type CheckoutProviders map[string]payment.CheckoutProvider

func NewCheckoutProviders(providers ...payment.CheckoutProvider) CheckoutProviders {
	registry := make(CheckoutProviders, len(providers))
	for _, p := range providers {
		registry[p.Name()] = p
	}
	return registry
}

type claimService struct {
	dealRepo   interfaces.DealRepository
	claimRepo  interfaces.ClaimRepository
	vendorRepo interfaces.VendorRepository
	issuer     CredentialIssuer
	ledger     *claimLedger
	providers  CheckoutProviders
	locker     Locker
	claimsCfg  *config.ClaimsConfig
	paymentCfg *config.PaymentConfig
	logger     *logger.Logger
	clock      clockFunc
}

// NewClaimService builds the claim intake service. locker may be nil, in
// which case duplicate live claims are caught by the live-claim check alone.
func NewClaimService(
	tx interfaces.Transactor,
	dealRepo interfaces.DealRepository,
	claimRepo interfaces.ClaimRepository,
	vendorRepo interfaces.VendorRepository,
	issuer CredentialIssuer,
	providers CheckoutProviders,
	locker Locker,
	claimsCfg *config.ClaimsConfig,
	paymentCfg *config.PaymentConfig,
	log *logger.Logger,
) ClaimService {
	return &claimService{
		dealRepo:   dealRepo,
		claimRepo:  claimRepo,
		vendorRepo: vendorRepo,
		issuer:     issuer,
		ledger:     &claimLedger{tx: tx, claimRepo: claimRepo, dealRepo: dealRepo, logger: log},
		providers:  providers,
		locker:     locker,
		claimsCfg:  claimsCfg,
		paymentCfg: paymentCfg,
		logger:     log,
	}
}

func (s *claimService) CreateClaim(ctx context.Context, customerID, dealID primitive.ObjectID) (*ClaimResult, error) {
	now := s.clock.now()

	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	vendor, err := s.vendorRepo.GetByID(ctx, deal.VendorID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}

	if vendor.OwnerID == customerID {
		return nil, ErrOwnDeal
	}
	if deal.Status != models.DealStatusActive {
		return nil, ErrDealNotActive
	}
	if deal.IsExpiredAt(now) {
		return nil, ErrDealExpired
	}
	if deal.IsSoldOut() {
		return nil, ErrSoldOut
	}

	release, err := s.acquireIntakeLock(ctx, dealID, customerID)
	if err != nil {
		return nil, err
	}
	defer release()

	_, err = s.claimRepo.FindLiveClaim(ctx, dealID, customerID, now)
	switch {
	case err == nil:
		return nil, ErrAlreadyClaimed
	case !errors.Is(err, interfaces.ErrNotFound):
		return nil, fmt.Errorf("failed to check existing claims: %w", err)
	}

	decision, err := ResolvePaymentTier(deal, vendor)
	if err != nil {
		return nil, err
	}

	claim := &models.Claim{
		ID:                primitive.NewObjectID(),
		DealID:            deal.ID,
		VendorID:          deal.VendorID,
		CustomerID:        customerID,
		SessionToken:      uuid.NewString(),
		PaymentTier:       decision.Tier,
		PaymentMethodType: string(decision.Method),
		DepositAmount:     deal.Deposit(),
		ExpiresAt:         deal.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var result *ClaimResult
	switch decision.Tier {
	case models.PaymentTierNone:
		result, err = s.claimWithoutDeposit(ctx, claim)
	case models.PaymentTierIntegrated:
		result, err = s.openCheckout(ctx, claim, deal, decision)
	case models.PaymentTierManual:
		result, err = s.claimWithManualPayment(ctx, claim, decision)
	case models.PaymentTierLink:
		result, err = s.claimWithPaymentLink(ctx, claim, decision)
	default:
		err = fmt.Errorf("unhandled payment tier %q", decision.Tier)
	}
	if err != nil {
		return nil, err
	}

	s.logger.LogClaimEvent(claim.ID, utils.EventClaimCreated, map[string]interface{}{
		"deal_id":     deal.ID.Hex(),
		"customer_id": customerID.Hex(),
		"tier":        decision.Tier,
	})
	return result, nil
}

func (s *claimService) acquireIntakeLock(ctx context.Context, dealID, customerID primitive.ObjectID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := utils.CacheClaimLockPrefix + dealID.Hex() + ":" + customerID.Hex()
	lock, err := s.locker.Lock(ctx, key, s.claimsCfg.LockTTL)
	if errors.Is(err, cache.ErrLockNotAcquired) {
		return nil, ErrClaimInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire claim lock: %w", err)
	}

	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lock); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to release claim lock")
		}
	}, nil
}

func (s *claimService) claimWithoutDeposit(ctx context.Context, claim *models.Claim) (*ClaimResult, error) {
	if err := s.issuer.IssueForNewClaim(ctx, claim); err != nil {
		return nil, err
	}
	return &ClaimResult{
		Claim:       claim,
		Tier:        models.PaymentTierNone,
		Credentials: &models.Credentials{QRCode: claim.QRCode, RedemptionCode: claim.RedemptionCode},
	}, nil
}

// openCheckout persists the pending claim and opens a hosted checkout for the
// deposit. If the provider call fails the pending claim is deleted again.
func (s *claimService) openCheckout(ctx context.Context, claim *models.Claim, deal *models.Deal, decision *TierDecision) (*ClaimResult, error) {
	provider, ok := s.providers[decision.Provider]
	if !ok {
		return nil, ErrProviderUnavailable.WithMessage("payment provider " + decision.Provider + " is not enabled")
	}

	checkoutExpiresAt := claim.CreatedAt.Add(s.claimsCfg.CheckoutSessionTTL)
	claim.CheckoutExpiresAt = &checkoutExpiresAt
	if err := s.claimRepo.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	checkoutCtx, cancel := context.WithTimeout(ctx, s.paymentCfg.CheckoutTimeout)
	session, err := provider.CreateCheckoutSession(checkoutCtx, &payment.CheckoutRequest{
		AccountID:    decision.AccountID,
		ClaimID:      claim.ID.Hex(),
		SessionToken: claim.SessionToken,
		CustomerID:   claim.CustomerID.Hex(),
		Description:  "Deposit for " + deal.Title,
		Amount:       claim.DepositAmount,
		Currency:     s.paymentCfg.Currency,
		SuccessURL:   s.paymentCfg.SuccessURL,
		CancelURL:    s.paymentCfg.CancelURL,
		ExpiresAt:    checkoutExpiresAt,
	})
	cancel()
	if err != nil {
		s.compensate(ctx, claim, err)
		return nil, ErrCheckoutFailed.Wrap(err)
	}

	claim.CheckoutSessionID = session.ID
	if err := s.claimRepo.SetCheckoutSession(ctx, claim.ID, session.ID); err != nil {
		// Webhooks still resolve the claim through the claim id in session metadata.
		s.logger.WithClaimID(claim.ID).WithError(err).Warn("Failed to record checkout session id")
	}

	s.logger.LogPaymentEvent(provider.Name(), utils.EventCheckoutOpened, session.ID, claim.DepositAmount, s.paymentCfg.Currency)
	return &ClaimResult{Claim: claim, Tier: models.PaymentTierIntegrated, RedirectURL: session.URL}, nil
}

func (s *claimService) compensate(ctx context.Context, claim *models.Claim, cause error) {
	log := s.logger.WithClaimID(claim.ID).WithError(cause)
	log.Warn("Checkout session could not be opened, removing pending claim")

	if _, err := s.claimRepo.DeleteIfUnconfirmed(context.WithoutCancel(ctx), claim.ID); err != nil {
		log.WithField("delete_error", err.Error()).Error("Failed to remove pending claim after checkout failure")
	}
	s.logger.LogClaimEvent(claim.ID, utils.EventCheckoutFailed, map[string]interface{}{"deal_id": claim.DealID.Hex()})
}

func (s *claimService) claimWithManualPayment(ctx context.Context, claim *models.Claim, decision *TierDecision) (*ClaimResult, error) {
	attempts := s.claimsCfg.CodeMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		claim.PaymentReference, err = utils.GeneratePaymentReference(s.claimsCfg.PaymentReferencePrefix)
		if err != nil {
			return nil, ErrCodeSpaceExhausted.Wrap(err)
		}
		err = s.claimRepo.Create(ctx, claim)
		if !errors.Is(err, interfaces.ErrDuplicateKey) {
			break
		}
	}
	if errors.Is(err, interfaces.ErrDuplicateKey) {
		return nil, ErrCodeSpaceExhausted.Wrap(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	amount := utils.FormatCurrency(claim.DepositAmount, s.paymentCfg.Currency)
	return &ClaimResult{
		Claim: claim,
		Tier:  models.PaymentTierManual,
		PaymentInstructions: &PaymentInstructions{
			Method:        decision.Method,
			Handle:        decision.Handle,
			URL:           decision.HandleURL,
			Amount:        claim.DepositAmount,
			AmountDisplay: amount,
			Reference:     claim.PaymentReference,
			Note:          fmt.Sprintf("Send %s via %s and include %s in the payment note.", amount, decision.Method, claim.PaymentReference),
		},
	}, nil
}

func (s *claimService) claimWithPaymentLink(ctx context.Context, claim *models.Claim, decision *TierDecision) (*ClaimResult, error) {
	redirect, err := buildLinkRedirect(decision.Link, s.claimsCfg.LinkCorrelationParam, claim.SessionToken)
	if err != nil {
		return nil, ErrPaymentUnreachable.Wrap(err)
	}
	if err := s.claimRepo.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}
	return &ClaimResult{Claim: claim, Tier: models.PaymentTierLink, RedirectURL: redirect}, nil
}

func (s *claimService) ListClaims(ctx context.Context, customerID primitive.ObjectID, filter interfaces.ClaimStatusFilter) ([]*ClaimView, error) {
	switch filter {
	case interfaces.ClaimFilterAll, interfaces.ClaimFilterActive, interfaces.ClaimFilterExpired, interfaces.ClaimFilterRedeemed:
	default:
		return nil, ErrInvalidStatusFilter
	}

	now := s.clock.now()
	claims, err := s.claimRepo.ListByCustomer(ctx, customerID, filter, now, s.claimsCfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	views := make([]*ClaimView, 0, len(claims))
	for _, c := range claims {
		views = append(views, &ClaimView{Claim: c, Status: c.StatusAt(now)})
	}
	return views, nil
}

func (s *claimService) CancelClaim(ctx context.Context, customerID, claimID primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.CustomerID != customerID {
		return nil, ErrNotClaimOwner
	}
	if claim.Redeemed {
		return nil, ErrClaimRedeemed
	}
	if claim.IsCancelled() {
		return nil, ErrAlreadyCancelled
	}

	now := s.clock.now()
	if _, err := s.ledger.cancel(ctx, claimID, now, true); err != nil {
		return nil, err
	}

	s.logger.LogClaimEvent(claimID, utils.EventClaimCancelled, map[string]interface{}{
		"by":                "customer",
		"deposit_confirmed": claim.DepositConfirmed,
	})
	return s.getClaim(ctx, claimID)
}

func (s *claimService) VendorConfirmDeposit(ctx context.Context, vendorID, claimID primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.VendorID != vendorID {
		return nil, ErrClaimNotFound
	}
	return s.issuer.ConfirmAndIssue(ctx, claimID)
}

func (s *claimService) FindByPaymentReference(ctx context.Context, vendorID primitive.ObjectID, reference string) (*models.Claim, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if reference == "" {
		return nil, ErrInvalidInput.WithMessage("payment reference is required")
	}

	claim, err := s.claimRepo.GetByPaymentReference(ctx, vendorID, reference)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find claim by reference: %w", err)
	}
	return claim, nil
}

func (s *claimService) getClaim(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}
