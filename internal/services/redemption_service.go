package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealdrop/internal/config"
	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RedemptionService interface {
	Redeem(ctx context.Context, vendorID, agentID primitive.ObjectID, code string) (*RedemptionResult, error)
	CheckCodeStatus(ctx context.Context, code string) (*CodeStatus, error)
	ListRecentRedemptions(ctx context.Context, vendorID primitive.ObjectID) ([]*models.Redemption, error)
}

type RedemptionResult struct {
	Redemption       *models.Redemption `json:"redemption"`
	Deal             DealSummary        `json:"deal"`
	Customer         CustomerSummary    `json:"customer"`
	RemainingBalance float64            `json:"remaining_balance"`
}

type DealSummary struct {
	ID            primitive.ObjectID `json:"id"`
	Title         string             `json:"title"`
	DealPrice     float64            `json:"deal_price"`
	DepositAmount float64            `json:"deposit_amount"`
}

type CustomerSummary struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

// CodeStatus values
const (
	CodeStatusValid    = "valid"
	CodeStatusRedeemed = "redeemed"
	CodeStatusExpired  = "expired"
)

type CodeStatus struct {
	Status           string     `json:"status"`
	DealTitle        string     `json:"deal_title"`
	RemainingBalance float64    `json:"remaining_balance"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
}

type redemptionService struct {
	tx             interfaces.Transactor
	claimRepo      interfaces.ClaimRepository
	dealRepo       interfaces.DealRepository
	redemptionRepo interfaces.RedemptionRepository
	userRepo       interfaces.UserRepository
	loyalty        LoyaltyService
	cfg            *config.ClaimsConfig
	logger         *logger.Logger
	clock          clockFunc
}

func NewRedemptionService(
	tx interfaces.Transactor,
	claimRepo interfaces.ClaimRepository,
	dealRepo interfaces.DealRepository,
	redemptionRepo interfaces.RedemptionRepository,
	userRepo interfaces.UserRepository,
	loyalty LoyaltyService,
	cfg *config.ClaimsConfig,
	log *logger.Logger,
) RedemptionService {
	return &redemptionService{
		tx:             tx,
		claimRepo:      claimRepo,
		dealRepo:       dealRepo,
		redemptionRepo: redemptionRepo,
		userRepo:       userRepo,
		loyalty:        loyalty,
		cfg:            cfg,
		logger:         log,
	}
}

// Redeem verifies a scanned or typed code for the vendor and turns the claim
// into a redemption. Only one concurrent caller can win the transition; the
// rest see ALREADY_REDEEMED.
func (s *redemptionService) Redeem(ctx context.Context, vendorID, agentID primitive.ObjectID, code string) (*RedemptionResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidInput.WithMessage("code is required")
	}

	claim, method, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithClaimID(claim.ID).WithField("vendor_id", vendorID.Hex())

	deal, err := s.dealRepo.GetByID(ctx, claim.DealID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	now := s.clock.now()
	switch {
	case deal.VendorID != vendorID:
		log.LogRedemptionEvent(claim.ID, ErrWrongVendor.Code, nil)
		return nil, ErrWrongVendor
	case claim.Redeemed:
		return nil, ErrAlreadyRedeemed
	case claim.IsExpiredAt(now):
		return nil, ErrCodeExpired
	case deal.RequiresDeposit() && !claim.DepositConfirmed:
		return nil, ErrNoDeposit
	}

	redemption := &models.Redemption{
		ID:               primitive.NewObjectID(),
		ClaimID:          claim.ID,
		DealID:           deal.ID,
		VendorID:         deal.VendorID,
		CustomerID:       claim.CustomerID,
		RedeemedBy:       agentID,
		Method:           method,
		DealPrice:        deal.DealPrice,
		DepositAmount:    claim.DepositAmount,
		RemainingBalance: deal.RemainingBalance(),
		RedeemedAt:       now,
		CreatedAt:        now,
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.claimRepo.MarkRedeemed(txCtx, claim.ID, now); err != nil {
			return err
		}
		return s.redemptionRepo.Create(txCtx, redemption)
	})
	switch {
	case errors.Is(err, interfaces.ErrConflict), errors.Is(err, interfaces.ErrDuplicateKey):
		return nil, s.redeemConflict(ctx, claim.ID)
	case err != nil:
		return nil, fmt.Errorf("failed to redeem claim: %w", err)
	}

	log.LogRedemptionEvent(claim.ID, utils.EventClaimRedeemed, map[string]interface{}{
		"redemption_id":     redemption.ID.Hex(),
		"method":            method,
		"remaining_balance": redemption.RemainingBalance,
	})

	s.awardLoyalty(ctx, redemption)

	return &RedemptionResult{
		Redemption: redemption,
		Deal: DealSummary{
			ID:            deal.ID,
			Title:         deal.Title,
			DealPrice:     deal.DealPrice,
			DepositAmount: claim.DepositAmount,
		},
		Customer:         s.customerSummary(ctx, claim.CustomerID),
		RemainingBalance: redemption.RemainingBalance,
	}, nil
}

// lookup classifies code as a 6-digit redemption code or a QR token.
// Unknown and cancelled claims are indistinguishable to the caller.
func (s *redemptionService) lookup(ctx context.Context, code string) (*models.Claim, models.RedemptionMethod, error) {
	var (
		claim  *models.Claim
		method models.RedemptionMethod
		err    error
	)
	if utils.IsRedemptionCode(code) {
		method = models.RedemptionMethodCode
		claim, err = s.claimRepo.GetByRedemptionCode(ctx, code)
	} else {
		method = models.RedemptionMethodQR
		claim, err = s.claimRepo.GetByQRCode(ctx, code)
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, "", ErrInvalidCode
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up code: %w", err)
	}
	if claim.IsCancelled() {
		return nil, "", ErrInvalidCode
	}
	return claim, method, nil
}

func (s *redemptionService) redeemConflict(ctx context.Context, claimID primitive.ObjectID) error {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err == nil && claim.IsCancelled() {
		return ErrInvalidCode
	}
	return ErrAlreadyRedeemed
}

// awardLoyalty runs the loyalty award in its own failure domain. Nothing it
// does can change the outcome of the redemption.
func (s *redemptionService) awardLoyalty(ctx context.Context, redemption *models.Redemption) {
	if s.loyalty == nil {
		return
	}

	run := func() {
		log := s.logger.WithClaimID(redemption.ClaimID)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Loyalty award panicked")
			}
		}()

		awardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoyaltyTimeout)
		defer cancel()
		if _, err := s.loyalty.AwardForRedemption(awardCtx, redemption); err != nil {
			log.WithError(err).Warn("Loyalty award failed")
		}
	}

	if s.cfg.LoyaltyAsync {
		go run()
		return
	}
	run()
}

func (s *redemptionService) customerSummary(ctx context.Context, customerID primitive.ObjectID) CustomerSummary {
	summary := CustomerSummary{ID: customerID}
	user, err := s.userRepo.GetByID(ctx, customerID)
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", customerID.Hex()).Debug("Customer profile unavailable for redemption summary")
		return summary
	}
	summary.Name = user.DisplayName()
	return summary
}

func (s *redemptionService) CheckCodeStatus(ctx context.Context, code string) (*CodeStatus, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	claim, _, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.GetByID(ctx, claim.DealID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	status := &CodeStatus{
		Status:           CodeStatusValid,
		DealTitle:        deal.Title,
		RemainingBalance: deal.RemainingBalance(),
		ExpiresAt:        claim.ExpiresAt,
		RedeemedAt:       claim.RedeemedAt,
	}
	switch {
	case claim.Redeemed:
		status.Status = CodeStatusRedeemed
	case claim.IsExpiredAt(s.clock.now()):
		status.Status = CodeStatusExpired
	}
	return status, nil
}

func (s *redemptionService) ListRecentRedemptions(ctx context.Context, vendorID primitive.ObjectID) ([]*models.Redemption, error) {
	redemptions, err := s.redemptionRepo.ListByVendor(ctx, vendorID, utils.MaxRedemptionListSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return redemptions, nil
}
