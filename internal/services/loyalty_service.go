package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoyaltyService interface {
	// AwardForRedemption credits the customer's card on the vendor's active
	// program. It returns a nil transaction when there is nothing to award or
	// the redemption was already awarded.
	AwardForRedemption(ctx context.Context, redemption *models.Redemption) (*models.LoyaltyTransaction, error)
}

type loyaltyService struct {
	tx          interfaces.Transactor
	loyaltyRepo interfaces.LoyaltyRepository
	logger      *logger.Logger
	clock       clockFunc
}

func NewLoyaltyService(tx interfaces.Transactor, loyaltyRepo interfaces.LoyaltyRepository, log *logger.Logger) LoyaltyService {
	return &loyaltyService{
		tx:          tx,
		loyaltyRepo: loyaltyRepo,
		logger:      log,
	}
}

func (s *loyaltyService) AwardForRedemption(ctx context.Context, redemption *models.Redemption) (*models.LoyaltyTransaction, error) {
	program, err := s.loyaltyRepo.GetActiveProgram(ctx, redemption.VendorID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loyalty program: %w", err)
	}

	entry := &models.LoyaltyTransaction{
		ID:           primitive.NewObjectID(),
		ProgramID:    program.ID,
		VendorID:     redemption.VendorID,
		CustomerID:   redemption.CustomerID,
		RedemptionID: redemption.ID,
		CreatedAt:    s.clock.now(),
	}
	switch program.Type {
	case models.LoyaltyProgramPunchCard:
		entry.Type = models.LoyaltyTransactionEarnPunch
		entry.Punches = 1
		entry.Description = "Punch earned for deal redemption"
	case models.LoyaltyProgramPoints:
		points := int64(math.Floor(redemption.DealPrice * program.PointsPerDollar))
		if points <= 0 {
			return nil, nil
		}
		entry.Type = models.LoyaltyTransactionEarnPoints
		entry.Points = points
		entry.Description = fmt.Sprintf("%d points earned for deal redemption", points)
	default:
		return nil, fmt.Errorf("unknown loyalty program type %q", program.Type)
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		card, err := s.loyaltyRepo.FindOrCreateCard(txCtx, program, redemption.CustomerID)
		if err != nil {
			return err
		}
		entry.CardID = card.ID
		if err := s.loyaltyRepo.CreateTransaction(txCtx, entry); err != nil {
			return err
		}
		return s.loyaltyRepo.IncrementCard(txCtx, card.ID, entry.Punches, entry.Points, entry.CreatedAt)
	})
	if errors.Is(err, interfaces.ErrDuplicateKey) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to award loyalty: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"redemption_id": redemption.ID.Hex(),
		"program_id":    program.ID.Hex(),
		"punches":       entry.Punches,
		"points":        entry.Points,
		"event":         utils.EventLoyaltyAwarded,
	}).Info("Loyalty awarded")
	return entry, nil
}
