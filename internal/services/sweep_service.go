package services

import (
	"context"
	"fmt"
	"time"

	"dealdrop/internal/config"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/scheduler"
)

// abandonedCheckoutGrace keeps a pending claim around for a while after its
// checkout session expired so a late completion webhook can still find it.
const abandonedCheckoutGrace = 15 * time.Minute

// SweepService holds the periodic housekeeping jobs.
type SweepService interface {
	ExpireDeals(ctx context.Context) error
	PurgeAbandonedCheckouts(ctx context.Context) error
	Register(s *scheduler.Scheduler) error
}

type sweepService struct {
	dealRepo  interfaces.DealRepository
	claimRepo interfaces.ClaimRepository
	cfg       *config.ClaimsConfig
	logger    *logger.Logger
	clock     clockFunc
}

func NewSweepService(dealRepo interfaces.DealRepository, claimRepo interfaces.ClaimRepository, cfg *config.ClaimsConfig, log *logger.Logger) SweepService {
	return &sweepService{
		dealRepo:  dealRepo,
		claimRepo: claimRepo,
		cfg:       cfg,
		logger:    log,
	}
}

func (s *sweepService) Register(sched *scheduler.Scheduler) error {
	if err := sched.Every("expire-deals", s.cfg.DealExpirySweep, s.ExpireDeals); err != nil {
		return err
	}
	return sched.Every("purge-abandoned-checkouts", s.cfg.CheckoutSweep, s.PurgeAbandonedCheckouts)
}

// ExpireDeals flips active and paused deals past their expiry to expired.
// Claims keep their own expires_at snapshot and are not touched.
func (s *sweepService) ExpireDeals(ctx context.Context) error {
	n, err := s.dealRepo.ExpirePastDeals(ctx, s.clock.now())
	if err != nil {
		return fmt.Errorf("failed to expire deals: %w", err)
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("Expired deals")
	}
	return nil
}

// PurgeAbandonedCheckouts removes integrated-tier claims whose checkout
// session lapsed without payment. Claims confirmed in the meantime survive
// because the delete is guarded on deposit_confirmed.
func (s *sweepService) PurgeAbandonedCheckouts(ctx context.Context) error {
	before := s.clock.now().Add(-abandonedCheckoutGrace)
	claims, err := s.claimRepo.FindAbandonedCheckouts(ctx, before, s.cfg.CheckoutSweepBatch)
	if err != nil {
		return fmt.Errorf("failed to find abandoned checkouts: %w", err)
	}

	var purged int
	for _, claim := range claims {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := s.claimRepo.DeleteIfUnconfirmed(ctx, claim.ID)
		if err != nil {
			s.logger.WithClaimID(claim.ID).WithError(err).Warn("Failed to purge abandoned checkout")
			continue
		}
		if deleted {
			purged++
			s.logger.LogClaimEvent(claim.ID, utils.EventCheckoutExpired, map[string]interface{}{"swept": true})
		}
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged abandoned checkouts")
	}
	return nil
}
