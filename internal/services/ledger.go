package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// claimLedger owns the transitions that give capacity back to a deal. A
// confirmed claim holds exactly one unit of claims_count until it is
// cancelled or deleted, and each of those releases it exactly once.
type claimLedger struct {
	tx        interfaces.Transactor
	claimRepo interfaces.ClaimRepository
	dealRepo  interfaces.DealRepository
	logger    *logger.Logger
}

// cancel marks the claim cancelled and releases its unit if it held one.
// It returns the claim as it was before cancellation. With unredeemedOnly set
// a claim redeemed after the caller read it stays redeemed and the call fails
// with ErrClaimRedeemed.
func (l *claimLedger) cancel(ctx context.Context, claimID primitive.ObjectID, now time.Time, unredeemedOnly bool) (*models.Claim, error) {
	var before *models.Claim
	err := l.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		prev, err := l.claimRepo.MarkCancelled(txCtx, claimID, now, unredeemedOnly)
		if err != nil {
			return err
		}
		before = prev
		if prev.DepositConfirmed {
			return l.releaseCapacity(txCtx, prev)
		}
		return nil
	})
	switch {
	case errors.Is(err, interfaces.ErrConflict):
		return nil, l.cancelConflict(ctx, claimID)
	case errors.Is(err, interfaces.ErrNotFound):
		return nil, ErrClaimNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to cancel claim: %w", err)
	}
	return before, nil
}

// cancelConflict re-reads the claim to say why the guarded write missed.
func (l *claimLedger) cancelConflict(ctx context.Context, claimID primitive.ObjectID) error {
	current, err := l.claimRepo.GetByID(ctx, claimID)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return ErrClaimNotFound
	case err != nil:
		return fmt.Errorf("failed to get claim: %w", err)
	case current.IsCancelled():
		return ErrAlreadyCancelled
	case current.Redeemed:
		return ErrClaimRedeemed
	default:
		return ErrAlreadyCancelled
	}
}

// remove hard-deletes the claim, releasing its unit if it still held one.
func (l *claimLedger) remove(ctx context.Context, claimID primitive.ObjectID) (*models.Claim, error) {
	var removed *models.Claim
	err := l.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		prev, err := l.claimRepo.Delete(txCtx, claimID)
		if err != nil {
			return err
		}
		removed = prev
		if prev.DepositConfirmed && !prev.IsCancelled() {
			return l.releaseCapacity(txCtx, prev)
		}
		return nil
	})
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete claim: %w", err)
	}
	return removed, nil
}

func (l *claimLedger) releaseCapacity(ctx context.Context, claim *models.Claim) error {
	err := l.dealRepo.DecrementClaimsCount(ctx, claim.DealID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, interfaces.ErrConflict), errors.Is(err, interfaces.ErrNotFound):
		// Counter already at zero or deal gone; the claim transition still stands.
		l.logger.WithClaimID(claim.ID).WithField("deal_id", claim.DealID.Hex()).WithError(err).
			Warn("Deal capacity could not be released")
		return nil
	default:
		return err
	}
}
