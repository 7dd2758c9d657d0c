package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminAction is a privileged claim transition. The set of actions is closed:
// only the types in this file implement it.
type AdminAction interface {
	Name() string
	apply(ctx context.Context, s *adminClaimService, claim *models.Claim, actor AdminActor) (*models.Claim, error)
}

// Admin action names accepted on the wire.
const (
	AdminActionCancel         = "cancel"
	AdminActionRedeem         = "redeem"
	AdminActionExtend         = "extend"
	AdminActionConfirmDeposit = "confirm_deposit"
	AdminActionGenerateCodes  = "generate_codes"
	AdminActionEdit           = "edit"
)

type CancelAction struct{}

type ForceRedeemAction struct{}

type ExtendExpiryAction struct {
	ExpiresAt time.Time
}

type ConfirmDepositAction struct{}

type GenerateCodesAction struct{}

// EditClaimAction patches allow-listed fields. Nil fields are left alone.
type EditClaimAction struct {
	PaymentMethodType *string
	PaymentReference  *string
	AdminNotes        *string
}

func (CancelAction) Name() string         { return AdminActionCancel }
func (ForceRedeemAction) Name() string    { return AdminActionRedeem }
func (ExtendExpiryAction) Name() string   { return AdminActionExtend }
func (ConfirmDepositAction) Name() string { return AdminActionConfirmDeposit }
func (GenerateCodesAction) Name() string  { return AdminActionGenerateCodes }
func (EditClaimAction) Name() string      { return AdminActionEdit }

// AdminActionRequest is the wire form of an admin action.
type AdminActionRequest struct {
	Action    string                 `json:"action" binding:"required"`
	ExpiresAt string                 `json:"expires_at,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var editableClaimFields = map[string]struct{}{
	"payment_method_type": {},
	"payment_reference":   {},
	"admin_notes":         {},
}

// ParseAdminAction turns a request into its typed action.
func ParseAdminAction(req *AdminActionRequest) (AdminAction, error) {
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case AdminActionCancel:
		return CancelAction{}, nil
	case AdminActionRedeem:
		return ForceRedeemAction{}, nil
	case AdminActionConfirmDeposit:
		return ConfirmDepositAction{}, nil
	case AdminActionGenerateCodes:
		return GenerateCodesAction{}, nil
	case AdminActionExtend:
		expiresAt, err := utils.ParseTimestamp(req.ExpiresAt)
		if err != nil {
			return nil, ErrInvalidExpiry.Wrap(err)
		}
		return ExtendExpiryAction{ExpiresAt: expiresAt}, nil
	case AdminActionEdit:
		return parseEdit(req.Fields)
	default:
		return nil, ErrInvalidAction.WithMessage(fmt.Sprintf("unknown admin action %q", req.Action))
	}
}

func parseEdit(fields map[string]interface{}) (AdminAction, error) {
	if len(fields) == 0 {
		return nil, ErrInvalidInput.WithMessage("edit requires at least one field")
	}

	var action EditClaimAction
	for name, raw := range fields {
		if _, ok := editableClaimFields[name]; !ok {
			return nil, ErrFieldNotEditable.WithMessage(fmt.Sprintf("field %q cannot be edited", name))
		}
		value, ok := raw.(string)
		if !ok {
			return nil, ErrInvalidInput.WithMessage(fmt.Sprintf("field %q must be a string", name))
		}
		switch name {
		case "payment_method_type":
			action.PaymentMethodType = &value
		case "payment_reference":
			action.PaymentReference = &value
		case "admin_notes":
			action.AdminNotes = &value
		}
	}
	return action, nil
}

// AdminActor identifies who performed an admin action, for the audit trail.
type AdminActor struct {
	UserID    primitive.ObjectID
	IPAddress string
	UserAgent string
}

type AdminClaimService interface {
	Execute(ctx context.Context, actor AdminActor, claimID primitive.ObjectID, action AdminAction) (*models.Claim, error)
	DeleteClaim(ctx context.Context, actor AdminActor, claimID primitive.ObjectID) error
	// ClaimHistory lists the audit trail of a claim, newest first. Deleted
	// claims keep their history.
	ClaimHistory(ctx context.Context, claimID primitive.ObjectID) ([]*models.AuditLog, error)
}

type adminClaimService struct {
	tx             interfaces.Transactor
	claimRepo      interfaces.ClaimRepository
	dealRepo       interfaces.DealRepository
	redemptionRepo interfaces.RedemptionRepository
	auditRepo      interfaces.AuditLogRepository
	issuer         CredentialIssuer
	ledger         *claimLedger
	logger         *logger.Logger
	clock          clockFunc
}

func NewAdminClaimService(
	tx interfaces.Transactor,
	claimRepo interfaces.ClaimRepository,
	dealRepo interfaces.DealRepository,
	redemptionRepo interfaces.RedemptionRepository,
	auditRepo interfaces.AuditLogRepository,
	issuer CredentialIssuer,
	log *logger.Logger,
) AdminClaimService {
	return &adminClaimService{
		tx:             tx,
		claimRepo:      claimRepo,
		dealRepo:       dealRepo,
		redemptionRepo: redemptionRepo,
		auditRepo:      auditRepo,
		issuer:         issuer,
		ledger:         &claimLedger{tx: tx, claimRepo: claimRepo, dealRepo: dealRepo, logger: log},
		logger:         log,
	}
}

func (s *adminClaimService) Execute(ctx context.Context, actor AdminActor, claimID primitive.ObjectID, action AdminAction) (*models.Claim, error) {
	if action == nil {
		return nil, ErrInvalidAction
	}

	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	updated, err := action.apply(ctx, s, claim, actor)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, models.AuditActionUpdate, action.Name(), claim, updated)
	s.logger.WithUserID(actor.UserID).LogClaimEvent(claimID, "admin_"+action.Name(), nil)
	return updated, nil
}

func (s *adminClaimService) DeleteClaim(ctx context.Context, actor AdminActor, claimID primitive.ObjectID) error {
	removed, err := s.ledger.remove(ctx, claimID)
	if err != nil {
		return err
	}

	s.audit(ctx, actor, models.AuditActionDelete, "delete", removed, nil)
	s.logger.WithUserID(actor.UserID).LogClaimEvent(claimID, utils.EventClaimDeleted, map[string]interface{}{
		"deposit_confirmed": removed.DepositConfirmed,
	})
	return nil
}

func (s *adminClaimService) ClaimHistory(ctx context.Context, claimID primitive.ObjectID) ([]*models.AuditLog, error) {
	entries, err := s.auditRepo.ListForResource(ctx, auditResourceClaim, claimID.Hex(), utils.MaxAuditHistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim history: %w", err)
	}
	return entries, nil
}

func (a CancelAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, _ AdminActor) (*models.Claim, error) {
	if claim.IsCancelled() {
		return nil, ErrAlreadyCancelled
	}
	if _, err := s.ledger.cancel(ctx, claim.ID, s.clock.now(), false); err != nil {
		return nil, err
	}
	return s.getClaim(ctx, claim.ID)
}

func (a ForceRedeemAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, actor AdminActor) (*models.Claim, error) {
	if claim.IsCancelled() {
		return nil, ErrClaimCancelled
	}
	if claim.Redeemed {
		return nil, ErrAlreadyRedeemed
	}

	deal, err := s.dealRepo.GetByID(ctx, claim.DealID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrDealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	now := s.clock.now()
	redemption := &models.Redemption{
		ID:               primitive.NewObjectID(),
		ClaimID:          claim.ID,
		DealID:           deal.ID,
		VendorID:         deal.VendorID,
		CustomerID:       claim.CustomerID,
		RedeemedBy:       actor.UserID,
		Method:           models.RedemptionMethodAdmin,
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
		err := s.redemptionRepo.Create(txCtx, redemption)
		if errors.Is(err, interfaces.ErrDuplicateKey) {
			// A redemption row already exists for this claim; keep it.
			return nil
		}
		return err
	})
	if errors.Is(err, interfaces.ErrConflict) {
		return nil, ErrAlreadyRedeemed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to force redeem claim: %w", err)
	}
	return s.getClaim(ctx, claim.ID)
}

func (a ExtendExpiryAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, _ AdminActor) (*models.Claim, error) {
	if !a.ExpiresAt.After(s.clock.now()) {
		return nil, ErrInvalidExpiry
	}
	if claim.IsCancelled() {
		return nil, ErrClaimCancelled
	}

	err := s.claimRepo.UpdateExpiry(ctx, claim.ID, a.ExpiresAt)
	if errors.Is(err, interfaces.ErrConflict) || errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extend claim: %w", err)
	}
	return s.getClaim(ctx, claim.ID)
}

func (a ConfirmDepositAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, _ AdminActor) (*models.Claim, error) {
	return s.issuer.ConfirmAndIssue(ctx, claim.ID)
}

func (a GenerateCodesAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, _ AdminActor) (*models.Claim, error) {
	if claim.IsCancelled() {
		return nil, ErrClaimCancelled
	}
	if claim.HasCredentials() {
		return nil, ErrCredentialsExist
	}
	if !claim.DepositConfirmed {
		return s.issuer.ConfirmAndIssue(ctx, claim.ID)
	}
	return s.issuer.IssueForConfirmedClaim(ctx, claim.ID)
}

func (a EditClaimAction) apply(ctx context.Context, s *adminClaimService, claim *models.Claim, _ AdminActor) (*models.Claim, error) {
	updates := make(map[string]interface{})
	if a.PaymentMethodType != nil {
		updates["payment_method_type"] = *a.PaymentMethodType
	}
	if a.PaymentReference != nil {
		updates["payment_reference"] = strings.ToUpper(strings.TrimSpace(*a.PaymentReference))
	}
	if a.AdminNotes != nil {
		updates["admin_notes"] = *a.AdminNotes
	}
	if len(updates) == 0 {
		return nil, ErrInvalidInput.WithMessage("edit requires at least one field")
	}

	err := s.claimRepo.Update(ctx, claim.ID, updates)
	switch {
	case errors.Is(err, interfaces.ErrDuplicateKey):
		return nil, ErrInvalidInput.WithMessage("payment reference is already in use")
	case errors.Is(err, interfaces.ErrConflict), errors.Is(err, interfaces.ErrNotFound):
		return nil, ErrClaimNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to edit claim: %w", err)
	}
	return s.getClaim(ctx, claim.ID)
}

const auditResourceClaim = "claim"

// audit records the action. Audit failures never undo the action.
func (s *adminClaimService) audit(ctx context.Context, actor AdminActor, action models.AuditAction, name string, before, after *models.Claim) {
	entry := &models.AuditLog{
		ID:         primitive.NewObjectID(),
		UserID:     actor.UserID,
		Action:     action,
		Resource:   auditResourceClaim,
		ResourceID: before.ID.Hex(),
		OldValues:  claimSnapshot(before),
		NewValues:  claimSnapshot(after),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Metadata:   map[string]interface{}{"action": name, "deal_id": before.DealID.Hex()},
		CreatedAt:  s.clock.now(),
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.WithError(err).WithClaimID(before.ID).Warn("Failed to write audit log")
	}
}

func claimSnapshot(c *models.Claim) map[string]interface{} {
	if c == nil {
		return nil
	}
	return map[string]interface{}{
		"deposit_confirmed":   c.DepositConfirmed,
		"redeemed":            c.Redeemed,
		"redeemed_at":         c.RedeemedAt,
		"cancelled_at":        c.CancelledAt,
		"expires_at":          c.ExpiresAt,
		"has_credentials":     c.HasCredentials(),
		"payment_method_type": c.PaymentMethodType,
		"payment_reference":   c.PaymentReference,
		"admin_notes":         c.AdminNotes,
	}
}

func (s *adminClaimService) getClaim(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}
