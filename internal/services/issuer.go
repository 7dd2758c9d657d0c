package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"dealdrop/internal/config"
	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/sms"
	"dealdrop/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CredentialIssuer mints the QR token and 6-digit code for a claim. Every
// issuance confirms the claim and takes one unit of deal capacity in the same
// transaction, except IssueForConfirmedClaim which only backfills credentials
// on a claim that already holds its unit.
type CredentialIssuer interface {
	IssueForNewClaim(ctx context.Context, claim *models.Claim) error
	ConfirmAndIssue(ctx context.Context, claimID primitive.ObjectID) (*models.Claim, error)
	IssueForConfirmedClaim(ctx context.Context, claimID primitive.ObjectID) (*models.Claim, error)
}

type credentialIssuer struct {
	tx         interfaces.Transactor
	claimRepo  interfaces.ClaimRepository
	dealRepo   interfaces.DealRepository
	userRepo   interfaces.UserRepository
	storage    storage.ObjectStore
	sms        sms.SMSProvider
	cfg        *config.ClaimsConfig
	smsFrom    string
	logger     *logger.Logger
	clock      clockFunc
	newQRToken func() (string, error)
	newCode    func() (string, error)
}

// NewCredentialIssuer builds an issuer. storageProvider and smsProvider may be
// nil, in which case QR images are not stored and codes are not texted.
func NewCredentialIssuer(
	tx interfaces.Transactor,
	claimRepo interfaces.ClaimRepository,
	dealRepo interfaces.DealRepository,
	userRepo interfaces.UserRepository,
	storageProvider storage.ObjectStore,
	smsProvider sms.SMSProvider,
	cfg *config.ClaimsConfig,
	smsFrom string,
	log *logger.Logger,
) CredentialIssuer {
	return &credentialIssuer{
		tx:         tx,
		claimRepo:  claimRepo,
		dealRepo:   dealRepo,
		userRepo:   userRepo,
		storage:    storageProvider,
		sms:        smsProvider,
		cfg:        cfg,
		smsFrom:    smsFrom,
		logger:     log,
		newQRToken: utils.NewQRToken,
		newCode:    utils.GenerateRedemptionCode,
	}
}

func (s *credentialIssuer) IssueForNewClaim(ctx context.Context, claim *models.Claim) error {
	now := s.clock.now()

	var issued models.Claim
	err := s.withFreshCredentials(ctx, func(creds models.Credentials) error {
		return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.takeCapacity(txCtx, claim.DealID); err != nil {
				return err
			}

			issued = *claim
			issued.QRCode = creds.QRCode
			issued.RedemptionCode = creds.RedemptionCode
			issued.DepositConfirmed = true
			issued.DepositConfirmedAt = &now
			return s.claimRepo.Create(txCtx, &issued)
		})
	})
	if err != nil {
		return err
	}

	*claim = issued
	s.logger.LogClaimEvent(claim.ID, utils.EventCredentialsIssued, map[string]interface{}{
		"deal_id": claim.DealID.Hex(),
		"tier":    claim.PaymentTier,
	})
	s.deliver(ctx, claim)
	return nil
}

func (s *credentialIssuer) ConfirmAndIssue(ctx context.Context, claimID primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.IsCancelled() {
		return nil, ErrClaimCancelled
	}
	if claim.DepositConfirmed {
		return nil, ErrAlreadyConfirmed
	}

	now := s.clock.now()
	err = s.withFreshCredentials(ctx, func(creds models.Credentials) error {
		return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.claimRepo.ConfirmWithCredentials(txCtx, claimID, creds, now); err != nil {
				return err
			}
			return s.takeCapacity(txCtx, claim.DealID)
		})
	})
	if errors.Is(err, interfaces.ErrConflict) {
		return nil, s.confirmConflict(ctx, claimID)
	}
	if err != nil {
		return nil, err
	}

	confirmed, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	s.logger.LogClaimEvent(claimID, utils.EventDepositConfirmed, map[string]interface{}{
		"deal_id": confirmed.DealID.Hex(),
		"tier":    confirmed.PaymentTier,
		"deposit": confirmed.DepositAmount,
	})
	s.deliver(ctx, confirmed)
	return confirmed, nil
}

func (s *credentialIssuer) IssueForConfirmedClaim(ctx context.Context, claimID primitive.ObjectID) (*models.Claim, error) {
	err := s.withFreshCredentials(ctx, func(creds models.Credentials) error {
		return s.claimRepo.SetCredentials(ctx, claimID, creds)
	})
	if errors.Is(err, interfaces.ErrConflict) {
		return nil, ErrCredentialsExist
	}
	if err != nil {
		return nil, err
	}

	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	s.logger.LogClaimEvent(claimID, utils.EventCredentialsIssued, map[string]interface{}{
		"deal_id":  claim.DealID.Hex(),
		"backfill": true,
	})
	s.deliver(ctx, claim)
	return claim, nil
}

// withFreshCredentials runs write with newly generated credentials, retrying
// with a new pair whenever the unique indexes reject them.
func (s *credentialIssuer) withFreshCredentials(ctx context.Context, write func(creds models.Credentials) error) error {
	attempts := s.cfg.CodeMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		creds, err := s.generate()
		if err != nil {
			return ErrCodeSpaceExhausted.Wrap(err)
		}
		err = write(creds)
		if !errors.Is(err, interfaces.ErrDuplicateKey) {
			return err
		}
		lastErr = err
		s.logger.WithField("attempt", attempt).Warn("Redemption credentials collided, regenerating")
	}
	return ErrCodeSpaceExhausted.Wrap(lastErr)
}

func (s *credentialIssuer) generate() (models.Credentials, error) {
	token, err := s.newQRToken()
	if err != nil {
		return models.Credentials{}, err
	}
	code, err := s.newCode()
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{QRCode: token, RedemptionCode: code}, nil
}

func (s *credentialIssuer) takeCapacity(ctx context.Context, dealID primitive.ObjectID) error {
	err := s.dealRepo.IncrementClaimsCount(ctx, dealID)
	if errors.Is(err, interfaces.ErrConflict) {
		return ErrSoldOut
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		return ErrDealNotFound
	}
	return err
}

// confirmConflict explains why the guarded confirm matched nothing.
func (s *credentialIssuer) confirmConflict(ctx context.Context, claimID primitive.ObjectID) error {
	claim, err := s.getClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.IsCancelled() {
		return ErrClaimCancelled
	}
	return ErrAlreadyConfirmed
}

func (s *credentialIssuer) getClaim(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// deliver stores the QR image and texts the code to the customer. Both are
// best effort; the claim is already valid without them.
func (s *credentialIssuer) deliver(ctx context.Context, claim *models.Claim) {
	log := s.logger.WithClaimID(claim.ID)

	if s.storage != nil && claim.QRCodeURL == "" {
		if url, err := s.storeQRImage(ctx, claim); err != nil {
			log.WithError(err).Warn("Failed to store QR code image")
		} else {
			claim.QRCodeURL = url
		}
	}

	if s.sms != nil && s.cfg.SendCodeSMS {
		if err := s.textCode(ctx, claim); err != nil {
			log.WithError(err).Warn("Failed to send redemption code SMS")
		}
	}
}

func (s *credentialIssuer) storeQRImage(ctx context.Context, claim *models.Claim) (string, error) {
	png, err := utils.RenderQRCode(claim.QRCode, s.cfg.QRImageSize)
	if err != nil {
		return "", err
	}

	key := path.Join(s.cfg.QRStoragePrefix, claim.ID.Hex()+".png")
	url := s.storage.URL(key)
	_, err = s.storage.Put(ctx, &storage.Object{
		Key:          key,
		Body:         bytes.NewReader(png),
		ContentType:  "image/png",
		Size:         int64(len(png)),
		CacheControl: "private, max-age=31536000, immutable",
		Metadata:     map[string]string{"claim_id": claim.ID.Hex()},
	})
	// A retried issuance finds the image from the earlier attempt.
	if err != nil && !errors.Is(err, storage.ErrObjectExists) {
		return "", fmt.Errorf("failed to upload qr image: %w", err)
	}

	if err := s.claimRepo.SetQRCodeURL(ctx, claim.ID, url); err != nil && !errors.Is(err, interfaces.ErrConflict) {
		return "", fmt.Errorf("failed to save qr image url: %w", err)
	}
	return url, nil
}

func (s *credentialIssuer) textCode(ctx context.Context, claim *models.Claim) error {
	user, err := s.userRepo.GetByID(ctx, claim.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to get customer: %w", err)
	}
	phone := utils.FormatPhone(user.Phone, utils.DefaultCountryCode)
	if !utils.IsValidPhone(phone) {
		return nil
	}

	_, err = s.sms.SendSMS(ctx, &sms.SMSRequest{
		To:      phone,
		From:    s.smsFrom,
		Message: fmt.Sprintf("Your %s redemption code is %s. Show it to the vendor when you redeem your deal.", utils.AppName, claim.RedemptionCode),
		Type:    sms.MessageTransactional,
	})
	if err != nil {
		return err
	}
	s.logger.WithClaimID(claim.ID).WithField("to", utils.MaskPhone(phone)).Debug("Redemption code texted")
	return nil
}
