package services

import (
	"fmt"
	"net/url"

	"dealdrop/internal/models"
)

// TierDecision is the outcome of payment tier resolution for one claim attempt.
type TierDecision struct {
	Tier   models.PaymentTier
	Method models.PaymentMethodType

	// Integrated tier
	Provider  string
	AccountID string

	// Manual tier
	Handle    string
	HandleURL string

	// Link tier
	Link string
}

// ResolvePaymentTier picks how the deposit for deal will be collected. The
// first matching rule wins: no deposit, integrated checkout, manual
// peer-to-peer processor, static payment link. A vendor matching none of them
// cannot be paid and the claim is refused.
func ResolvePaymentTier(deal *models.Deal, vendor *models.Vendor) (*TierDecision, error) {
	if !deal.RequiresDeposit() {
		return &TierDecision{Tier: models.PaymentTierNone}, nil
	}

	settings := &vendor.PaymentSettings
	primary := settings.PrimaryMethod

	if settings.IntegratedReady() && settings.PrimaryIntegrated() {
		return &TierDecision{
			Tier:      models.PaymentTierIntegrated,
			Method:    primary,
			Provider:  settings.IntegratedProviderName(),
			AccountID: settings.ConnectedAccountID,
		}, nil
	}

	if models.IsManualPaymentMethod(primary) {
		decision := &TierDecision{Tier: models.PaymentTierManual, Method: primary}
		if m := settings.Method(primary); m != nil {
			decision.Handle = m.Handle
			decision.HandleURL = m.URL
		}
		return decision, nil
	}

	if link := settings.ConfiguredLink(); link != "" {
		return &TierDecision{
			Tier:   models.PaymentTierLink,
			Method: models.PaymentMethodLink,
			Link:   link,
		}, nil
	}

	return nil, ErrPaymentUnreachable.WithMessage("vendor " + vendor.BusinessName + " has no way to receive payment")
}

// buildLinkRedirect appends the session token to link under param so the
// payment can be matched back to the claim.
func buildLinkRedirect(link, param, sessionToken string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("payment link %q is not an absolute url", link)
	}
	q := u.Query()
	q.Set(param, sessionToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
