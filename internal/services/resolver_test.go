package services

import (
	"strings"
	"testing"

	"dealdrop/internal/models"
)

func TestResolvePaymentTier(t *testing.T) {
	deposit := &models.Deal{DepositAmount: ptrFloat(5)}

	tests := []struct {
		name         string
		deal         *models.Deal
		settings     models.PaymentSettings
		wantTier     models.PaymentTier
		wantProvider string
		wantHandle   string
		wantLink     string
		wantErr      *ServiceError
	}{
		{
			name:     "no deposit ignores payment settings",
			deal:     &models.Deal{},
			wantTier: models.PaymentTierNone,
		},
		{
			name:     "zero deposit is no deposit",
			deal:     &models.Deal{DepositAmount: ptrFloat(0)},
			wantTier: models.PaymentTierNone,
		},
		{
			name:         "integrated ready",
			deal:         deposit,
			settings:     integratedSettings(),
			wantTier:     models.PaymentTierIntegrated,
			wantProvider: "stripe",
		},
		{
			name: "integrated provider defaults to primary method",
			deal: deposit,
			settings: models.PaymentSettings{
				PrimaryMethod:      models.PaymentMethodRazorpay,
				Methods:            []models.VendorPaymentMethod{{Type: models.PaymentMethodRazorpay, Integrated: true}},
				ConnectedAccountID: "acc_9",
				ChargesEnabled:     true,
				DetailsSubmitted:   true,
			},
			wantTier:     models.PaymentTierIntegrated,
			wantProvider: "razorpay",
		},
		{
			name: "integrated not onboarded falls through to link",
			deal: deposit,
			settings: models.PaymentSettings{
				PrimaryMethod:      models.PaymentMethodStripe,
				Methods:            []models.VendorPaymentMethod{{Type: models.PaymentMethodStripe, Integrated: true}},
				ConnectedAccountID: "acct_123",
				ChargesEnabled:     true,
				PaymentLink:        "https://pay.example.com/bakery",
			},
			wantTier: models.PaymentTierLink,
			wantLink: "https://pay.example.com/bakery",
		},
		{
			name: "ready account with unflagged primary falls through to link",
			deal: deposit,
			settings: models.PaymentSettings{
				PrimaryMethod:      models.PaymentMethodStripe,
				Methods:            []models.VendorPaymentMethod{{Type: models.PaymentMethodStripe}},
				IntegratedProvider: "stripe",
				ConnectedAccountID: "acct_123",
				ChargesEnabled:     true,
				DetailsSubmitted:   true,
				PaymentLink:        "https://pay.example.com/bakery",
			},
			wantTier: models.PaymentTierLink,
			wantLink: "https://pay.example.com/bakery",
		},
		{
			name: "ready account without a method entry is not integrated",
			deal: deposit,
			settings: models.PaymentSettings{
				PrimaryMethod:      models.PaymentMethodStripe,
				ConnectedAccountID: "acct_123",
				ChargesEnabled:     true,
				DetailsSubmitted:   true,
			},
			wantErr: ErrPaymentUnreachable,
		},
		{
			name: "flagged primary on an account without charges enabled",
			deal: deposit,
			settings: func() models.PaymentSettings {
				s := integratedSettings()
				s.ChargesEnabled = false
				s.LegacyPaymentLink = "https://old.example.com/pay"
				return s
			}(),
			wantTier: models.PaymentTierLink,
			wantLink: "https://old.example.com/pay",
		},
		{
			name:       "manual primary",
			deal:       deposit,
			settings:   venmoSettings(),
			wantTier:   models.PaymentTierManual,
			wantHandle: "@corner-bakery",
		},
		{
			name: "manual wins over link",
			deal: deposit,
			settings: models.PaymentSettings{
				PrimaryMethod: models.PaymentMethodZelle,
				PaymentLink:   "https://pay.example.com/bakery",
			},
			wantTier: models.PaymentTierManual,
		},
		{
			name:     "legacy link",
			deal:     deposit,
			settings: models.PaymentSettings{LegacyPaymentLink: "https://old.example.com/pay"},
			wantTier: models.PaymentTierLink,
			wantLink: "https://old.example.com/pay",
		},
		{
			name:    "unreachable",
			deal:    deposit,
			wantErr: ErrPaymentUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := &models.Vendor{BusinessName: "Corner Bakery", PaymentSettings: tt.settings}
			decision, err := ResolvePaymentTier(tt.deal, vendor)
			if tt.wantErr != nil {
				requireCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("ResolvePaymentTier: %v", err)
			}
			if decision.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", decision.Tier, tt.wantTier)
			}
			if decision.Provider != tt.wantProvider {
				t.Errorf("provider = %q, want %q", decision.Provider, tt.wantProvider)
			}
			if decision.Handle != tt.wantHandle {
				t.Errorf("handle = %q, want %q", decision.Handle, tt.wantHandle)
			}
			if decision.Link != tt.wantLink {
				t.Errorf("link = %q, want %q", decision.Link, tt.wantLink)
			}
		})
	}
}

func TestBuildLinkRedirect(t *testing.T) {
	got, err := buildLinkRedirect("https://pay.example.com/bakery?amount=5", "client_reference_id", "tok123")
	if err != nil {
		t.Fatalf("buildLinkRedirect: %v", err)
	}
	if got != "https://pay.example.com/bakery?amount=5&client_reference_id=tok123" {
		t.Errorf("redirect = %s", got)
	}

	for _, bad := range []string{"pay.example.com/bakery", "/relative", "://nope"} {
		if _, err := buildLinkRedirect(bad, "ref", "tok"); err == nil {
			t.Errorf("buildLinkRedirect(%q) should fail", bad)
		}
	}
}

func TestUnreachableMessageNamesVendor(t *testing.T) {
	_, err := ResolvePaymentTier(&models.Deal{DepositAmount: ptrFloat(1)}, &models.Vendor{BusinessName: "Night Owl Tacos"})
	if err == nil || !strings.Contains(err.Error(), "Night Owl Tacos") {
		t.Errorf("err = %v", err)
	}
}
