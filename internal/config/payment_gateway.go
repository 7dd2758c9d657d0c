package config

import (
	"errors"
	"time"
)

// PaymentConfig covers the integrated tier. Manual and link tiers are
// configured per vendor and need nothing here.
type PaymentConfig struct {
	Stripe          *StripeConfig   `yaml:"stripe"`
	Razorpay        *RazorpayConfig `yaml:"razorpay"`
	Currency        string          `yaml:"currency"`
	CheckoutTimeout time.Duration   `yaml:"checkout_timeout"`
	SuccessURL      string          `yaml:"success_url"`
	CancelURL       string          `yaml:"cancel_url"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func (p *PaymentConfig) StripeEnabled() bool {
	return p.Stripe != nil && p.Stripe.SecretKey != ""
}

func (p *PaymentConfig) RazorpayEnabled() bool {
	return p.Razorpay != nil && p.Razorpay.KeyID != "" && p.Razorpay.KeySecret != ""
}

// validate refuses an enabled provider whose webhooks could not be
// verified, since deposits are only confirmed through them.
func (p *PaymentConfig) validate() error {
	var errs []error
	if p.StripeEnabled() && p.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set"))
	}
	if p.RazorpayEnabled() && p.Razorpay.WebhookSecret == "" {
		errs = append(errs, errors.New("RAZORPAY_WEBHOOK_SECRET is required when Razorpay keys are set"))
	}
	if p.CheckoutTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_CHECKOUT_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func loadPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		Stripe: &StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Razorpay: &RazorpayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Currency:        getEnv("PAYMENT_CURRENCY", "usd"),
		CheckoutTimeout: getEnvAsDuration("PAYMENT_CHECKOUT_TIMEOUT", 10*time.Second),
		SuccessURL:      getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/claims/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:       getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/claims/cancelled"),
	}
}
