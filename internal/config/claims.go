package config

import "time"

type ClaimsConfig struct {
	CodeMaxAttempts        int           `yaml:"code_max_attempts"`
	PaymentReferencePrefix string        `yaml:"payment_reference_prefix"`
	LockTTL                time.Duration `yaml:"lock_ttl"`
	CheckoutSessionTTL     time.Duration `yaml:"checkout_session_ttl"`
	LinkCorrelationParam   string        `yaml:"link_correlation_param"`
	QRImageSize            int           `yaml:"qr_image_size"`
	QRStoragePrefix        string        `yaml:"qr_storage_prefix"`
	SendCodeSMS            bool          `yaml:"send_code_sms"`
	LoyaltyAsync           bool          `yaml:"loyalty_async"`
	LoyaltyTimeout         time.Duration `yaml:"loyalty_timeout"`
	ListLimit              int           `yaml:"list_limit"`
	WebhookDedupeTTL       time.Duration `yaml:"webhook_dedupe_ttl"`
	DealExpirySweep        time.Duration `yaml:"deal_expiry_sweep"`
	CheckoutSweep          time.Duration `yaml:"checkout_sweep"`
	CheckoutSweepBatch     int           `yaml:"checkout_sweep_batch"`
}

func loadClaimsConfig() *ClaimsConfig {
	return &ClaimsConfig{
		CodeMaxAttempts:        getEnvAsInt("CLAIM_CODE_MAX_ATTEMPTS", 5),
		PaymentReferencePrefix: getEnv("CLAIM_PAYMENT_REFERENCE_PREFIX", "DD"),
		LockTTL:                getEnvAsDuration("CLAIM_LOCK_TTL", 15*time.Second),
		CheckoutSessionTTL:     getEnvAsDuration("CHECKOUT_SESSION_TTL", 30*time.Minute),
		LinkCorrelationParam:   getEnv("CLAIM_LINK_CORRELATION_PARAM", "client_reference_id"),
		QRImageSize:            getEnvAsInt("CLAIM_QR_IMAGE_SIZE", 256),
		QRStoragePrefix:        getEnv("CLAIM_QR_STORAGE_PREFIX", "qr"),
		SendCodeSMS:            getEnvAsBool("CLAIM_SEND_CODE_SMS", true),
		LoyaltyAsync:           getEnvAsBool("LOYALTY_ASYNC", true),
		LoyaltyTimeout:         getEnvAsDuration("LOYALTY_TIMEOUT", 5*time.Second),
		ListLimit:              getEnvAsInt("CLAIM_LIST_LIMIT", 100),
		WebhookDedupeTTL:       getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		DealExpirySweep:        getEnvAsDuration("DEAL_EXPIRY_SWEEP_INTERVAL", time.Minute),
		CheckoutSweep:          getEnvAsDuration("CHECKOUT_SWEEP_INTERVAL", 5*time.Minute),
		CheckoutSweepBatch:     getEnvAsInt("CHECKOUT_SWEEP_BATCH", 200),
	}
}
