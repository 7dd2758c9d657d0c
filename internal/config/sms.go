package config

import "fmt"

// SMSConfig selects how redemption codes are texted to customers. An empty
// provider turns code delivery off.
type SMSConfig struct {
	Provider    string        `yaml:"provider"`
	Twilio      *TwilioConfig `yaml:"twilio"`
	SNS         *SNSConfig    `yaml:"sns"`
	DefaultFrom string        `yaml:"default_from"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// SNSConfig relies on the default AWS credential chain.
type SNSConfig struct {
	Region string `yaml:"region"`
}

// Sender is the from value passed with each message.
func (s *SMSConfig) Sender() string {
	if s.Provider == "twilio" && s.Twilio.FromNumber != "" {
		return s.Twilio.FromNumber
	}
	return s.DefaultFrom
}

func (s *SMSConfig) validate() error {
	switch s.Provider {
	case "":
		return nil
	case "twilio":
		if s.Twilio.AccountSID == "" || s.Twilio.AuthToken == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for SMS_PROVIDER=twilio")
		}
	case "sns":
		if s.SNS.Region == "" {
			return fmt.Errorf("AWS_REGION is required for SMS_PROVIDER=sns")
		}
	default:
		return fmt.Errorf("unknown SMS_PROVIDER %q", s.Provider)
	}
	return nil
}

func loadSMSConfig() *SMSConfig {
	return &SMSConfig{
		Provider: getEnv("SMS_PROVIDER", ""),
		Twilio: &TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		SNS: &SNSConfig{
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
		DefaultFrom: getEnv("SMS_DEFAULT_FROM", "DealDrop"),
	}
}
