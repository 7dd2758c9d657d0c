package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	nonDigitRegex = regexp.MustCompile(`[^\d]`)
)

func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(FormatPhone(phone, DefaultCountryCode))
}

// FormatPhone returns phone in E.164 form, prefixing countryCode when the
// number was stored without one.
func FormatPhone(phone, countryCode string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(trimmed, "+")
	cleaned := nonDigitRegex.ReplaceAllString(trimmed, "")
	if hasPlus {
		return "+" + cleaned
	}

	prefix := strings.TrimPrefix(countryCode, "+")
	if len(cleaned) == 10 {
		cleaned = prefix + cleaned
	}
	return "+" + cleaned
}

func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}

	// Show last 4 digits
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
