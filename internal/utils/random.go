package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const numberBytes = "0123456789"

func GenerateRandomNumericString(length int) (string, error) {
	return generateRandom(rand.Reader, length, numberBytes)
}

func generateRandom(r io.Reader, length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, err := rand.Int(r, charsetLength)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}

// GenerateRedemptionCode returns a 6-digit numeric code. Leading zeros are
// allowed. Uniqueness is enforced by the claims index, not here.
func GenerateRedemptionCode() (string, error) {
	return GenerateRandomNumericString(RedemptionCodeLength)
}

// IsRedemptionCode reports whether s has the shape of a redemption code
// rather than a QR token.
func IsRedemptionCode(s string) bool {
	if len(s) != RedemptionCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NewQRToken returns the opaque token encoded in a claim's QR image.
func NewQRToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate qr token: %w", err)
	}
	return id.String(), nil
}

func IsQRToken(s string) bool {
	return uuid.Validate(s) == nil
}

// GeneratePaymentReference returns a vendor-facing reference such as
// "DD-K7M2QX". It is alphanumeric and prefixed, so it can never be mistaken
// for a redemption code.
func GeneratePaymentReference(prefix string) (string, error) {
	ref, err := generateRandom(rand.Reader, PaymentReferenceLength, paymentReferenceAlphabet)
	if err != nil {
		return "", err
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return ref, nil
	}
	return prefix + "-" + ref, nil
}
