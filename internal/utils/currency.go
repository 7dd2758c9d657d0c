package utils

import (
	"fmt"
	"math"
	"strings"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "C$",
	"AUD": "A$",
	"INR": "₹",
}

func FormatCurrency(amount float64, currencyCode string) string {
	symbol, ok := currencySymbols[strings.ToUpper(currencyCode)]
	if !ok {
		symbol = currencySymbols[DefaultCurrency]
	}
	return fmt.Sprintf("%s%.2f", symbol, RoundCurrency(amount))
}

// RoundCurrency rounds to cents.
func RoundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}
