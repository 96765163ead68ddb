// Package normalize turns free-form fare text into typed values.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Currency is the only currency prices are accepted in.
const Currency = "USD"

var (
	// ErrUnparseablePrice is returned when price text holds no usable amount.
	ErrUnparseablePrice = errors.New("unparseable price")

	// ErrForeignCurrency is returned for amounts quoted in anything but
	// Currency. It wraps ErrUnparseablePrice.
	ErrForeignCurrency = fmt.Errorf("%w: not quoted in %s", ErrUnparseablePrice, Currency)
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 12

const dollarSign = "$"

var (
	currencyCode   = regexp.MustCompile(`(?i)\b[a-z]{3}\b`)
	currencySymbol = regexp.MustCompile(`\p{Sc}`)
	leadingDigits  = regexp.MustCompile(`\d+`)
)

// ParsePrice parses text such as "$1,234.50" or "USD 99".
// The "$" sign, the USD code in any case, thousands separators and
// whitespace are stripped before parsing. Any other currency symbol or
// three-letter code fails with ErrForeignCurrency.
func ParsePrice(text string) (float64, error) {
	for _, code := range currencyCode.FindAllString(text, -1) {
		if !strings.EqualFold(code, Currency) {
			return 0, fmt.Errorf("%w: %q", ErrForeignCurrency, text)
		}
	}
	for _, sym := range currencySymbol.FindAllString(text, -1) {
		if sym != dollarSign {
			return 0, fmt.Errorf("%w: %q", ErrForeignCurrency, text)
		}
	}

	cleaned := currencySymbol.ReplaceAllString(text, "")
	cleaned = currencyCode.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparseablePrice, text)
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseablePrice, text)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("%w: non-positive amount %q", ErrUnparseablePrice, text)
	}
	return price, nil
}

// ParseStops parses text such as "Nonstop", "Direct" or "2 stops".
// Text without any digit counts as nonstop.
func ParseStops(text string) int {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "nonstop") || strings.Contains(lower, "direct") {
		return 0
	}

	digits := leadingDigits.FindString(text)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Fingerprint returns a short deterministic identifier for a flight.
// Identical inputs always give the same identifier.
func Fingerprint(airline, departure, arrival string, price float64, source string) string {
	data := strings.Join([]string{
		airline,
		departure,
		arrival,
		strconv.FormatFloat(price, 'f', -1, 64),
		source,
	}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
