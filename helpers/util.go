package helpers

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceCleaner  = regexp.MustCompile(`[^0-9.]`)
	digitsCleaner = regexp.MustCompile(`[^0-9]`)
	decimalRegex  = regexp.MustCompile(`\d+\.\d+`)
	leadingMinus  = regexp.MustCompile(`^[^0-9]*-`)
)

// ParsePrice turns price text such as "$1,299.99" or "499." into a decimal.
// Thousands separators and currency symbols are ignored. A minus sign before
// the first digit makes the result negative.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.Trim(priceCleaner.ReplaceAllString(text, ""), ".")
	if cleaned == "" {
		return decimal.Zero, errors.New("no digits in price text")
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if leadingMinus.MatchString(text) {
		price = price.Neg()
	}
	return price, nil
}

// JoinPrice combines a whole part ("1,299.") and a fraction part ("99").
func JoinPrice(whole, fraction string) (decimal.Decimal, error) {
	w := digitsCleaner.ReplaceAllString(whole, "")
	if w == "" {
		return decimal.Zero, errors.New("no digits in whole price part")
	}
	f := digitsCleaner.ReplaceAllString(fraction, "")
	if f == "" {
		return decimal.NewFromString(w)
	}
	return decimal.NewFromString(w + "." + f)
}

// ParseCount extracts an integer from text like "1,234 ratings".
func ParseCount(text string) int {
	n, err := strconv.Atoi(digitsCleaner.ReplaceAllString(text, ""))
	if err != nil {
		return 0
	}
	return n
}

// FirstDecimal returns the first "d.d" number in text, e.g. the 4.5 in
// "4.5 out of 5 stars".
func FirstDecimal(text string) (float64, bool) {
	m := decimalRegex.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRating parses a rating that may be a bare integer or decimal.
func ParseRating(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return FirstDecimal(text)
	}
	return v, true
}
