// Package currency maps currency symbols to ISO-4217 codes and back.
package currency

import "strings"

// Default values returned for anything unrecognised
const (
	DefaultCode   = "USD"
	DefaultSymbol = "$"
)

var symbolToCode = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
	"¥": "JPY",
}

var codeToSymbol = map[string]string{
	"USD": "$",
	"GBP": "£",
	"EUR": "€",
	"JPY": "¥",
}

// SymbolToCode returns the ISO code for a currency symbol, or USD.
func SymbolToCode(sym string) string {
	if code, ok := symbolToCode[strings.TrimSpace(sym)]; ok {
		return code
	}
	return DefaultCode
}

// CodeToSymbol returns the symbol for an ISO code, or "$".
func CodeToSymbol(code string) string {
	if sym, ok := codeToSymbol[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return sym
	}
	return DefaultSymbol
}

// NormalizeCode upper-cases a code taken from page metadata and falls back
// to USD when it is empty.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCode
	}
	return code
}
