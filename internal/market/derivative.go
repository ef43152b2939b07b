package market

import (
	"regexp"
	"strings"
)

// expiryTokenPattern matches the expiry component embedded in exchange
// derivative symbols: either a two-digit year followed by a month name
// (monthly contracts, e.g. 24AUG) or the compact weekly form of two-digit
// year, one-character month (1-9, O, N, D) and two-digit day (e.g. 24O15).
var expiryTokenPattern = regexp.MustCompile(`\d{2}(?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC|[1-9OND]\d{2})`)

// isDerivativeSymbol reports whether a symbol names an option or futures
// contract rather than an underlying instrument. Both an option-type suffix
// (CE/PE/FUT) and an embedded expiry token must be present: a suffix alone
// would misclassify plain names like RELIANCE or SPACE.
func isDerivativeSymbol(symbol string) bool {
	upper := strings.ToUpper(symbol)

	var root string

	switch {
	case strings.HasSuffix(upper, "FUT"):
		root = strings.TrimSuffix(upper, "FUT")
	case strings.HasSuffix(upper, "CE"), strings.HasSuffix(upper, "PE"):
		root = upper[:len(upper)-2]
	default:
		return false
	}

	return expiryTokenPattern.MatchString(root)
}
