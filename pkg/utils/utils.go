// Package utils holds small decimal/ID/time helpers shared across the
// regime engine's boundary types — nothing here touches regime or strategy
// logic, which stay in float64 throughout.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateID returns a random hex identifier, optionally prefixed.
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	rand.Read(b)
	id := hex.EncodeToString(b)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// FormatSymbol normalizes an exchange symbol into BASE/QUOTE form,
// tolerating the hyphen/underscore separators different feeds use.
func FormatSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "-", "/")
	symbol = strings.ReplaceAll(symbol, "_", "/")

	if !strings.Contains(symbol, "/") {
		for _, quote := range []string{"USDT", "USDC", "USD", "BTC", "ETH", "BNB"} {
			if strings.HasSuffix(symbol, quote) && symbol != quote {
				return strings.TrimSuffix(symbol, quote) + "/" + quote
			}
		}
	}
	return symbol
}

// ParseSymbol splits a BASE/QUOTE symbol into its two legs.
func ParseSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return symbol, ""
}

// RoundToTickSize rounds price down to the nearest multiple of tickSize.
func RoundToTickSize(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	return price.Div(tickSize).Floor().Mul(tickSize)
}

// FormatMoney renders a decimal with a currency-appropriate number of
// fractional digits.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return "$" + d.StringFixed(2)
	case "BTC":
		return d.StringFixed(8) + " BTC"
	case "ETH":
		return d.StringFixed(6) + " ETH"
	default:
		return d.String() + " " + currency
	}
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal restricts value to [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// TimeRange is an inclusive [Start, End] window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the span of the range.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Contains reports whether t falls within the range, inclusive of both ends.
func (tr TimeRange) Contains(t time.Time) bool {
	return (t.Equal(tr.Start) || t.After(tr.Start)) && (t.Equal(tr.End) || t.Before(tr.End))
}
