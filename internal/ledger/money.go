package ledger

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a record carries no currency.
const DefaultCurrency = "UAH"

// NormalizeCurrency upper-cases code and falls back to DefaultCurrency.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
	return money.GetCurrency(NormalizeCurrency(code)) != nil
}

// fraction returns the number of minor-unit digits for the currency.
func fraction(code string) int32 {
	c := money.GetCurrency(NormalizeCurrency(code))
	if c == nil {
		return 2
	}
	return int32(c.Fraction)
}

// ToMinorUnits converts an amount to integer minor units (e.g. cents).
// Sub-minor precision is rounded half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(fraction(currency)).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a decimal amount.
func FromMinorUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -fraction(currency))
}

// FormatAmount renders an amount with its currency symbol, e.g. "₴12.50".
func FormatAmount(amount decimal.Decimal, currency string) string {
	code := NormalizeCurrency(currency)
	if money.GetCurrency(code) == nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), code)
	}
	return money.New(ToMinorUnits(amount, code), code).Display()
}
