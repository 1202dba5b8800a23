package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 code accepted for donations.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyNPR Currency = "NPR"
)

// minor-unit exponent per supported currency
var currencyExponents = map[Currency]int32{
	CurrencyUSD: 2,
	CurrencyNPR: 2,
}

func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := currencyExponents[c]; !ok {
		return "", NewUnsupportedCurrencyError(code)
	}
	return c, nil
}

func (c Currency) Exponent() int32 {
	return currencyExponents[c]
}

func (c Currency) IsSupported() bool {
	_, ok := currencyExponents[c]
	return ok
}

// Money is a donation amount held at the currency's minor-unit precision.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney validates the amount and rounds it half-to-even to the currency exponent.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsSupported() {
		return Money{}, NewUnsupportedCurrencyError(string(currency))
	}
	if !amount.IsPositive() {
		return Money{}, NewInvalidAmountError(amount.String())
	}
	rounded := amount.RoundBank(currency.Exponent())
	if !rounded.IsPositive() {
		return Money{}, NewInvalidAmountError(amount.String())
	}
	return Money{Amount: rounded, Currency: currency}, nil
}

// MinorUnits returns the amount as an integer count of minor units.
// Money built through NewMoney always converts cleanly.
func (m Money) MinorUnits() int64 {
	minor, err := ToMinorUnits(m.Amount, m.Currency)
	if err != nil {
		return 0
	}
	return minor
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.Exponent()) + " " + string(m.Currency)
}

// ToMinorUnits converts a decimal amount into the provider's integer minor units,
// rounding half-to-even at the currency exponent.
func ToMinorUnits(amount decimal.Decimal, currency Currency) (int64, error) {
	if !currency.IsSupported() {
		return 0, NewUnsupportedCurrencyError(string(currency))
	}
	if !amount.IsPositive() {
		return 0, NewInvalidAmountError(amount.String())
	}

	minor := amount.RoundBank(currency.Exponent()).Shift(currency.Exponent())
	if !minor.IsPositive() {
		return 0, NewInvalidAmountError(amount.String())
	}

	big := minor.BigInt()
	if !big.IsInt64() {
		return 0, NewInvalidAmountError(amount.String())
	}
	return big.Int64(), nil
}

// FromMinorUnits is the exact inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency Currency) (decimal.Decimal, error) {
	if !currency.IsSupported() {
		return decimal.Zero, NewUnsupportedCurrencyError(string(currency))
	}
	if minor <= 0 {
		return decimal.Zero, NewInvalidAmountError(decimal.NewFromInt(minor).String())
	}
	return decimal.New(minor, -currency.Exponent()), nil
}

// AmountFromFloat rejects NaN and infinities before handing the value to decimal,
// which would otherwise panic.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, NewInvalidAmountError("non-finite")
	}
	return decimal.NewFromFloat(f), nil
}

// ParseAmount parses a user-entered decimal string.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, NewInvalidAmountError(s)
	}
	return d, nil
}
