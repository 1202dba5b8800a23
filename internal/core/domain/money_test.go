package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency Currency
		want     int64
	}{
		{"50", CurrencyUSD, 5000},
		{"50.00", CurrencyUSD, 5000},
		{"0.01", CurrencyUSD, 1},
		{"1000", CurrencyNPR, 100000},
		{"10.505", CurrencyUSD, 1050},
		{"10.515", CurrencyUSD, 1052},
		{"10.5051", CurrencyUSD, 1051},
		{"99999999.99", CurrencyNPR, 9999999999},
	}

	for _, tt := range tests {
		t.Run(tt.amount+" "+string(tt.currency), func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnits_Rejects(t *testing.T) {
	for _, amount := range []string{"0", "-1", "-0.01", "0.004"} {
		_, err := ToMinorUnits(decimal.RequireFromString(amount), CurrencyUSD)
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}

	_, err := ToMinorUnits(decimal.NewFromInt(5), Currency("EUR"))
	assert.ErrorIs(t, err, ErrInvalidIntent)

	_, err = ToMinorUnits(decimal.RequireFromString("1e30"), CurrencyUSD)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	for _, currency := range []Currency{CurrencyUSD, CurrencyNPR} {
		for cents := int64(1); cents <= 100000; cents += 37 {
			amount := decimal.New(cents, -currency.Exponent())

			minor, err := ToMinorUnits(amount, currency)
			require.NoError(t, err)

			back, err := FromMinorUnits(minor, currency)
			require.NoError(t, err)
			assert.True(t, back.Equal(amount), "%s %s", amount, currency)
		}
	}
}

func TestFromMinorUnits_Rejects(t *testing.T) {
	_, err := FromMinorUnits(0, CurrencyUSD)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = FromMinorUnits(-100, CurrencyNPR)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmountFromFloat_NonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := AmountFromFloat(f)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	d, err := AmountFromFloat(12.5)
	require.NoError(t, err)
	assert.Equal(t, "12.5", d.String())
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 25.10 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("25.1")))

	for _, bad := range []string{"", "abc", "NaN", "Infinity", "1,000"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("12.345"), CurrencyNPR)
	require.NoError(t, err)
	assert.Equal(t, "12.34 NPR", m.String())
	assert.Equal(t, int64(1234), m.MinorUnits())

	_, err = NewMoney(decimal.Zero, CurrencyUSD)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" npr ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyNPR, c)

	_, err = ParseCurrency("GBP")
	assert.ErrorIs(t, err, ErrInvalidIntent)
}
