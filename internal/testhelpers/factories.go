package testhelpers

import (
	"io"
	"log/slog"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DefaultIntent returns a valid one-time USD card donation.
func DefaultIntent() domain.DonationIntent {
	return domain.DonationIntent{
		Donor: domain.Donor{
			Name:  "Sita Sharma",
			Email: "sita@example.org",
			Phone: "+9779800000000",
		},
		Amount:     decimal.RequireFromString("50.00"),
		Currency:   domain.CurrencyUSD,
		Recurrence: domain.RecurrenceOneTime,
		Provider:   domain.ProviderStripe,
	}
}

// NewPendingDonation builds a pending record without going through a provider.
func NewPendingDonation(provider domain.ProviderID, amount string, currency domain.Currency) *domain.Donation {
	intent := DefaultIntent()
	intent.Provider = provider
	intent.Currency = currency
	intent.Amount = decimal.RequireFromString(amount)
	money, err := intent.Normalize()
	if err != nil {
		panic(err)
	}
	id := uuid.New()
	return domain.NewDonation(id, intent, money, "ref_"+id.String()[:8], time.Now().UTC().Truncate(time.Millisecond))
}
