package postgres

import (
	"fmt"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationModel mirrors a donations row. Amount travels as text so NUMERIC
// keeps its exact scale.
type DonationModel struct {
	ID                    uuid.UUID
	DonorName             string
	DonorEmail            string
	DonorPhone            string
	Amount                string
	Currency              string
	Recurrence            string
	Provider              string
	ProviderReference     string
	Status                string
	PaymentIdentifier     *string
	SubscriptionReference *string
	ReceiptNumber         *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
	NotifiedAt            *time.Time
}

func toDBModel(d *domain.Donation) DonationModel {
	return DonationModel{
		ID:                    d.ID,
		DonorName:             d.Donor.Name,
		DonorEmail:            d.Donor.Email,
		DonorPhone:            d.Donor.Phone,
		Amount:                d.Amount.Amount.StringFixed(d.Amount.Currency.Exponent()),
		Currency:              string(d.Amount.Currency),
		Recurrence:            string(d.Recurrence),
		Provider:              string(d.Provider),
		ProviderReference:     d.ProviderReference,
		Status:                string(d.Status),
		PaymentIdentifier:     d.PaymentIdentifier,
		SubscriptionReference: d.SubscriptionReference,
		ReceiptNumber:         d.ReceiptNumber,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		CompletedAt:           d.CompletedAt,
		NotifiedAt:            d.NotifiedAt,
	}
}

func toDomainModel(m DonationModel) (*domain.Donation, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("donation %s has unreadable amount %q: %w", m.ID, m.Amount, err)
	}

	return &domain.Donation{
		ID: m.ID,
		Donor: domain.Donor{
			Name:  m.DonorName,
			Email: m.DonorEmail,
			Phone: m.DonorPhone,
		},
		Amount:                domain.Money{Amount: amount, Currency: domain.Currency(m.Currency)},
		Recurrence:            domain.Recurrence(m.Recurrence),
		Provider:              domain.ProviderID(m.Provider),
		ProviderReference:     m.ProviderReference,
		Status:                domain.PaymentStatus(m.Status),
		PaymentIdentifier:     m.PaymentIdentifier,
		SubscriptionReference: m.SubscriptionReference,
		ReceiptNumber:         m.ReceiptNumber,
		CreatedAt:             m.CreatedAt.UTC(),
		UpdatedAt:             m.UpdatedAt.UTC(),
		CompletedAt:           utcPtr(m.CompletedAt),
		NotifiedAt:            utcPtr(m.NotifiedAt),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
