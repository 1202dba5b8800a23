// Package mock is the sandbox provider used when primary.mode=mock.
// It never talks to a network and always settles with the expected amount.
package mock

import (
	"context"
	"net/url"
	"strings"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
)

const referencePrefix = "mock_"

type Provider struct{}

var _ ports.ProviderAdapter = Provider{}

func New() Provider { return Provider{} }

func (Provider) ID() domain.ProviderID { return domain.ProviderMock }

func (Provider) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Currencies: []domain.Currency{domain.CurrencyUSD, domain.CurrencyNPR},
		Recurring:  true,
	}
}

// CreateSession sends the donor straight back to the return endpoint.
func (Provider) CreateSession(_ context.Context, req domain.SessionRequest) (*domain.Session, error) {
	ref := referencePrefix + uuid.NewString()

	q := url.Values{}
	q.Set("reference", ref)
	q.Set("donation_id", req.DonationID)
	sep := "?"
	if strings.Contains(req.SuccessURL, "?") {
		sep = "&"
	}

	return &domain.Session{Reference: ref, RedirectURL: req.SuccessURL + sep + q.Encode()}, nil
}

func (Provider) CheckStatus(_ context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	if !strings.HasPrefix(query.Reference, referencePrefix) {
		return nil, domain.NewProviderRejectedReferenceError(domain.ProviderMock, nil)
	}
	return &domain.PaymentOutcome{
		State:                domain.OutcomeCompleted,
		ConfirmedAmountMinor: query.Expected.MinorUnits(),
		ConfirmedCurrency:    query.Expected.Currency,
		ChargeID:             query.Reference,
		RawStatus:            "completed",
	}, nil
}
