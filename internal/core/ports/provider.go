package ports

import (
	"context"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
)

// ProviderAdapter hides one payment provider behind a uniform contract.
type ProviderAdapter interface {
	ID() domain.ProviderID
	Capabilities() domain.Capabilities
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error)
	CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error)
}

// ProviderRegistry resolves an adapter for an enabled provider.
type ProviderRegistry interface {
	Lookup(id domain.ProviderID) (ProviderAdapter, error)
	Enabled() []domain.ProviderID
}
