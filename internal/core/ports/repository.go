package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/google/uuid"
)

// DonationRepository is the persistence contract every store backend implements.
type DonationRepository interface {
	CreateDonation(ctx context.Context, donation *domain.Donation) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	FindByProviderReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error)

	// TransitionStatus applies t only if the record is still pending and its
	// reference matches. It reports whether this call performed the write.
	TransitionStatus(ctx context.Context, t domain.Transition) (bool, error)

	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error)
	FindUnnotified(ctx context.Context, limit int) ([]*domain.Donation, error)
}
