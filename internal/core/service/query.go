package service

import (
	"context"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
)

type DonationQueryService struct {
	repo ports.DonationRepository
}

func NewDonationQueryService(repo ports.DonationRepository) *DonationQueryService {
	return &DonationQueryService{
		repo: repo,
	}
}

func (s *DonationQueryService) GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return s.repo.FindByID(ctx, id)
}
