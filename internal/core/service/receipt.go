package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

// ReceiptService sends the donor receipt and stamps notified_at once it went out.
type ReceiptService struct {
	repo     ports.DonationRepository
	notifier ports.ReceiptNotifier
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewReceiptService(repo ports.DonationRepository, notifier ports.ReceiptNotifier, timeout time.Duration, logger *slog.Logger) *ReceiptService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReceiptService{
		repo:     repo,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Deliver never changes payment state. A failed send leaves notified_at
// empty so a later reconcile run can retry it.
func (s *ReceiptService) Deliver(ctx context.Context, d *domain.Donation) error {
	if d.Status != domain.StatusCompleted {
		return domain.NewInvalidTransitionError(d.Status, domain.StatusCompleted)
	}

	// The request that completed the donation may already be gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	receipt := domain.ReceiptFor(d)
	if err := s.notifier.SendReceipt(ctx, receipt); err != nil {
		s.logger.Warn("receipt delivery failed",
			"donation_id", d.ID,
			"receipt_number", receipt.Number,
			"error", err,
		)
		return err
	}

	at := s.now()
	if err := s.repo.MarkNotified(ctx, d.ID, at); err != nil {
		s.logger.Error("receipt sent but notified_at not recorded",
			"donation_id", d.ID,
			"error", err,
		)
		return err
	}
	d.NotifiedAt = &at

	s.logger.Info("receipt delivered", "donation_id", d.ID, "receipt_number", receipt.Number)
	return nil
}
