package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
)

type Verifier interface {
	Verify(ctx context.Context, donationID uuid.UUID, reference string) (*domain.Donation, error)
}

type ReceiptDeliverer interface {
	Deliver(ctx context.Context, d *domain.Donation) error
}

// Report summarizes one reconcile pass.
type Report struct {
	Checked       int
	Completed     int
	Failed        int
	StillPending  int
	VerifyErrors  int
	ReceiptsSent  int
	ReceiptErrors int
}

// Reconciler is the out-of-band audit for donations the client poll loop
// gave up on, plus receipts whose delivery failed.
type Reconciler struct {
	repo      ports.DonationRepository
	verifier  Verifier
	receipts  ReceiptDeliverer
	olderThan time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(
	repo ports.DonationRepository,
	verifier Verifier,
	receipts ReceiptDeliverer,
	olderThan time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:      repo,
		verifier:  verifier,
		receipts:  receipts,
		olderThan: olderThan,
		batchSize: batchSize,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler", "interval", interval, "batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) Report {
	var report Report
	r.reconcileStalePending(ctx, &report)
	r.redeliverReceipts(ctx, &report)

	r.logger.Info("reconcile pass finished",
		"checked", report.Checked,
		"completed", report.Completed,
		"failed", report.Failed,
		"still_pending", report.StillPending,
		"verify_errors", report.VerifyErrors,
		"receipts_sent", report.ReceiptsSent,
		"receipt_errors", report.ReceiptErrors,
	)
	return report
}

func (r *Reconciler) reconcileStalePending(ctx context.Context, report *Report) {
	stale, err := r.repo.FindStalePending(ctx, r.now().Add(-r.olderThan), r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale pending donations", "error", err)
		return
	}

	for _, d := range stale {
		if ctx.Err() != nil {
			return
		}
		report.Checked++

		// The stored reference is passed so strict mode never trips here.
		updated, err := r.verifier.Verify(ctx, d.ID, d.ProviderReference)
		if err != nil {
			report.VerifyErrors++
			r.logger.Warn("reconcile verify failed",
				"donation_id", d.ID,
				"provider", d.Provider,
				"error", err,
			)
			continue
		}

		switch updated.Status {
		case domain.StatusCompleted:
			report.Completed++
		case domain.StatusFailed:
			report.Failed++
		default:
			report.StillPending++
		}
	}
}

func (r *Reconciler) redeliverReceipts(ctx context.Context, report *Report) {
	unnotified, err := r.repo.FindUnnotified(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch donations without receipts", "error", err)
		return
	}

	for _, d := range unnotified {
		if ctx.Err() != nil {
			return
		}
		if err := r.receipts.Deliver(ctx, d); err != nil {
			report.ReceiptErrors++
			continue
		}
		report.ReceiptsSent++
	}
}
