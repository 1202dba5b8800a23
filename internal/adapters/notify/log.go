package notify

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
)

// LogNotifier only records that a receipt would have gone out. Used when no
// mailer is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendReceipt(_ context.Context, receipt domain.Receipt) error {
	n.logger.Info("receipt issued",
		"receipt_number", receipt.Number,
		"donation_id", receipt.DonationID,
		"amount", receipt.Amount.String(),
		"provider", receipt.Provider,
	)
	return nil
}
