package notify

import (
	"context"
	"errors"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

// Fanout sends to every notifier and reports all failures together. The
// receipt counts as delivered only when every target accepted it.
type Fanout []ports.ReceiptNotifier

func (f Fanout) SendReceipt(ctx context.Context, receipt domain.Receipt) error {
	var errs []error
	for _, n := range f {
		if err := n.SendReceipt(ctx, receipt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
