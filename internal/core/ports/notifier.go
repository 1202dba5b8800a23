package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
)

// ReceiptNotifier delivers a receipt to the donor. Delivery is best effort.
type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, receipt domain.Receipt) error
}

type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per key inside fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}
