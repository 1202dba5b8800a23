package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RetryAdapter retries status lookups on transient failures. Session
// creation is not retried: wallet providers would mint a second session.
type RetryAdapter struct {
	inner      ports.ProviderAdapter
	baseDelay  time.Duration
	maxRetries int
	tracer     trace.Tracer
}

var _ ports.ProviderAdapter = (*RetryAdapter)(nil)

func NewRetryAdapter(inner ports.ProviderAdapter, cfg config.RetryConfig) *RetryAdapter {
	return &RetryAdapter{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: int(cfg.MaxRetries),
		tracer:     otel.Tracer("github.com/DanielPopoola/donation-gateway/internal/adapters/provider"),
	}
}

func (r *RetryAdapter) ID() domain.ProviderID { return r.inner.ID() }

func (r *RetryAdapter) Capabilities() domain.Capabilities { return r.inner.Capabilities() }

func (r *RetryAdapter) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "provider.create_session",
		trace.WithAttributes(attribute.String("provider", string(r.inner.ID()))))
	defer span.End()

	session, err := r.inner.CreateSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, service.ToErrorCode(err))
	}
	return session, err
}

// CheckStatus with retry logic
func (r *RetryAdapter) CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "provider.check_status",
		trace.WithAttributes(attribute.String("provider", string(r.inner.ID()))))
	defer span.End()

	outcome, err := retry(r, ctx, func(ctx context.Context) (*domain.PaymentOutcome, error) {
		return r.inner.CheckStatus(ctx, query)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, service.ToErrorCode(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("provider.outcome", string(outcome.State)))
	return outcome, nil
}

// Generic retry helper
func retry[T any](r *RetryAdapter, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error
	attempts := r.maxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !service.IsRetryable(err) {
			return nil, err
		}

		if attempt < attempts-1 {
			timer := time.NewTimer(r.backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Backoff calculation with exponential delay and jitter
func (r *RetryAdapter) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	if r.baseDelay < time.Second {
		// keep jitter proportional for short test delays
		jitter = time.Duration(rand.Int63n(int64(r.baseDelay) + 1))
	}

	return base + jitter
}
