package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/DanielPopoola/donation-gateway/internal/core/service"

type Config struct {
	// PublicBaseURL is where providers send donors back to.
	PublicBaseURL string
	// StrictVerification requires a supplied reference to equal the stored one.
	StrictVerification bool
}

type StartResult struct {
	Donation *domain.Donation
	Session  *domain.Session
}

// Orchestrator drives a donation from intent to a terminal payment status.
type Orchestrator struct {
	repo      ports.DonationRepository
	providers ports.ProviderRegistry
	receipts  *ReceiptService
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() uuid.UUID
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func NewOrchestrator(
	repo ports.DonationRepository,
	providers ports.ProviderRegistry,
	receipts *ReceiptService,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		repo:      repo,
		providers: providers,
		receipts:  receipts,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a provider session and persists a pending donation for it.
// Nothing is persisted unless the provider issued a session.
func (o *Orchestrator) Start(ctx context.Context, intent domain.DonationIntent) (*StartResult, error) {
	ctx, span := o.tracer.Start(ctx, "donation.start",
		trace.WithAttributes(attribute.String("donation.provider", string(intent.Provider))))
	defer span.End()

	amount, err := intent.Normalize()
	if err != nil {
		return nil, o.fail(span, err)
	}
	intent.Currency = amount.Currency

	adapter, err := o.providers.Lookup(intent.Provider)
	if err != nil {
		return nil, o.fail(span, err)
	}
	if !adapter.Capabilities().SupportsCurrency(amount.Currency) {
		return nil, o.fail(span, domain.NewInvalidIntentError(
			fmt.Sprintf("provider %s does not accept %s", intent.Provider, amount.Currency)))
	}
	if intent.Recurrence == domain.RecurrenceMonthly && !adapter.Capabilities().Recurring {
		return nil, o.fail(span, domain.NewInvalidIntentError(
			fmt.Sprintf("provider %s does not support monthly donations", intent.Provider)))
	}

	id := o.newID()
	session, err := adapter.CreateSession(ctx, domain.SessionRequest{
		DonationID: id.String(),
		Donor:      intent.Donor,
		Amount:     amount,
		Recurrence: intent.Recurrence,
		SuccessURL: o.returnURL(intent.Provider, "return"),
		CancelURL:  o.returnURL(intent.Provider, "cancel") + "?donation_id=" + id.String(),
	})
	if err != nil {
		o.logger.Warn("provider session creation failed",
			"provider", intent.Provider,
			"amount", amount.String(),
			"error", err,
		)
		return nil, o.fail(span, err)
	}
	if session.Reference == "" {
		return nil, o.fail(span, NewInternalError(fmt.Errorf("provider %s returned an empty session reference", intent.Provider)))
	}

	donation := domain.NewDonation(id, intent, amount, session.Reference, o.now())
	if err := o.repo.CreateDonation(ctx, donation); err != nil {
		o.logger.Error("failed to persist donation after session creation",
			"donation_id", id,
			"provider", intent.Provider,
			"reference", session.Reference,
			"error", err,
		)
		return nil, o.fail(span, NewInternalError(err))
	}

	span.SetAttributes(attribute.String("donation.id", id.String()))
	o.logger.Info("donation started",
		"donation_id", id,
		"provider", intent.Provider,
		"amount", amount.String(),
		"recurrence", intent.Recurrence,
	)

	return &StartResult{Donation: donation, Session: session}, nil
}

// Verify asks the provider for the authoritative status and records it.
// Calling it on a terminal donation returns the record unchanged.
func (o *Orchestrator) Verify(ctx context.Context, donationID uuid.UUID, reference string) (*domain.Donation, error) {
	ctx, span := o.tracer.Start(ctx, "donation.verify",
		trace.WithAttributes(attribute.String("donation.id", donationID.String())))
	defer span.End()

	donation, err := o.repo.FindByID(ctx, donationID)
	if err != nil {
		return nil, o.fail(span, err)
	}

	reference = strings.TrimSpace(reference)
	if o.cfg.StrictVerification && reference != "" && reference != donation.ProviderReference {
		o.logger.Warn("verification reference does not match stored reference",
			"donation_id", donation.ID,
			"provider", donation.Provider,
		)
		return nil, o.fail(span, domain.NewReferenceMismatchError())
	}

	if donation.IsTerminal() {
		return donation, nil
	}

	lookupRef := donation.ProviderReference
	if reference != "" {
		lookupRef = reference
	}

	adapter, err := o.providers.Lookup(donation.Provider)
	if err != nil {
		return donation, o.fail(span, err)
	}

	outcome, err := adapter.CheckStatus(ctx, domain.StatusQuery{Reference: lookupRef, Expected: donation.Amount})
	if err != nil {
		o.logger.Warn("provider status check failed",
			"donation_id", donation.ID,
			"provider", donation.Provider,
			"error", err,
			"retryable", IsRetryable(err),
		)
		return donation, o.fail(span, err)
	}

	span.SetAttributes(attribute.String("donation.outcome", string(outcome.State)))
	return o.applyOutcome(ctx, donation, outcome)
}

// VerifyByReference resolves the donation from the provider's reference first.
// Used by provider callbacks that only carry their own identifier.
func (o *Orchestrator) VerifyByReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	donation, err := o.repo.FindByProviderReference(ctx, provider, reference)
	if err != nil {
		return nil, err
	}
	return o.Verify(ctx, donation.ID, reference)
}

func (o *Orchestrator) applyOutcome(ctx context.Context, d *domain.Donation, outcome *domain.PaymentOutcome) (*domain.Donation, error) {
	now := o.now()

	switch outcome.State {
	case domain.OutcomePending:
		return d, nil

	case domain.OutcomeFailed:
		updated, swapped, err := o.transition(ctx, d, domain.Transition{
			DonationID: d.ID,
			Reference:  d.ProviderReference,
			To:         domain.StatusFailed,
			At:         now,
		})
		if swapped {
			o.logger.Info("donation failed",
				"donation_id", d.ID,
				"provider", d.Provider,
				"provider_status", outcome.RawStatus,
			)
		}
		return updated, err

	case domain.OutcomeCompleted:
		if outcome.ConfirmedCurrency != d.Amount.Currency || outcome.ConfirmedAmountMinor != d.Amount.MinorUnits() {
			o.logger.Warn("provider confirmed a different amount",
				"donation_id", d.ID,
				"provider", d.Provider,
				"expected_minor", d.Amount.MinorUnits(),
				"expected_currency", d.Amount.Currency,
				"confirmed_minor", outcome.ConfirmedAmountMinor,
				"confirmed_currency", outcome.ConfirmedCurrency,
			)
			return d, domain.NewAmountMismatchError(d.Amount, outcome.ConfirmedAmountMinor, outcome.ConfirmedCurrency)
		}

		chargeID := outcome.ChargeID
		if chargeID == "" {
			chargeID = d.ProviderReference
		}
		paymentID := domain.PaymentIdentifier(d.Provider, chargeID)
		receiptNo := domain.ReceiptNumber(d.ID, now)

		t := domain.Transition{
			DonationID:        d.ID,
			Reference:         d.ProviderReference,
			To:                domain.StatusCompleted,
			PaymentIdentifier: &paymentID,
			ReceiptNumber:     &receiptNo,
			At:                now,
		}
		if d.Recurrence == domain.RecurrenceMonthly && outcome.SubscriptionID != "" {
			sub := outcome.SubscriptionID
			t.SubscriptionReference = &sub
		}

		updated, swapped, err := o.transition(ctx, d, t)
		if err != nil || !swapped {
			return updated, err
		}

		o.logger.Info("donation completed",
			"donation_id", d.ID,
			"provider", d.Provider,
			"payment_identifier", paymentID,
			"amount", d.Amount.String(),
		)

		if o.receipts != nil {
			// Delivery failures are recorded by the receipt service and
			// picked up again by the reconciler.
			_ = o.receipts.Deliver(ctx, updated)
		}
		return updated, nil
	}

	return d, NewInternalError(fmt.Errorf("unknown outcome state %q", outcome.State))
}

// transition performs the conditional write. The loser of a race gets the
// winner's record back and swapped=false.
func (o *Orchestrator) transition(ctx context.Context, d *domain.Donation, t domain.Transition) (*domain.Donation, bool, error) {
	if err := d.CanTransitionTo(t.To); err != nil {
		return d, false, err
	}

	swapped, err := o.repo.TransitionStatus(ctx, t)
	if err != nil {
		return d, false, NewInternalError(err)
	}

	if !swapped {
		current, err := o.repo.FindByID(ctx, d.ID)
		if err != nil {
			return d, false, err
		}
		return current, false, nil
	}

	updated := *d
	updated.Apply(t)
	return &updated, true, nil
}

func (o *Orchestrator) returnURL(provider domain.ProviderID, kind string) string {
	return fmt.Sprintf("%s/api/payments/%s/%s", strings.TrimRight(o.cfg.PublicBaseURL, "/"), provider, kind)
}

func (o *Orchestrator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, ToErrorCode(err))
	return err
}
