package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/esewa"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/stripe"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

type DonationService interface {
	Start(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error)
	Verify(ctx context.Context, donationID uuid.UUID, reference string) (*domain.Donation, error)
	VerifyByReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error)
}

type QueryService interface {
	GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
}

type StripeWebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*stripe.WebhookEvent, error)
}

type EsewaCallbackParser interface {
	ParseCallback(data string) (*esewa.Callback, error)
}

type Config struct {
	// FrontendURL receives donors after a provider return or cancel.
	FrontendURL string
	// VerifyRetryAfter and VerifyMaxAttempts bound the client poll loop.
	VerifyRetryAfter  time.Duration
	VerifyMaxAttempts int
}

type DonationHandler struct {
	donations     DonationService
	queries       QueryService
	stripeWebhook StripeWebhookParser
	esewa         EsewaCallbackParser
	cfg           Config
	logger        *slog.Logger
	validate      *validator.Validate
}

type Option func(*DonationHandler)

func WithStripeWebhook(p StripeWebhookParser) Option {
	return func(h *DonationHandler) { h.stripeWebhook = p }
}

func WithEsewaCallbacks(p EsewaCallbackParser) Option {
	return func(h *DonationHandler) { h.esewa = p }
}

func NewDonationHandler(
	donations DonationService,
	queries QueryService,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *DonationHandler {
	if cfg.VerifyRetryAfter <= 0 {
		cfg.VerifyRetryAfter = 3 * time.Second
	}
	if cfg.VerifyMaxAttempts <= 0 {
		cfg.VerifyMaxAttempts = 10
	}
	h := &DonationHandler{
		donations: donations,
		queries:   queries,
		cfg:       cfg,
		logger:    logger,
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the API. guard wraps every endpoint that can reach
// a provider status lookup; nil leaves them unguarded.
func (h *DonationHandler) RegisterRoutes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	guarded := func(fn http.HandlerFunc) http.Handler { return guard(fn) }

	mux.HandleFunc("POST /api/donations", h.HandleStart)
	mux.Handle("GET /api/donations/verify", guarded(h.HandleVerify))
	mux.HandleFunc("GET /api/donations/{donationID}", h.HandleGetDonation)

	mux.Handle("GET /api/payments/stripe/return", guarded(h.HandleStripeReturn))
	mux.Handle("GET /api/payments/khalti/return", guarded(h.HandleKhaltiReturn))
	mux.Handle("GET /api/payments/esewa/return", guarded(h.HandleEsewaReturn))
	mux.Handle("GET /api/payments/mock/return", guarded(h.HandleMockReturn))
	mux.Handle("GET /api/payments/{provider}/cancel", guarded(h.HandleCancel))

	mux.HandleFunc("POST /api/webhooks/stripe", h.HandleStripeWebhook)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

// HandleHealth reports liveness
// @Summary  Liveness probe
// @Tags     ops
// @Produce  json
// @Success  200  {object}  APIResponse
// @Router   /healthz [get]
func (h *DonationHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
