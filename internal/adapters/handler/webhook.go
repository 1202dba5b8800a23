package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/google/uuid"
)

// HandleStripeWebhook feeds signed checkout events into the same verify path
// as polling. Stripe redelivers on non-2xx, so only retryable failures get one.
func (h *DonationHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripeWebhook == nil {
		h.respondWithError(w, r, domain.NewProviderUnavailableError(domain.ProviderStripe))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(err))
		return
	}

	event, err := h.stripeWebhook.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected stripe webhook", "error", err)
		h.respondWithError(w, r, service.NewInvalidInputError(errors.New("invalid webhook signature or payload")))
		return
	}
	if event == nil {
		respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var donation *domain.Donation
	if id, perr := uuid.Parse(event.DonationID); perr == nil {
		donation, err = h.donations.Verify(r.Context(), id, event.SessionID)
	} else {
		donation, err = h.donations.VerifyByReference(r.Context(), domain.ProviderStripe, event.SessionID)
	}

	if err != nil {
		if service.IsRetryable(err) {
			h.respondWithError(w, r, err)
			return
		}
		h.logger.Warn("stripe webhook not applied",
			"event_id", event.ID,
			"event_type", event.Type,
			"code", service.ToErrorCode(err),
			"error", err,
		)
		respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	h.logger.Info("stripe webhook applied",
		"event_id", event.ID,
		"event_type", event.Type,
		"donation_id", donation.ID,
		"status", donation.Status,
	)
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
