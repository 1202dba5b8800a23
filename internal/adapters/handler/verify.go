package handler

import (
	"errors"
	"net/http"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

type VerifyParams struct {
	DonationID string
	SessionID  string
	Provider   string
}

type VerifyResponse struct {
	// Success is true once the donation completed.
	Success  bool           `json:"success"`
	Status   string         `json:"status"`
	Session  string         `json:"session,omitempty"`
	Donation PublicDonation `json:"donation"`
	// Poll hints, only set while the donation is still pending.
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`
	MaxAttempts  int   `json:"max_attempts,omitempty"`
}

func bindVerifyParams(r *http.Request) (VerifyParams, error) {
	var p VerifyParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "donation_id", q, &p.DonationID); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "session_id", q, &p.SessionID); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "provider", q, &p.Provider); err != nil {
		return p, err
	}
	return p, nil
}

// HandleVerify resolves a donation against its provider
// @Summary      Verify a donation
// @Description  Ask the provider for the payment status and record it. Safe to call repeatedly.
// @Tags         donations
// @Produce      json
// @Param        donation_id  query     string  false  "Donation id"
// @Param        session_id   query     string  false  "Provider session or payment reference"
// @Param        provider     query     string  false  "Provider, required when donation_id is absent"
// @Success      200          {object}  APIResponse
// @Failure      404          {object}  APIResponse  "Unknown donation"
// @Failure      409          {object}  APIResponse  "Verification mismatch"
// @Failure      429          {object}  APIResponse  "Rate limited"
// @Failure      502          {object}  APIResponse  "Provider error, retryable"
// @Router       /api/donations/verify [get]
func (h *DonationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	params, err := bindVerifyParams(r)
	if err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(err))
		return
	}

	var donation *domain.Donation
	switch {
	case params.DonationID != "":
		id, perr := uuid.Parse(params.DonationID)
		if perr != nil {
			h.respondWithError(w, r, service.NewInvalidInputError(errors.New("donation_id must be a UUID")))
			return
		}
		donation, err = h.donations.Verify(r.Context(), id, params.SessionID)
	case params.SessionID != "" && params.Provider != "":
		donation, err = h.donations.VerifyByReference(r.Context(), domain.ProviderID(params.Provider), params.SessionID)
	default:
		err = service.NewInvalidInputError(errors.New("donation_id, or session_id with provider, is required"))
	}
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	resp := VerifyResponse{
		Success:  donation.Status == domain.StatusCompleted,
		Status:   string(donation.Status),
		Session:  params.SessionID,
		Donation: toPublicDonation(donation),
	}
	if donation.Status == domain.StatusPending {
		resp.RetryAfterMs = h.cfg.VerifyRetryAfter.Milliseconds()
		resp.MaxAttempts = h.cfg.VerifyMaxAttempts
	}

	respondWithJSON(w, http.StatusOK, resp)
}
