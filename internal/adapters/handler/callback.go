package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/google/uuid"
)

// Provider return and cancel endpoints. Each normalizes the provider's own
// redirect parameters into (donation id, reference), verifies, and sends
// the donor on to the frontend result page. The outcome always comes from
// the provider status lookup, never from the redirect parameters.

func (h *DonationHandler) HandleStripeReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.verifyAndRedirect(w, r, domain.ProviderStripe, q.Get("donation_id"), q.Get("session_id"))
}

func (h *DonationHandler) HandleKhaltiReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.verifyAndRedirect(w, r, domain.ProviderKhalti, q.Get("purchase_order_id"), q.Get("pidx"))
}

func (h *DonationHandler) HandleMockReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.verifyAndRedirect(w, r, domain.ProviderMock, q.Get("donation_id"), q.Get("reference"))
}

func (h *DonationHandler) HandleEsewaReturn(w http.ResponseWriter, r *http.Request) {
	if h.esewa == nil {
		h.redirectResult(w, r, "", "", domain.ErrCodeProviderUnavailable)
		return
	}

	cb, err := h.esewa.ParseCallback(r.URL.Query().Get("data"))
	if err != nil {
		h.logger.Warn("rejected esewa callback", "error", err)
		h.redirectResult(w, r, "", "", domain.ErrCodeVerificationMismatch)
		return
	}

	h.verifyAndRedirect(w, r, domain.ProviderEsewa, cb.TransactionUUID, cb.TransactionUUID)
}

// HandleCancel runs when the donor backs out at the provider. The record is
// only changed if the provider itself reports a terminal state.
func (h *DonationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	provider := domain.ProviderID(r.PathValue("provider"))
	h.verifyAndRedirect(w, r, provider, r.URL.Query().Get("donation_id"), "")
}

func (h *DonationHandler) verifyAndRedirect(w http.ResponseWriter, r *http.Request, provider domain.ProviderID, donationID, reference string) {
	var (
		donation *domain.Donation
		err      error
	)

	id, parseErr := uuid.Parse(donationID)
	switch {
	case parseErr == nil:
		donation, err = h.donations.Verify(r.Context(), id, reference)
	case reference != "":
		donation, err = h.donations.VerifyByReference(r.Context(), provider, reference)
	default:
		h.redirectResult(w, r, "", "", service.ErrCodeInvalidInput)
		return
	}

	if err != nil {
		h.logger.Warn("provider return could not be verified",
			"provider", provider,
			"code", service.ToErrorCode(err),
			"error", err,
		)
		if donation != nil {
			donationID = donation.ID.String()
		} else if parseErr != nil {
			donationID = ""
		}
		h.redirectResult(w, r, donationID, string(domain.StatusPending), service.ToErrorCode(err))
		return
	}

	h.redirectResult(w, r, donation.ID.String(), string(donation.Status), "")
}

func (h *DonationHandler) redirectResult(w http.ResponseWriter, r *http.Request, donationID, status, code string) {
	q := url.Values{}
	if donationID != "" {
		q.Set("donation_id", donationID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if code != "" {
		q.Set("error", code)
	}

	target := strings.TrimRight(h.cfg.FrontendURL, "/") + "/donate/result"
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
