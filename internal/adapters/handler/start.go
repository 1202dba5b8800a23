package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
)

const maxBodyBytes = 64 << 10

type DonorInput struct {
	Name  string `json:"name" validate:"required,max=200" example:"Sita Sharma"`
	Email string `json:"email" validate:"required,email,max=254" example:"sita@example.org"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32" example:"9800000001"`
}

type StartDonationRequest struct {
	Donor      DonorInput `json:"donor"`
	Amount     string     `json:"amount" validate:"required" example:"50.00"`
	Currency   string     `json:"currency" validate:"required" example:"USD"`
	Recurrence string     `json:"recurrence,omitempty" validate:"omitempty,oneof=one_time monthly" example:"one_time"`
	Provider   string     `json:"provider" validate:"required" example:"stripe"`
}

type FormData struct {
	Method string            `json:"method"`
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

type StartDonationResponse struct {
	DonationID         string    `json:"donation_id"`
	Status             string    `json:"status"`
	RedirectURL        string    `json:"redirect_url,omitempty"`
	RequiresFormSubmit bool      `json:"requires_form_submit"`
	Form               *FormData `json:"form,omitempty"`
}

// HandleStart opens a provider checkout for a donation intent
// @Summary      Start a donation
// @Description  Validate a donation intent, open a checkout session with the chosen provider and record the pending donation.
// @Tags         donations
// @Accept       json
// @Produce      json
// @Param        request  body      StartDonationRequest  true  "Donation intent"
// @Success      201      {object}  APIResponse           "Checkout session created"
// @Failure      400      {object}  APIResponse           "Invalid intent"
// @Failure      502      {object}  APIResponse           "Provider error, retryable"
// @Failure      503      {object}  APIResponse           "Provider unavailable"
// @Router       /api/donations [post]
func (h *DonationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(err))
		return
	}

	var req StartDonationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(errors.New("request body must be a JSON donation intent")))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(err))
		return
	}

	intent, err := req.toIntent()
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.donations.Start(r.Context(), intent)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	resp := StartDonationResponse{
		DonationID:  result.Donation.ID.String(),
		Status:      string(result.Donation.Status),
		RedirectURL: result.Session.RedirectURL,
	}
	if fp := result.Session.FormPost; fp != nil {
		resp.RequiresFormSubmit = true
		resp.Form = &FormData{Method: fp.Method, Action: fp.Action, Fields: fp.Fields}
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (req StartDonationRequest) toIntent() (domain.DonationIntent, error) {
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return domain.DonationIntent{}, err
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return domain.DonationIntent{}, err
	}
	recurrence := domain.Recurrence(req.Recurrence)
	if recurrence == "" {
		recurrence = domain.RecurrenceOneTime
	}

	return domain.DonationIntent{
		Donor: domain.Donor{
			Name:  req.Donor.Name,
			Email: req.Donor.Email,
			Phone: req.Donor.Phone,
		},
		Amount:     amount,
		Currency:   currency,
		Recurrence: recurrence,
		Provider:   domain.ProviderID(req.Provider),
	}, nil
}
