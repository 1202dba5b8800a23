package handler

import (
	"errors"
	"net/http"

	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// HandleGetDonation returns the stored status without asking the provider.
// @Summary      Get a donation
// @Tags         donations
// @Produce      json
// @Param        donationID  path      string  true  "Donation id"
// @Success      200         {object}  APIResponse
// @Failure      404         {object}  APIResponse
// @Router       /api/donations/{donationID} [get]
func (h *DonationHandler) HandleGetDonation(w http.ResponseWriter, r *http.Request) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "donationID", r.PathValue("donationID"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(err))
		return
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		h.respondWithError(w, r, service.NewInvalidInputError(errors.New("donationID must be a UUID")))
		return
	}

	donation, err := h.queries.GetDonation(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPublicDonation(donation))
}
