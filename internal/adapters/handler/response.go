package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PublicDonation is the donor-free view returned by public endpoints.
type PublicDonation struct {
	ID            string     `json:"id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Recurrence    string     `json:"recurrence"`
	Provider      string     `json:"provider"`
	Status        string     `json:"status"`
	ReceiptNumber string     `json:"receipt_number,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toPublicDonation(d *domain.Donation) PublicDonation {
	p := PublicDonation{
		ID:          d.ID.String(),
		Amount:      d.Amount.Amount.StringFixed(d.Amount.Currency.Exponent()),
		Currency:    string(d.Amount.Currency),
		Recurrence:  string(d.Recurrence),
		Provider:    string(d.Provider),
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
	}
	if d.ReceiptNumber != nil {
		p.ReceiptNumber = *d.ReceiptNumber
	}
	return p
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

// WriteError maps service and domain errors onto the JSON envelope. Internal
// detail never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	respondWithJSON(w, service.ToHTTPStatus(err), &APIError{
		Code:    service.ToErrorCode(err),
		Message: service.PublicMessage(err),
	})
}

func (h *DonationHandler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if status := service.ToHTTPStatus(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", service.ToErrorCode(err),
			"error", err,
		)
	}
	WriteError(w, err)
}
