// Package notify delivers donation receipts to the mailer service and to
// the receipt archive.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

type NotifyError struct {
	StatusCode int
	Body       string
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("receipt service returned status %d: %s", e.StatusCode, e.Body)
}

func IsNotifyError(err error) (*NotifyError, bool) {
	var nErr *NotifyError
	ok := errors.As(err, &nErr)
	return nErr, ok
}

// receiptPayload is the JSON body the mailer expects.
type receiptPayload struct {
	ReceiptNumber string    `json:"receipt_number"`
	DonationID    string    `json:"donation_id"`
	DonorName     string    `json:"donor_name"`
	DonorEmail    string    `json:"donor_email"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Recurrence    string    `json:"recurrence"`
	Provider      string    `json:"provider"`
	CompletedAt   time.Time `json:"completed_at"`
}

func toPayload(r domain.Receipt) receiptPayload {
	return receiptPayload{
		ReceiptNumber: r.Number,
		DonationID:    r.DonationID.String(),
		DonorName:     r.DonorName,
		DonorEmail:    r.DonorEmail,
		Amount:        r.Amount.Amount.StringFixed(r.Amount.Currency.Exponent()),
		Currency:      string(r.Amount.Currency),
		Recurrence:    string(r.Recurrence),
		Provider:      string(r.Provider),
		CompletedAt:   r.CompletedAt,
	}
}

// HTTPNotifier posts receipts to the mailer service.
type HTTPNotifier struct {
	url        string
	httpClient *http.Client
}

var _ ports.ReceiptNotifier = (*HTTPNotifier)(nil)

func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (n *HTTPNotifier) SendReceipt(ctx context.Context, receipt domain.Receipt) error {
	jsonData, err := json.Marshal(toPayload(receipt))
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// the mailer dedupes on this so a resend after a lost response is harmless
	req.Header.Set("Idempotency-Key", receipt.Number)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &NotifyError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
