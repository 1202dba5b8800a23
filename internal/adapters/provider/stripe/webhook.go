package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var ErrWebhookNotConfigured = errors.New("stripe webhook secret is not set")

// WebhookEvent names the checkout session a verified event is about.
type WebhookEvent struct {
	ID         string
	Type       string
	SessionID  string
	DonationID string
}

// ParseWebhook verifies the Stripe-Signature header and extracts the session
// behind checkout events. Other event types return (nil, nil).
func (c *Client) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if c.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe signature invalid: %w", err)
	}

	switch event.Type {
	case stripego.EventTypeCheckoutSessionCompleted,
		stripego.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripego.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripego.EventTypeCheckoutSessionExpired:
	default:
		return nil, nil
	}

	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	donationID := session.Metadata["donation_id"]
	if donationID == "" {
		donationID = session.ClientReferenceID
	}

	return &WebhookEvent{
		ID:         event.ID,
		Type:       string(event.Type),
		SessionID:  session.ID,
		DonationID: donationID,
	}, nil
}
