// Package stripe runs card donations through Stripe Checkout Sessions.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// SessionAPI is the slice of the Stripe SDK the adapter uses.
// *checkoutsession.Client satisfies it.
type SessionAPI interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	Get(id string, params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type Client struct {
	sessions      SessionAPI
	configured    bool
	webhookSecret string
}

var _ ports.ProviderAdapter = (*Client)(nil)

func NewClient(cfg config.StripeConfig) *Client {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &Client{
		sessions:      sc.CheckoutSessions,
		configured:    cfg.SecretKey != "",
		webhookSecret: cfg.WebhookSecret,
	}
}

// NewClientWithAPI builds the adapter over any SessionAPI implementation.
func NewClientWithAPI(sessions SessionAPI, webhookSecret string) *Client {
	return &Client{sessions: sessions, configured: true, webhookSecret: webhookSecret}
}

func (c *Client) ID() domain.ProviderID { return domain.ProviderStripe }

func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Currencies: []domain.Currency{domain.CurrencyUSD, domain.CurrencyNPR},
		Recurring:  true,
	}
}

func (c *Client) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if !c.configured {
		return nil, domain.NewProviderConfigError(domain.ProviderStripe, "secret key is not set")
	}

	priceData := &stripego.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripego.String(strings.ToLower(string(req.Amount.Currency))),
		UnitAmount: stripego.Int64(req.Amount.MinorUnits()),
		ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String("Donation"),
		},
	}

	mode := stripego.CheckoutSessionModePayment
	if req.Recurrence == domain.RecurrenceMonthly {
		mode = stripego.CheckoutSessionModeSubscription
		priceData.Recurring = &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripego.String(string(stripego.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(mode)),
		SuccessURL:        stripego.String(successURL(req)),
		CancelURL:         stripego.String(req.CancelURL),
		ClientReferenceID: stripego.String(req.DonationID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripego.Int64(1)},
		},
	}
	if req.Donor.Email != "" {
		params.CustomerEmail = stripego.String(req.Donor.Email)
	}
	params.AddMetadata("donation_id", req.DonationID)
	if mode == stripego.CheckoutSessionModeSubscription {
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"donation_id": req.DonationID},
		}
	} else {
		params.PaymentIntentData = &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"donation_id": req.DonationID},
		}
	}
	// one session per donation, even if the start call is replayed
	params.IdempotencyKey = stripego.String("donation-" + req.DonationID)
	params.Context = ctx

	session, err := c.sessions.New(params)
	if err != nil {
		return nil, mapStripeError(err, false)
	}
	if session.ID == "" || session.URL == "" {
		return nil, domain.NewUpstreamError(domain.ProviderStripe, fmt.Errorf("checkout session missing id or url"))
	}

	return &domain.Session{Reference: session.ID, RedirectURL: session.URL}, nil
}

func (c *Client) CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	if !c.configured {
		return nil, domain.NewProviderConfigError(domain.ProviderStripe, "secret key is not set")
	}

	params := &stripego.CheckoutSessionParams{}
	params.AddExpand("payment_intent")
	params.Context = ctx

	session, err := c.sessions.Get(query.Reference, params)
	if err != nil {
		return nil, mapStripeError(err, true)
	}

	return mapSession(session), nil
}

func mapSession(s *stripego.CheckoutSession) *domain.PaymentOutcome {
	out := &domain.PaymentOutcome{
		RawStatus:            fmt.Sprintf("%s/%s", s.Status, s.PaymentStatus),
		ConfirmedAmountMinor: s.AmountTotal,
		ConfirmedCurrency:    domain.Currency(strings.ToUpper(string(s.Currency))),
	}

	switch {
	case s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
		s.Status == stripego.CheckoutSessionStatusComplete &&
			s.PaymentStatus == stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
		out.State = domain.OutcomeCompleted
	case s.Status == stripego.CheckoutSessionStatusExpired:
		out.State = domain.OutcomeFailed
	case s.PaymentIntent != nil && s.PaymentIntent.Status == stripego.PaymentIntentStatusCanceled:
		// delayed methods that ultimately fail leave the session complete but unpaid
		out.State = domain.OutcomeFailed
	default:
		out.State = domain.OutcomePending
	}

	switch {
	case s.PaymentIntent != nil && s.PaymentIntent.ID != "":
		out.ChargeID = s.PaymentIntent.ID
	case s.Invoice != nil && s.Invoice.ID != "":
		out.ChargeID = s.Invoice.ID
	case s.Subscription != nil:
		out.ChargeID = s.Subscription.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

// successURL lets Stripe fill in the session id on return.
func successURL(req domain.SessionRequest) string {
	q := url.Values{}
	q.Set("donation_id", req.DonationID)
	sep := "?"
	if strings.Contains(req.SuccessURL, "?") {
		sep = "&"
	}
	return req.SuccessURL + sep + "session_id={CHECKOUT_SESSION_ID}&" + q.Encode()
}

func mapStripeError(err error, lookup bool) error {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return domain.NewUpstreamError(domain.ProviderStripe, err)
	}

	switch {
	case stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.HTTPStatusCode == 0:
		return domain.NewUpstreamError(domain.ProviderStripe, err)
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized,
		stripeErr.HTTPStatusCode == http.StatusForbidden:
		return domain.NewProviderConfigError(domain.ProviderStripe, "credentials rejected")
	case lookup:
		return domain.NewProviderRejectedReferenceError(domain.ProviderStripe, err)
	case stripeErr.Code == stripego.ErrorCodeIdempotencyKeyInUse:
		return domain.NewUpstreamError(domain.ProviderStripe, err)
	default:
		return &domain.DomainError{Code: domain.ErrCodeInvalidIntent, Message: stripeErr.Msg, Err: err}
	}
}
