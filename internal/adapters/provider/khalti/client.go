// Package khalti talks to the Khalti ePayment (KPG-2) API.
package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

// Khalti refuses payments below Rs 10.
const minAmountPaisa = 1000

type Client struct {
	secretKey  string
	baseURL    string
	websiteURL string
	httpClient *http.Client
}

var _ ports.ProviderAdapter = (*Client)(nil)

func NewClient(cfg config.KhaltiConfig, timeout time.Duration) *Client {
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		websiteURL: cfg.WebsiteURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) ID() domain.ProviderID { return domain.ProviderKhalti }

func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{Currencies: []domain.Currency{domain.CurrencyNPR}}
}

func (c *Client) checkConfig() error {
	switch {
	case c.secretKey == "":
		return domain.NewProviderConfigError(domain.ProviderKhalti, "secret key is not set")
	case c.baseURL == "":
		return domain.NewProviderConfigError(domain.ProviderKhalti, "base url is not set")
	case c.websiteURL == "":
		return domain.NewProviderConfigError(domain.ProviderKhalti, "website url is not set")
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	if req.Amount.Currency != domain.CurrencyNPR {
		return nil, domain.NewInvalidIntentError("khalti only accepts NPR")
	}
	paisa := req.Amount.MinorUnits()
	if paisa < minAmountPaisa {
		return nil, domain.NewInvalidAmountError(req.Amount.String() + " (khalti minimum is 10 NPR)")
	}

	body := initiateRequest{
		ReturnURL:         req.SuccessURL,
		WebsiteURL:        c.websiteURL,
		Amount:            paisa,
		PurchaseOrderID:   req.DonationID,
		PurchaseOrderName: "Donation",
		CustomerInfo: &customerInfo{
			Name:  req.Donor.Name,
			Email: req.Donor.Email,
			Phone: req.Donor.Phone,
		},
	}

	resp, err := sendRequest[initiateRequest, initiateResponse](c, ctx, "/epayment/initiate/", &body)
	if err != nil {
		return nil, c.mapError(err, false)
	}
	if resp.Pidx == "" || resp.PaymentURL == "" {
		return nil, domain.NewUpstreamError(domain.ProviderKhalti, fmt.Errorf("initiate response missing pidx or payment_url"))
	}

	return &domain.Session{Reference: resp.Pidx, RedirectURL: resp.PaymentURL}, nil
}

func (c *Client) CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	if c.secretKey == "" || c.baseURL == "" {
		return nil, domain.NewProviderConfigError(domain.ProviderKhalti, "secret key or base url is not set")
	}

	resp, err := sendRequest[lookupRequest, lookupResponse](c, ctx, "/epayment/lookup/", &lookupRequest{Pidx: query.Reference})
	if err != nil {
		if kErr, ok := IsKhaltiError(err); ok && kErr.StatusCode < 500 {
			var body errorResponse
			if json.Unmarshal([]byte(kErr.Body), &body) == nil && body.Status != "" {
				return mapLookup(&lookupResponse{Pidx: query.Reference, Status: body.Status}), nil
			}
		}
		return nil, c.mapError(err, true)
	}

	return mapLookup(resp), nil
}

// mapLookup folds Khalti's lookup states onto ours.
func mapLookup(resp *lookupResponse) *domain.PaymentOutcome {
	out := &domain.PaymentOutcome{
		RawStatus:         resp.Status,
		ConfirmedCurrency: domain.CurrencyNPR,
	}
	switch resp.Status {
	case "Completed":
		out.State = domain.OutcomeCompleted
		out.ConfirmedAmountMinor = resp.TotalAmount
		if resp.TransactionID != nil {
			out.ChargeID = *resp.TransactionID
		}
		if resp.Refunded {
			out.State = domain.OutcomeFailed
		}
	case "Expired", "User canceled", "Refunded", "Partially Refunded":
		out.State = domain.OutcomeFailed
	default:
		// Pending, Initiated and anything new stay pending
		out.State = domain.OutcomePending
	}
	return out
}

func (c *Client) mapError(err error, lookup bool) error {
	kErr, ok := IsKhaltiError(err)
	if !ok {
		return domain.NewUpstreamError(domain.ProviderKhalti, err)
	}
	switch {
	case kErr.IsRetryable():
		return domain.NewUpstreamError(domain.ProviderKhalti, err)
	case kErr.StatusCode == http.StatusUnauthorized || kErr.StatusCode == http.StatusForbidden:
		return domain.NewProviderConfigError(domain.ProviderKhalti, "credentials rejected")
	case lookup:
		return domain.NewProviderRejectedReferenceError(domain.ProviderKhalti, err)
	default:
		msg := kErr.Detail
		if msg == "" {
			msg = "khalti rejected the payment request"
		}
		return &domain.DomainError{Code: domain.ErrCodeInvalidIntent, Message: msg, Err: err}
	}
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, path string, reqBody *Req) (*Resp, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, &KhaltiError{
			StatusCode: resp.StatusCode,
			ErrorKey:   errResp.ErrorKey,
			Detail:     errResp.Detail,
			Body:       string(body),
		}
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &out, nil
}
