// Package esewa drives the eSewa ePay v2 form checkout and its status API.
package esewa

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/shopspring/decimal"
)

const signedFields = "total_amount,transaction_uuid,product_code"

var ErrInvalidSignature = errors.New("esewa callback signature is invalid")

type EsewaError struct {
	StatusCode int
	Message    string
}

func (e *EsewaError) Error() string {
	return fmt.Sprintf("esewa error: %s (status: %d)", e.Message, e.StatusCode)
}

type Client struct {
	productCode string
	secretKey   string
	formURL     string
	statusURL   string
	httpClient  *http.Client
}

var _ ports.ProviderAdapter = (*Client)(nil)

func NewClient(cfg config.EsewaConfig, timeout time.Duration) *Client {
	return &Client{
		productCode: cfg.ProductCode,
		secretKey:   cfg.SecretKey,
		formURL:     cfg.FormURL,
		statusURL:   cfg.StatusURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) ID() domain.ProviderID { return domain.ProviderEsewa }

func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{Currencies: []domain.Currency{domain.CurrencyNPR}}
}

func (c *Client) checkConfig() error {
	if c.productCode == "" || c.secretKey == "" {
		return domain.NewProviderConfigError(domain.ProviderEsewa, "product code or secret key is not set")
	}
	if c.formURL == "" || c.statusURL == "" {
		return domain.NewProviderConfigError(domain.ProviderEsewa, "form or status url is not set")
	}
	return nil
}

// CreateSession needs no network call: eSewa is entered by posting a signed
// form from the donor's browser.
func (c *Client) CreateSession(_ context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	if req.Amount.Currency != domain.CurrencyNPR {
		return nil, domain.NewInvalidIntentError("esewa only accepts NPR")
	}
	if req.Recurrence == domain.RecurrenceMonthly {
		return nil, domain.NewInvalidIntentError("esewa does not support recurring donations")
	}

	total := formatAmount(req.Amount)
	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"total_amount":            total,
		"transaction_uuid":        req.DonationID,
		"product_code":            c.productCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             req.SuccessURL,
		"failure_url":             req.CancelURL,
		"signed_field_names":      signedFields,
	}
	fields["signature"] = c.sign(signedFields, fields)

	return &domain.Session{
		Reference: req.DonationID,
		FormPost: &domain.FormPost{
			Method: http.MethodPost,
			Action: c.formURL,
			Fields: fields,
		},
	}, nil
}

func (c *Client) CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("product_code", c.productCode)
	params.Set("total_amount", formatAmount(query.Expected))
	params.Set("transaction_uuid", query.Reference)

	resp, err := c.getStatus(ctx, params)
	if err != nil {
		var eErr *EsewaError
		if errors.As(err, &eErr) {
			switch {
			case eErr.StatusCode >= 500:
				return nil, domain.NewUpstreamError(domain.ProviderEsewa, err)
			case eErr.StatusCode == http.StatusUnauthorized || eErr.StatusCode == http.StatusForbidden:
				return nil, domain.NewProviderConfigError(domain.ProviderEsewa, "credentials rejected")
			default:
				return nil, domain.NewProviderRejectedReferenceError(domain.ProviderEsewa, err)
			}
		}
		return nil, domain.NewUpstreamError(domain.ProviderEsewa, err)
	}

	if resp.ProductCode != "" && resp.ProductCode != c.productCode {
		return nil, domain.NewProviderRejectedReferenceError(domain.ProviderEsewa,
			fmt.Errorf("status for foreign product code %q", resp.ProductCode))
	}

	out := &domain.PaymentOutcome{RawStatus: resp.Status, ConfirmedCurrency: domain.CurrencyNPR}
	switch resp.Status {
	case "COMPLETE":
		amount, err := parseAmount(string(resp.TotalAmount))
		if err != nil {
			return nil, domain.NewUpstreamError(domain.ProviderEsewa, err)
		}
		minor, err := domain.ToMinorUnits(amount, domain.CurrencyNPR)
		if err != nil {
			return nil, domain.NewUpstreamError(domain.ProviderEsewa, err)
		}
		out.State = domain.OutcomeCompleted
		out.ConfirmedAmountMinor = minor
		if resp.RefID != nil {
			out.ChargeID = *resp.RefID
		}
	case "CANCELED", "NOT_FOUND", "FULL_REFUND", "PARTIAL_REFUND":
		out.State = domain.OutcomeFailed
	default:
		// PENDING, AMBIGUOUS
		out.State = domain.OutcomePending
	}
	return out, nil
}

type statusResponse struct {
	ProductCode     string      `json:"product_code"`
	TransactionUUID string      `json:"transaction_uuid"`
	TotalAmount     json.Number `json:"total_amount"`
	Status          string      `json:"status"`
	RefID           *string     `json:"ref_id"`
}

func (c *Client) getStatus(ctx context.Context, params url.Values) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.ErrorMessage
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &EsewaError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &out, nil
}

// Callback is the payload eSewa appends as ?data= to the success URL.
type Callback struct {
	TransactionCode string `json:"transaction_code"`
	Status          string `json:"status"`
	TotalAmount     string `json:"total_amount"`
	TransactionUUID string `json:"transaction_uuid"`
	ProductCode     string `json:"product_code"`
}

// ParseCallback decodes and authenticates the success redirect payload.
// Only the transaction uuid is trusted afterwards; the outcome itself still
// comes from CheckStatus.
func (c *Client) ParseCallback(data string) (*Callback, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decode callback: %w", err)
		}
	}

	var fields map[string]any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode callback json: %w", err)
	}

	names, _ := fields["signed_field_names"].(string)
	signature, _ := fields["signature"].(string)
	if names == "" || signature == "" {
		return nil, ErrInvalidSignature
	}

	values := make(map[string]string, len(fields))
	for k, v := range fields {
		values[k] = fmt.Sprint(v)
	}
	expected := c.sign(names, values)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	cb := &Callback{
		TransactionCode: values["transaction_code"],
		Status:          values["status"],
		TotalAmount:     values["total_amount"],
		TransactionUUID: values["transaction_uuid"],
		ProductCode:     values["product_code"],
	}
	if cb.ProductCode != c.productCode {
		return nil, ErrInvalidSignature
	}
	return cb, nil
}

func (c *Client) sign(names string, values map[string]string) string {
	parts := strings.Split(names, ",")
	for i, name := range parts {
		parts[i] = name + "=" + values[name]
	}
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(strings.Join(parts, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func formatAmount(m domain.Money) string {
	return m.Amount.StringFixed(m.Currency.Exponent())
}

// eSewa echoes totals with thousands separators, e.g. "1,000.0".
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}
