package khalti_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/khalti"
	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *khalti.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return khalti.NewClient(config.KhaltiConfig{
		Enabled:    true,
		SecretKey:  "test-secret",
		BaseURL:    srv.URL,
		WebsiteURL: "https://donate.example.org",
	}, 2*time.Second)
}

func npr(t *testing.T, amount string) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(decimal.RequireFromString(amount), domain.CurrencyNPR)
	require.NoError(t, err)
	return m
}

func sessionRequest(t *testing.T) domain.SessionRequest {
	return domain.SessionRequest{
		DonationID: "0b5c7a52-6e3a-4a43-9a0e-2f1a9f5d6c11",
		Donor:      domain.Donor{Name: "Ram Bahadur", Email: "ram@example.org", Phone: "9800000001"},
		Amount:     npr(t, "1000"),
		Recurrence: domain.RecurrenceOneTime,
		SuccessURL: "https://api.example.org/api/payments/khalti/return",
		CancelURL:  "https://api.example.org/api/payments/khalti/cancel?donation_id=x",
	}
}

func TestCreateSession_Success(t *testing.T) {
	var got map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/epayment/initiate/", r.URL.Path)
		assert.Equal(t, "Key test-secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pidx":        "bZQLD9wRVWo4CdESSfuSsB",
			"payment_url": "https://test-pay.khalti.com/?pidx=bZQLD9wRVWo4CdESSfuSsB",
		})
	})

	session, err := client.CreateSession(context.Background(), sessionRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "bZQLD9wRVWo4CdESSfuSsB", session.Reference)
	assert.Contains(t, session.RedirectURL, "pidx=bZQLD9wRVWo4CdESSfuSsB")
	assert.Nil(t, session.FormPost)

	assert.EqualValues(t, 100000, got["amount"])
	assert.Equal(t, "0b5c7a52-6e3a-4a43-9a0e-2f1a9f5d6c11", got["purchase_order_id"])
	assert.Equal(t, "https://api.example.org/api/payments/khalti/return", got["return_url"])
	assert.Equal(t, "https://donate.example.org", got["website_url"])
}

func TestCreateSession_Validation(t *testing.T) {
	called := false
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	req := sessionRequest(t)
	req.Amount = npr(t, "9.99")
	_, err := client.CreateSession(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	usd, err := domain.NewMoney(decimal.NewFromInt(20), domain.CurrencyUSD)
	require.NoError(t, err)
	req.Amount = usd
	_, err = client.CreateSession(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidIntent)

	assert.False(t, called, "invalid requests must not reach khalti")
}

func TestCreateSession_MissingSecret(t *testing.T) {
	client := khalti.NewClient(config.KhaltiConfig{BaseURL: "http://unused", WebsiteURL: "https://x"}, time.Second)
	_, err := client.CreateSession(context.Background(), sessionRequest(t))
	assert.ErrorIs(t, err, domain.ErrProviderConfig)
}

func TestCreateSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Invalid token.","status_code":401}`, domain.ErrProviderConfig},
		{"validation", http.StatusBadRequest, `{"detail":"Amount should be greater than Rs. 10","error_key":"validation_error"}`, domain.ErrInvalidIntent},
		{"server", http.StatusBadGateway, `oops`, domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.CreateSession(context.Background(), sessionRequest(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckStatus_Mapping(t *testing.T) {
	tests := []struct {
		status   string
		refunded bool
		want     domain.OutcomeState
	}{
		{"Completed", false, domain.OutcomeCompleted},
		{"Completed", true, domain.OutcomeFailed},
		{"Pending", false, domain.OutcomePending},
		{"Initiated", false, domain.OutcomePending},
		{"Expired", false, domain.OutcomeFailed},
		{"User canceled", false, domain.OutcomeFailed},
		{"Refunded", false, domain.OutcomeFailed},
		{"Partially Refunded", false, domain.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/epayment/lookup/", r.URL.Path)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "pidx_1", body["pidx"])
				_ = json.NewEncoder(w).Encode(map[string]any{
					"pidx":           "pidx_1",
					"total_amount":   100000,
					"status":         tt.status,
					"transaction_id": "GFq9PFS7b2iYvL8Lir9oXe",
					"refunded":       tt.refunded,
				})
			})

			out, err := client.CheckStatus(context.Background(), domain.StatusQuery{Reference: "pidx_1", Expected: npr(t, "1000")})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.State)
			assert.Equal(t, tt.status, out.RawStatus)
			if tt.want == domain.OutcomeCompleted {
				assert.EqualValues(t, 100000, out.ConfirmedAmountMinor)
				assert.Equal(t, domain.CurrencyNPR, out.ConfirmedCurrency)
				assert.Equal(t, "GFq9PFS7b2iYvL8Lir9oXe", out.ChargeID)
			}
		})
	}
}

func TestCheckStatus_TerminalStateOnErrorCode(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"pidx":"pidx_1","total_amount":100000,"status":"Expired","transaction_id":null}`))
	})

	out, err := client.CheckStatus(context.Background(), domain.StatusQuery{Reference: "pidx_1"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, out.State)
}

func TestCheckStatus_UnknownReference(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found.","error_key":"validation_error"}`))
	})

	_, err := client.CheckStatus(context.Background(), domain.StatusQuery{Reference: "forged"})
	assert.ErrorIs(t, err, domain.ErrVerificationMismatch)
}

func TestCheckStatus_ServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CheckStatus(context.Background(), domain.StatusQuery{Reference: "pidx_1"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	var dErr *domain.DomainError
	require.ErrorAs(t, err, &dErr)
	assert.True(t, dErr.IsRetryable())
}
