package esewa_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/esewa"
	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productCode = "EPAYTEST"
	secretKey   = "8gBm/:&EnhH.1/q"
	donationID  = "5d1f1f4e-8a8c-4ad8-b1a7-3a8d7c1e2f00"
)

func newClient(statusURL string) *esewa.Client {
	return esewa.NewClient(config.EsewaConfig{
		Enabled:     true,
		ProductCode: productCode,
		SecretKey:   secretKey,
		FormURL:     "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		StatusURL:   statusURL,
	}, 2*time.Second)
}

func npr(t *testing.T, amount string) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(decimal.RequireFromString(amount), domain.CurrencyNPR)
	require.NoError(t, err)
	return m
}

func hmacB64(message string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestCreateSession_SignedForm(t *testing.T) {
	client := newClient("http://unused")

	session, err := client.CreateSession(context.Background(), domain.SessionRequest{
		DonationID: donationID,
		Amount:     npr(t, "500"),
		Recurrence: domain.RecurrenceOneTime,
		SuccessURL: "https://api.example.org/api/payments/esewa/return",
		CancelURL:  "https://api.example.org/api/payments/esewa/cancel?donation_id=" + donationID,
	})
	require.NoError(t, err)

	assert.Equal(t, donationID, session.Reference)
	assert.Empty(t, session.RedirectURL)
	require.NotNil(t, session.FormPost)
	assert.Equal(t, http.MethodPost, session.FormPost.Method)

	f := session.FormPost.Fields
	assert.Equal(t, "500.00", f["total_amount"])
	assert.Equal(t, donationID, f["transaction_uuid"])
	assert.Equal(t, productCode, f["product_code"])
	assert.Equal(t, "total_amount,transaction_uuid,product_code", f["signed_field_names"])
	assert.Equal(t, "https://api.example.org/api/payments/esewa/cancel?donation_id="+donationID, f["failure_url"])

	want := hmacB64("total_amount=500.00,transaction_uuid=" + donationID + ",product_code=" + productCode)
	assert.Equal(t, want, f["signature"])
}

func TestCreateSession_Rejects(t *testing.T) {
	client := newClient("http://unused")

	_, err := client.CreateSession(context.Background(), domain.SessionRequest{
		DonationID: donationID, Amount: npr(t, "500"), Recurrence: domain.RecurrenceMonthly,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIntent)

	unconfigured := esewa.NewClient(config.EsewaConfig{}, time.Second)
	_, err = unconfigured.CreateSession(context.Background(), domain.SessionRequest{
		DonationID: donationID, Amount: npr(t, "500"), Recurrence: domain.RecurrenceOneTime,
	})
	assert.ErrorIs(t, err, domain.ErrProviderConfig)
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status string
		want   domain.OutcomeState
	}{
		{"COMPLETE", domain.OutcomeCompleted},
		{"PENDING", domain.OutcomePending},
		{"AMBIGUOUS", domain.OutcomePending},
		{"CANCELED", domain.OutcomeFailed},
		{"NOT_FOUND", domain.OutcomeFailed},
		{"FULL_REFUND", domain.OutcomeFailed},
		{"PARTIAL_REFUND", domain.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, productCode, q.Get("product_code"))
				assert.Equal(t, "500.00", q.Get("total_amount"))
				assert.Equal(t, donationID, q.Get("transaction_uuid"))
				_, _ = w.Write([]byte(`{"product_code":"EPAYTEST","transaction_uuid":"` + donationID +
					`","total_amount":500.0,"status":"` + tt.status + `","ref_id":"0007G36"}`))
			}))
			defer srv.Close()

			out, err := newClient(srv.URL).CheckStatus(context.Background(),
				domain.StatusQuery{Reference: donationID, Expected: npr(t, "500")})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.State)
			if tt.want == domain.OutcomeCompleted {
				assert.EqualValues(t, 50000, out.ConfirmedAmountMinor)
				assert.Equal(t, domain.CurrencyNPR, out.ConfirmedCurrency)
				assert.Equal(t, "0007G36", out.ChargeID)
			}
		})
	}
}

func TestCheckStatus_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, domain.ErrVerificationMismatch},
		{"unauthorized", http.StatusUnauthorized, domain.ErrProviderConfig},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":0,"error_message":"Invalid payload signature."}`))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).CheckStatus(context.Background(),
				domain.StatusQuery{Reference: donationID, Expected: npr(t, "500")})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func callbackData(t *testing.T, mutate func(map[string]string)) string {
	t.Helper()
	names := "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	fields := map[string]string{
		"transaction_code":   "000AWEO",
		"status":             "COMPLETE",
		"total_amount":       "1,000.0",
		"transaction_uuid":   donationID,
		"product_code":       productCode,
		"signed_field_names": names,
	}
	fields["signature"] = hmacB64("transaction_code=000AWEO,status=COMPLETE,total_amount=1,000.0,transaction_uuid=" +
		donationID + ",product_code=" + productCode + ",signed_field_names=" + names)
	if mutate != nil {
		mutate(fields)
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestParseCallback(t *testing.T) {
	client := newClient("http://unused")

	cb, err := client.ParseCallback(callbackData(t, nil))
	require.NoError(t, err)
	assert.Equal(t, donationID, cb.TransactionUUID)
	assert.Equal(t, "COMPLETE", cb.Status)
	assert.Equal(t, "000AWEO", cb.TransactionCode)

	_, err = client.ParseCallback(callbackData(t, func(f map[string]string) { f["total_amount"] = "1.0" }))
	assert.ErrorIs(t, err, esewa.ErrInvalidSignature)

	_, err = client.ParseCallback(callbackData(t, func(f map[string]string) { delete(f, "signature") }))
	assert.ErrorIs(t, err, esewa.ErrInvalidSignature)

	_, err = client.ParseCallback("not base64!")
	assert.Error(t, err)
}
