package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/esewa"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/stripe"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/DanielPopoola/donation-gateway/internal/testhelpers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDonationService struct {
	startFn             func(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error)
	verifyFn            func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error)
	verifyByReferenceFn func(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error)
}

func (m *mockDonationService) Start(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error) {
	return m.startFn(ctx, intent)
}

func (m *mockDonationService) Verify(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
	return m.verifyFn(ctx, id, reference)
}

func (m *mockDonationService) VerifyByReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	return m.verifyByReferenceFn(ctx, provider, reference)
}

type mockQueryService struct {
	getFn func(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
}

func (m *mockQueryService) GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return m.getFn(ctx, id)
}

type fakeWebhookParser struct {
	event *stripe.WebhookEvent
	err   error
}

func (f *fakeWebhookParser) ParseWebhook(payload []byte, signature string) (*stripe.WebhookEvent, error) {
	return f.event, f.err
}

type fakeEsewaParser struct {
	cb  *esewa.Callback
	err error
}

func (f *fakeEsewaParser) ParseCallback(data string) (*esewa.Callback, error) {
	return f.cb, f.err
}

func newTestHandler(donations DonationService, queries QueryService, opts ...Option) (*DonationHandler, *http.ServeMux) {
	h := NewDonationHandler(donations, queries, Config{FrontendURL: "https://give.example.org/"}, testhelpers.DiscardLogger(), opts...)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)
	return h, mux
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/donate/result", loc.Path)
	assert.Equal(t, "give.example.org", loc.Host)
	return loc.Query()
}

func TestHandleStart_Success(t *testing.T) {
	var got domain.DonationIntent
	donation := testhelpers.NewPendingDonation(domain.ProviderStripe, "50.00", domain.CurrencyUSD)
	svc := &mockDonationService{
		startFn: func(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error) {
			got = intent
			return &service.StartResult{
				Donation: donation,
				Session:  &domain.Session{Reference: donation.ProviderReference, RedirectURL: "https://checkout.stripe.com/c/pay/cs_1"},
			}, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	body, _ := json.Marshal(StartDonationRequest{
		Donor:    DonorInput{Name: "Sita Sharma", Email: "sita@example.org"},
		Amount:   "50.00",
		Currency: "usd",
		Provider: "stripe",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/donations", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp StartDonationResponse
	env := decodeEnvelope(t, rec, &resp)
	assert.True(t, env.Success)
	assert.Equal(t, donation.ID.String(), resp.DonationID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", resp.RedirectURL)
	assert.False(t, resp.RequiresFormSubmit)

	assert.Equal(t, domain.CurrencyUSD, got.Currency)
	assert.Equal(t, domain.RecurrenceOneTime, got.Recurrence)
	assert.Equal(t, "50", got.Amount.String())
}

func TestHandleStart_FormPost(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderEsewa, "1000", domain.CurrencyNPR)
	svc := &mockDonationService{
		startFn: func(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error) {
			return &service.StartResult{
				Donation: donation,
				Session: &domain.Session{
					Reference: donation.ID.String(),
					FormPost: &domain.FormPost{
						Method: http.MethodPost,
						Action: "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
						Fields: map[string]string{"total_amount": "1000.00"},
					},
				},
			}, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	body := `{"donor":{"name":"Ram","email":"ram@example.org"},"amount":"1000","currency":"NPR","provider":"esewa"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/donations", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp StartDonationResponse
	decodeEnvelope(t, rec, &resp)
	assert.True(t, resp.RequiresFormSubmit)
	require.NotNil(t, resp.Form)
	assert.Equal(t, "1000.00", resp.Form.Fields["total_amount"])
}

func TestHandleStart_ValidationErrors(t *testing.T) {
	svc := &mockDonationService{
		startFn: func(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"donor":`, service.ErrCodeInvalidInput},
		{"missing email", `{"donor":{"name":"A"},"amount":"5","currency":"USD","provider":"stripe"}`, service.ErrCodeInvalidInput},
		{"bad amount", `{"donor":{"name":"A","email":"a@example.org"},"amount":"five","currency":"USD","provider":"stripe"}`, domain.ErrCodeInvalidAmount},
		{"bad currency", `{"donor":{"name":"A","email":"a@example.org"},"amount":"5","currency":"EUR","provider":"stripe"}`, domain.ErrCodeInvalidIntent},
		{"bad recurrence", `{"donor":{"name":"A","email":"a@example.org"},"amount":"5","currency":"USD","recurrence":"weekly","provider":"stripe"}`, service.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/donations", bytes.NewBufferString(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestHandleStart_ConfigErrorIsGeneric(t *testing.T) {
	svc := &mockDonationService{
		startFn: func(ctx context.Context, intent domain.DonationIntent) (*service.StartResult, error) {
			return nil, domain.NewProviderConfigError(domain.ProviderKhalti, "secret key sk_live_123 rejected")
		},
	}
	_, mux := newTestHandler(svc, nil)

	body := `{"donor":{"name":"A","email":"a@example.org"},"amount":"100","currency":"NPR","provider":"khalti"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/donations", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk_live_123")
}

func TestHandleVerify_ByDonationID(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderStripe, "25.00", domain.CurrencyUSD)
	donation.Status = domain.StatusCompleted
	receipt := "RCPT-1"
	donation.ReceiptNumber = &receipt

	var gotRef string
	svc := &mockDonationService{
		verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
			assert.Equal(t, donation.ID, id)
			gotRef = reference
			return donation, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/donations/verify?donation_id="+donation.ID.String()+"&session_id=cs_1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VerifyResponse
	decodeEnvelope(t, rec, &resp)
	assert.Equal(t, "cs_1", gotRef)
	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "25.00", resp.Donation.Amount)
	assert.Equal(t, "RCPT-1", resp.Donation.ReceiptNumber)
	assert.Zero(t, resp.RetryAfterMs)
	assert.NotContains(t, rec.Body.String(), donation.Donor.Email)
}

func TestHandleVerify_PendingCarriesPollHints(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderKhalti, "100", domain.CurrencyNPR)
	svc := &mockDonationService{
		verifyByReferenceFn: func(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
			assert.Equal(t, domain.ProviderKhalti, provider)
			assert.Equal(t, "pidx_1", reference)
			return donation, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/donations/verify?session_id=pidx_1&provider=khalti", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VerifyResponse
	decodeEnvelope(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, int64(3000), resp.RetryAfterMs)
	assert.Equal(t, 10, resp.MaxAttempts)
}

func TestHandleVerify_Errors(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		code   string
	}{
		{"no identifiers", "", nil, http.StatusBadRequest, service.ErrCodeInvalidInput},
		{"session without provider", "?session_id=cs_1", nil, http.StatusBadRequest, service.ErrCodeInvalidInput},
		{"malformed id", "?donation_id=nope", nil, http.StatusBadRequest, service.ErrCodeInvalidInput},
		{"unknown donation", "?donation_id=" + id.String(), domain.NewDonationNotFoundError(id.String()), http.StatusNotFound, domain.ErrCodeNotFound},
		{"mismatch", "?donation_id=" + id.String() + "&session_id=cs_x", domain.NewReferenceMismatchError(), http.StatusConflict, domain.ErrCodeVerificationMismatch},
		{"upstream", "?donation_id=" + id.String(), domain.NewUpstreamError(domain.ProviderStripe, errors.New("503")), http.StatusBadGateway, domain.ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDonationService{
				verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
					return nil, tt.err
				},
			}
			_, mux := newTestHandler(svc, nil)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/donations/verify"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			env := decodeEnvelope(t, rec, nil)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestHandleGetDonation(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderStripe, "10.00", domain.CurrencyUSD)
	queries := &mockQueryService{
		getFn: func(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
			if id == donation.ID {
				return donation, nil
			}
			return nil, domain.NewDonationNotFoundError(id.String())
		},
	}
	_, mux := newTestHandler(nil, queries)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/donations/"+donation.ID.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp PublicDonation
		decodeEnvelope(t, rec, &resp)
		assert.Equal(t, donation.ID.String(), resp.ID)
		assert.Equal(t, "stripe", resp.Provider)
		assert.NotContains(t, rec.Body.String(), donation.Donor.Name)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/donations/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/donations/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleReturns_RedirectToResultPage(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderKhalti, "100", domain.CurrencyNPR)
	donation.Status = domain.StatusCompleted

	var gotID uuid.UUID
	var gotRef string
	svc := &mockDonationService{
		verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
			gotID, gotRef = id, reference
			return donation, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	tests := []struct {
		name string
		path string
		ref  string
	}{
		{"stripe", "/api/payments/stripe/return?session_id=cs_1&donation_id=" + donation.ID.String(), "cs_1"},
		{"khalti", "/api/payments/khalti/return?pidx=pidx_1&purchase_order_id=" + donation.ID.String() + "&status=Completed", "pidx_1"},
		{"mock", "/api/payments/mock/return?reference=mock_1&donation_id=" + donation.ID.String(), "mock_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			q := redirectQuery(t, rec)
			assert.Equal(t, donation.ID.String(), q.Get("donation_id"))
			assert.Equal(t, "completed", q.Get("status"))
			assert.Empty(t, q.Get("error"))
			assert.Equal(t, donation.ID, gotID)
			assert.Equal(t, tt.ref, gotRef)
		})
	}
}

func TestHandleReturn_FallsBackToReference(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderStripe, "5.00", domain.CurrencyUSD)
	svc := &mockDonationService{
		verifyByReferenceFn: func(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
			assert.Equal(t, domain.ProviderStripe, provider)
			assert.Equal(t, "cs_9", reference)
			return donation, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/stripe/return?session_id=cs_9", nil))

	q := redirectQuery(t, rec)
	assert.Equal(t, donation.ID.String(), q.Get("donation_id"))
	assert.Equal(t, "pending", q.Get("status"))
}

func TestHandleReturn_VerifyErrorCarriesCode(t *testing.T) {
	id := uuid.New()
	svc := &mockDonationService{
		verifyFn: func(ctx context.Context, got uuid.UUID, reference string) (*domain.Donation, error) {
			return nil, domain.NewReferenceMismatchError()
		},
	}
	_, mux := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/stripe/return?session_id=cs_other&donation_id="+id.String(), nil))

	q := redirectQuery(t, rec)
	assert.Equal(t, id.String(), q.Get("donation_id"))
	assert.Equal(t, domain.ErrCodeVerificationMismatch, q.Get("error"))
}

func TestHandleReturn_MissingIdentifiers(t *testing.T) {
	_, mux := newTestHandler(&mockDonationService{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/khalti/return", nil))

	q := redirectQuery(t, rec)
	assert.Equal(t, service.ErrCodeInvalidInput, q.Get("error"))
}

func TestHandleEsewaReturn(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderEsewa, "1000", domain.CurrencyNPR)
	donation.Status = domain.StatusCompleted
	svc := &mockDonationService{
		verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
			assert.Equal(t, donation.ID, id)
			assert.Equal(t, donation.ID.String(), reference)
			return donation, nil
		},
	}

	t.Run("valid callback", func(t *testing.T) {
		parser := &fakeEsewaParser{cb: &esewa.Callback{TransactionUUID: donation.ID.String(), Status: "COMPLETE"}}
		_, mux := newTestHandler(svc, nil, WithEsewaCallbacks(parser))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/esewa/return?data=eyJ9", nil))

		q := redirectQuery(t, rec)
		assert.Equal(t, "completed", q.Get("status"))
	})

	t.Run("bad signature", func(t *testing.T) {
		parser := &fakeEsewaParser{err: esewa.ErrInvalidSignature}
		_, mux := newTestHandler(svc, nil, WithEsewaCallbacks(parser))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/esewa/return?data=forged", nil))

		q := redirectQuery(t, rec)
		assert.Equal(t, domain.ErrCodeVerificationMismatch, q.Get("error"))
	})

	t.Run("esewa disabled", func(t *testing.T) {
		_, mux := newTestHandler(svc, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/esewa/return?data=x", nil))

		q := redirectQuery(t, rec)
		assert.Equal(t, domain.ErrCodeProviderUnavailable, q.Get("error"))
	})
}

func TestHandleCancel_VerifiesWithoutReference(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderKhalti, "100", domain.CurrencyNPR)
	svc := &mockDonationService{
		verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
			assert.Empty(t, reference)
			return donation, nil
		},
	}
	_, mux := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/khalti/cancel?donation_id="+donation.ID.String(), nil))

	q := redirectQuery(t, rec)
	assert.Equal(t, "pending", q.Get("status"))
}

func TestHandleStripeWebhook(t *testing.T) {
	donation := testhelpers.NewPendingDonation(domain.ProviderStripe, "5.00", domain.CurrencyUSD)
	event := &stripe.WebhookEvent{
		ID:         "evt_1",
		Type:       "checkout.session.completed",
		SessionID:  donation.ProviderReference,
		DonationID: donation.ID.String(),
	}

	t.Run("applies event", func(t *testing.T) {
		calls := 0
		svc := &mockDonationService{
			verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
				calls++
				assert.Equal(t, donation.ID, id)
				assert.Equal(t, donation.ProviderReference, reference)
				d := *donation
				d.Status = domain.StatusCompleted
				return &d, nil
			},
		}
		_, mux := newTestHandler(svc, nil, WithStripeWebhook(&fakeWebhookParser{event: event}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, calls)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, mux := newTestHandler(&mockDonationService{}, nil, WithStripeWebhook(&fakeWebhookParser{err: errors.New("bad sig")}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ignored event type", func(t *testing.T) {
		_, mux := newTestHandler(&mockDonationService{}, nil, WithStripeWebhook(&fakeWebhookParser{}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("retryable failure asks for redelivery", func(t *testing.T) {
		svc := &mockDonationService{
			verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
				return nil, domain.NewUpstreamError(domain.ProviderStripe, errors.New("timeout"))
			},
		}
		_, mux := newTestHandler(svc, nil, WithStripeWebhook(&fakeWebhookParser{event: event}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("permanent failure is acknowledged", func(t *testing.T) {
		svc := &mockDonationService{
			verifyFn: func(ctx context.Context, id uuid.UUID, reference string) (*domain.Donation, error) {
				return nil, domain.NewReferenceMismatchError()
			},
		}
		_, mux := newTestHandler(svc, nil, WithStripeWebhook(&fakeWebhookParser{event: event}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		_, mux := newTestHandler(&mockDonationService{}, nil)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	_, mux := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewDonationHandler_Defaults(t *testing.T) {
	h := NewDonationHandler(nil, nil, Config{}, testhelpers.DiscardLogger())
	assert.Equal(t, 3*time.Second, h.cfg.VerifyRetryAfter)
	assert.Equal(t, 10, h.cfg.VerifyMaxAttempts)
}
