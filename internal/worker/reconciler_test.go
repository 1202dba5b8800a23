package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/DanielPopoola/donation-gateway/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcileFixture struct {
	repo       *testhelpers.MockDonationRepository
	provider   *testhelpers.MockProvider
	notifier   *testhelpers.MockNotifier
	reconciler *Reconciler
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	logger := testhelpers.DiscardLogger()
	repo := testhelpers.NewMockDonationRepository()
	provider := testhelpers.NewMockProvider(domain.ProviderStripe, domain.CurrencyUSD)
	notifier := &testhelpers.MockNotifier{}

	receipts := service.NewReceiptService(repo, notifier, time.Second, logger)
	orch := service.NewOrchestrator(repo, testhelpers.StaticRegistry{domain.ProviderStripe: provider}, receipts,
		service.Config{PublicBaseURL: "https://api.example.test", StrictVerification: true}, logger)

	return &reconcileFixture{
		repo:       repo,
		provider:   provider,
		notifier:   notifier,
		reconciler: NewReconciler(repo, orch, receipts, 15*time.Minute, 50, logger),
	}
}

func (f *reconcileFixture) seed(t *testing.T, age time.Duration) *domain.Donation {
	t.Helper()
	d := testhelpers.NewPendingDonation(domain.ProviderStripe, "20.00", domain.CurrencyUSD)
	d.CreatedAt = time.Now().UTC().Add(-age)
	d.UpdatedAt = d.CreatedAt
	require.NoError(t, f.repo.CreateDonation(context.Background(), d))
	return d
}

func TestReconciler_CompletesStalePending(t *testing.T) {
	f := newReconcileFixture(t)
	d := f.seed(t, time.Hour)
	f.provider.CheckStatusFn = func(ctx context.Context, q domain.StatusQuery) (*domain.PaymentOutcome, error) {
		assert.Equal(t, d.ProviderReference, q.Reference)
		return testhelpers.CompletedOutcome(q, "pi_1"), nil
	}

	report := f.reconciler.RunOnce(context.Background())

	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Completed)
	assert.Zero(t, report.VerifyErrors)

	stored, err := f.repo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.NotifiedAt)
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestReconciler_SkipsRecentPending(t *testing.T) {
	f := newReconcileFixture(t)
	f.seed(t, time.Minute)

	report := f.reconciler.RunOnce(context.Background())

	assert.Zero(t, report.Checked)
	assert.Zero(t, f.provider.GetCalls("CheckStatus"))
}

func TestReconciler_FailedAndPendingOutcomes(t *testing.T) {
	f := newReconcileFixture(t)
	expired := f.seed(t, time.Hour)
	f.seed(t, 2*time.Hour)

	f.provider.CheckStatusFn = func(ctx context.Context, q domain.StatusQuery) (*domain.PaymentOutcome, error) {
		if q.Reference == expired.ProviderReference {
			return &domain.PaymentOutcome{State: domain.OutcomeFailed, RawStatus: "expired"}, nil
		}
		return &domain.PaymentOutcome{State: domain.OutcomePending, RawStatus: "open"}, nil
	}

	report := f.reconciler.RunOnce(context.Background())

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.StillPending)
	assert.Empty(t, f.notifier.Sent())
}

func TestReconciler_UpstreamErrorLeavesPending(t *testing.T) {
	f := newReconcileFixture(t)
	d := f.seed(t, time.Hour)
	f.provider.CheckStatusFn = func(ctx context.Context, q domain.StatusQuery) (*domain.PaymentOutcome, error) {
		return nil, domain.NewUpstreamError(domain.ProviderStripe, errors.New("connection reset"))
	}

	report := f.reconciler.RunOnce(context.Background())

	assert.Equal(t, 1, report.VerifyErrors)
	stored, err := f.repo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestReconciler_RedeliversMissedReceipts(t *testing.T) {
	f := newReconcileFixture(t)
	d := f.seed(t, time.Hour)
	f.provider.CheckStatusFn = func(ctx context.Context, q domain.StatusQuery) (*domain.PaymentOutcome, error) {
		return testhelpers.CompletedOutcome(q, "pi_2"), nil
	}

	f.notifier.Err = errors.New("mailer down")
	first := f.reconciler.RunOnce(context.Background())
	assert.Equal(t, 1, first.Completed)
	assert.Equal(t, 1, first.ReceiptErrors)

	stored, err := f.repo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.NotifiedAt)

	f.notifier.Err = nil
	second := f.reconciler.RunOnce(context.Background())
	assert.Zero(t, second.Checked)
	assert.Equal(t, 1, second.ReceiptsSent)

	stored, err = f.repo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.NotifiedAt)
	require.Len(t, f.notifier.Sent(), 1)
	assert.Equal(t, *stored.ReceiptNumber, f.notifier.Sent()[0].Number)
}

func TestReconciler_StartStopsOnCancel(t *testing.T) {
	f := newReconcileFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.reconciler.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
