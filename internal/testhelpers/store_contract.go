package testhelpers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract exercises the behaviour every DonationRepository backend
// must share. newRepo must return an empty store.
func RunStoreContract(t *testing.T, newRepo func(t *testing.T) ports.DonationRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		d := NewPendingDonation(domain.ProviderKhalti, "1500.50", domain.CurrencyNPR)
		require.NoError(t, repo.CreateDonation(ctx, d))

		got, err := repo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.True(t, got.Amount.Amount.Equal(d.Amount.Amount), "amount %s", got.Amount.Amount)
		assert.Equal(t, domain.CurrencyNPR, got.Amount.Currency)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, d.Donor, got.Donor)
		assert.WithinDuration(t, d.CreatedAt, got.CreatedAt, time.Millisecond)

		byRef, err := repo.FindByProviderReference(ctx, domain.ProviderKhalti, d.ProviderReference)
		require.NoError(t, err)
		assert.Equal(t, d.ID, byRef.ID)
	})

	t.Run("missing records", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.FindByProviderReference(ctx, domain.ProviderStripe, "cs_nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("transition only from pending", func(t *testing.T) {
		repo := newRepo(t)
		d := NewPendingDonation(domain.ProviderStripe, "50", domain.CurrencyUSD)
		require.NoError(t, repo.CreateDonation(ctx, d))

		pid := "stripe:pi_1"
		rcpt := domain.ReceiptNumber(d.ID, time.Now())
		at := time.Now().UTC().Truncate(time.Millisecond)
		done := domain.Transition{
			DonationID: d.ID, Reference: d.ProviderReference, To: domain.StatusCompleted,
			PaymentIdentifier: &pid, ReceiptNumber: &rcpt, At: at,
		}

		swapped, err := repo.TransitionStatus(ctx, done)
		require.NoError(t, err)
		assert.True(t, swapped)

		swapped, err = repo.TransitionStatus(ctx, done)
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = repo.TransitionStatus(ctx, domain.Transition{
			DonationID: d.ID, Reference: d.ProviderReference, To: domain.StatusFailed, At: at,
		})
		require.NoError(t, err)
		assert.False(t, swapped)

		got, err := repo.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		require.NotNil(t, got.PaymentIdentifier)
		assert.Equal(t, pid, *got.PaymentIdentifier)
		require.NotNil(t, got.ReceiptNumber)
		assert.Equal(t, rcpt, *got.ReceiptNumber)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, at, *got.CompletedAt, time.Millisecond)
	})

	t.Run("transition requires matching reference", func(t *testing.T) {
		repo := newRepo(t)
		d := NewPendingDonation(domain.ProviderStripe, "50", domain.CurrencyUSD)
		require.NoError(t, repo.CreateDonation(ctx, d))

		swapped, err := repo.TransitionStatus(ctx, domain.Transition{
			DonationID: d.ID, Reference: "cs_other", To: domain.StatusFailed, At: time.Now(),
		})
		require.NoError(t, err)
		assert.False(t, swapped)
	})

	t.Run("concurrent transitions have one winner", func(t *testing.T) {
		repo := newRepo(t)
		d := NewPendingDonation(domain.ProviderEsewa, "250", domain.CurrencyNPR)
		require.NoError(t, repo.CreateDonation(ctx, d))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				to := domain.StatusCompleted
				if i%2 == 1 {
					to = domain.StatusFailed
				}
				swapped, err := repo.TransitionStatus(ctx, domain.Transition{
					DonationID: d.ID, Reference: d.ProviderReference, To: to, At: time.Now(),
				})
				assert.NoError(t, err)
				if swapped {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("notified and reconcile queries", func(t *testing.T) {
		repo := newRepo(t)
		old := NewPendingDonation(domain.ProviderKhalti, "100", domain.CurrencyNPR)
		old.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		old.UpdatedAt = old.CreatedAt
		fresh := NewPendingDonation(domain.ProviderKhalti, "100", domain.CurrencyNPR)
		done := NewPendingDonation(domain.ProviderStripe, "10", domain.CurrencyUSD)
		for _, d := range []*domain.Donation{old, fresh, done} {
			require.NoError(t, repo.CreateDonation(ctx, d))
		}

		stale, err := repo.FindStalePending(ctx, time.Now().Add(-30*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, old.ID, stale[0].ID)

		swapped, err := repo.TransitionStatus(ctx, domain.Transition{
			DonationID: done.ID, Reference: done.ProviderReference, To: domain.StatusCompleted, At: time.Now(),
		})
		require.NoError(t, err)
		require.True(t, swapped)

		unnotified, err := repo.FindUnnotified(ctx, 10)
		require.NoError(t, err)
		require.Len(t, unnotified, 1)
		assert.Equal(t, done.ID, unnotified[0].ID)

		require.NoError(t, repo.MarkNotified(ctx, done.ID, time.Now()))
		unnotified, err = repo.FindUnnotified(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, unnotified)

		assert.ErrorIs(t, repo.MarkNotified(ctx, uuid.New(), time.Now()), domain.ErrNotFound)
	})
}
