package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrDuplicateReference = errors.New("provider reference already recorded")

const selectColumns = `
	SELECT id, donor_name, donor_email, donor_phone, amount::text, currency, recurrence,
	       provider, provider_reference, payment_status, payment_identifier,
	       subscription_reference, receipt_number, created_at, updated_at, completed_at, notified_at
	FROM donations`

type DonationRepository struct {
	db Executor
}

var _ ports.DonationRepository = (*DonationRepository)(nil)

func NewDonationRepository(db Executor) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	query := `
		INSERT INTO donations (
			id, donor_name, donor_email, donor_phone, amount, currency, recurrence,
			provider, provider_reference, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)
	`

	m := toDBModel(donation)
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.DonorName,
		m.DonorEmail,
		m.DonorPhone,
		m.Amount,
		m.Currency,
		m.Recurrence,
		m.Provider,
		m.ProviderReference,
		m.Status,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create donation %s: %w", m.ID, ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}

	return nil
}

func (r *DonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	row := r.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id)
	d, err := scanDonation(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewDonationNotFoundError(id.String())
	}
	return d, err
}

func (r *DonationRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	row := r.db.QueryRow(ctx, selectColumns+` WHERE provider = $1 AND provider_reference = $2`, string(provider), reference)
	return scanDonation(row)
}

// TransitionStatus is the only write that changes payment_status.
func (r *DonationRepository) TransitionStatus(ctx context.Context, t domain.Transition) (bool, error) {
	query := `
		UPDATE donations
		SET payment_status = $3,
		    payment_identifier = $4,
		    subscription_reference = $5,
		    receipt_number = $6,
		    completed_at = $7,
		    updated_at = $8
		WHERE id = $1
		  AND provider_reference = $2
		  AND payment_status = 'pending'
	`

	var completedAt *time.Time
	if t.To == domain.StatusCompleted {
		completedAt = &t.At
	}

	tag, err := r.db.Exec(ctx, query,
		t.DonationID,
		t.Reference,
		string(t.To),
		t.PaymentIdentifier,
		t.SubscriptionReference,
		t.ReceiptNumber,
		completedAt,
		t.At,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition donation %s: %w", t.DonationID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *DonationRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE donations SET notified_at = $2 WHERE id = $1 AND notified_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark donation %s notified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// either missing or already stamped
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FindStalePending returns pending donations created before the cutoff, oldest first.
func (r *DonationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error) {
	rows, err := r.db.Query(ctx, selectColumns+`
		WHERE payment_status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending donations: %w", err)
	}
	return collectDonations(rows)
}

func (r *DonationRepository) FindUnnotified(ctx context.Context, limit int) ([]*domain.Donation, error) {
	rows, err := r.db.Query(ctx, selectColumns+`
		WHERE payment_status = 'completed' AND notified_at IS NULL
		ORDER BY completed_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unnotified donations: %w", err)
	}
	return collectDonations(rows)
}

func collectDonations(rows pgx.Rows) ([]*domain.Donation, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Donation, error) {
		return scanDonation(row)
	})
	if err != nil {
		return nil, fmt.Errorf("error occurred while scanning rows: %w", err)
	}
	return results, nil
}

// scanDonation converts a database row into a domain Donation.
func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var m DonationModel
	err := row.Scan(
		&m.ID, &m.DonorName, &m.DonorEmail, &m.DonorPhone, &m.Amount, &m.Currency, &m.Recurrence,
		&m.Provider, &m.ProviderReference, &m.Status, &m.PaymentIdentifier,
		&m.SubscriptionReference, &m.ReceiptNumber, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.NotifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}
	return toDomainModel(m)
}
