// Package sqlite is the single-node DonationRepository backed by an embedded
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrDuplicateReference = errors.New("provider reference already recorded")

type DonationRepository struct {
	db *sql.DB
}

var _ ports.DonationRepository = (*DonationRepository)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*DonationRepository, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time keeps the conditional update race-free and
	// lets :memory: behave as a single database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	repo := &DonationRepository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *DonationRepository) Close() error {
	return r.db.Close()
}

func (r *DonationRepository) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

const selectColumns = `
	SELECT id, donor_name, donor_email, donor_phone, amount, currency, recurrence,
	       provider, provider_reference, payment_status, payment_identifier,
	       subscription_reference, receipt_number, created_at, updated_at, completed_at, notified_at
	FROM donations`

func (r *DonationRepository) CreateDonation(ctx context.Context, d *domain.Donation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO donations (
			id, donor_name, donor_email, donor_phone, amount, currency, recurrence,
			provider, provider_reference, payment_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(),
		d.Donor.Name,
		d.Donor.Email,
		d.Donor.Phone,
		d.Amount.Amount.StringFixed(d.Amount.Currency.Exponent()),
		string(d.Amount.Currency),
		string(d.Recurrence),
		string(d.Provider),
		d.ProviderReference,
		string(d.Status),
		toMillis(d.CreatedAt),
		toMillis(d.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("create donation %s: %w", d.ID, ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

func (r *DonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String()))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewDonationNotFoundError(id.String())
	}
	return d, err
}

func (r *DonationRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	return scanDonation(r.db.QueryRowContext(ctx,
		selectColumns+` WHERE provider = ? AND provider_reference = ?`, string(provider), reference))
}

func (r *DonationRepository) TransitionStatus(ctx context.Context, t domain.Transition) (bool, error) {
	var completedAt any
	if t.To == domain.StatusCompleted {
		completedAt = toMillis(t.At)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE donations
		SET payment_status = ?, payment_identifier = ?, subscription_reference = ?,
		    receipt_number = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND provider_reference = ? AND payment_status = 'pending'`,
		string(t.To),
		t.PaymentIdentifier,
		t.SubscriptionReference,
		t.ReceiptNumber,
		completedAt,
		toMillis(t.At),
		t.DonationID.String(),
		t.Reference,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition donation %s: %w", t.DonationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *DonationRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE donations SET notified_at = ? WHERE id = ? AND notified_at IS NULL`, toMillis(at), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark donation %s notified: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *DonationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		WHERE payment_status = 'pending' AND created_at < ?
		ORDER BY created_at ASC LIMIT ?`, toMillis(createdBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending donations: %w", err)
	}
	return collect(rows)
}

func (r *DonationRepository) FindUnnotified(ctx context.Context, limit int) ([]*domain.Donation, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		WHERE payment_status = 'completed' AND notified_at IS NULL
		ORDER BY completed_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unnotified donations: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*domain.Donation, error) {
	defer rows.Close()
	var out []*domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDonation(row scanner) (*domain.Donation, error) {
	var (
		id, name, email, phone, amount, currency, recurrence string
		provider, reference, status                          string
		paymentID, subRef, receipt                           sql.NullString
		createdAt, updatedAt                                 int64
		completedAt, notifiedAt                              sql.NullInt64
	)
	err := row.Scan(&id, &name, &email, &phone, &amount, &currency, &recurrence,
		&provider, &reference, &status, &paymentID, &subRef, &receipt,
		&createdAt, &updatedAt, &completedAt, &notifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("donation has malformed id %q: %w", id, err)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("donation %s has unreadable amount %q: %w", id, amount, err)
	}

	return &domain.Donation{
		ID:                    parsedID,
		Donor:                 domain.Donor{Name: name, Email: email, Phone: phone},
		Amount:                domain.Money{Amount: value, Currency: domain.Currency(currency)},
		Recurrence:            domain.Recurrence(recurrence),
		Provider:              domain.ProviderID(provider),
		ProviderReference:     reference,
		Status:                domain.PaymentStatus(status),
		PaymentIdentifier:     nullString(paymentID),
		SubscriptionReference: nullString(subRef),
		ReceiptNumber:         nullString(receipt),
		CreatedAt:             fromMillis(createdAt),
		UpdatedAt:             fromMillis(updatedAt),
		CompletedAt:           nullTime(completedAt),
		NotifiedAt:            nullTime(notifiedAt),
	}, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
