// Package domain defines the donation model and its payment lifecycle.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a donation payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

type Recurrence string

const (
	RecurrenceOneTime Recurrence = "one_time"
	RecurrenceMonthly Recurrence = "monthly"
)

type ProviderID string

const (
	ProviderStripe ProviderID = "stripe"
	ProviderKhalti ProviderID = "khalti"
	ProviderEsewa  ProviderID = "esewa"
	ProviderMock   ProviderID = "mock"
)

type Donor struct {
	Name  string
	Email string
	Phone string
}

// DonationIntent is what a donor submits before any payment session exists.
type DonationIntent struct {
	Donor      Donor
	Amount     decimal.Decimal
	Currency   Currency
	Recurrence Recurrence
	Provider   ProviderID
}

// Normalize validates the intent and returns its amount at minor-unit precision.
func (i DonationIntent) Normalize() (Money, error) {
	if strings.TrimSpace(i.Donor.Name) == "" {
		return Money{}, NewInvalidIntentError("donor name is required")
	}
	if strings.TrimSpace(i.Donor.Email) == "" {
		return Money{}, NewInvalidIntentError("donor email is required")
	}
	switch i.Recurrence {
	case RecurrenceOneTime, RecurrenceMonthly:
	default:
		return Money{}, NewInvalidIntentError(fmt.Sprintf("unknown recurrence %q", i.Recurrence))
	}
	if i.Provider == "" {
		return Money{}, NewInvalidIntentError("provider is required")
	}
	return NewMoney(i.Amount, i.Currency)
}

// Donation is the persisted record of one donation attempt.
type Donation struct {
	ID         uuid.UUID
	Donor      Donor
	Amount     Money
	Recurrence Recurrence
	Provider   ProviderID

	// ProviderReference is the session identifier issued by the provider.
	// It never changes after creation.
	ProviderReference string

	Status                PaymentStatus
	PaymentIdentifier     *string
	SubscriptionReference *string
	ReceiptNumber         *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	NotifiedAt  *time.Time
}

func NewDonation(id uuid.UUID, intent DonationIntent, amount Money, reference string, now time.Time) *Donation {
	return &Donation{
		ID:                id,
		Donor:             intent.Donor,
		Amount:            amount,
		Recurrence:        intent.Recurrence,
		Provider:          intent.Provider,
		ProviderReference: reference,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// CanTransitionTo enforces the monotonic lifecycle:
//   - pending → completed, failed
//
// completed and failed are terminal.
func (d *Donation) CanTransitionTo(target PaymentStatus) error {
	if d.Status == StatusPending && (target == StatusCompleted || target == StatusFailed) {
		return nil
	}
	return NewInvalidTransitionError(d.Status, target)
}

func (d *Donation) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}

// Transition is a conditional status write. Stores apply it only while the
// record is still pending and its reference equals Reference.
type Transition struct {
	DonationID            uuid.UUID
	Reference             string
	To                    PaymentStatus
	PaymentIdentifier     *string
	SubscriptionReference *string
	ReceiptNumber         *string
	At                    time.Time
}

// Apply copies a transition that won the store-level race onto the in-memory record.
func (d *Donation) Apply(t Transition) {
	d.Status = t.To
	d.UpdatedAt = t.At
	d.PaymentIdentifier = t.PaymentIdentifier
	d.SubscriptionReference = t.SubscriptionReference
	d.ReceiptNumber = t.ReceiptNumber
	if t.To == StatusCompleted {
		at := t.At
		d.CompletedAt = &at
	}
}

// PaymentIdentifier renders the stored "<provider>:<charge id>" form.
func PaymentIdentifier(provider ProviderID, chargeID string) string {
	return string(provider) + ":" + chargeID
}

// ReceiptNumber is derived from the donation id and completion date so that
// re-sending a receipt never mints a new number.
func ReceiptNumber(id uuid.UUID, completedAt time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return fmt.Sprintf("RCPT-%s-%s", completedAt.UTC().Format("20060102"), short)
}
