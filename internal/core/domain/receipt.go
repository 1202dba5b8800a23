package domain

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is the donor-facing confirmation sent once a donation completes.
type Receipt struct {
	Number      string
	DonationID  uuid.UUID
	DonorName   string
	DonorEmail  string
	Amount      Money
	Recurrence  Recurrence
	Provider    ProviderID
	CompletedAt time.Time
}

func ReceiptFor(d *Donation) Receipt {
	r := Receipt{
		DonationID: d.ID,
		DonorName:  d.Donor.Name,
		DonorEmail: d.Donor.Email,
		Amount:     d.Amount,
		Recurrence: d.Recurrence,
		Provider:   d.Provider,
	}
	if d.ReceiptNumber != nil {
		r.Number = *d.ReceiptNumber
	}
	if d.CompletedAt != nil {
		r.CompletedAt = *d.CompletedAt
	}
	return r
}
