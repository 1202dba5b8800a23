package domain

// OutcomeState is the provider's view of a payment, already mapped onto ours.
type OutcomeState string

const (
	OutcomePending   OutcomeState = "pending"
	OutcomeCompleted OutcomeState = "completed"
	OutcomeFailed    OutcomeState = "failed"
)

// PaymentOutcome is what an adapter reports after asking its provider.
type PaymentOutcome struct {
	State                OutcomeState
	ConfirmedAmountMinor int64
	ConfirmedCurrency    Currency
	ChargeID             string
	SubscriptionID       string
	// RawStatus is the provider's own status string, kept for logs.
	RawStatus string
}

type FormPost struct {
	Method string
	Action string
	Fields map[string]string
}

// Session is the provider checkout a donor is sent to.
type Session struct {
	Reference   string
	RedirectURL string
	// FormPost is set when the provider requires an auto-submitted form
	// instead of a plain redirect.
	FormPost *FormPost
}

type SessionRequest struct {
	DonationID string
	Donor      Donor
	Amount     Money
	Recurrence Recurrence
	SuccessURL string
	CancelURL  string
}

// StatusQuery carries the expected amount alongside the reference because
// some providers need it to look a payment up.
type StatusQuery struct {
	Reference string
	Expected  Money
}

type Capabilities struct {
	Currencies []Currency
	Recurring  bool
}

func (c Capabilities) SupportsCurrency(cur Currency) bool {
	for _, supported := range c.Currencies {
		if supported == cur {
			return true
		}
	}
	return false
}
