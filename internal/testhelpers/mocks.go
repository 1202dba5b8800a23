package testhelpers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/google/uuid"
)

// MockDonationRepository is an in-memory store honouring the pending-only
// conditional write. The Fn fields override individual methods.
type MockDonationRepository struct {
	mu        sync.RWMutex
	donations map[uuid.UUID]*domain.Donation

	transitions atomic.Int32

	CreateDonationFn   func(ctx context.Context, donation *domain.Donation) error
	FindByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	TransitionStatusFn func(ctx context.Context, t domain.Transition) (bool, error)
	MarkNotifiedFn     func(ctx context.Context, id uuid.UUID, at time.Time) error
	FindStalePendingFn func(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error)
}

var _ ports.DonationRepository = (*MockDonationRepository)(nil)

func NewMockDonationRepository() *MockDonationRepository {
	return &MockDonationRepository{
		donations: make(map[uuid.UUID]*domain.Donation),
	}
}

func clone(d *domain.Donation) *domain.Donation {
	c := *d
	return &c
}

func (m *MockDonationRepository) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	if m.CreateDonationFn != nil {
		return m.CreateDonationFn(ctx, donation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donations[donation.ID] = clone(donation)
	return nil
}

func (m *MockDonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.donations[id]
	if !ok {
		return nil, domain.NewDonationNotFoundError(id.String())
	}
	return clone(d), nil
}

func (m *MockDonationRepository) FindByProviderReference(ctx context.Context, provider domain.ProviderID, reference string) (*domain.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.donations {
		if d.Provider == provider && d.ProviderReference == reference {
			return clone(d), nil
		}
	}
	return nil, domain.NewDonationNotFoundError(reference)
}

func (m *MockDonationRepository) TransitionStatus(ctx context.Context, t domain.Transition) (bool, error) {
	if m.TransitionStatusFn != nil {
		return m.TransitionStatusFn(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[t.DonationID]
	if !ok || d.Status != domain.StatusPending || d.ProviderReference != t.Reference {
		return false, nil
	}
	d.Apply(t)
	m.transitions.Add(1)
	return true, nil
}

func (m *MockDonationRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.MarkNotifiedFn != nil {
		return m.MarkNotifiedFn(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[id]
	if !ok {
		return domain.NewDonationNotFoundError(id.String())
	}
	d.NotifiedAt = &at
	return nil
}

func (m *MockDonationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Donation, error) {
	if m.FindStalePendingFn != nil {
		return m.FindStalePendingFn(ctx, createdBefore, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Donation
	for _, d := range m.donations {
		if len(out) >= limit {
			break
		}
		if d.Status == domain.StatusPending && d.CreatedAt.Before(createdBefore) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (m *MockDonationRepository) FindUnnotified(ctx context.Context, limit int) ([]*domain.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Donation
	for _, d := range m.donations {
		if len(out) >= limit {
			break
		}
		if d.Status == domain.StatusCompleted && d.NotifiedAt == nil {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

// Count returns how many donations are stored.
func (m *MockDonationRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.donations)
}

// Transitions returns how many conditional writes succeeded.
func (m *MockDonationRepository) Transitions() int {
	return int(m.transitions.Load())
}

// MockProvider is a scriptable ProviderAdapter.
type MockProvider struct {
	Provider domain.ProviderID
	Caps     domain.Capabilities

	CreateSessionFn func(ctx context.Context, req domain.SessionRequest) (*domain.Session, error)
	CheckStatusFn   func(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error)

	// Delay is applied before CheckStatus to widen race windows in tests.
	Delay time.Duration

	mu    sync.Mutex
	calls map[string]int
}

var _ ports.ProviderAdapter = (*MockProvider)(nil)

func NewMockProvider(id domain.ProviderID, currencies ...domain.Currency) *MockProvider {
	return &MockProvider{
		Provider: id,
		Caps:     domain.Capabilities{Currencies: currencies, Recurring: true},
		calls:    make(map[string]int),
	}
}

func (m *MockProvider) inc(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *MockProvider) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockProvider) ID() domain.ProviderID { return m.Provider }

func (m *MockProvider) Capabilities() domain.Capabilities { return m.Caps }

func (m *MockProvider) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	m.inc("CreateSession")
	if m.CreateSessionFn != nil {
		return m.CreateSessionFn(ctx, req)
	}
	ref := "sess_" + req.DonationID
	return &domain.Session{Reference: ref, RedirectURL: "https://checkout.example.test/" + ref}, nil
}

func (m *MockProvider) CheckStatus(ctx context.Context, query domain.StatusQuery) (*domain.PaymentOutcome, error) {
	m.inc("CheckStatus")
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.CheckStatusFn != nil {
		return m.CheckStatusFn(ctx, query)
	}
	return &domain.PaymentOutcome{State: domain.OutcomePending, RawStatus: "open"}, nil
}

// CompletedOutcome confirms exactly the expected amount.
func CompletedOutcome(query domain.StatusQuery, chargeID string) *domain.PaymentOutcome {
	return &domain.PaymentOutcome{
		State:                domain.OutcomeCompleted,
		ConfirmedAmountMinor: query.Expected.MinorUnits(),
		ConfirmedCurrency:    query.Expected.Currency,
		ChargeID:             chargeID,
		RawStatus:            "paid",
	}
}

// StaticRegistry serves a fixed set of adapters.
type StaticRegistry map[domain.ProviderID]ports.ProviderAdapter

func (r StaticRegistry) Lookup(id domain.ProviderID) (ports.ProviderAdapter, error) {
	a, ok := r[id]
	if !ok {
		return nil, domain.NewProviderUnavailableError(id)
	}
	return a, nil
}

func (r StaticRegistry) Enabled() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}

// MockNotifier records receipts and can be told to fail.
type MockNotifier struct {
	mu       sync.Mutex
	receipts []domain.Receipt
	Err      error
}

func (m *MockNotifier) SendReceipt(ctx context.Context, receipt domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.receipts = append(m.receipts, receipt)
	return nil
}

func (m *MockNotifier) Sent() []domain.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Receipt, len(m.receipts))
	copy(out, m.receipts)
	return out
}
