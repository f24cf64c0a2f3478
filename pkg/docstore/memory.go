// Package docstore provides an in-memory implementation of the document store
// used by development builds and tests. Production deployments use pkg/mongo.
package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/memorialkit/pkg/account"
)

// Memory is an in-memory document store safe for concurrent use.
// Reads return copies so callers cannot mutate stored state.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[string]*account.Account
	memorials map[uuid.UUID]*account.Memorial
	now       func() time.Time
}

var _ account.Store = (*Memory)(nil)

// NewMemory returns an empty store seeded with the given accounts.
func NewMemory(accounts ...account.Account) *Memory {
	m := &Memory{
		accounts:  make(map[string]*account.Account, len(accounts)),
		memorials: make(map[uuid.UUID]*account.Memorial),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, a := range accounts {
		m.PutAccount(a)
	}
	return m
}

// PutAccount creates or replaces an account.
func (m *Memory) PutAccount(a account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := a
	m.accounts[a.ID] = &cp
}

func (m *Memory) Account(ctx context.Context, id string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) MemorialCount(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return 0, account.ErrAccountNotFound
	}
	return a.MemorialCount, nil
}

func (m *Memory) IncrementMemorialCount(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return 0, account.ErrAccountNotFound
	}
	a.MemorialCount++
	a.UpdatedAt = m.now()
	return a.MemorialCount, nil
}

func (m *Memory) CreateMemorial(ctx context.Context, mem *account.Memorial) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *mem
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.memorials[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) FlagMemorial(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.memorials[id]
	if !ok {
		return account.ErrMemorialNotFound
	}
	mem.Moderation = account.ModerationFlagged
	mem.FlagReason = reason
	return nil
}

// Memorial returns a stored memorial by ID.
func (m *Memory) Memorial(ctx context.Context, id uuid.UUID) (*account.Memorial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mem, ok := m.memorials[id]
	if !ok {
		return nil, account.ErrMemorialNotFound
	}
	cp := *mem
	return &cp, nil
}

// Memorials returns every memorial owned by accountID.
func (m *Memory) Memorials(ctx context.Context, accountID string) []account.Memorial {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []account.Memorial
	for _, mem := range m.memorials {
		if mem.AccountID == accountID {
			out = append(out, *mem)
		}
	}
	return out
}

func (m *Memory) SetGatewayCustomerID(ctx context.Context, accountID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.GatewayCustomerID = customerID
	a.UpdatedAt = m.now()
	return nil
}

func (m *Memory) UpdateSubscription(ctx context.Context, accountID string, upd account.SubscriptionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		return account.ErrAccountNotFound
	}
	applyUpdate(a, upd)
	a.UpdatedAt = m.now()
	return nil
}

func applyUpdate(a *account.Account, upd account.SubscriptionUpdate) {
	if upd.PlanID != nil {
		a.PlanID = *upd.PlanID
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	if upd.ClearTrial {
		a.TrialEndsAt = nil
	} else if upd.TrialEndsAt != nil {
		t := *upd.TrialEndsAt
		a.TrialEndsAt = &t
	}
	if upd.GatewayCustomerID != nil {
		a.GatewayCustomerID = *upd.GatewayCustomerID
	}
}
