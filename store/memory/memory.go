// Package memory provides an in-memory Store implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/store"
)

// Store keeps everything in maps behind one RWMutex. Snapshots are
// copied on the way out so callers never share slices with the store.
type Store struct {
	mu        sync.RWMutex
	clients   map[billing.ClientID]billing.Client
	contracts map[billing.ClientID][]billing.Contract
	payments  map[billing.PaymentID]billing.Payment
}

func New() *Store {
	return &Store{
		clients:   make(map[billing.ClientID]billing.Client),
		contracts: make(map[billing.ClientID][]billing.Contract),
		payments:  make(map[billing.PaymentID]billing.Payment),
	}
}

var _ store.Store = (*Store)(nil)

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) SaveClient(_ context.Context, c billing.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
	return nil
}

func (s *Store) GetClient(_ context.Context, id billing.ClientID) (billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return billing.Client{}, store.ErrClientNotFound
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context) ([]billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// =============================================================================
// CONTRACTS - Append-only supersession
// =============================================================================

func (s *Store) AppendContract(_ context.Context, c billing.Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.ClientID]; !ok {
		return store.ErrClientNotFound
	}

	history := s.contracts[c.ClientID]
	for i := range history {
		history[i].IsActive = false
	}
	c.IsActive = true
	s.contracts[c.ClientID] = append(history, c)
	return nil
}

func (s *Store) ContractHistory(_ context.Context, clientID billing.ClientID) ([]billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Contract, len(s.contracts[clientID]))
	copy(out, s.contracts[clientID])
	return out, nil
}

func (s *Store) ActiveContract(_ context.Context, clientID billing.ClientID, asOf time.Time) (billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := store.ActiveOf(s.contracts[clientID], asOf)
	if !ok {
		return billing.Contract{}, store.ErrContractNotFound
	}
	return c, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) RecordPayment(_ context.Context, p billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return store.ErrDuplicateID
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) UpdatePayment(_ context.Context, p billing.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; !exists {
		return store.ErrPaymentNotFound
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) DeletePayment(_ context.Context, id billing.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[id]; !exists {
		return store.ErrPaymentNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id billing.PaymentID) (billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return billing.Payment{}, store.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Store) Payments(_ context.Context, clientID billing.ClientID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Payment
	for _, p := range s.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedDate.After(out[j].ReceivedDate) })
	return out, nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[billing.ClientID]billing.Client)
	s.contracts = make(map[billing.ClientID][]billing.Contract)
	s.payments = make(map[billing.PaymentID]billing.Payment)
	return nil
}
