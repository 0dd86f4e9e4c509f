// Package store persists transactions with their service ledger.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
)

// InMemoryStore keeps transactions in maps. Returned transactions are copies.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.TransactionID]*models.Transaction
	byUID map[string]id.TransactionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.TransactionID]*models.Transaction),
		byUID: make(map[string]id.TransactionID),
	}
}

func clone(t *models.Transaction) *models.Transaction {
	c := *t
	c.Services = slices.Clone(t.Services)
	if t.Payment != nil {
		p := *t.Payment
		c.Payment = &p
	}
	if t.PresentationTime != nil {
		pt := *t.PresentationTime
		c.PresentationTime = &pt
	}
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byUID[t.UID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	t.Version = 1
	s.byID[t.ID] = clone(t)
	s.byUID[t.UID] = t.ID
	return nil
}

// Save replaces t when its Version matches the stored one.
func (s *InMemoryStore) Save(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != t.Version {
		return sentinel.ErrConflict
	}
	t.Version++
	s.byID[t.ID] = clone(t)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

func (s *InMemoryStore) FindByUID(_ context.Context, uid string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txID, ok := s.byUID[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[txID]), nil
}

func (s *InMemoryStore) ExistsUID(_ context.Context, uid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUID[uid]
	return ok, nil
}

// ListByStatus returns transactions in any of statuses, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, statuses ...wfm.Status) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, t := range s.byID {
		if slices.Contains(statuses, t.Status) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
