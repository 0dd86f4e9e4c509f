// Package store persists certificates.
package store

import (
	"context"
	"sort"
	"sync"

	"landreg/internal/certificate/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
)

// InMemoryStore keeps certificates in maps. Returned certificates are
// copies.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.CertificateID]*models.Certificate
	byUID map[string]id.CertificateID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.CertificateID]*models.Certificate),
		byUID: make(map[string]id.CertificateID),
	}
}

func clone(c *models.Certificate) *models.Certificate {
	out := *c
	if c.IssueTime != nil {
		t := *c.IssueTime
		out.IssueTime = &t
	}
	return &out
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byUID[c.UID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c.Version = 1
	s.byID[c.ID] = clone(c)
	s.byUID[c.UID] = c.ID
	return nil
}

// Save replaces c when its Version matches the stored one.
func (s *InMemoryStore) Save(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != c.Version {
		return sentinel.ErrConflict
	}
	c.Version++
	s.byID[c.ID] = clone(c)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) FindByUID(ctx context.Context, uid string) (*models.Certificate, error) {
	s.mu.RLock()
	certID, ok := s.byUID[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, certID)
}

func (s *InMemoryStore) ExistsUID(_ context.Context, uid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUID[uid]
	return ok, nil
}

// ListByTransaction returns the certificates of a transaction by creation
// time.
func (s *InMemoryStore) ListByTransaction(_ context.Context, txID id.TransactionID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, c := range s.byID {
		if c.TransactionID == txID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
