package store

import (
	"context"
	"sync"

	"landreg/internal/resource/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
)

// InMemoryStore keeps resources in maps. Returned resources are copies.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.ResourceID]*models.Resource
	byUID map[string]id.ResourceID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.ResourceID]*models.Resource),
		byUID: make(map[string]id.ResourceID),
	}
}

func clone(r *models.Resource) *models.Resource {
	c := *r
	if r.RealEstate != nil {
		re := *r.RealEstate
		c.RealEstate = &re
	}
	if r.Association != nil {
		a := *r.Association
		c.Association = &a
	}
	if r.NoProperty != nil {
		n := *r.NoProperty
		c.NoProperty = &n
	}
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byUID[r.UID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	r.Version = 1
	s.byID[r.ID] = clone(r)
	s.byUID[r.UID] = r.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, resID id.ResourceID) (*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[resID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) FindByUID(_ context.Context, uid string) (*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resID, ok := s.byUID[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[resID]), nil
}

func (s *InMemoryStore) ExistsUID(_ context.Context, uid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUID[uid]
	return ok, nil
}

// Save updates r when its Version matches the stored one.
func (s *InMemoryStore) Save(_ context.Context, r *models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != r.Version {
		return sentinel.ErrConflict
	}
	if current.UID != r.UID {
		return sentinel.ErrInvalidState
	}
	r.Version++
	s.byID[r.ID] = clone(r)
	return nil
}

func (s *InMemoryStore) ListPartitions(_ context.Context, parent id.ResourceID) ([]*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Resource
	for _, r := range s.byID {
		if r.IsRealEstate() && r.RealEstate.IsPartitionOf == parent {
			out = append(out, clone(r))
		}
	}
	return out, nil
}
