// Package store persists land records and recording acts.
package store

import (
	"context"
	"slices"
	"sync"

	"landreg/internal/recording/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	pstrings "landreg/pkg/platform/strings"
)

// InMemoryStore keeps records and acts in maps. Returned values are copies;
// acts always carry the current info of their record.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.LandRecordID]*models.LandRecord
	byUID   map[string]id.LandRecordID
	acts    map[id.RecordingActID]*models.RecordingAct
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.LandRecordID]*models.LandRecord),
		byUID:   make(map[string]id.LandRecordID),
		acts:    make(map[id.RecordingActID]*models.RecordingAct),
	}
}

func cloneRecord(r *models.LandRecord) *models.LandRecord {
	c := *r
	c.BookEntries = slices.Clone(r.BookEntries)
	if r.AuthorizationTime != nil {
		t := *r.AuthorizationTime
		c.AuthorizationTime = &t
	}
	c.RefreshRecordingActs()
	return &c
}

func cloneAct(a *models.RecordingAct) *models.RecordingAct {
	c := *a
	c.Parties = slices.Clone(a.Parties)
	return &c
}

func (s *InMemoryStore) CreateRecord(_ context.Context, r *models.LandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byUID[r.UID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	r.Version = 1
	s.records[r.ID] = cloneRecord(r)
	s.byUID[r.UID] = r.ID
	return nil
}

// SaveRecord updates r when its Version matches the stored one.
func (s *InMemoryStore) SaveRecord(_ context.Context, r *models.LandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != r.Version {
		return sentinel.ErrConflict
	}
	r.Version++
	s.records[r.ID] = cloneRecord(r)
	return nil
}

func (s *InMemoryStore) ExistsRecordUID(_ context.Context, uid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUID[uid]
	return ok, nil
}

// FindRecordByID returns the record with its acts cache unloaded.
func (s *InMemoryStore) FindRecordByID(_ context.Context, recordID id.LandRecordID) (*models.LandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (s *InMemoryStore) FindRecordByUID(ctx context.Context, uid string) (*models.LandRecord, error) {
	s.mu.RLock()
	recordID, ok := s.byUID[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindRecordByID(ctx, recordID)
}

func (s *InMemoryStore) FindRecordByTransaction(_ context.Context, txID id.TransactionID) (*models.LandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.TransactionID == txID {
			return cloneRecord(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// SaveActs inserts or replaces acts.
func (s *InMemoryStore) SaveActs(_ context.Context, acts ...*models.RecordingAct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range acts {
		if _, ok := s.records[a.Record.ID]; !ok {
			return sentinel.ErrNotFound
		}
	}
	for _, a := range acts {
		s.acts[a.ID] = cloneAct(a)
	}
	return nil
}

func (s *InMemoryStore) FindActByID(_ context.Context, actID id.RecordingActID) (*models.RecordingAct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.acts[actID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.withInfo(a), nil
}

// ListActsByRecord returns every act of a record, deleted ones included,
// in index order.
func (s *InMemoryStore) ListActsByRecord(_ context.Context, recordID id.LandRecordID) ([]*models.RecordingAct, error) {
	return s.list(func(a *models.RecordingAct) bool { return a.Record.ID == recordID }), nil
}

// ListActsByResource returns every act applied to a resource.
func (s *InMemoryStore) ListActsByResource(_ context.Context, resourceID id.ResourceID) ([]*models.RecordingAct, error) {
	return s.list(func(a *models.RecordingAct) bool { return a.ResourceID == resourceID }), nil
}

// ListActsByPartyName returns the acts naming a party, ignoring case and
// spacing.
func (s *InMemoryStore) ListActsByPartyName(_ context.Context, name string) ([]*models.RecordingAct, error) {
	return s.list(func(a *models.RecordingAct) bool {
		return slices.ContainsFunc(a.Parties, func(p models.Party) bool { return pstrings.SameName(p.Name, name) })
	}), nil
}

func (s *InMemoryStore) list(match func(*models.RecordingAct) bool) []*models.RecordingAct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RecordingAct
	for _, a := range s.acts {
		if match(a) {
			out = append(out, s.withInfo(a))
		}
	}
	models.SortActs(out)
	return out
}

// withInfo copies a with the current info of its record. Callers hold mu.
func (s *InMemoryStore) withInfo(a *models.RecordingAct) *models.RecordingAct {
	c := cloneAct(a)
	if r, ok := s.records[a.Record.ID]; ok {
		c.Record = r.Info()
	}
	return c
}
