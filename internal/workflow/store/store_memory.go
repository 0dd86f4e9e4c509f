// Package store persists workflow tasks. A transaction's tasks are kept in
// insertion order; the last one is the open task.
package store

import (
	"context"
	"slices"
	"sync"

	"landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	byTx   map[id.TransactionID][]models.Task
	taskTx map[id.TaskID]id.TransactionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byTx:   make(map[id.TransactionID][]models.Task),
		taskTx: make(map[id.TaskID]id.TransactionID),
	}
}

// Save inserts a new task or replaces an existing one in place.
func (s *InMemoryStore) Save(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txID, known := s.taskTx[task.ID]
	if !known {
		s.taskTx[task.ID] = task.TransactionID
		s.byTx[task.TransactionID] = append(s.byTx[task.TransactionID], *task)
		return nil
	}
	tasks := s.byTx[txID]
	i := slices.IndexFunc(tasks, func(t models.Task) bool { return t.ID == task.ID })
	tasks[i] = *task
	return nil
}

func (s *InMemoryStore) Current(_ context.Context, txID id.TransactionID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.byTx[txID]
	if len(tasks) == 0 {
		return nil, sentinel.ErrNotFound
	}
	t := tasks[len(tasks)-1]
	return &t, nil
}

func (s *InMemoryStore) History(_ context.Context, txID id.TransactionID) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byTx[txID]), nil
}

// ListOpen returns the open tasks whose current status is one of statuses.
func (s *InMemoryStore) ListOpen(_ context.Context, statuses ...models.Status) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, tasks := range s.byTx {
		last := tasks[len(tasks)-1]
		if last.Status != models.TaskClosed && slices.Contains(statuses, last.CurrentStatus) {
			out = append(out, last)
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int { return a.CheckInTime.Compare(b.CheckInTime) })
	return out, nil
}
