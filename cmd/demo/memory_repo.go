package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*memoryRepo)(nil)

// memoryRepo keeps copies so callers cannot mutate stored state.
type memoryRepo struct {
	mu    sync.Mutex
	byRef map[string]model.Transaction
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byRef: make(map[string]model.Transaction)}
}

func (m *memoryRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byRef[t.Request.Reference]; ok && cur.ID != t.ID {
		return domain.ErrAlreadyExists
	}
	m.byRef[t.Request.Reference] = *t
	return nil
}

func (m *memoryRepo) FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byRef {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *memoryRepo) ListPendingOlderThan(ctx context.Context, qx any, before time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.byRef {
		if !t.Status.IsTerminal() && t.PollURL != "" && t.UpdatedAt.Before(before) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) CountByStatus(ctx context.Context, qx any) (map[model.TransactionStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.TransactionStatus]int64)
	for _, t := range m.byRef {
		out[t.Status]++
	}
	return out, nil
}
