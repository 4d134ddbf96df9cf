//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"paynow-client/internal/domain"
	"paynow-client/internal/domain/model"
	"paynow-client/internal/domain/ports/adapter"
	"paynow-client/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	byID  map[string]model.Transaction
	Saves int

	SaveFunc            func(ctx context.Context, qx any, t *model.Transaction) error
	FindByReferenceFunc func(ctx context.Context, qx any, reference string) (*model.Transaction, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byID: make(map[string]model.Transaction)}
}

func (m *MockTransactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	m.byID[t.ID] = *t
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *MockTransactionRepo) FindByReference(ctx context.Context, qx any, reference string) (*model.Transaction, error) {
	if m.FindByReferenceFunc != nil {
		return m.FindByReferenceFunc(ctx, qx, reference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.Request.Reference == reference {
			cp := t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, qx any, before time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.byID {
		if !t.Status.IsTerminal() && t.PollURL != "" && t.UpdatedAt.Before(before) {
			cp := t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTransactionRepo) CountByStatus(ctx context.Context, qx any) (map[model.TransactionStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.TransactionStatus]int64)
	for _, t := range m.byID {
		out[t.Status]++
	}
	return out, nil
}

// ---- Mock PaymentTransport ----

type MockTransport struct {
	PostFunc func(ctx context.Context, endpoint, form string) ([]byte, error)
	Calls    []string
}

var _ adapter.PaymentTransport = (*MockTransport)(nil)

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) Post(ctx context.Context, endpoint, form string) ([]byte, error) {
	m.Calls = append(m.Calls, endpoint)
	if m.PostFunc != nil {
		return m.PostFunc(ctx, endpoint, form)
	}
	return nil, domain.ErrTransport
}

// ---- Mock Locker ----

type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Acquired int
	Released int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = "tok-" + key
	m.Acquired++
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		m.Released++
	}
	return nil
}

// Hold takes key as if another worker owned it.
func (m *MockLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = "other"
}
