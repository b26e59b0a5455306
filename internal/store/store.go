package store

import (
	"context"
	"errors"
	"sync"

	"github.com/example/taxi-dispatch/internal/models"
)

// Conflict means a conditional update found the persisted status no longer
// matching the caller's expectation; re-fetch and decide again.
var ErrConflict = errors.New("conflict")

// NotFound means the referenced request or driver id is absent.
var ErrNotFound = errors.New("not found")

// Unavailable means the backing store could not be read or written.
var ErrUnavailable = errors.New("store unavailable")

// RequestStore owns request records. UpdateIf is the only mutation path for
// existing records: it atomically checks the persisted status against
// expected and applies mutate under the same critical section, so a
// read-modify-write can never race another claimant.
type RequestStore interface {
	All(ctx context.Context) (map[string]models.Request, error)
	Get(ctx context.Context, id string) (models.Request, error)
	Create(ctx context.Context, r models.Request) error
	UpdateIf(ctx context.Context, id string, expected models.RequestStatus, mutate func(*models.Request) error) (models.Request, error)
	ClearAll(ctx context.Context) error
}

// DriverStore owns driver records. Put is an upsert; records are created
// implicitly on first save and never deleted.
type DriverStore interface {
	All(ctx context.Context) (map[string]models.Driver, error)
	Get(ctx context.Context, id string) (models.Driver, error)
	Put(ctx context.Context, d models.Driver) error
}

type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]models.Request
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]models.Request)}
}

func (m *MemoryRequestStore) All(ctx context.Context) (map[string]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Request, len(m.requests))
	for k, v := range m.requests {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryRequestStore) Get(ctx context.Context, id string) (models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRequestStore) Create(ctx context.Context, r models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrConflict
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryRequestStore) UpdateIf(ctx context.Context, id string, expected models.RequestStatus, mutate func(*models.Request) error) (models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	if r.Status != expected {
		return models.Request{}, ErrConflict
	}
	if err := mutate(&r); err != nil {
		return models.Request{}, err
	}
	m.requests[id] = r
	return r, nil
}

func (m *MemoryRequestStore) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]models.Request)
	return nil
}

type MemoryDriverStore struct {
	mu      sync.Mutex
	drivers map[string]models.Driver
}

func NewMemoryDriverStore() *MemoryDriverStore {
	return &MemoryDriverStore{drivers: make(map[string]models.Driver)}
}

func (m *MemoryDriverStore) All(ctx context.Context) (map[string]models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Driver, len(m.drivers))
	for k, v := range m.drivers {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryDriverStore) Get(ctx context.Context, id string) (models.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryDriverStore) Put(ctx context.Context, d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}
