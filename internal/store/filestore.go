package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/taxi-dispatch/internal/models"
)

// FileRequestStore persists requests as a single JSON object keyed by id,
// timestamps as ISO-8601 strings. All actors reach it through one server
// process, so the in-process mutex is the compare-and-set boundary; the
// temp-file rename keeps the file readable if a write is interrupted.
type FileRequestStore struct {
	mu   sync.Mutex
	path string
}

func NewFileRequestStore(dir string) (*FileRequestStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &FileRequestStore{path: filepath.Join(dir, "requests.json")}, nil
}

func (f *FileRequestStore) All(ctx context.Context) (map[string]models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileRequestStore) Get(ctx context.Context, id string) (models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return models.Request{}, err
	}
	r, ok := m[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	return r, nil
}

func (f *FileRequestStore) Create(ctx context.Context, r models.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := m[r.ID]; ok {
		return ErrConflict
	}
	m[r.ID] = r
	return f.save(m)
}

func (f *FileRequestStore) UpdateIf(ctx context.Context, id string, expected models.RequestStatus, mutate func(*models.Request) error) (models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return models.Request{}, err
	}
	r, ok := m[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	if r.Status != expected {
		return models.Request{}, ErrConflict
	}
	if err := mutate(&r); err != nil {
		return models.Request{}, err
	}
	m[id] = r
	if err := f.save(m); err != nil {
		return models.Request{}, err
	}
	return r, nil
}

func (f *FileRequestStore) ClearAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(map[string]models.Request{})
}

// load degrades to an empty snapshot on a missing or corrupt file: better
// to show no pending work than stale work. Write errors always surface.
func (f *FileRequestStore) load() (map[string]models.Request, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]models.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m := map[string]models.Request{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]models.Request{}, nil
	}
	return m, nil
}

func (f *FileRequestStore) save(m map[string]models.Request) error {
	return writeJSON(f.path, m)
}

// FileDriverStore persists drivers next to the requests file in the same
// JSON-object-keyed-by-id layout.
type FileDriverStore struct {
	mu   sync.Mutex
	path string
}

func NewFileDriverStore(dir string) (*FileDriverStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &FileDriverStore{path: filepath.Join(dir, "drivers.json")}, nil
}

func (f *FileDriverStore) All(ctx context.Context) (map[string]models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileDriverStore) Get(ctx context.Context, id string) (models.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return models.Driver{}, err
	}
	d, ok := m[id]
	if !ok {
		return models.Driver{}, ErrNotFound
	}
	return d, nil
}

func (f *FileDriverStore) Put(ctx context.Context, d models.Driver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	m[d.ID] = d
	return writeJSON(f.path, m)
}

func (f *FileDriverStore) load() (map[string]models.Driver, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]models.Driver{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m := map[string]models.Driver{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]models.Driver{}, nil
	}
	return m, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
