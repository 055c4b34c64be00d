// Package results caches operator result tables page by page and keeps the
// cache honest against engine-side invalidation signals.
package results

import (
	"context"
	"sync"
)

// Row is one result tuple as delivered by the engine.
type Row = map[string]any

// Store is the page cache backend, keyed by operator ID and page index.
type Store interface {
	PutPage(ctx context.Context, operatorID string, pageIndex int, table []Row) error
	GetPage(ctx context.Context, operatorID string, pageIndex int) ([]Row, bool, error)
	InvalidateOperator(ctx context.Context, operatorID string) error
	Close() error
}

// MemoryStore is the in-process backend.
type MemoryStore struct {
	mu    sync.RWMutex
	pages map[string]map[int][]Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: make(map[string]map[int][]Row)}
}

func (m *MemoryStore) PutPage(_ context.Context, operatorID string, pageIndex int, table []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pages[operatorID] == nil {
		m.pages[operatorID] = make(map[int][]Row)
	}

	m.pages[operatorID][pageIndex] = table

	return nil
}

func (m *MemoryStore) GetPage(_ context.Context, operatorID string, pageIndex int) ([]Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, found := m.pages[operatorID][pageIndex]

	return table, found, nil
}

func (m *MemoryStore) InvalidateOperator(_ context.Context, operatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pages, operatorID)

	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
