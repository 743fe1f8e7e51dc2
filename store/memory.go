package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps everything in mutex-guarded maps. Data is lost on restart.
// Used by unit tests and local development; safe for concurrent use.
// Storage order is id order, so scans are deterministic.
type Memory struct {
	mu          sync.RWMutex
	records     map[Scope]map[string]Doc
	collections map[string]map[string]bool // account -> name set
	accounts    map[string]Account
}

// NewMemory creates an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{
		records:     make(map[Scope]map[string]Doc),
		collections: make(map[string]map[string]bool),
		accounts:    make(map[string]Account),
	}
}

func copyDoc(src Doc) Doc {
	dst := make(Doc, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *Memory) GetRecord(ctx context.Context, scope Scope, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.records[scope][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

func (m *Memory) PutRecord(ctx context.Context, scope Scope, id string, doc Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[scope]
	if !ok {
		coll = make(map[string]Doc)
		m.records[scope] = coll
	}
	stored := copyDoc(doc)
	stored[FieldID] = id
	coll[id] = stored
	return nil
}

func (m *Memory) DeleteRecord(ctx context.Context, scope Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[scope]
	if !ok {
		return ErrNotFound
	}
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return nil
}

func (m *Memory) DeleteRecordBatch(ctx context.Context, scope Scope, ids []string) error {
	if len(ids) > MaxBatchKeys {
		return ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[scope]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// scan returns scope's records in id order, filtered by keep.
func (m *Memory) scan(scope Scope, keep func(Doc) bool) []Doc {
	coll := m.records[scope]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []Doc
	for _, id := range ids {
		if keep == nil || keep(coll[id]) {
			out = append(out, copyDoc(coll[id]))
		}
	}
	return out
}

func (m *Memory) ScanCollection(ctx context.Context, scope Scope, limit int) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.scan(scope, nil)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *Memory) ScanEqual(ctx context.Context, scope Scope, field, value string) ([]Doc, error) {
	if field != FieldParent && field != FieldPredecessor {
		return nil, ErrBadScanField
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scan(scope, func(doc Doc) bool {
		return DocString(doc, field) == value
	}), nil
}

func (m *Memory) ScanRange(ctx context.Context, scope Scope, field string, lower, upper *float64, descending bool) ([]Doc, error) {
	if field != FieldSortIndex && field != FieldModified {
		return nil, ErrBadScanField
	}
	m.mu.RLock()
	docs := m.scan(scope, func(doc Doc) bool {
		v := DocFloat(doc, field)
		if lower != nil && v <= *lower {
			return false
		}
		if upper != nil && v >= *upper {
			return false
		}
		return true
	})
	m.mu.RUnlock()

	// Stable, so equal field values keep id order.
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := DocFloat(docs[i], field), DocFloat(docs[j], field)
		if descending {
			return a > b
		}
		return a < b
	})
	return docs, nil
}

func (m *Memory) EnsureCollection(ctx context.Context, account, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	names, ok := m.collections[account]
	if !ok {
		names = make(map[string]bool)
		m.collections[account] = names
	}
	names[name] = true
	return nil
}

func (m *Memory) ListCollections(ctx context.Context, account string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.collections[account] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) DeleteCollectionEntity(ctx context.Context, account, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[account], name)
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, name string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Name]; ok {
		return ErrExists
	}
	m.accounts[account.Name] = *account
	return nil
}

func (m *Memory) PutAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Name] = *account
	return nil
}

func (m *Memory) DeleteAccount(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, name)
	return nil
}
