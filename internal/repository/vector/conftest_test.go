package vector

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/reportlens/internal/db"
)

// memStore is an in-memory fake of the consumer interface.
// SearchKNN returns every page of the filtered namespace in insertion order.
type memStore struct {
	mu        sync.Mutex
	hashes    map[string]map[string]string
	kv        map[string][]byte
	order     []string
	indexes   map[string]*db.IndexDefinition
	calls     []string
	searchErr error
	setErr    error
	lastQuery *db.KNNQuery
}

func newMemStore() *memStore {
	return &memStore{
		hashes:  map[string]map[string]string{},
		kv:      map[string][]byte{},
		indexes: map[string]*db.IndexDefinition{},
	}
}

func (m *memStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "HSETMULTI")
	for _, it := range items {
		if _, ok := m.hashes[it.Key]; !ok {
			m.order = append(m.order, it.Key)
		}
		m.hashes[it.Key] = it.Fields
	}
	return nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "SET")
	if m.setErr != nil {
		return m.setErr
	}
	m.kv[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.kv, k)
	}
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, h := m.hashes[key]
	_, k := m.kv[key]
	return h || k, nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *memStore) IndexExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *memStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	res := &db.SearchResult{}
	score := 1.0
	for _, key := range m.order {
		fields, ok := m.hashes[key]
		if !ok {
			continue
		}
		match := true
		for _, f := range q.Filters {
			if fields[f.Field] != f.Value {
				match = false
			}
		}
		if !match {
			continue
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
		score -= 0.1
	}
	res.Total = len(res.Entries)
	return res, nil
}
