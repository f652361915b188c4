package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store implementation. Documents are held as
// JSON-encoded bytes so reads return copies, never shared references.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string][]byte // collection -> key -> document
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string][]byte),
	}
}

func (m *Memory) Get(_ context.Context, collection, key string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getLocked(m.data, collection, key, out)
}

func (m *Memory) ListKeys(_ context.Context, collection, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listKeysLocked(m.data, collection, prefix), nil
}

func (m *Memory) Put(_ context.Context, collection, key string, doc any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return putLocked(m.data, collection, key, doc)
}

func (m *Memory) Create(_ context.Context, collection, key string, doc any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return createLocked(m.data, collection, key, doc)
}

func (m *Memory) Increment(_ context.Context, collection, key, field string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return incrementLocked(m.data, collection, key, field, delta)
}

// RunTxn holds the store lock for the whole callback, so transactions are
// fully serialized. Writes go to an overlay that is applied only when fn
// returns nil.
func (m *Memory) RunTxn(ctx context.Context, fn func(tx Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	overlay := cloneData(m.data)
	if err := fn(&memoryTxn{data: overlay}); err != nil {
		return err
	}
	m.data = overlay
	return nil
}

type memoryTxn struct {
	data map[string]map[string][]byte
}

func (t *memoryTxn) Get(_ context.Context, collection, key string, out any) error {
	return getLocked(t.data, collection, key, out)
}

func (t *memoryTxn) ListKeys(_ context.Context, collection, prefix string) ([]string, error) {
	return listKeysLocked(t.data, collection, prefix), nil
}

func (t *memoryTxn) Put(_ context.Context, collection, key string, doc any) error {
	return putLocked(t.data, collection, key, doc)
}

func (t *memoryTxn) Create(_ context.Context, collection, key string, doc any) (bool, error) {
	return createLocked(t.data, collection, key, doc)
}

func (t *memoryTxn) Increment(_ context.Context, collection, key, field string, delta float64) (float64, error) {
	return incrementLocked(t.data, collection, key, field, delta)
}

func getLocked(data map[string]map[string][]byte, collection, key string, out any) error {
	raw, ok := data[collection][key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return nil
}

func listKeysLocked(data map[string]map[string][]byte, collection, prefix string) []string {
	keys := make([]string, 0, len(data[collection]))
	for k := range data[collection] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func putLocked(data map[string]map[string][]byte, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	if data[collection] == nil {
		data[collection] = make(map[string][]byte)
	}
	data[collection][key] = raw
	return nil
}

func createLocked(data map[string]map[string][]byte, collection, key string, doc any) (bool, error) {
	if _, exists := data[collection][key]; exists {
		return false, nil
	}
	if err := putLocked(data, collection, key, doc); err != nil {
		return false, err
	}
	return true, nil
}

func incrementLocked(data map[string]map[string][]byte, collection, key, field string, delta float64) (float64, error) {
	fields := map[string]json.RawMessage{}
	if raw, ok := data[collection][key]; ok {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return 0, fmt.Errorf("decode %s/%s: %w", collection, key, err)
		}
	}

	var current float64
	if raw, ok := fields[field]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			return 0, fmt.Errorf("field %q of %s/%s is not numeric", field, collection, key)
		}
	}

	next := current + delta
	encoded, err := json.Marshal(next)
	if err != nil {
		return 0, err
	}
	fields[field] = encoded
	if err := putLocked(data, collection, key, fields); err != nil {
		return 0, err
	}
	return next, nil
}

func cloneData(data map[string]map[string][]byte) map[string]map[string][]byte {
	clone := make(map[string]map[string][]byte, len(data))
	for coll, docs := range data {
		c := make(map[string][]byte, len(docs))
		for k, v := range docs {
			c[k] = v
		}
		clone[coll] = c
	}
	return clone
}
