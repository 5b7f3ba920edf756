package store

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// MemoryKV in-process KV with TTL support. Used by STORE_BACKEND=memory and tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memoryItem
	now  func() time.Time
}

type memoryItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	if !item.expires.IsZero() && m.now().After(item.expires) {
		delete(m.data, key)
		return "", ErrMiss
	}
	return item.value, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.data[key] = memoryItem{value: value, expires: exp}
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// ScanKeys matches with path.Match, which covers the '*' and '?' globs Redis SCAN callers use.
func (m *MemoryKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var keys []string
	for k, item := range m.data {
		if !item.expires.IsZero() && now.After(item.expires) {
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
