package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is the default backend when no Redis
// address is configured and the backend used by tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	hashes map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrNoKey
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.hashes, key)
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNoKey
	}
	return value, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string]string)
		m.hashes[key] = hash
	}
	hash[field] = value
	return nil
}

func (m *Memory) HDelete(_ context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hashes[key], field)
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 返回副本，避免外部修改内部 map
	result := make(map[string]string, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		result[field] = value
	}
	return result, nil
}
