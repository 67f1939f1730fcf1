// Package localstore keeps small text values on the local machine, the way a
// browser keeps localStorage, and mirrors the last fetched contact page into it.
package localstore

import (
	"errors"
	"sync"
)

// Storage is a string key/value store with localStorage semantics.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

var ErrClosed = errors.New("localstore: closed")

// Memory implements [Storage] in process memory.
type Memory struct {
	mu    sync.Mutex
	items map[string]string
}

var _ Storage = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{items: make(map[string]string)} }

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.items[key]
	return value, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
