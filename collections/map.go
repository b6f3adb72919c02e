package collections

import (
	"fmt"
	"strings"
	"sync"
)

// Map associates keys with values. Integer keys of different widths are the
// same key.
type Map interface {
	Size() int
	Get(key interface{}) interface{}
	Put(key, value interface{}) (interface{}, error)
	ContainsKey(key interface{}) bool
	Remove(key interface{}) interface{}
	Clear()
	IsEmpty() bool
	KeySet() *HashSet
	Values() *ArrayList
}

type mapEntry struct {
	key   interface{}
	value interface{}
}

// HashMap is a Map that iterates in insertion order.
type HashMap struct {
	mu      sync.RWMutex
	entries map[interface{}]*mapEntry
	order   []interface{}
}

// NewHashMap returns an empty map.
func NewHashMap() *HashMap {
	return &HashMap{entries: make(map[interface{}]*mapEntry)}
}

// Size returns the number of entries.
func (m *HashMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// IsEmpty reports whether the map has no entries.
func (m *HashMap) IsEmpty() bool { return m.Size() == 0 }

// Get returns the value for key, or nil.
func (m *HashMap) Get(key interface{}) interface{} {
	k, err := hashKey(key)
	if err != nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[k]; ok {
		return e.value
	}
	return nil
}

// Put stores value under key and returns the previous value.
func (m *HashMap) Put(key, value interface{}) (interface{}, error) {
	k, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		old := e.value
		e.value = value
		return old, nil
	}
	m.entries[k] = &mapEntry{key: key, value: value}
	m.order = append(m.order, k)
	return nil, nil
}

// ContainsKey reports whether key is present.
func (m *HashMap) ContainsKey(key interface{}) bool {
	k, err := hashKey(key)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[k]
	return ok
}

// Remove deletes key and returns its value.
func (m *HashMap) Remove(key interface{}) interface{} {
	k, err := hashKey(key)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		return nil
	}
	delete(m.entries, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return e.value
}

// Clear removes every entry.
func (m *HashMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[interface{}]*mapEntry)
	m.order = nil
}

// KeySet returns a snapshot of the keys.
func (m *HashMap) KeySet() *HashSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := NewHashSet()
	for _, k := range m.order {
		s.Add(m.entries[k].key)
	}
	return s
}

// Values returns a snapshot of the values in key order.
func (m *HashMap) Values() *ArrayList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l := NewArrayList()
	for _, k := range m.order {
		l.items = append(l.items, m.entries[k].value)
	}
	return l
}

func (m *HashMap) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parts := make([]string, 0, len(m.order))
	for _, k := range m.order {
		e := m.entries[k]
		parts = append(parts, fmt.Sprintf("%v=%v", e.key, e.value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
