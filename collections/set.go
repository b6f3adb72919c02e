package collections

import (
	"sync"

	"github.com/pkg/errors"
)

// Set holds distinct elements.
type Set interface {
	Size() int
	Add(element interface{}) (bool, error)
	Contains(element interface{}) bool
	Remove(element interface{}) bool
	Clear()
	IsEmpty() bool
	Iterator() *Iterator
	Elements() []interface{}
}

// HashSet is a Set that iterates in insertion order.
type HashSet struct {
	mu       sync.RWMutex
	elements map[interface{}]interface{}
	order    []interface{}
}

// NewHashSet returns a set holding elements; unhashable elements are skipped.
func NewHashSet(elements ...interface{}) *HashSet {
	s := &HashSet{elements: make(map[interface{}]interface{})}
	for _, e := range elements {
		s.Add(e)
	}
	return s
}

// Size returns the number of elements.
func (s *HashSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// IsEmpty reports whether the set has no elements.
func (s *HashSet) IsEmpty() bool { return s.Size() == 0 }

// Add inserts element and reports whether it was new.
func (s *HashSet) Add(element interface{}) (bool, error) {
	k, err := hashKey(element)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elements[k]; ok {
		return false, nil
	}
	s.elements[k] = element
	s.order = append(s.order, k)
	return true, nil
}

// Contains reports whether element is present.
func (s *HashSet) Contains(element interface{}) bool {
	k, err := hashKey(element)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.elements[k]
	return ok
}

// Remove deletes element and reports whether it was present.
func (s *HashSet) Remove(element interface{}) bool {
	k, err := hashKey(element)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elements[k]; !ok {
		return false
	}
	delete(s.elements, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every element.
func (s *HashSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = make(map[interface{}]interface{})
	s.order = nil
}

// Elements returns a snapshot in insertion order.
func (s *HashSet) Elements() []interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]interface{}, len(s.order))
	for i, k := range s.order {
		out[i] = s.elements[k]
	}
	return out
}

// Iterator walks a snapshot of the set.
func (s *HashSet) Iterator() *Iterator {
	return NewIterator(s.Elements())
}

func (s *HashSet) String() string {
	return formatElements(s.Elements())
}

// Iterator walks a fixed sequence of elements.
type Iterator struct {
	mu       sync.Mutex
	elements []interface{}
	pos      int
}

// NewIterator returns an iterator over elements.
func NewIterator(elements []interface{}) *Iterator {
	return &Iterator{elements: elements}
}

// HasNext reports whether Next will return an element.
func (it *Iterator) HasNext() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.pos < len(it.elements)
}

// Next returns the next element.
func (it *Iterator) Next() (interface{}, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.pos >= len(it.elements) {
		return nil, errors.New("no such element")
	}
	e := it.elements[it.pos]
	it.pos++
	return e, nil
}
