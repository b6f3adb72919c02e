package collections

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// List is an ordered, index-addressable collection.
type List interface {
	Size() int
	Get(index int) (interface{}, error)
	Set(index int, element interface{}) (interface{}, error)
	Add(element interface{}) bool
	Insert(index int, element interface{}) error
	RemoveAt(index int) (interface{}, error)
	Remove(element interface{}) bool
	Contains(element interface{}) bool
	IndexOf(element interface{}) int
	Clear()
	IsEmpty() bool
	Iterator() *Iterator
	Elements() []interface{}
}

// ArrayList is a growable List.
type ArrayList struct {
	mu    sync.RWMutex
	items []interface{}
}

// NewArrayList returns a list holding elements.
func NewArrayList(elements ...interface{}) *ArrayList {
	return &ArrayList{items: append([]interface{}(nil), elements...)}
}

// CopyOf returns a new list with the contents of other.
func CopyOf(other List) *ArrayList {
	return NewArrayList(other.Elements()...)
}

func (l *ArrayList) checkIndex(index, size int) error {
	if index < 0 || index >= size {
		return errors.Errorf("index %d out of bounds for length %d", index, size)
	}
	return nil
}

// Size returns the number of elements.
func (l *ArrayList) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// IsEmpty reports whether the list has no elements.
func (l *ArrayList) IsEmpty() bool {
	return l.Size() == 0
}

// Get returns the element at index.
func (l *ArrayList) Get(index int) (interface{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkIndex(index, len(l.items)); err != nil {
		return nil, err
	}
	return l.items[index], nil
}

// Set replaces the element at index and returns the previous one.
func (l *ArrayList) Set(index int, element interface{}) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(index, len(l.items)); err != nil {
		return nil, err
	}
	old := l.items[index]
	l.items[index] = element
	return old, nil
}

// Add appends element.
func (l *ArrayList) Add(element interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, element)
	return true
}

// Insert places element at index, shifting later elements.
func (l *ArrayList) Insert(index int, element interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index > len(l.items) {
		return errors.Errorf("index %d out of bounds for length %d", index, len(l.items))
	}
	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = element
	return nil
}

// AddAll appends every element of other.
func (l *ArrayList) AddAll(other List) bool {
	elements := other.Elements()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, elements...)
	return len(elements) > 0
}

// RemoveAt removes and returns the element at index.
func (l *ArrayList) RemoveAt(index int) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(index, len(l.items)); err != nil {
		return nil, err
	}
	old := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	return old, nil
}

// Remove deletes the first element equal to element.
func (l *ArrayList) Remove(element interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, item := range l.items {
		if Equal(item, element) {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether an equal element is present.
func (l *ArrayList) Contains(element interface{}) bool {
	return l.IndexOf(element) >= 0
}

// IndexOf returns the index of the first equal element or -1.
func (l *ArrayList) IndexOf(element interface{}) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, item := range l.items {
		if Equal(item, element) {
			return i
		}
	}
	return -1
}

// Clear removes every element.
func (l *ArrayList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// SubList returns a copy of the elements in [from, to).
func (l *ArrayList) SubList(from, to int) (*ArrayList, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from < 0 || to > len(l.items) || from > to {
		return nil, errors.Errorf("bad range [%d, %d) for length %d", from, to, len(l.items))
	}
	return NewArrayList(l.items[from:to]...), nil
}

// Elements returns a snapshot of the contents.
func (l *ArrayList) Elements() []interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]interface{}(nil), l.items...)
}

// Iterator walks a snapshot of the list.
func (l *ArrayList) Iterator() *Iterator {
	return NewIterator(l.Elements())
}

func (l *ArrayList) String() string {
	return formatElements(l.Elements())
}

// ToString mirrors String for callers that invoke toString().
func (l *ArrayList) ToString() string {
	return l.String()
}

func formatElements(elements []interface{}) string {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = fmt.Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Sort orders the list in place using Compare.
func Sort(l *ArrayList) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var cmpErr error
	sort.SliceStable(l.items, func(i, j int) bool {
		c, err := Compare(l.items[i], l.items[j])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c < 0
	})
	return cmpErr
}

// Reverse reverses the list in place.
func Reverse(l *ArrayList) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, j := 0, len(l.items)-1; i < j; i, j = i+1, j-1 {
		l.items[i], l.items[j] = l.items[j], l.items[i]
	}
}

func extreme(l List, sign int) (interface{}, error) {
	elements := l.Elements()
	if len(elements) == 0 {
		return nil, errors.New("empty list")
	}
	best := elements[0]
	for _, e := range elements[1:] {
		c, err := Compare(e, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = e
		}
	}
	return best, nil
}

// Max returns the largest element.
func Max(l List) (interface{}, error) { return extreme(l, 1) }

// Min returns the smallest element.
func Min(l List) (interface{}, error) { return extreme(l, -1) }

// Concat returns a new list holding a then b.
func Concat(a, b List) *ArrayList {
	out := CopyOf(a)
	out.AddAll(b)
	return out
}

// Mult returns a new list repeating l n times.
func Mult(l List, n int) *ArrayList {
	out := NewArrayList()
	elements := l.Elements()
	for i := 0; i < n; i++ {
		out.items = append(out.items, elements...)
	}
	return out
}

// IMult repeats the contents of l in place; n <= 0 clears it.
func IMult(l *ArrayList, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		l.items = nil
		return
	}
	base := append([]interface{}(nil), l.items...)
	for i := 1; i < n; i++ {
		l.items = append(l.items, base...)
	}
}

// Count returns how many elements equal element.
func Count(l List, element interface{}) int {
	n := 0
	for _, e := range l.Elements() {
		if Equal(e, element) {
			n++
		}
	}
	return n
}

// Pick returns a new list with the elements at the given indices.
func Pick(l List, indices []int) (*ArrayList, error) {
	out := NewArrayList()
	for _, i := range indices {
		e, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		out.items = append(out.items, e)
	}
	return out, nil
}
