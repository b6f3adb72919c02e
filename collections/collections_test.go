package collections

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/richinsley/py4go/reflection"
)

func newEngine() *reflection.Engine {
	reg := reflection.NewClassRegistry()
	reg.Register(Classes()...)
	return reflection.NewEngine(reg)
}

func TestArrayListBasics(t *testing.T) {
	l := NewArrayList()
	l.Add(int32(1))
	l.Add("two")
	if err := l.Insert(0, 3.5); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if l.Size() != 3 {
		t.Fatalf("Expected size 3, got %d", l.Size())
	}
	if v, _ := l.Get(0); v != 3.5 {
		t.Errorf("Expected 3.5 at index 0, got %v", v)
	}
	if !l.Contains(int64(1)) {
		t.Error("Expected int64(1) to match the stored int32(1)")
	}
	if _, err := l.Get(5); err == nil {
		t.Error("Expected out of bounds error")
	}
	if !l.Remove("two") || l.Size() != 2 {
		t.Errorf("Expected remove to shrink the list, got %v", l)
	}
	if l.String() != "[3.5, 1]" {
		t.Errorf("Unexpected string form %q", l.String())
	}
}

func TestListOperations(t *testing.T) {
	l := NewArrayList(int32(3), int32(1), int32(2))
	if err := Sort(l); err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	if l.String() != "[1, 2, 3]" {
		t.Errorf("Expected sorted list, got %v", l)
	}
	Reverse(l)
	if l.String() != "[3, 2, 1]" {
		t.Errorf("Expected reversed list, got %v", l)
	}
	if m, _ := Max(l); m != int32(3) {
		t.Errorf("Expected max 3, got %v", m)
	}
	if m, _ := Min(l); m != int32(1) {
		t.Errorf("Expected min 1, got %v", m)
	}
	if _, err := Max(NewArrayList()); err == nil {
		t.Error("Expected error for max of an empty list")
	}

	picked, err := Pick(l, []int{0, 2})
	if err != nil || picked.String() != "[3, 1]" {
		t.Errorf("Unexpected pick result %v (%v)", picked, err)
	}
	if c := Concat(l, picked); c.Size() != 5 {
		t.Errorf("Expected concat of 5 elements, got %d", c.Size())
	}
	if m := Mult(picked, 3); m.Size() != 6 {
		t.Errorf("Expected 6 elements, got %d", m.Size())
	}
	IMult(picked, 2)
	if picked.String() != "[3, 1, 3, 1]" {
		t.Errorf("Unexpected in-place multiply result %v", picked)
	}
	if Count(picked, int32(3)) != 2 {
		t.Errorf("Expected count 2, got %d", Count(picked, int32(3)))
	}
	IMult(picked, 0)
	if !picked.IsEmpty() {
		t.Errorf("Expected in-place multiply by 0 to clear, got %v", picked)
	}
}

func TestSortMixedTypesFails(t *testing.T) {
	l := NewArrayList("a", int32(1))
	if err := Sort(l); err == nil {
		t.Error("Expected an error sorting a string with a number")
	}
}

func TestCompareDecimals(t *testing.T) {
	a, _, _ := apd.NewFromString("1.10")
	b, _, _ := apd.NewFromString("1.1")
	if !Equal(a, b) {
		t.Error("Expected 1.10 and 1.1 to be equal")
	}
	c, _, _ := apd.NewFromString("2")
	if r, err := Compare(a, c); err != nil || r != -1 {
		t.Errorf("Expected 1.10 < 2, got %d (%v)", r, err)
	}
}

func TestHashMapNormalizesIntegerKeys(t *testing.T) {
	m := NewHashMap()
	if _, err := m.Put(int32(7), "seven"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	m.Put("b", 2)
	if v := m.Get(int64(7)); v != "seven" {
		t.Errorf("Expected lookup by int64 to find the int32 key, got %v", v)
	}
	old, _ := m.Put(7, "SEVEN")
	if old != "seven" {
		t.Errorf("Expected previous value 'seven', got %v", old)
	}
	if m.Size() != 2 {
		t.Errorf("Expected 2 entries, got %d", m.Size())
	}
	if m.String() != "{7=SEVEN, b=2}" {
		t.Errorf("Unexpected string form %q", m.String())
	}
	if _, err := m.Put([]int{1}, 1); err == nil {
		t.Error("Expected an error for an unhashable key")
	}
	if m.Remove("b") != 2 || m.ContainsKey("b") {
		t.Error("Expected remove to drop the key")
	}
	if m.KeySet().Size() != 1 || m.Values().Size() != 1 {
		t.Error("Expected key and value snapshots of size 1")
	}
}

func TestHashSetAndIterator(t *testing.T) {
	s := NewHashSet("a", "b", "a")
	if s.Size() != 2 {
		t.Fatalf("Expected 2 distinct elements, got %d", s.Size())
	}
	added, err := s.Add("c")
	if err != nil || !added {
		t.Errorf("Expected 'c' to be new, got %v (%v)", added, err)
	}
	it := s.Iterator()
	var seen []interface{}
	for it.HasNext() {
		e, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		seen = append(seen, e)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Errorf("Expected insertion order, got %v", seen)
	}
	if _, err := it.Next(); err == nil {
		t.Error("Expected error from an exhausted iterator")
	}
}

func TestRegisteredOverloads(t *testing.T) {
	e := newEngine()
	cache := reflection.NewResolutionCache(reflection.DefaultCacheSize)
	ctx := context.Background()

	class, ok := e.ForName("java.util.ArrayList")
	if !ok {
		t.Fatal("java.util.ArrayList is not registered")
	}
	ctor, err := e.GetConstructor(cache, class, nil)
	if err != nil {
		t.Fatalf("No default constructor: %v", err)
	}
	obj, err := ctor.Invoke(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Constructor failed: %v", err)
	}
	l := obj.(*ArrayList)

	add1, err := e.GetMethod(cache, l, "add", []interface{}{"x"})
	if err != nil {
		t.Fatalf("add(Object) not found: %v", err)
	}
	if r, _ := add1.Invoke(ctx, l, []interface{}{"x"}); r != true {
		t.Errorf("Expected add to return true, got %v", r)
	}

	args := []interface{}{int32(0), "y"}
	add2, err := e.GetMethod(cache, l, "add", args)
	if err != nil {
		t.Fatalf("add(int, Object) not found: %v", err)
	}
	if _, err := add2.Invoke(ctx, l, args); err != nil {
		t.Fatalf("add(int, Object) failed: %v", err)
	}
	if l.String() != "[y, x]" {
		t.Errorf("Expected [y, x], got %v", l)
	}

	removeArgs := []interface{}{int32(0)}
	rm, err := e.GetMethod(cache, l, "remove", removeArgs)
	if err != nil {
		t.Fatalf("remove not found: %v", err)
	}
	if rm.Member.Params()[0].Kind().String() != "int" {
		t.Errorf("Expected remove(int) for an integer argument, got %s", rm.Member.Signature(true))
	}

	helpers, _ := e.ForName("java.util.Collections")
	sortArgs := []interface{}{l}
	sortM, err := e.GetStaticMethod(cache, helpers, "sort", sortArgs)
	if err != nil {
		t.Fatalf("Collections.sort not found: %v", err)
	}
	if _, err := sortM.Invoke(ctx, nil, sortArgs); err != nil {
		t.Fatalf("Collections.sort failed: %v", err)
	}
	if l.String() != "[x, y]" {
		t.Errorf("Expected [x, y], got %v", l)
	}
}

func TestListErrorsCarryStack(t *testing.T) {
	l := NewArrayList("a")
	_, err := l.Get(5)
	if err == nil {
		t.Fatal("Expected an out of bounds error")
	}
	if err.Error() != "index 5 out of bounds for length 1" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if trace := fmt.Sprintf("%+v", err); !strings.Contains(trace, "TestListErrorsCarryStack") {
		t.Errorf("Expected a stack trace, got %q", trace)
	}
}
