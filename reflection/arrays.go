package reflection

import (
	"reflect"
)

// IsArray reports whether v is a Go slice or array other than []byte, which
// travels by value.
func IsArray(v interface{}) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

func arrayValue(arr interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(arr)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return reflect.Value{}, engineErrorf("%s is not an array", TypeName(reflect.TypeOf(arr)))
	}
	return rv, nil
}

func checkIndex(rv reflect.Value, i int) error {
	if i < 0 || i >= rv.Len() {
		return engineErrorf("index %d out of bounds for length %d", i, rv.Len())
	}
	return nil
}

// ArrayLen returns the length of an array.
func (e *Engine) ArrayLen(arr interface{}) (int, error) {
	rv, err := arrayValue(arr)
	if err != nil {
		return 0, err
	}
	return rv.Len(), nil
}

// ArrayGet returns element i.
func (e *Engine) ArrayGet(arr interface{}, i int) (interface{}, error) {
	rv, err := arrayValue(arr)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(rv, i); err != nil {
		return nil, err
	}
	return rv.Index(i).Interface(), nil
}

// ArraySet converts value to the element type and stores it at i.
func (e *Engine) ArraySet(arr interface{}, i int, value interface{}) error {
	rv, err := arrayValue(arr)
	if err != nil {
		return err
	}
	if err := checkIndex(rv, i); err != nil {
		return err
	}
	elem := rv.Index(i)
	if !elem.CanSet() {
		return engineErrorf("array of %s is not settable", TypeName(rv.Type().Elem()))
	}
	v, err := e.Classes.ConvertTo(value, elem.Type())
	if err != nil {
		return err
	}
	elem.Set(v)
	return nil
}

// ArraySlice returns a new array holding the elements at the given indices.
func (e *Engine) ArraySlice(arr interface{}, indices []int) (interface{}, error) {
	rv, err := arrayValue(arr)
	if err != nil {
		return nil, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), len(indices), len(indices))
	for j, i := range indices {
		if err := checkIndex(rv, i); err != nil {
			return nil, err
		}
		out.Index(j).Set(rv.Index(i))
	}
	return out.Interface(), nil
}

// NewArray creates a zeroed, possibly multi-dimensional array whose element
// type is named by elem ("int", "java.lang.String", a registered class).
func (e *Engine) NewArray(elem string, dims []int) (interface{}, error) {
	if len(dims) == 0 {
		return nil, engineErrorf("array needs at least one dimension")
	}
	et, ok := e.TypeForName(elem)
	if !ok {
		return nil, engineErrorf("unknown array element type %s", elem)
	}
	for _, d := range dims {
		if d < 0 {
			return nil, engineErrorf("negative array dimension %d", d)
		}
	}
	return makeArray(et, dims).Interface(), nil
}

func makeArray(elem reflect.Type, dims []int) reflect.Value {
	t := elem
	for range dims {
		t = reflect.SliceOf(t)
	}
	out := reflect.MakeSlice(t, dims[0], dims[0])
	if len(dims) > 1 {
		for i := 0; i < dims[0]; i++ {
			out.Index(i).Set(makeArray(elem, dims[1:]))
		}
	}
	return out
}
