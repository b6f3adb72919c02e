package reflection

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

type voidResult struct{}

// ReturnVoid is what Invoke returns for members without a result.
var ReturnVoid interface{} = voidResult{}

// MethodInvoker is a resolved member together with the converters to apply to
// each argument and the total conversion cost.
type MethodInvoker struct {
	Member     *Member
	Converters []Converter
	Cost       int
}

func (mi *MethodInvoker) memberName() string {
	if mi.Member.Kind == ConstructorMember {
		return mi.Member.Class.Name + " constructor"
	}
	return mi.Member.Class.Name + "." + mi.Member.Name
}

// Invoke converts args and calls the member. target is ignored for
// constructors and static methods. A trailing error result or a panic in the
// called code becomes an InvocationError.
func (mi *MethodInvoker) Invoke(ctx context.Context, target interface{}, args []interface{}) (result interface{}, err error) {
	m := mi.Member
	if len(args) != len(m.params) {
		return nil, engineErrorf("%s takes %d arguments, got %d", mi.memberName(), len(m.params), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+2)
	if m.Kind == MethodMember {
		rv := reflect.ValueOf(target)
		if !rv.IsValid() || !rv.Type().AssignableTo(m.receiver) {
			return nil, engineErrorf("%s cannot be called on %s", mi.memberName(), TypeName(reflect.TypeOf(target)))
		}
		in = append(in, rv)
	}
	if m.withCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		pt := m.params[i]
		if isNil(arg) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, err := mi.Converters[i].convert(reflect.ValueOf(arg), pt)
		if err != nil {
			return nil, err
		}
		in = append(in, v)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &InvocationError{Member: mi.memberName(), Cause: errors.Errorf("panic: %v", r)}
		}
	}()

	var out []reflect.Value
	if m.variadic {
		out = m.fn.CallSlice(in)
	} else {
		out = m.fn.Call(in)
	}
	if m.hasError {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, &InvocationError{Member: mi.memberName(), Cause: errors.WithStack(last.Interface().(error))}
		}
	}
	switch len(out) {
	case 0:
		return ReturnVoid, nil
	case 1:
		return out[0].Interface(), nil
	}
	values := make([]interface{}, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, nil
}
