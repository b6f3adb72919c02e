package reflection

import (
	"reflect"
)

const (
	// MaxDistance anchors the cost of a nil argument: the more specific the
	// parameter type, the cheaper the match.
	MaxDistance = 100000000

	// DistanceFactor scales every inheritance step.
	DistanceFactor = 100
)

// Converter turns an argument into a value of the parameter type.
type Converter int

const (
	NoConverter Converter = iota
	NilConverter
	NumberConverter
	CharConverter
)

func (c Converter) convert(v reflect.Value, to reflect.Type) (reflect.Value, error) {
	switch c {
	case NilConverter:
		return reflect.Zero(to), nil
	case NumberConverter:
		return v.Convert(to), nil
	case CharConverter:
		runes := []rune(v.String())
		if len(runes) != 1 {
			return reflect.Value{}, engineErrorf("cannot convert %q to a single character", v.String())
		}
		return reflect.ValueOf(Char(runes[0])).Convert(to), nil
	}
	return v, nil
}

// Distance measures how far child is from parent: 0 when identical, the
// superclass chain length when parent is an ancestor, otherwise the breadth
// first distance through declared interfaces. The result is scaled by
// DistanceFactor; -1 means unrelated.
func (r *ClassRegistry) Distance(parent, child reflect.Type) int {
	distance := -1
	if parent == child {
		distance = 0
	}
	var childClass *Class
	if distance == -1 && child != nil {
		childClass = r.ClassOf(child)
		distance = superDistance(parent, childClass)
	}
	if distance == -1 && childClass != nil {
		distance = interfaceDistance(parent, childClass, map[*Class]bool{}, childClass.interfaces)
	}
	if distance == -1 && child != nil && parent != nil && parent.Kind() == reflect.Interface &&
		parent != objectType && child.Implements(parent) {
		// structural implementation nobody declared
		distance = 1
	}
	if distance != -1 {
		distance *= DistanceFactor
	}
	return distance
}

// superDistance follows declared superclasses. Every chain ends at the empty
// interface, except for interface types themselves.
func superDistance(parent reflect.Type, child *Class) int {
	depth := 0
	for c := child; c != nil; c = c.super {
		if c.super == nil {
			if parent == objectType && c.Type != nil && c.Type.Kind() != reflect.Interface {
				return depth + 1
			}
			return -1
		}
		depth++
		if c.super.Type == parent {
			return depth
		}
	}
	return -1
}

func interfaceDistance(parent reflect.Type, child *Class, visited map[*Class]bool, toVisit []*Class) int {
	distance := -1
	var next []*Class
	for _, iface := range toVisit {
		if iface.Type == parent {
			distance = 1
			break
		}
		visited[iface] = true
		next = appendInterfaces(next, iface, visited)
	}
	if distance != -1 {
		return distance
	}

	var grandChild *Class
	if child != nil {
		grandChild = child.super
		next = appendInterfaces(next, grandChild, visited)
	}
	if len(next) > 0 || grandChild != nil {
		if d := interfaceDistance(parent, grandChild, visited, next); d != -1 {
			distance = d + 1
		}
	}
	return distance
}

func appendInterfaces(next []*Class, c *Class, visited map[*Class]bool) []*Class {
	if c == nil {
		return next
	}
	for _, iface := range c.interfaces {
		if !visited[iface] {
			next = append(next, iface)
		}
	}
	return next
}

// numericCost mirrors the widening table: a long parameter takes any integral
// argument at the width difference, int takes int/short/byte, short and byte
// accept a narrowed int at cost 1 and 2, and the floating family converts in
// both directions at cost 1.
func numericCost(param, arg reflect.Type) (int, Converter) {
	p, a := numericFamily(param), numericFamily(arg)
	conv := NumberConverter
	if param == arg {
		conv = NoConverter
	}
	switch p {
	case longFamily:
		if isIntegral(a) {
			return p - a, conv
		}
	case intFamily:
		if a == intFamily || a == shortFamily || a == byteFamily {
			return p - a, conv
		}
	case shortFamily:
		switch a {
		case shortFamily, byteFamily:
			return p - a, conv
		case intFamily:
			return 1, NumberConverter
		}
	case byteFamily:
		switch a {
		case byteFamily:
			return 0, conv
		case intFamily:
			return 2, NumberConverter
		}
	case doubleFamily:
		switch a {
		case doubleFamily:
			return 0, conv
		case floatFamily:
			return 1, NumberConverter
		}
	case floatFamily:
		switch a {
		case floatFamily:
			return 0, conv
		case doubleFamily:
			return 1, NumberConverter
		}
	}
	return -1, NoConverter
}

// BuildConverters scores a parameter list against argument types. A nil entry
// in args stands for a nil argument. It returns -1 when any argument cannot be
// passed.
func (r *ClassRegistry) BuildConverters(params, args []reflect.Type) (int, []Converter) {
	if len(params) != len(args) {
		return -1, nil
	}
	cost := 0
	converters := make([]Converter, len(args))
	for i, arg := range args {
		param := params[i]
		tempCost := -1
		switch {
		case arg == nil:
			if Nilable(param) {
				distance := r.Distance(objectType, param)
				tempCost = abs(MaxDistance - distance)
				converters[i] = NilConverter
			}
		case arg.AssignableTo(param):
			tempCost = r.Distance(param, arg)
			if tempCost == -1 {
				// assignable but unrelated by declaration, e.g. identical
				// underlying unnamed types
				tempCost = DistanceFactor
			}
			converters[i] = NoConverter
		case numericFamily(param) != notNumeric && numericFamily(arg) != notNumeric:
			tempCost, converters[i] = numericCost(param, arg)
		case isCharacter(param):
			if isCharacter(arg) {
				tempCost = 0
			} else if arg.Kind() == reflect.String {
				tempCost = 1
				converters[i] = CharConverter
			}
		case isBoolean(param) && isBoolean(arg):
			tempCost = 0
			converters[i] = NumberConverter
		}
		if tempCost == -1 {
			return -1, nil
		}
		cost += tempCost
	}
	return cost, converters
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// ConvertTo converts a single value to t using the same rules as argument
// passing. It fails with an EngineError when no conversion exists.
func (r *ClassRegistry) ConvertTo(v interface{}, t reflect.Type) (reflect.Value, error) {
	var at reflect.Type
	if !isNil(v) {
		at = reflect.TypeOf(v)
	}
	cost, convs := r.BuildConverters([]reflect.Type{t}, []reflect.Type{at})
	if cost == -1 {
		return reflect.Value{}, engineErrorf("cannot convert %s to %s", TypeName(at), TypeName(t))
	}
	if at == nil {
		return reflect.Zero(t), nil
	}
	return convs[0].convert(reflect.ValueOf(v), t)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
