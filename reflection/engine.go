// Package reflection resolves members of host objects and classes, scores
// overloads by conversion cost and invokes the chosen member.
package reflection

import (
	"reflect"
	"sort"
	"strings"
)

// Engine resolves and invokes members against a ClassRegistry.
type Engine struct {
	Classes *ClassRegistry
}

// NewEngine returns an engine backed by classes.
func NewEngine(classes *ClassRegistry) *Engine {
	return &Engine{Classes: classes}
}

func argTypes(args []interface{}) ([]reflect.Type, string) {
	types := make([]reflect.Type, len(args))
	var sig strings.Builder
	for i, a := range args {
		if i > 0 {
			sig.WriteByte(',')
		}
		if isNil(a) {
			sig.WriteString("null")
			continue
		}
		t := reflect.TypeOf(a)
		types[i] = t
		sig.WriteString(t.PkgPath())
		sig.WriteByte(':')
		sig.WriteString(t.String())
	}
	return types, sig.String()
}

// ClassOf returns the class of a host object.
func (e *Engine) ClassOf(obj interface{}) (*Class, error) {
	if obj == nil {
		return nil, engineErrorf("no class for nil")
	}
	return e.Classes.ClassOf(reflect.TypeOf(obj)), nil
}

// GetMethod resolves an instance method of target.
func (e *Engine) GetMethod(cache *ResolutionCache, target interface{}, name string, args []interface{}) (*MethodInvoker, error) {
	class, err := e.ClassOf(target)
	if err != nil {
		return nil, engineErrorf("cannot call %s on a null object", name)
	}
	return e.resolve(cache, class, MethodMember, name, args)
}

// GetStaticMethod resolves a static method of class.
func (e *Engine) GetStaticMethod(cache *ResolutionCache, class *Class, name string, args []interface{}) (*MethodInvoker, error) {
	return e.resolve(cache, class, StaticMember, name, args)
}

// GetConstructor resolves a constructor of class.
func (e *Engine) GetConstructor(cache *ResolutionCache, class *Class, args []interface{}) (*MethodInvoker, error) {
	return e.resolve(cache, class, ConstructorMember, ConstructorName, args)
}

func (e *Engine) resolve(cache *ResolutionCache, class *Class, kind MemberKind, name string, args []interface{}) (*MethodInvoker, error) {
	types, sig := argTypes(args)
	key := MethodDescriptor{Kind: kind, Name: name, Class: class, Args: sig}
	if mi, ok := cache.Get(key); ok {
		return mi, nil
	}

	candidates := class.Candidates(kind, name, len(args))
	lookupName := name
	if len(candidates) == 0 && kind != ConstructorMember {
		if alt := WireName(name); alt != name {
			candidates = class.Candidates(kind, alt, len(args))
			lookupName = alt
		}
	}
	if len(candidates) == 0 {
		switch {
		case kind == ConstructorMember:
			return nil, engineErrorf("no constructor of %s takes %d arguments", class.Name, len(args))
		case class.HasMember(kind, lookupName):
			return nil, engineErrorf("no method %s of %s takes %d arguments", name, class.Name, len(args))
		default:
			return nil, engineErrorf("method %s does not exist in %s", name, class.Name)
		}
	}

	mi := e.selectInvoker(candidates, types)
	if mi == nil {
		return nil, engineErrorf("no overload of %s in %s matches (%s)", name, class.Name, describeTypes(types))
	}
	cache.Add(key, mi)
	return mi, nil
}

// selectInvoker builds the single candidate directly, or keeps the cheapest
// valid one and stops early at a zero cost match.
func (e *Engine) selectInvoker(candidates []*Member, types []reflect.Type) *MethodInvoker {
	if len(candidates) == 1 {
		cost, convs := e.Classes.BuildConverters(candidates[0].params, types)
		if cost == -1 {
			return nil
		}
		return &MethodInvoker{Member: candidates[0], Converters: convs, Cost: cost}
	}

	var best *MethodInvoker
	for _, m := range candidates {
		cost, convs := e.Classes.BuildConverters(m.params, types)
		if cost == -1 {
			continue
		}
		if best == nil || cost < best.Cost {
			best = &MethodInvoker{Member: m, Converters: convs, Cost: cost}
			if cost == 0 {
				break
			}
		}
	}
	return best
}

func describeTypes(types []reflect.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = TypeName(t)
	}
	return strings.Join(names, ", ")
}

// ForName resolves a class name, including primitive names and the built-in
// Object and String aliases.
func (e *Engine) ForName(name string) (*Class, bool) {
	if c, ok := e.Classes.ForName(name); ok {
		return c, true
	}
	if t, ok := e.TypeForName(name); ok {
		return e.Classes.ClassOf(t), true
	}
	return nil, false
}

// TypeForName returns the Go type named by a class or primitive name.
func (e *Engine) TypeForName(name string) (reflect.Type, bool) {
	if t, ok := PrimitiveType(name); ok {
		return t, true
	}
	switch name {
	case "java.lang.Object", "Object":
		return objectType, true
	case "java.lang.String", "String":
		return stringType, true
	}
	if c, ok := e.Classes.ForName(name); ok && c.Type != nil {
		return c.Type, true
	}
	return nil, false
}

func structValue(target interface{}) (reflect.Value, bool) {
	rv := reflect.ValueOf(target)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv, true
}

func findField(rv reflect.Value, name string) (reflect.Value, bool) {
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if f.Name == name || WireName(f.Name) == name {
			v, err := rv.FieldByIndexErr(f.Index)
			if err != nil {
				return reflect.Value{}, false
			}
			return v, true
		}
	}
	return reflect.Value{}, false
}

// GetField reads an exported field of target.
func (e *Engine) GetField(target interface{}, name string) (interface{}, bool) {
	rv, ok := structValue(target)
	if !ok {
		return nil, false
	}
	f, ok := findField(rv, name)
	if !ok {
		return nil, false
	}
	return f.Interface(), true
}

// SetField assigns an exported field of target. It reports false when the
// field does not exist.
func (e *Engine) SetField(target interface{}, name string, value interface{}) (bool, error) {
	rv, ok := structValue(target)
	if !ok {
		return false, nil
	}
	f, ok := findField(rv, name)
	if !ok {
		return false, nil
	}
	if !f.CanSet() {
		return true, engineErrorf("field %s of %s is not settable", name, TypeName(rv.Type()))
	}
	v, err := e.Classes.ConvertTo(value, f.Type())
	if err != nil {
		return true, err
	}
	f.Set(v)
	return true, nil
}

// GetStaticField reads a static field of class.
func (e *Engine) GetStaticField(class *Class, name string) (interface{}, bool) {
	v, ok := class.StaticFieldValue(name)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

// SetStaticField assigns a static field of class.
func (e *Engine) SetStaticField(class *Class, name string, value interface{}) (bool, error) {
	f, ok := class.StaticFieldValue(name)
	if !ok {
		return false, nil
	}
	v, err := e.Classes.ConvertTo(value, f.Type())
	if err != nil {
		return true, err
	}
	f.Set(v)
	return true, nil
}

// FieldNames lists the exported field names of target.
func (e *Engine) FieldNames(target interface{}) []string {
	rv, ok := structValue(target)
	if !ok {
		return nil
	}
	var names []string
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if f.IsExported() && !f.Anonymous {
			names = append(names, WireName(f.Name))
		}
	}
	return names
}

// MethodNames lists the instance method names of target.
func (e *Engine) MethodNames(target interface{}) []string {
	class, err := e.ClassOf(target)
	if err != nil {
		return nil
	}
	return class.MemberNames(MethodMember)
}

// StaticNames lists static fields, static methods and nested classes of class.
func (e *Engine) StaticNames(class *Class) []string {
	seen := map[string]bool{}
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, n := range class.StaticFieldNames() {
		add(n)
	}
	for _, n := range class.MemberNames(StaticMember) {
		add(n)
	}
	for _, c := range class.NestedClasses() {
		simple := c.Name[strings.LastIndexAny(c.Name, ".$")+1:]
		add(simple)
	}
	sort.Strings(names)
	return names
}
