package reflection

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// MemberKind distinguishes the callable members of a class.
type MemberKind int

const (
	ConstructorMember MemberKind = iota
	MethodMember
	StaticMember
)

// ConstructorName is the member name used for constructors in cache keys and
// listings.
const ConstructorName = "<init>"

type memberKey struct {
	kind  MemberKind
	name  string
	arity int
}

// Member is an invocable thunk built once when its class is assembled.
// Instance methods take the receiver as the first function argument, which is
// what reflect.Method.Func and Go method expressions already look like.
type Member struct {
	Name  string
	Kind  MemberKind
	Class *Class

	fn       reflect.Value
	params   []reflect.Type
	receiver reflect.Type
	withCtx  bool
	variadic bool
	results  []reflect.Type
	hasError bool
}

func newMember(class *Class, kind MemberKind, name string, fn reflect.Value) *Member {
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		panic(fmt.Sprintf("reflection: %s.%s is %s, not a func", class.Name, name, ft))
	}
	m := &Member{Name: name, Kind: kind, Class: class, fn: fn, variadic: ft.IsVariadic()}
	i := 0
	if kind == MethodMember {
		if ft.NumIn() == 0 {
			panic(fmt.Sprintf("reflection: method %s.%s has no receiver", class.Name, name))
		}
		m.receiver = ft.In(0)
		i = 1
	}
	if i < ft.NumIn() && ft.In(i) == contextType {
		m.withCtx = true
		i++
	}
	for ; i < ft.NumIn(); i++ {
		m.params = append(m.params, ft.In(i))
	}
	for j := 0; j < ft.NumOut(); j++ {
		m.results = append(m.results, ft.Out(j))
	}
	if n := len(m.results); n > 0 && m.results[n-1] == errorType {
		m.hasError = true
		m.results = m.results[:n-1]
	}
	return m
}

// Params returns the parameter types seen by callers.
func (m *Member) Params() []reflect.Type { return m.params }

// IsVoid reports whether the member produces no value.
func (m *Member) IsVoid() bool { return len(m.results) == 0 }

// Signature renders the member as name(type, type) : result.
func (m *Member) Signature(shortName bool) string {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = displayName(TypeName(p), shortName)
	}
	ret := "void"
	switch len(m.results) {
	case 0:
	case 1:
		ret = displayName(TypeName(m.results[0]), shortName)
	default:
		ret = "java.util.List"
	}
	return fmt.Sprintf("%s(%s) : %s", m.Name, strings.Join(names, ", "), ret)
}

func displayName(name string, short bool) string {
	if short {
		return ShortName(name)
	}
	return name
}

// Class describes a host type: its constructors, instance and static methods,
// static fields and nested classes. Classes are either registered explicitly
// under a fully qualified name or derived from a Go type on first use.
type Class struct {
	Name string
	Type reflect.Type

	super      *Class
	interfaces []*Class

	members      map[memberKey][]*Member
	names        map[MemberKind][]string
	staticFields map[string]reflect.Value
	fieldOrder   []string
	nested       map[string]*Class
}

func newClass(name string, t reflect.Type) *Class {
	return &Class{
		Name:         name,
		Type:         t,
		members:      make(map[memberKey][]*Member),
		names:        make(map[MemberKind][]string),
		staticFields: make(map[string]reflect.Value),
		nested:       make(map[string]*Class),
	}
}

// NewClass starts a class description for the type of sample, e.g.
// NewClass("java.util.ArrayList", (*collections.ArrayList)(nil)). All exported
// methods of the type are added under their wire names.
func NewClass(name string, sample interface{}) *Class {
	var t reflect.Type
	if sample != nil {
		t = reflect.TypeOf(sample)
	}
	c := newClass(name, t)
	if t != nil {
		c.addMethodSet(t)
	}
	return c
}

// NewInterface describes an interface type; pass a nil pointer to it, e.g.
// NewInterface("java.util.List", (*collections.List)(nil)).
func NewInterface(name string, ptrToInterface interface{}) *Class {
	t := reflect.TypeOf(ptrToInterface).Elem()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("reflection: %s is not an interface", t))
	}
	return newClass(name, t)
}

func (c *Class) addMethodSet(t reflect.Type) {
	if t.Kind() == reflect.Interface {
		return
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" {
			continue
		}
		c.add(newMember(c, MethodMember, WireName(m.Name), m.Func))
	}
}

func (c *Class) add(m *Member) {
	key := memberKey{kind: m.Kind, name: m.Name, arity: len(m.params)}
	if len(c.membersNamed(m.Kind, m.Name)) == 0 {
		c.names[m.Kind] = append(c.names[m.Kind], m.Name)
	}
	c.members[key] = append(c.members[key], m)
}

func (c *Class) membersNamed(kind MemberKind, name string) []*Member {
	var out []*Member
	for k, ms := range c.members {
		if k.kind == kind && k.name == name {
			out = append(out, ms...)
		}
	}
	return out
}

// Extends records the superclass used for inheritance distance.
func (c *Class) Extends(parent *Class) *Class {
	c.super = parent
	return c
}

// Implements records directly implemented interfaces.
func (c *Class) Implements(ifaces ...*Class) *Class {
	c.interfaces = append(c.interfaces, ifaces...)
	return c
}

// Constructor adds a constructor overload. fn returns the new object and
// optionally an error.
func (c *Class) Constructor(fn interface{}) *Class {
	c.add(newMember(c, ConstructorMember, ConstructorName, reflect.ValueOf(fn)))
	return c
}

// Method adds an instance method overload. fn takes the receiver first, which
// a method expression such as (*ArrayList).RemoveAt already does.
func (c *Class) Method(name string, fn interface{}) *Class {
	c.add(newMember(c, MethodMember, name, reflect.ValueOf(fn)))
	return c
}

// StaticMethod adds a static method overload.
func (c *Class) StaticMethod(name string, fn interface{}) *Class {
	c.add(newMember(c, StaticMember, name, reflect.ValueOf(fn)))
	return c
}

// StaticField exposes the variable ptr points to as a static field.
func (c *Class) StaticField(name string, ptr interface{}) *Class {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("reflection: static field %s.%s needs a pointer", c.Name, name))
	}
	if _, ok := c.staticFields[name]; !ok {
		c.fieldOrder = append(c.fieldOrder, name)
	}
	c.staticFields[name] = v.Elem()
	return c
}

// Nested attaches an inner class. Its name must be Outer$Inner.
func (c *Class) Nested(inner *Class) *Class {
	simple := inner.Name
	if i := strings.LastIndexByte(simple, '$'); i >= 0 {
		simple = simple[i+1:]
	}
	c.nested[simple] = inner
	return c
}

// Super returns the declared superclass, if any.
func (c *Class) Super() *Class { return c.super }

// Interfaces returns the declared interfaces.
func (c *Class) Interfaces() []*Class { return c.interfaces }

// Candidates returns the overloads of name with the given arity.
func (c *Class) Candidates(kind MemberKind, name string, arity int) []*Member {
	return c.members[memberKey{kind: kind, name: name, arity: arity}]
}

// HasMember reports whether any overload named name exists.
func (c *Class) HasMember(kind MemberKind, name string) bool {
	for _, n := range c.names[kind] {
		if n == name {
			return true
		}
	}
	return false
}

// Members returns every overload of the given kind sorted by signature.
func (c *Class) Members(kind MemberKind) []*Member {
	var out []*Member
	for k, ms := range c.members {
		if k.kind == kind {
			out = append(out, ms...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature(false) < out[j].Signature(false)
	})
	return out
}

// MemberNames returns the distinct names of the given kind, sorted.
func (c *Class) MemberNames(kind MemberKind) []string {
	names := append([]string(nil), c.names[kind]...)
	sort.Strings(names)
	return names
}

// StaticFieldValue returns the settable value of a static field.
func (c *Class) StaticFieldValue(name string) (reflect.Value, bool) {
	v, ok := c.staticFields[name]
	return v, ok
}

// StaticFieldNames returns static field names in declaration order.
func (c *Class) StaticFieldNames() []string {
	return append([]string(nil), c.fieldOrder...)
}

// NestedClass returns the inner class with the given simple name.
func (c *Class) NestedClass(simple string) (*Class, bool) {
	n, ok := c.nested[simple]
	return n, ok
}

// NestedClasses returns inner classes sorted by name.
func (c *Class) NestedClasses() []*Class {
	out := make([]*Class, 0, len(c.nested))
	for _, n := range c.nested {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Signature renders "Name extends Parent implements A, B".
func (c *Class) Signature(shortName bool) string {
	var b strings.Builder
	b.WriteString(displayName(c.Name, shortName))
	if c.super != nil {
		b.WriteString(" extends ")
		b.WriteString(c.super.Name)
	}
	if len(c.interfaces) > 0 {
		b.WriteString(" implements ")
		for i, iface := range c.interfaces {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(iface.Name)
		}
	}
	return b.String()
}

func (c *Class) String() string { return c.Name }

// ClassRegistry resolves class names and Go types to classes. Lookups take a
// read lock; derived classes are added once per type.
type ClassRegistry struct {
	mu       sync.RWMutex
	byName   map[string]*Class
	byType   map[reflect.Type]*Class
	packages map[string]struct{}
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		byName:   make(map[string]*Class),
		byType:   make(map[reflect.Type]*Class),
		packages: make(map[string]struct{}),
	}
}

// Register adds classes and their nested classes.
func (r *ClassRegistry) Register(classes ...*Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		r.registerLocked(c)
	}
}

func (r *ClassRegistry) registerLocked(c *Class) {
	r.byName[c.Name] = c
	if c.Type != nil {
		r.byType[c.Type] = c
	}
	for pkg := PackageName(c.Name); pkg != ""; pkg = PackageName(pkg) {
		r.packages[pkg] = struct{}{}
	}
	for _, n := range c.nested {
		r.registerLocked(n)
	}
}

// ForName looks a class up by fully qualified name. "a.b.Outer.Inner" also
// finds "a.b.Outer$Inner".
func (r *ClassRegistry) ForName(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[name]; ok {
		return c, true
	}
	candidate := name
	for {
		i := strings.LastIndexByte(candidate, '.')
		if i < 0 {
			return nil, false
		}
		candidate = candidate[:i] + "$" + candidate[i+1:]
		if c, ok := r.byName[candidate]; ok {
			return c, true
		}
	}
}

// IsPackage reports whether name is the package of some registered class.
func (r *ClassRegistry) IsPackage(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.packages[name]
	return ok
}

// Names returns all registered class names, sorted.
func (r *ClassRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ClassOf returns the class for t, deriving one from its method set when t
// was never registered.
func (r *ClassRegistry) ClassOf(t reflect.Type) *Class {
	r.mu.RLock()
	c, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byType[t]; ok {
		return c
	}
	c = newClass(TypeName(t), t)
	c.addMethodSet(t)
	r.byType[t] = c
	return c
}
