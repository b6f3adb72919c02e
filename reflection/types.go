package reflection

import (
	"context"
	"reflect"
	"strings"
	"unicode"
)

// Char is a single character. A one-character string argument converts to a
// Char parameter.
type Char rune

var (
	objectType  = reflect.TypeOf((*interface{})(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	charType    = reflect.TypeOf(Char(0))
	stringType  = reflect.TypeOf("")
)

// ObjectType is the root of every class hierarchy, the empty interface.
func ObjectType() reflect.Type { return objectType }

// numeric families ordered by width; -1 means not numeric.
const (
	notNumeric = -1
	byteFamily = iota - 1
	shortFamily
	intFamily
	longFamily
	floatFamily
	doubleFamily
)

func numericFamily(t reflect.Type) int {
	if t == nil || t == charType {
		return notNumeric
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Uint8:
		return byteFamily
	case reflect.Int16, reflect.Uint16:
		return shortFamily
	case reflect.Int32, reflect.Uint32:
		return intFamily
	case reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return longFamily
	case reflect.Float32:
		return floatFamily
	case reflect.Float64:
		return doubleFamily
	}
	return notNumeric
}

func isIntegral(family int) bool {
	return family >= byteFamily && family <= longFamily
}

func isCharacter(t reflect.Type) bool {
	return t == charType
}

func isBoolean(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Bool
}

// Nilable reports whether a nil argument can be passed for t.
func Nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// primitiveTypes maps the primitive names accepted by array creation and class
// lookup.
var primitiveTypes = map[string]reflect.Type{
	"boolean": reflect.TypeOf(false),
	"byte":    reflect.TypeOf(uint8(0)),
	"short":   reflect.TypeOf(int16(0)),
	"int":     reflect.TypeOf(int32(0)),
	"long":    reflect.TypeOf(int64(0)),
	"float":   reflect.TypeOf(float32(0)),
	"double":  reflect.TypeOf(float64(0)),
	"char":    charType,
}

// PrimitiveType returns the Go type behind a primitive name such as "int".
func PrimitiveType(name string) (reflect.Type, bool) {
	t, ok := primitiveTypes[name]
	return t, ok
}

// TypeName is the name used for t in listings and help pages.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "null"
	}
	for name, pt := range primitiveTypes {
		if pt == t {
			return name
		}
	}
	switch t {
	case objectType:
		return "java.lang.Object"
	case stringType:
		return "java.lang.String"
	}
	if t.Kind() == reflect.Ptr && t.Elem().Name() != "" {
		t = t.Elem()
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// ShortName drops the package part of a dotted name.
func ShortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// PackageName returns the package part of a dotted name.
func PackageName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// WireName converts an exported Go identifier to the lower camel case name the
// interpreter side uses: Size -> size, URLPath -> urlPath, ID -> id.
func WireName(goName string) string {
	runes := []rune(goName)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return goName
	case n == 1 || n == len(runes):
		for i := 0; i < n; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	default:
		for i := 0; i < n-1; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	}
	return string(runes)
}

// GoName converts a wire name to the exported Go spelling: size -> Size.
func GoName(wireName string) string {
	if wireName == "" {
		return wireName
	}
	runes := []rune(wireName)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
