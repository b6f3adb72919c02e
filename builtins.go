package py4go

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/richinsley/py4go/collections"
	"github.com/richinsley/py4go/reflection"
)

var (
	mathPI       = math.Pi
	mathE        = math.E
	intMaxValue  = int32(math.MaxInt32)
	intMinValue  = int32(math.MinInt32)
	longMaxValue = int64(math.MaxInt64)
	longMinValue = int64(math.MinInt64)
)

// DefaultClasses returns a registry holding the collection types and the
// handful of java.lang classes scripts commonly reach for.
func DefaultClasses() *reflection.ClassRegistry {
	reg := reflection.NewClassRegistry()
	reg.Register(collections.Classes()...)
	reg.Register(langClasses()...)
	return reg
}

func langClasses() []*reflection.Class {
	mathClass := reflection.NewClass("java.lang.Math", nil).
		StaticField("PI", &mathPI).
		StaticField("E", &mathE).
		StaticMethod("abs", func(x int64) int64 {
			if x < 0 {
				return -x
			}
			return x
		}).
		StaticMethod("abs", math.Abs).
		StaticMethod("max", func(a, b int64) int64 { return max(a, b) }).
		StaticMethod("max", math.Max).
		StaticMethod("min", func(a, b int64) int64 { return min(a, b) }).
		StaticMethod("min", math.Min).
		StaticMethod("sqrt", math.Sqrt).
		StaticMethod("pow", math.Pow).
		StaticMethod("floor", math.Floor).
		StaticMethod("ceil", math.Ceil)

	system := reflection.NewClass("java.lang.System", nil).
		StaticMethod("currentTimeMillis", func() int64 { return time.Now().UnixMilli() }).
		StaticMethod("nanoTime", func() int64 { return time.Now().UnixNano() }).
		StaticMethod("getenv", func(name string) interface{} {
			if v, ok := os.LookupEnv(name); ok {
				return v
			}
			return nil
		}).
		StaticMethod("lineSeparator", func() string { return "\n" })

	stringClass := reflection.NewClass("java.lang.String", "").
		StaticMethod("valueOf", func(v interface{}) string { return fmt.Sprint(v) })

	integer := reflection.NewClass("java.lang.Integer", int32(0)).
		StaticField("MAX_VALUE", &intMaxValue).
		StaticField("MIN_VALUE", &intMinValue).
		StaticMethod("parseInt", func(s string) (int32, error) {
			i, err := strconv.ParseInt(s, 10, 32)
			return int32(i), err
		}).
		StaticMethod("toString", func(i int32) string { return strconv.FormatInt(int64(i), 10) })

	long := reflection.NewClass("java.lang.Long", int64(0)).
		StaticField("MAX_VALUE", &longMaxValue).
		StaticField("MIN_VALUE", &longMinValue).
		StaticMethod("parseLong", func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})

	return []*reflection.Class{mathClass, system, stringClass, integer, long}
}
