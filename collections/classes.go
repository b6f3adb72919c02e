package collections

import "github.com/richinsley/py4go/reflection"

// Classes describes the collection types under the names the interpreter
// looks up. Overloads the Go types cannot express by name alone, such as
// add(int, Object) and remove(int), are registered explicitly.
func Classes() []*reflection.Class {
	collection := reflection.NewInterface("java.util.Collection", (*collectionLike)(nil))
	list := reflection.NewInterface("java.util.List", (*List)(nil)).Implements(collection)
	set := reflection.NewInterface("java.util.Set", (*Set)(nil)).Implements(collection)
	mapIface := reflection.NewInterface("java.util.Map", (*Map)(nil))

	arrayList := reflection.NewClass("java.util.ArrayList", (*ArrayList)(nil)).
		Implements(list).
		Constructor(func() *ArrayList { return NewArrayList() }).
		Constructor(func(capacity int) *ArrayList {
			return &ArrayList{items: make([]interface{}, 0, max(capacity, 0))}
		}).
		Constructor(CopyOf).
		Method("add", (*ArrayList).Insert).
		Method("remove", (*ArrayList).RemoveAt)

	hashMap := reflection.NewClass("java.util.HashMap", (*HashMap)(nil)).
		Implements(mapIface).
		Constructor(NewHashMap)

	hashSet := reflection.NewClass("java.util.HashSet", (*HashSet)(nil)).
		Implements(set).
		Constructor(func() *HashSet { return NewHashSet() }).
		Constructor(func(c collectionLike) *HashSet { return NewHashSet(c.Elements()...) })

	iterator := reflection.NewClass("java.util.Iterator", (*Iterator)(nil))

	helpers := reflection.NewClass("java.util.Collections", nil).
		StaticMethod("sort", Sort).
		StaticMethod("reverse", Reverse).
		StaticMethod("max", Max).
		StaticMethod("min", Min).
		StaticMethod("frequency", Count)

	return []*reflection.Class{collection, list, set, mapIface, arrayList, hashMap, hashSet, iterator, helpers}
}

type collectionLike interface {
	Size() int
	IsEmpty() bool
	Contains(element interface{}) bool
	Iterator() *Iterator
	Elements() []interface{}
}
