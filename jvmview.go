package py4go

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// JVMView is a named import scope used to resolve simple class names. Each
// interpreter-side view object has its own; the default view is registered
// under the id "j".
//
// The sequence id grows with every change to the imports so clients can cache
// the imported names and ask only for updates.
type JVMView struct {
	name string
	id   string

	mu            sync.RWMutex
	singleImports map[string]string
	starImports   []string
	sequenceID    atomic.Int64
}

// NewJVMView returns a view with the usual java.lang star import.
func NewJVMView(name, id string) *JVMView {
	v := &JVMView{
		name:          name,
		id:            id,
		singleImports: make(map[string]string),
		starImports:   []string{"java.lang"},
	}
	v.sequenceID.Store(1)
	return v
}

// Name is the view's display name.
func (v *JVMView) Name() string { return v.name }

// ID is the registry id of the view.
func (v *JVMView) ID() string { return v.id }

// SequenceID returns the current import sequence number.
func (v *JVMView) SequenceID() int64 { return v.sequenceID.Load() }

// AddSingleImport imports fqn under its simple name. An existing import of
// the same simple name is replaced.
func (v *JVMView) AddSingleImport(fqn string) {
	simple := fqn
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		simple = fqn[i+1:]
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.singleImports[simple] == fqn {
		return
	}
	v.singleImports[simple] = fqn
	v.sequenceID.Add(1)
}

// RemoveSingleImport drops the import of fqn and reports whether it existed.
func (v *JVMView) RemoveSingleImport(fqn string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for simple, name := range v.singleImports {
		if name == fqn {
			delete(v.singleImports, simple)
			v.sequenceID.Add(1)
			return true
		}
	}
	return false
}

// AddStarImport imports every class of pkg.
func (v *JVMView) AddStarImport(pkg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.starImports {
		if p == pkg {
			return
		}
	}
	v.starImports = append(v.starImports, pkg)
	v.sequenceID.Add(1)
}

// RemoveStarImport drops a package import and reports whether it existed.
func (v *JVMView) RemoveStarImport(pkg string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, p := range v.starImports {
		if p == pkg {
			v.starImports = append(v.starImports[:i:i], v.starImports[i+1:]...)
			v.sequenceID.Add(1)
			return true
		}
	}
	return false
}

// ClearImports removes every import, java.lang included.
func (v *JVMView) ClearImports() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.singleImports = make(map[string]string)
	v.starImports = nil
	v.sequenceID.Add(1)
}

// SingleImport returns the fully qualified name imported as simple.
func (v *JVMView) SingleImport(simple string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fqn, ok := v.singleImports[simple]
	return fqn, ok
}

// StarImports returns the imported packages in import order.
func (v *JVMView) StarImports() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.starImports...)
}

// ImportedNames returns the sorted simple names of the single imports.
func (v *JVMView) ImportedNames() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.importedNamesLocked()
}

func (v *JVMView) importedNamesLocked() []string {
	names := make([]string, 0, len(v.singleImports))
	for simple := range v.singleImports {
		names = append(names, simple)
	}
	sort.Strings(names)
	return names
}

// Query returns the imported names when the sequence moved past last. It
// reports false when the caller is already up to date.
func (v *JVMView) Query(last int64) (int64, []string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	seq := v.sequenceID.Load()
	if seq == last {
		return seq, nil, false
	}
	return seq, v.importedNamesLocked(), true
}
