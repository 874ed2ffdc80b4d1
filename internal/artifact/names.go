package artifact

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// nameIndex maps symbol names to module entries. Entries appended to the
// module behind the cache's back are picked up lazily.
type nameIndex struct {
	mod      *ir.Module
	byName   map[string]value.Named
	nFuncs   int
	nGlobals int
}

func newNameIndex(m *ir.Module) *nameIndex {
	return &nameIndex{mod: m, byName: make(map[string]value.Named)}
}

func (x *nameIndex) sync() {
	for ; x.nFuncs < len(x.mod.Funcs); x.nFuncs++ {
		if f := x.mod.Funcs[x.nFuncs]; f.Name() != "" {
			x.byName[f.Name()] = f
		}
	}
	for ; x.nGlobals < len(x.mod.Globals); x.nGlobals++ {
		if g := x.mod.Globals[x.nGlobals]; g.Name() != "" {
			x.byName[g.Name()] = g
		}
	}
}

func (x *nameIndex) lookup(name string) value.Named {
	x.sync()
	return x.byName[name]
}

func (x *nameIndex) rename(v value.Named, name string) {
	x.sync()
	if old := v.Name(); x.byName[old] == v {
		delete(x.byName, old)
	}
	v.SetName(name)
	if name != "" {
		x.byName[name] = v
	}
}

// uniqueName returns base+".unique", numbered further if that is taken.
func (x *nameIndex) uniqueName(base string) string {
	name := base + ".unique"
	for i := 1; x.lookup(name) != nil; i++ {
		name = fmt.Sprintf("%s.unique.%d", base, i)
	}
	return name
}

func (x *nameIndex) remove(v value.Named) {
	x.sync()
	if x.byName[v.Name()] == v {
		delete(x.byName, v.Name())
	}
	switch s := v.(type) {
	case *ir.Func:
		for i, f := range x.mod.Funcs {
			if f == s {
				x.mod.Funcs = append(x.mod.Funcs[:i], x.mod.Funcs[i+1:]...)
				x.nFuncs--
				return
			}
		}
	case *ir.Global:
		for i, g := range x.mod.Globals {
			if g == s {
				x.mod.Globals = append(x.mod.Globals[:i], x.mod.Globals[i+1:]...)
				x.nGlobals--
				return
			}
		}
	}
}

// uniqueString returns name, or name with a numeric suffix if taken.
func (x *nameIndex) uniqueString(name string) string {
	cand := name
	for i := 1; x.lookup(cand) != nil; i++ {
		cand = fmt.Sprintf("%s.%d", name, i)
	}
	return cand
}
