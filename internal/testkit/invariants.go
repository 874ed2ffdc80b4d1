package testkit

import (
	"fmt"
	"math/bits"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/artifact"
	"linkgen/internal/entity"
)

// CheckIR runs a minimal set of module invariants:
// 1) global and function names are unique
// 2) global declarations are external or extern_weak and global definitions
// never spell out external
// 3) function declarations carry no linkage other than external or extern_weak
// 4) local linkage is never combined with hidden or protected visibility
// 5) every defined block ends in a terminator
// 6) alignments are powers of two
// 7) llvm.used and llvm.global_ctors have appending linkage
// 8) llvm.global_ctors entries are {priority, function, data} triples
func CheckIR(m *ir.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}
	seen := make(map[string]string, len(m.Globals)+len(m.Funcs))
	claim := func(name, what string) error {
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%s @%s redeclares %s", what, name, prev)
		}
		seen[name] = what
		return nil
	}

	for _, g := range m.Globals {
		name := g.Name()
		if err := claim(name, "global"); err != nil {
			return err
		}
		if g.Init == nil && g.Linkage != enum.LinkageExternal && g.Linkage != enum.LinkageExternWeak {
			return fmt.Errorf("global declaration @%s has %s linkage", name, g.Linkage)
		}
		if g.Init != nil && g.Linkage == enum.LinkageExternal {
			return fmt.Errorf("global definition @%s has explicit external linkage", name)
		}
		if err := checkVisibility(name, g.Linkage, g.Visibility); err != nil {
			return err
		}
		if err := checkAlign(name, uint64(g.Align)); err != nil {
			return err
		}
		switch name {
		case "llvm.used", "llvm.global_ctors":
			if g.Linkage != enum.LinkageAppending {
				return fmt.Errorf("@%s has %s linkage, want appending", name, g.Linkage)
			}
		}
		if name == "llvm.global_ctors" {
			if err := checkCtors(g); err != nil {
				return err
			}
		}
	}

	for _, fn := range m.Funcs {
		name := fn.Name()
		if err := claim(name, "function"); err != nil {
			return err
		}
		if len(fn.Blocks) == 0 {
			switch fn.Linkage {
			case enum.LinkageNone, enum.LinkageExternal, enum.LinkageExternWeak:
			default:
				return fmt.Errorf("function declaration @%s has %s linkage", name, fn.Linkage)
			}
			continue
		}
		if err := checkVisibility(name, fn.Linkage, fn.Visibility); err != nil {
			return err
		}
		for i, blk := range fn.Blocks {
			if blk.Term == nil {
				return fmt.Errorf("@%s: block %d has no terminator", name, i)
			}
		}
	}
	return nil
}

// CheckSymbols verifies that no two keyed artifacts share a name or key.
func CheckSymbols(syms []artifact.Symbol) error {
	names := make(map[string]bool, len(syms))
	keys := make(map[entity.Key]bool, len(syms))
	for _, s := range syms {
		if names[s.Name] {
			return fmt.Errorf("symbol %s listed twice", s.Name)
		}
		names[s.Name] = true
		if keys[s.Key] {
			return fmt.Errorf("key %s maps to two symbols", s.Key)
		}
		keys[s.Key] = true
	}
	return nil
}

func isLocal(l enum.Linkage) bool {
	return l == enum.LinkageInternal || l == enum.LinkagePrivate
}

func checkVisibility(name string, l enum.Linkage, v enum.Visibility) error {
	if isLocal(l) && v != enum.VisibilityNone && v != enum.VisibilityDefault {
		return fmt.Errorf("@%s: %s linkage with %s visibility", name, l, v)
	}
	return nil
}

func checkCtors(g *ir.Global) error {
	arr, ok := g.ContentType.(*lltypes.ArrayType)
	if !ok {
		return fmt.Errorf("@%s is %s, want an array", g.Name(), g.ContentType)
	}
	st, ok := arr.ElemType.(*lltypes.StructType)
	if !ok || len(st.Fields) != 3 {
		return fmt.Errorf("@%s element %s, want {i32, void ()*, i8*}", g.Name(), arr.ElemType)
	}
	return nil
}

func checkAlign(name string, align uint64) error {
	if align == 0 {
		return nil
	}
	a, err := safecast.Conv[uint32](align)
	if err != nil {
		return fmt.Errorf("@%s: align %d overflows: %w", name, align, err)
	}
	if bits.OnesCount32(a) != 1 {
		return fmt.Errorf("@%s: align %d is not a power of two", name, a)
	}
	return nil
}
