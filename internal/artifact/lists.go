package artifact

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/diag"
)

// AddUsed keeps a defined global alive through llvm.used.
func (c *Cache) AddUsed(v constant.Constant) {
	switch s := v.(type) {
	case *ir.Global:
		if s.Init == nil {
			diag.Fatalf("artifact", "llvm.used entry %s is only a declaration", s.Name())
		}
	case *ir.Func:
		if len(s.Blocks) == 0 {
			diag.Fatalf("artifact", "llvm.used entry %s is only a declaration", s.Name())
		}
	}
	c.used = append(c.used, v)
}

// EmitList emits a global array of i8* holding elems, pointer aligned.
// Lists with local linkage are added to llvm.used. Empty lists emit nothing.
func (c *Cache) EmitList(name, section string, l enum.Linkage, align ir.Align, elems []constant.Constant) *ir.Global {
	if len(elems) == 0 {
		return nil
	}
	i8ptr := lltypes.NewPointer(lltypes.I8)
	casted := make([]constant.Constant, len(elems))
	for i, e := range elems {
		if e.Type().Equal(i8ptr) {
			casted[i] = e
			continue
		}
		casted[i] = constant.NewBitCast(e, i8ptr)
	}
	arr := lltypes.NewArray(uint64(len(casted)), i8ptr)
	g := c.mod.NewGlobalDef(name, constant.NewArray(arr, casted...))
	g.Linkage = l
	g.Section = section
	g.Align = align
	if localLinkage(l) {
		c.AddUsed(g)
	}
	return g
}

// EmitUsed writes llvm.used. Call once, after every other list.
func (c *Cache) EmitUsed(align ir.Align) *ir.Global {
	g := c.EmitList("llvm.used", "llvm.metadata", enum.LinkageAppending, align, c.used)
	c.used = nil
	return g
}

// Used returns the pending llvm.used entries.
func (c *Cache) Used() []constant.Constant { return c.used }

// SealLinkage spells linkage the way the IR reader accepts it. Global
// declarations become external and definitions drop an explicit external.
// Function declarations lose any link-once or weak linkage. Local
// declarations are left for the verifier to report.
func (c *Cache) SealLinkage() {
	for _, g := range c.mod.Globals {
		switch {
		case g.Init == nil && !localLinkage(g.Linkage) && g.Linkage != enum.LinkageExternWeak:
			g.Linkage = enum.LinkageExternal
		case g.Init != nil && g.Linkage == enum.LinkageExternal:
			g.Linkage = enum.LinkageNone
		}
	}
	for _, f := range c.mod.Funcs {
		if len(f.Blocks) > 0 {
			if f.Linkage == enum.LinkageExternal {
				f.Linkage = enum.LinkageNone
			}
			continue
		}
		switch f.Linkage {
		case enum.LinkageNone, enum.LinkageExternal, enum.LinkageExternWeak,
			enum.LinkageInternal, enum.LinkagePrivate:
		default:
			f.Linkage = enum.LinkageNone
		}
	}
}

func localLinkage(l enum.Linkage) bool {
	return l == enum.LinkageInternal || l == enum.LinkagePrivate
}
