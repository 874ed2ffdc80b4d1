package artifact

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
)

// GlobalString returns an i8* to a NUL-terminated private copy of s.
// Equal contents share one global.
func (c *Cache) GlobalString(s string) constant.Constant {
	if addr, ok := c.strings[s]; ok {
		return addr
	}
	init := constant.NewCharArrayFromString(s + "\x00")
	g := c.mod.NewGlobalDef(c.names.uniqueString(fmt.Sprintf(".str.%d", len(c.strings))), init)
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	g.UnnamedAddr = enum.UnnamedAddrUnnamedAddr

	zero := constant.NewInt(lltypes.I64, 0)
	gep := constant.NewGetElementPtr(init.Typ, g, zero, zero)
	gep.InBounds = true
	c.strings[s] = gep
	return gep
}

// InternalGlobal defines an internal, keyless global named after name,
// numbered if the name is taken.
func (c *Cache) InternalGlobal(name string, init constant.Constant) *ir.Global {
	g := c.mod.NewGlobalDef(c.names.uniqueString(name), init)
	g.Linkage = enum.LinkageInternal
	return g
}
