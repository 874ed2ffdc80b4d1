package interop

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/ast"
)

// RequiresCategory reports whether an extension must be announced to the
// host runtime: it extends a runtime-visible class, conforms to a
// runtime-visible protocol directly or through inherited conformances, or
// has a member that needs a dynamic entry point.
func (b *Bridge) RequiresCategory(ext ast.DeclID) bool {
	d := b.tree.Decl(ext)
	if d == nil || d.Kind != ast.DeclExtension {
		return false
	}
	cls := b.tree.Decl(d.Extended)
	if cls == nil || cls.Kind != ast.DeclClass {
		return false
	}
	if b.tree.IsObjC(d.Extended) {
		return true
	}
	seen := make(map[ast.ConformanceID]bool)
	for _, c := range d.Conformances {
		if b.conformanceRequiresCategory(c, seen) {
			return true
		}
	}
	for _, m := range d.Members {
		if b.needsEntryPoint(m, false) {
			return true
		}
	}
	return false
}

func (b *Bridge) conformanceRequiresCategory(id ast.ConformanceID, seen map[ast.ConformanceID]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	c := b.tree.Conformance(id)
	if c == nil {
		return false
	}
	if b.isObjCProtocol(c.Protocol) {
		return true
	}
	for _, inh := range c.Inherited {
		if b.conformanceRequiresCategory(inh, seen) {
			return true
		}
	}
	return false
}

func (b *Bridge) isObjCProtocol(id ast.DeclID) bool {
	d := b.tree.Decl(id)
	return d != nil && d.Kind == ast.DeclProtocol && (d.Flags.Has(ast.FlagObjC) || b.tree.IsForeign(id))
}

// needsEntryPoint reports members that get a host runtime method. Every
// eligible member of a runtime-visible class does.
func (b *Bridge) needsEntryPoint(id ast.DeclID, classVisible bool) bool {
	d := b.tree.Decl(id)
	if d == nil {
		return false
	}
	switch d.Kind {
	case ast.DeclFunc, ast.DeclConstructor, ast.DeclSubscript:
	case ast.DeclVar:
		if !d.Flags.Has(ast.FlagComputed) {
			return false
		}
	default:
		return false
	}
	return classVisible || d.Flags.Has(ast.FlagObjC) || d.Flags.Has(ast.FlagDynamic)
}

// categoryData builds the category record: name, class and empty method,
// protocol and property lists, filled at load time.
func (b *Bridge) categoryData(ext ast.DeclID) constant.Constant {
	d := b.tree.Decl(ext)
	cls := b.tree.Decl(d.Extended)
	modName := ""
	if m := b.tree.ModuleOf(ext); m != nil {
		modName = m.Name
	}
	i8ptr := b.rt.Int8Ptr
	null := constant.NewNull(i8ptr)
	st := lltypes.NewStruct(i8ptr, b.rt.ObjCClassPtr, i8ptr, i8ptr, i8ptr, i8ptr)
	init := constant.NewStruct(st,
		b.cache.GlobalString(modName),
		castTo(b.host.ClassMetadata(d.Extended), b.rt.ObjCClassPtr),
		null, null, null, null)
	return b.cache.InternalGlobal("_CATEGORY_"+cls.Name+"_$_"+modName, init)
}

func castTo(c constant.Constant, t lltypes.Type) constant.Constant {
	if c.Type().Equal(t) {
		return c
	}
	return constant.NewBitCast(c, t)
}
