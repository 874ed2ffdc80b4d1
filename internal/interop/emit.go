package interop

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"linkgen/internal/ast"
	"linkgen/internal/linkage"
)

// Sections the host runtime loader scans.
const (
	ClassListSection        = "__DATA, __objc_classlist, regular, no_dead_strip"
	CategoryListSection     = "__DATA, __objc_catlist, regular, no_dead_strip"
	NonLazyClassListSection = "__DATA, __objc_nlclslist, regular, no_dead_strip"
)

// Names of the synthesized registration initializers.
const (
	ClassInitializerName    = "_linkgen_initObjCClasses"
	CategoryInitializerName = "_linkgen_initObjCCategories"
)

// EmitClassInitializer synthesizes a function sending "load" to every
// pending class. Returns nil when no class is pending; later calls return
// the same function.
func (b *Bridge) EmitClassInitializer() *ir.Func {
	if b.classInit != nil || len(b.classes) == 0 {
		return b.classInit
	}
	i8ptr := b.rt.Int8Ptr
	fn := b.cache.Synthesized(ClassInitializerName, linkage.Internal, lltypes.NewFunc(lltypes.Void))
	entry := fn.NewBlock("entry")
	sel := b.registerSelector(entry, "load")
	msgSend := castTo(b.cache.RuntimeFunction("objc_msgSend", b.msgSendType()),
		lltypes.NewPointer(lltypes.NewFunc(lltypes.Void, i8ptr, i8ptr)))
	for _, cls := range b.classes {
		entry.NewCall(msgSend, castTo(cls, i8ptr), sel)
	}
	entry.NewRet(nil)
	b.classInit = fn
	return fn
}

// EmitCategoryInitializer synthesizes a function attaching the members and
// protocols of every pending category to its class. Returns nil when no
// category is pending.
func (b *Bridge) EmitCategoryInitializer() *ir.Func {
	if b.categoryInit != nil || len(b.categoryDecls) == 0 {
		return b.categoryInit
	}
	fn := b.cache.Synthesized(CategoryInitializerName, linkage.Internal, lltypes.NewFunc(lltypes.Void))
	entry := fn.NewBlock("entry")
	for _, ext := range b.categoryDecls {
		b.emitCategory(entry, ext)
	}
	entry.NewRet(nil)
	b.categoryInit = fn
	return fn
}

func (b *Bridge) emitCategory(entry *ir.Block, ext ast.DeclID) {
	i8ptr := b.rt.Int8Ptr
	d := b.tree.Decl(ext)
	cls := castTo(b.host.ClassMetadata(d.Extended), i8ptr)
	meta := castTo(b.host.Metaclass(d.Extended), i8ptr)

	addProtocol := b.cache.RuntimeFunction("class_addProtocol", lltypes.NewFunc(lltypes.I8, i8ptr, i8ptr))
	for _, p := range d.Protocols {
		if !b.isObjCProtocol(p) {
			continue
		}
		entry.NewCall(addProtocol, cls, castTo(b.host.ProtocolRecord(p), i8ptr))
	}

	visible := b.tree.IsObjC(d.Extended)
	for _, m := range d.Members {
		if !b.needsEntryPoint(m, visible) {
			continue
		}
		md := b.tree.Decl(m)
		target := cls
		if md.Flags.Has(ast.FlagStatic) {
			target = meta
		}
		switch md.Kind {
		case ast.DeclFunc, ast.DeclConstructor:
			b.replaceMethod(entry, target, m, Method)
		case ast.DeclVar, ast.DeclSubscript:
			b.replaceMethod(entry, target, m, Getter)
			if md.Flags.Has(ast.FlagSettable) {
				b.replaceMethod(entry, target, m, Setter)
			}
		}
	}
}

func (b *Bridge) replaceMethod(entry *ir.Block, target constant.Constant, member ast.DeclID, acc Accessor) {
	i8ptr := b.rt.Int8Ptr
	replace := b.cache.RuntimeFunction("class_replaceMethod",
		lltypes.NewFunc(i8ptr, i8ptr, i8ptr, i8ptr, i8ptr))
	sel := b.registerSelector(entry, b.Selector(member, acc))
	imp := castTo(b.host.Implementation(member, acc), i8ptr)
	entry.NewCall(replace, target, sel, imp, b.cache.GlobalString(b.TypeEncoding(member, acc)))
}

// registerSelector calls sel_registerName so that the runtime uniques the
// selector before it is used.
func (b *Bridge) registerSelector(entry *ir.Block, name string) value.Value {
	i8ptr := b.rt.Int8Ptr
	reg := b.cache.RuntimeFunction("sel_registerName", lltypes.NewFunc(i8ptr, i8ptr))
	return entry.NewCall(reg, b.cache.GlobalString(name))
}

func (b *Bridge) msgSendType() *lltypes.FuncType {
	i8ptr := b.rt.Int8Ptr
	t := lltypes.NewFunc(i8ptr, i8ptr, i8ptr)
	t.Variadic = true
	return t
}

// EmitLists writes the class, category and non-lazy class lists into their
// runtime sections.
func (b *Bridge) EmitLists() {
	align := ir.Align(b.rt.PointerSize)
	b.cache.EmitList("objc_classes", ClassListSection, enum.LinkageInternal, align, b.classes)
	b.cache.EmitList("objc_categories", CategoryListSection, enum.LinkageInternal, align, b.categories)
	b.cache.EmitList("objc_non_lazy_classes", NonLazyClassListSection, enum.LinkageInternal, align, b.classes)
}
