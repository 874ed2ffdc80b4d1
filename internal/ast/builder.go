package ast

import (
	"linkgen/internal/source"
	"linkgen/internal/types"
)

// Builder assembles a Tree. The frontend that produces unit files and the
// tests both go through it, so parent links and member lists stay in sync.
type Builder struct {
	Tree *Tree
}

func NewBuilder() *Builder {
	return &Builder{Tree: NewTree()}
}

// Types is a shortcut for the tree's interner.
func (b *Builder) Types() *types.Interner { return b.Tree.Types }

func (b *Builder) newContext(c Context) ContextID {
	return ContextID(b.Tree.Contexts.Allocate(c))
}

// AddModule creates a module with its root context.
func (b *Builder) AddModule(name string, kind ModuleKind) ModuleID {
	id := ModuleID(b.Tree.Modules.Allocate(Module{Name: name, Kind: kind}))
	ctx := b.newContext(Context{Kind: CtxModule, Module: id})
	b.Tree.Module(id).Context = ctx
	return id
}

// AddFile creates a source file inside mod.
func (b *Builder) AddFile(mod ModuleID, name string, kind FileKind) FileID {
	m := b.Tree.Module(mod)
	id := FileID(b.Tree.Files.Allocate(File{Name: name, Kind: kind, Module: mod}))
	ctx := b.newContext(Context{Kind: CtxFile, Parent: m.Context, Module: mod, File: id})
	b.Tree.File(id).Context = ctx
	m.Files = append(m.Files, id)
	return id
}

// FileContext returns the context of a file.
func (b *Builder) FileContext(f FileID) ContextID { return b.Tree.File(f).Context }

// ModuleContext returns the root context of a module.
func (b *Builder) ModuleContext(m ModuleID) ContextID { return b.Tree.Module(m).Context }

func selfContextKind(k DeclKind) (ContextKind, bool) {
	switch k {
	case DeclStruct, DeclClass, DeclEnum, DeclProtocol:
		return CtxNominal, true
	case DeclExtension:
		return CtxExtension, true
	case DeclFunc, DeclConstructor, DeclDestructor, DeclSubscript:
		return CtxFunction, true
	case DeclTopLevelCode:
		return CtxTopLevelCode, true
	}
	return CtxInvalid, false
}

// AddDecl allocates a declaration in ctx and links it into its parent: file
// decls, nominal members or function locals.
func (b *Builder) AddDecl(kind DeclKind, name string, ctx ContextID, typ types.TypeID) DeclID {
	parent := b.Tree.Context(ctx)
	id := DeclID(b.Tree.Decls.Allocate(Decl{Kind: kind, Name: name, Context: ctx, Type: typ}))
	d := b.Tree.Decl(id)
	d.Span = source.Span{File: parent.File, Start: uint32(id), End: uint32(id) + 1}
	if ck, ok := selfContextKind(kind); ok {
		self := b.newContext(Context{Kind: ck, Parent: ctx, Decl: id, Module: parent.Module, File: parent.File})
		b.Tree.Decl(id).Self = self
	}
	switch parent.Kind {
	case CtxFile:
		f := b.Tree.File(parent.File)
		f.Decls = append(f.Decls, id)
	case CtxNominal, CtxExtension:
		owner := b.Tree.Decl(parent.Decl)
		owner.Members = append(owner.Members, id)
	case CtxFunction, CtxTopLevelCode, CtxClosure, CtxInitializer:
		if owner := b.Tree.Decl(parent.Decl); owner != nil {
			owner.Locals = append(owner.Locals, id)
		}
	}
	return id
}

// Nominal declares a struct, class, enum or protocol and assigns its
// declared type. Nested nominals get the enclosing type as parent.
func (b *Builder) Nominal(kind DeclKind, name string, ctx ContextID) DeclID {
	id := b.AddDecl(kind, name, ctx, types.NoTypeID)
	parent := types.NoTypeID
	if b.Tree.IsTypeContext(ctx) {
		parent = b.Tree.SelfType(ctx)
	}
	b.Tree.Decl(id).Type = b.Types().Nominal(Ref(id), parent)
	return id
}

// MakeGeneric marks a nominal or function as having generic parameters.
// Nominals switch to an unbound generic declared type.
func (b *Builder) MakeGeneric(id DeclID) {
	d := b.Tree.Decl(id)
	if c := b.Tree.Context(d.Self); c != nil {
		c.Generic = true
	}
	if d.Kind.IsNominal() {
		tt := b.Types().MustLookup(d.Type)
		d.Type = b.Types().UnboundGeneric(Ref(id), tt.Parent)
	}
}

// Class declares a class with an optional superclass type.
func (b *Builder) Class(name string, ctx ContextID, super types.TypeID) DeclID {
	id := b.Nominal(DeclClass, name, ctx)
	b.Tree.Decl(id).Superclass = super
	return id
}

// Extension declares an extension of nominal in ctx.
func (b *Builder) Extension(nominal DeclID, ctx ContextID) DeclID {
	nd := b.Tree.Decl(nominal)
	id := b.AddDecl(DeclExtension, nd.Name, ctx, nd.Type)
	b.Tree.Decl(id).Extended = nominal
	return id
}

// Func declares a function, method or accessor-less member of type fn.
func (b *Builder) Func(name string, ctx ContextID, fn types.TypeID) DeclID {
	return b.AddDecl(DeclFunc, name, ctx, fn)
}

// Var declares a variable of the given value type.
func (b *Builder) Var(name string, ctx ContextID, typ types.TypeID, flags DeclFlags) DeclID {
	id := b.AddDecl(DeclVar, name, ctx, typ)
	b.Tree.Decl(id).Flags |= flags
	return id
}

// Conform records that the declared type of nominal conforms to proto,
// attaching the conformance to owner (the nominal or one of its extensions).
func (b *Builder) Conform(owner, nominal, proto DeclID, inherited ...ConformanceID) ConformanceID {
	od := b.Tree.Decl(owner)
	ctx := b.Tree.Context(od.Context)
	id := ConformanceID(b.Tree.Conformances.Allocate(Conformance{
		Type:      b.Tree.Decl(nominal).Type,
		Protocol:  proto,
		Module:    ctx.Module,
		Inherited: append([]ConformanceID(nil), inherited...),
	}))
	od.Conformances = append(od.Conformances, id)
	od.Protocols = append(od.Protocols, proto)
	return id
}

// Closure opens an anonymous closure context inside a function-like decl.
func (b *Builder) Closure(owner DeclID, fn types.TypeID) ContextID {
	od := b.Tree.Decl(owner)
	parent := b.Tree.Context(od.Self)
	var index uint32
	for i := range b.Tree.Contexts.Data {
		c := &b.Tree.Contexts.Data[i]
		if c.Kind == CtxClosure && c.Parent == od.Self {
			index++
		}
	}
	return b.newContext(Context{
		Kind: CtxClosure, Parent: od.Self, Module: parent.Module, File: parent.File,
		Type: fn, Index: index,
	})
}

// AddExternal marks a foreign declaration as referenced by the source module.
func (b *Builder) AddExternal(id DeclID) {
	b.Tree.External = append(b.Tree.External, id)
}

// Flag sets flags on a declaration and returns it for chaining.
func (b *Builder) Flag(id DeclID, flags DeclFlags) DeclID {
	b.Tree.Decl(id).Flags |= flags
	return id
}
