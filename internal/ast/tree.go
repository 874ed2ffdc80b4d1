package ast

import (
	"linkgen/internal/types"
)

// Tree is the typed declaration input of one lowering run. Everything is
// addressed by arena ids. Lowering never mutates the arenas but interns new
// types, so concurrent lowerings each work on their own Fork.
type Tree struct {
	Types        *types.Interner     `msgpack:"-"`
	Modules      *Arena[Module]      `msgpack:"modules"`
	Files        *Arena[File]        `msgpack:"files"`
	Contexts     *Arena[Context]     `msgpack:"contexts"`
	Decls        *Arena[Decl]        `msgpack:"decls"`
	Conformances *Arena[Conformance] `msgpack:"conformances"`
	// External lists declarations used by the source module but defined in
	// a foreign module; they only get metadata.
	External []DeclID `msgpack:"external,omitempty"`
}

func NewTree() *Tree {
	return &Tree{
		Types:        types.NewInterner(),
		Modules:      NewArena[Module](4),
		Files:        NewArena[File](8),
		Contexts:     NewArena[Context](64),
		Decls:        NewArena[Decl](128),
		Conformances: NewArena[Conformance](16),
	}
}

// Fork returns a tree sharing the arenas of t with a private copy of the
// type interner.
func (t *Tree) Fork() *Tree {
	f := *t
	f.Types = t.Types.Clone()
	return &f
}

func (t *Tree) Decl(id DeclID) *Decl                      { return t.Decls.Get(uint32(id)) }
func (t *Tree) Context(id ContextID) *Context             { return t.Contexts.Get(uint32(id)) }
func (t *Tree) Module(id ModuleID) *Module                { return t.Modules.Get(uint32(id)) }
func (t *Tree) File(id FileID) *File                      { return t.Files.Get(uint32(id)) }
func (t *Tree) Conformance(id ConformanceID) *Conformance { return t.Conformances.Get(uint32(id)) }

// ModuleByName finds a module by name.
func (t *Tree) ModuleByName(name string) (ModuleID, bool) {
	for i := range t.Modules.Data {
		if t.Modules.Data[i].Name == name {
			return ModuleID(i + 1), true
		}
	}
	return NoModuleID, false
}

// ModuleOf returns the module a declaration belongs to.
func (t *Tree) ModuleOf(id DeclID) *Module {
	d := t.Decl(id)
	if d == nil {
		return nil
	}
	ctx := t.Context(d.Context)
	if ctx == nil {
		return nil
	}
	return t.Module(ctx.Module)
}

// ModuleKindOf is a shortcut for ModuleOf(id).Kind.
func (t *Tree) ModuleKindOf(id DeclID) ModuleKind {
	if m := t.ModuleOf(id); m != nil {
		return m.Kind
	}
	return 0
}

// IsForeign reports declarations imported from a foreign-language module.
func (t *Tree) IsForeign(id DeclID) bool { return t.ModuleKindOf(id) == ModuleForeign }

// IsSerialized reports declarations from a previously compiled module.
func (t *Tree) IsSerialized(id DeclID) bool { return t.ModuleKindOf(id) == ModuleSerialized }

// OwnerDecl returns the declaration that introduced ctx, if any.
func (t *Tree) OwnerDecl(ctx ContextID) DeclID {
	if c := t.Context(ctx); c != nil {
		return c.Decl
	}
	return NoDeclID
}

// NominalOf returns the nominal declaration a member context belongs to:
// the nominal itself or the target of an extension.
func (t *Tree) NominalOf(ctx ContextID) DeclID {
	c := t.Context(ctx)
	if c == nil {
		return NoDeclID
	}
	switch c.Kind {
	case CtxNominal:
		return c.Decl
	case CtxExtension:
		if d := t.Decl(c.Decl); d != nil {
			return d.Extended
		}
	}
	return NoDeclID
}

// IsTypeContext reports nominal and extension contexts.
func (t *Tree) IsTypeContext(ctx ContextID) bool {
	c := t.Context(ctx)
	return c != nil && (c.Kind == CtxNominal || c.Kind == CtxExtension)
}

// IsGenericContext reports whether ctx or any enclosing context has generic
// parameters.
func (t *Tree) IsGenericContext(ctx ContextID) bool {
	for c := t.Context(ctx); c != nil; c = t.Context(c.Parent) {
		if c.Generic {
			return true
		}
		if c.Kind == CtxExtension {
			if ext := t.Decl(c.Decl); ext != nil {
				if nd := t.Decl(ext.Extended); nd != nil && t.IsGenericContext(nd.Self) {
					return true
				}
			}
		}
	}
	return false
}

// SelfType returns the declared type of the nominal behind a member context.
func (t *Tree) SelfType(ctx ContextID) types.TypeID {
	if nd := t.Decl(t.NominalOf(ctx)); nd != nil {
		return nd.Type
	}
	return types.NoTypeID
}

// DeclOf maps a type-level declaration reference back to a DeclID.
func DeclOf(ref types.DeclRef) DeclID { return DeclID(ref) }

// Ref converts a DeclID into the reference stored inside types.
func Ref(id DeclID) types.DeclRef { return types.DeclRef(id) }

// IsReferenceType reports class declarations.
func (t *Tree) IsReferenceType(id DeclID) bool {
	d := t.Decl(id)
	return d != nil && d.Kind == DeclClass
}

// IsObjC reports whether a class is exposed to the host runtime: marked
// explicitly, imported from a foreign module, or inheriting from such a class.
func (t *Tree) IsObjC(id DeclID) bool {
	seen := make(map[DeclID]bool)
	for cur := id; cur.IsValid() && !seen[cur]; {
		seen[cur] = true
		d := t.Decl(cur)
		if d == nil {
			return false
		}
		if d.Flags.Has(FlagObjC) || (d.Kind == DeclClass && t.IsForeign(cur)) {
			return true
		}
		if d.Kind != DeclClass || d.Superclass == types.NoTypeID {
			return false
		}
		ref, ok := t.Types.NominalDecl(d.Superclass)
		if !ok {
			return false
		}
		cur = DeclOf(ref)
	}
	return false
}

// IsResilient reports whether the layout of a class may change without
// recompiling clients. Only foreign classes are.
func (t *Tree) IsResilient(id DeclID) bool {
	d := t.Decl(id)
	return d != nil && d.Kind == DeclClass && t.IsForeign(id)
}

// QualifiedName joins enclosing nominal names: "Outer.Inner.member".
func (t *Tree) QualifiedName(id DeclID) string {
	d := t.Decl(id)
	if d == nil {
		return ""
	}
	name := d.Name
	for cid := d.Context; cid.IsValid(); {
		c := t.Context(cid)
		if c == nil {
			break
		}
		if c.Kind == CtxNominal || c.Kind == CtxExtension {
			if nd := t.Decl(t.NominalOf(cid)); nd != nil {
				name = nd.Name + "." + name
			}
		}
		cid = c.Parent
	}
	return name
}
