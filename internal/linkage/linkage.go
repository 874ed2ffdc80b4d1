// Package linkage decides symbol names, linkage and visibility for entity keys.
package linkage

import (
	"github.com/llir/llvm/ir/enum"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/mangle"
	"linkgen/internal/types"
)

type Linkage uint8

const (
	Internal Linkage = iota + 1
	// LinkOnce symbols may be emitted by several units; the linker keeps one.
	LinkOnce
	External
)

func (l Linkage) String() string {
	switch l {
	case Internal:
		return "internal"
	case LinkOnce:
		return "linkonce_odr"
	case External:
		return "external"
	}
	return "unknown"
}

// IR maps to the llir linkage enum. External maps to the unmarked default,
// which is external for definitions; declarations are marked when the
// module is sealed.
func (l Linkage) IR() enum.Linkage {
	switch l {
	case Internal:
		return enum.LinkageInternal
	case LinkOnce:
		return enum.LinkageLinkOnceODR
	}
	return enum.LinkageNone
}

type Visibility uint8

const (
	Default Visibility = iota + 1
	Hidden
)

func (v Visibility) String() string {
	if v == Hidden {
		return "hidden"
	}
	return "default"
}

func (v Visibility) IR() enum.Visibility {
	if v == Hidden {
		return enum.VisibilityHidden
	}
	return enum.VisibilityDefault
}

// Info is the linkage record of one artifact.
type Info struct {
	Name       string
	Linkage    Linkage
	Visibility Visibility
}

// Policy evaluates the linkage decision table. It memoizes locality per
// declaration and type; safe only within one lowering Context.
type Policy struct {
	tree      *ast.Tree
	mangler   mangle.Mangler
	localDecl map[ast.DeclID]bool
	localType map[types.TypeID]bool
}

func New(tree *ast.Tree, m mangle.Mangler) *Policy {
	return &Policy{
		tree:      tree,
		mangler:   m,
		localDecl: make(map[ast.DeclID]bool),
		localType: make(map[types.TypeID]bool),
	}
}

// Get returns the name, linkage and visibility for k.
func (p *Policy) Get(k entity.Key) Info {
	info := Info{Name: p.mangler.Mangle(k)}
	switch {
	case p.IsLocal(k):
		info.Linkage, info.Visibility = Internal, Default
	case k.Kind.IsValueWitness():
		info.Linkage, info.Visibility = LinkOnce, Hidden
	case p.IsThunk(k):
		info.Linkage, info.Visibility = LinkOnce, Hidden
	case k.Kind.IsDeclKind() && p.tree.IsSerialized(k.Decl):
		info.Linkage, info.Visibility = LinkOnce, Hidden
	default:
		info.Linkage, info.Visibility = External, Default
	}
	return info
}

// IsLocal reports whether k is invisible outside the current unit.
func (p *Policy) IsLocal(k entity.Key) bool {
	switch {
	case k.Kind.IsDeclKind():
		return p.IsLocalDecl(k.Decl)
	case k.Kind == entity.KindBridgeShim:
		return true
	case k.Kind.IsTypeKind():
		return p.IsLocalType(k.Type)
	}
	// anonymous functions and every conformance entity
	return false
}

// IsLocalDecl reports declarations inside a function, closure, top-level
// code or initializer context, or nested in a private declaration.
func (p *Policy) IsLocalDecl(id ast.DeclID) bool {
	if v, ok := p.localDecl[id]; ok {
		return v
	}
	p.localDecl[id] = false // breaks cycles through extensions
	v := p.computeLocalDecl(id)
	p.localDecl[id] = v
	return v
}

func (p *Policy) computeLocalDecl(id ast.DeclID) bool {
	d := p.tree.Decl(id)
	if d == nil {
		return false
	}
	if d.Flags.Has(ast.FlagPrivate) {
		return true
	}
	for cid := d.Context; cid.IsValid(); {
		c := p.tree.Context(cid)
		if c == nil {
			break
		}
		if c.Kind.IsLocal() {
			return true
		}
		switch c.Kind {
		case ast.CtxNominal:
			if owner := p.tree.Decl(c.Decl); owner != nil && owner.Flags.Has(ast.FlagPrivate) {
				return true
			}
		case ast.CtxExtension:
			if ext := p.tree.Decl(c.Decl); ext != nil && p.IsLocalDecl(ext.Extended) {
				return true
			}
		}
		cid = c.Parent
	}
	return false
}

// IsLocalType reports types that reach a local declaration through a
// nominal reference or a generic parameter's protocol or superclass bound.
func (p *Policy) IsLocalType(id types.TypeID) bool {
	if v, ok := p.localType[id]; ok {
		return v
	}
	p.localType[id] = false
	in := p.tree.Types
	v := in.FindIf(id, func(cur types.TypeID, tt types.Type) bool {
		switch tt.Kind {
		case types.KindNominal, types.KindBoundGeneric, types.KindUnboundGeneric:
			return p.IsLocalDecl(ast.DeclOf(tt.Decl))
		case types.KindPolyFunction:
			for _, gp := range in.GenericParams(cur) {
				for _, proto := range gp.Protocols {
					if p.IsLocalDecl(ast.DeclOf(proto)) {
						return true
					}
				}
				if gp.Superclass != types.NoTypeID && p.IsLocalType(gp.Superclass) {
					return true
				}
			}
		}
		return false
	})
	p.localType[id] = v
	return v
}

// IsThunk reports artifacts that every unit using a foreign declaration
// emits for itself.
func (p *Policy) IsThunk(k entity.Key) bool {
	switch {
	case k.Kind == entity.KindNominalTypeDescriptor || k.Kind == entity.KindProtocolDescriptor:
		return p.tree.IsForeign(k.Decl)
	case k.Kind.IsDeclKind():
		if !p.tree.IsForeign(k.Decl) {
			return false
		}
		d := p.tree.Decl(k.Decl)
		switch d.Kind {
		case ast.DeclConstructor, ast.DeclSubscript:
			return true
		case ast.DeclVar:
			return d.Flags.Has(ast.FlagComputed)
		}
		return false
	case k.Kind.IsTypeKind():
		ref, ok := p.tree.Types.NominalDecl(k.Type)
		return ok && p.tree.IsForeign(ast.DeclOf(ref))
	}
	return false
}
