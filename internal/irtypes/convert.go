package irtypes

import (
	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/types"
)

// Converter maps canonical source types to IR types. Nominal value types
// become named structs over their stored fields.
type Converter struct {
	Runtime *Runtime
	tree    *ast.Tree
	mod     *ir.Module
	cache   map[types.TypeID]lltypes.Type
	named   map[ast.DeclID]*lltypes.StructType
}

func NewConverter(tree *ast.Tree, m *ir.Module, rt *Runtime) *Converter {
	return &Converter{
		Runtime: rt,
		tree:    tree,
		mod:     m,
		cache:   make(map[types.TypeID]lltypes.Type),
		named:   make(map[ast.DeclID]*lltypes.StructType),
	}
}

// Convert returns the IR storage type of id.
func (c *Converter) Convert(id types.TypeID) lltypes.Type {
	if t, ok := c.cache[id]; ok {
		return t
	}
	t := c.convert(id)
	c.cache[id] = t
	return t
}

func (c *Converter) convert(id types.TypeID) lltypes.Type {
	in := c.tree.Types
	tt, ok := in.Lookup(id)
	if !ok {
		return lltypes.NewStruct()
	}
	switch tt.Kind {
	case types.KindTuple:
		elems := in.Elems(id)
		fields := make([]lltypes.Type, len(elems))
		for i, e := range elems {
			fields[i] = c.Convert(e)
		}
		return lltypes.NewStruct(fields...)
	case types.KindFunction, types.KindPolyFunction:
		return c.Runtime.ThickFunction
	case types.KindNominal, types.KindBoundGeneric, types.KindUnboundGeneric:
		return c.nominal(ast.DeclOf(tt.Decl))
	case types.KindLValue:
		return lltypes.NewPointer(c.Convert(tt.Elem))
	case types.KindMetatype:
		return c.Runtime.TypeMetadataPtr
	case types.KindInt:
		return lltypes.NewInt(uint64(tt.Width))
	case types.KindFloat:
		switch tt.Width {
		case types.Width16:
			return lltypes.Half
		case types.Width32:
			return lltypes.Float
		}
		return lltypes.Double
	case types.KindRawPointer:
		return c.Runtime.Int8Ptr
	case types.KindArchetype:
		return c.Runtime.OpaquePtr
	}
	diag.Fatalf("irtypes", "cannot convert %s", tt.Kind)
	return nil
}

func (c *Converter) nominal(id ast.DeclID) lltypes.Type {
	d := c.tree.Decl(id)
	if d == nil {
		return c.Runtime.OpaquePtr
	}
	switch d.Kind {
	case ast.DeclClass:
		return c.Runtime.RefCountedPtr
	case ast.DeclProtocol:
		return c.Runtime.Existential
	}
	if st, ok := c.named[id]; ok {
		return st
	}
	st := &lltypes.StructType{}
	c.mod.NewTypeDef(c.tree.ModuleOf(id).Name+"."+c.tree.QualifiedName(id), st)
	c.named[id] = st
	if d.Kind == ast.DeclEnum {
		st.Fields = []lltypes.Type{c.Runtime.SizeT}
		return st
	}
	for _, m := range d.Members {
		md := c.tree.Decl(m)
		if md.Kind != ast.DeclVar || md.Flags.Has(ast.FlagComputed) || md.Flags.Has(ast.FlagStatic) {
			continue
		}
		st.Fields = append(st.Fields, c.Convert(md.Type))
	}
	return st
}

// IsAddressOnly reports types that must be passed indirectly.
func (c *Converter) IsAddressOnly(id types.TypeID) bool {
	tt, ok := c.tree.Types.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindArchetype:
		return true
	case types.KindNominal, types.KindBoundGeneric, types.KindUnboundGeneric:
		d := c.tree.Decl(ast.DeclOf(tt.Decl))
		return d != nil && d.Kind == ast.DeclProtocol
	case types.KindTuple:
		for _, e := range c.tree.Types.Elems(id) {
			if c.IsAddressOnly(e) {
				return true
			}
		}
	}
	return false
}

// IsReference reports class types.
func (c *Converter) IsReference(id types.TypeID) bool {
	ref, ok := c.tree.Types.NominalDecl(id)
	return ok && c.tree.IsReferenceType(ast.DeclOf(ref))
}
