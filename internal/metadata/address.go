package metadata

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/irtypes"
	"linkgen/internal/types"
)

// Addresser hands out addresses of runtime records through the artifact
// cache.
type Addresser struct {
	tree  *ast.Tree
	cache *artifact.Cache
	rt    *irtypes.Runtime
}

func New(tree *ast.Tree, cache *artifact.Cache, rt *irtypes.Runtime) *Addresser {
	return &Addresser{tree: tree, cache: cache, rt: rt}
}

// Classify picks the layout class of a type's metadata.
func (a *Addresser) Classify(t types.TypeID, pattern, indirect bool) LayoutClass {
	switch {
	case pattern:
		return Pattern
	case indirect:
		return Indirect
	}
	ref, ok := a.tree.Types.NominalDecl(t)
	if !ok {
		return Direct
	}
	id := ast.DeclOf(ref)
	if !a.tree.IsReferenceType(id) {
		return Direct
	}
	if a.tree.IsObjC(id) {
		return HostClass
	}
	return HeapDirect
}

// TypeMetadata returns the address of a type's metadata.
//
// With a nil storage type the result is the address point: an in-bounds
// GEP (0, adjust) over the record for direct layouts. A non-nil storage
// type requests the definition, and the global itself is returned.
func (a *Addresser) TypeMetadata(t types.TypeID, storage lltypes.Type, pattern, indirect bool) constant.Constant {
	class := a.Classify(t, pattern, indirect)
	row := LayoutOf(class)
	def := row.Storage(a.rt)

	key := entity.ForTypeMetadata(t, indirect, pattern)
	if class == HostClass {
		ref, _ := a.tree.Types.NominalDecl(t)
		key = entity.ForObjCClass(ast.DeclOf(ref))
	}
	addr := a.cache.Variable(key, storage, def, lltypes.NewPointer(def))
	if storage != nil || row.Adjust == 0 {
		return addr
	}
	return addressPoint(def, addr, row.Adjust)
}

func addressPoint(storage lltypes.Type, addr constant.Constant, adjust int64) constant.Constant {
	gep := constant.NewGetElementPtr(storage, addr,
		constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, adjust))
	gep.InBounds = true
	return gep
}

// ObjCClass returns the host runtime's class record for a class.
func (a *Addresser) ObjCClass(id ast.DeclID) constant.Constant {
	return a.cache.Variable(entity.ForObjCClass(id), nil, a.rt.ObjCClass, a.rt.ObjCClassPtr)
}

// Metaclass returns the metaclass object of a class: the host runtime's
// metaclass for runtime-visible classes, a native stub otherwise.
func (a *Addresser) Metaclass(id ast.DeclID) constant.Constant {
	key := entity.ForMetaclassStub(id)
	if a.tree.IsObjC(id) {
		key = entity.ForObjCMetaclass(id)
	}
	return a.cache.Variable(key, nil, a.rt.ObjCClass, a.rt.ObjCClassPtr)
}

// NominalTypeDescriptor returns the descriptor of a nominal declaration.
func (a *Addresser) NominalTypeDescriptor(id ast.DeclID, storage lltypes.Type) constant.Constant {
	d := a.tree.Decl(id)
	if d == nil || !d.Kind.IsNominal() {
		diag.Fatalf("metadata", "type descriptor requested for non-nominal declaration %d", id)
	}
	td := a.rt.NominalTypeDescriptor
	return a.cache.Variable(entity.ForNominalTypeDescriptor(id), storage, td, lltypes.NewPointer(td))
}

// ProtocolDescriptor returns the descriptor of a protocol, defining it when
// forDefinition is set.
func (a *Addresser) ProtocolDescriptor(id ast.DeclID, forDefinition bool) constant.Constant {
	pd := a.rt.ProtocolDescriptor
	var storage lltypes.Type
	if forDefinition {
		storage = pd
	}
	return a.cache.Variable(entity.ForProtocolDescriptor(id), storage, pd, lltypes.NewPointer(pd))
}

// ProtocolRecord returns the conformance record of a protocol.
func (a *Addresser) ProtocolRecord(id ast.DeclID, storage lltypes.Type) constant.Constant {
	pr := a.rt.ProtocolRecord
	return a.cache.Variable(entity.ForProtocolRecord(id), storage, pr, lltypes.NewPointer(pr))
}

// ValueWitnessTable returns the value witness table of a type.
func (a *Addresser) ValueWitnessTable(t types.TypeID, storage lltypes.Type) constant.Constant {
	vwt := a.rt.ValueWitnessTable
	return a.cache.Variable(entity.ForValueWitnessTable(t), storage, vwt, lltypes.NewPointer(vwt))
}

// ValueWitness returns one function of a type's value witness table.
func (a *Addresser) ValueWitness(t types.TypeID, w entity.ValueWitness) *ir.Func {
	if !w.IsFunction() {
		diag.Fatalf("metadata", "value witness %s is not a function", w.Code())
	}
	sig := a.rt.ValueWitnessType(w)
	return a.cache.Function(entity.ForValueWitness(t, w), sig, enum.CallingConvC)
}

// WitnessTable returns the direct witness table of a conformance.
func (a *Addresser) WitnessTable(c ast.ConformanceID, storage lltypes.Type) constant.Constant {
	return a.cache.Variable(entity.ForDirectWitnessTable(c), storage, a.rt.Int8Ptr, a.rt.WitnessTable)
}

// FieldOffset returns the global holding the offset of a stored property.
func (a *Addresser) FieldOffset(id ast.DeclID, indirect bool) *ir.Global {
	return a.cache.SimpleVariable(entity.ForFieldOffset(id, indirect), a.rt.SizeT, a.pointerAlign())
}

// WitnessTableOffset returns the global holding a member's slot offset in
// its protocol's witness table.
func (a *Addresser) WitnessTableOffset(id ast.DeclID, e entity.Explosion, uncurry uint16) *ir.Global {
	return a.cache.SimpleVariable(entity.ForWitnessTableOffset(id, e, uncurry), a.rt.SizeT, a.pointerAlign())
}

func (a *Addresser) pointerAlign() ir.Align { return ir.Align(a.rt.PointerSize) }
