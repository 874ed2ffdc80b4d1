// Package irtypes holds the IR types shared by every lowering component and
// converts source types to IR types.
package irtypes

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"linkgen/internal/entity"
)

// Runtime is the set of well-known runtime types of one IR module.
type Runtime struct {
	PointerSize int
	SizeT       *types.IntType
	Int8Ptr     *types.PointerType
	Int8PtrPtr  *types.PointerType

	RefCounted    *types.StructType // %swift.refcounted
	RefCountedPtr *types.PointerType
	Opaque        *types.StructType // %swift.opaque
	OpaquePtr     *types.PointerType
	FixedBuffer   *types.StructType // %swift.fixed_buffer

	TypeMetadata    *types.StructType // %swift.type: the address point
	TypeMetadataPtr *types.PointerType
	// FullTypeMetadata prefixes the value witness table: address point at 1.
	FullTypeMetadata *types.StructType
	// FullHeapMetadata prefixes destructor and witness table: address point at 2.
	FullHeapMetadata    *types.StructType
	TypeMetadataPattern *types.StructType

	ObjCClass    *types.StructType // %objc_class
	ObjCClassPtr *types.PointerType

	WitnessTable    *types.PointerType // i8**
	WitnessTablePtr *types.PointerType

	NominalTypeDescriptor *types.StructType
	ProtocolDescriptor    *types.StructType
	ProtocolRecord        *types.StructType
	Existential           *types.StructType

	ThickFunction *types.StructType

	DeallocatingDtor    *types.FuncType
	ValueWitnessTable   *types.ArrayType
	valueWitnessFnTypes [entity.NumValueWitnesses]*types.FuncType
}

// NewRuntime registers the runtime types of a 64-bit target in m.
func NewRuntime(m *ir.Module) *Runtime { return NewRuntimeFor(m, 8) }

// NewRuntimeFor registers the runtime types in m for a target with 4 or 8
// byte pointers.
func NewRuntimeFor(m *ir.Module, pointerSize int) *Runtime {
	sizeT := types.I64
	if pointerSize == 4 {
		sizeT = types.I32
	} else {
		pointerSize = 8
	}
	rt := &Runtime{
		PointerSize: pointerSize,
		SizeT:       sizeT,
		Int8Ptr:     types.NewPointer(types.I8),
		Int8PtrPtr:  types.NewPointer(types.NewPointer(types.I8)),
	}
	named := func(name string, st *types.StructType) *types.StructType {
		m.NewTypeDef(name, st)
		return st
	}

	rt.TypeMetadata = named("swift.type", types.NewStruct(rt.SizeT))
	rt.TypeMetadataPtr = types.NewPointer(rt.TypeMetadata)

	rt.RefCounted = named("swift.refcounted", types.NewStruct(rt.Int8Ptr, rt.SizeT))
	rt.RefCountedPtr = types.NewPointer(rt.RefCounted)
	rt.Opaque = named("swift.opaque", &types.StructType{Opaque: true})
	rt.OpaquePtr = types.NewPointer(rt.Opaque)
	rt.FixedBuffer = named("swift.fixed_buffer", types.NewStruct(types.NewArray(3, rt.Int8Ptr)))

	rt.FullTypeMetadata = named("swift.full_type", types.NewStruct(rt.Int8PtrPtr, rt.TypeMetadata))
	rt.DeallocatingDtor = types.NewFunc(types.Void, rt.RefCountedPtr)
	rt.FullHeapMetadata = named("swift.full_heapmetadata",
		types.NewStruct(types.NewPointer(rt.DeallocatingDtor), rt.Int8PtrPtr, rt.TypeMetadata))
	rt.TypeMetadataPattern = named("swift.type_pattern",
		types.NewStruct(types.I32, types.I32, types.NewArray(16, rt.Int8Ptr)))

	objcClass := &types.StructType{}
	m.NewTypeDef("objc_class", objcClass)
	objcPtr := types.NewPointer(objcClass)
	objcClass.Fields = []types.Type{objcPtr, objcPtr, rt.OpaquePtr, rt.OpaquePtr, rt.SizeT}
	rt.ObjCClass = objcClass
	rt.ObjCClassPtr = objcPtr

	rt.WitnessTable = rt.Int8PtrPtr
	rt.WitnessTablePtr = types.NewPointer(rt.WitnessTable)

	rt.NominalTypeDescriptor = named("swift.type_descriptor", types.NewStruct(rt.SizeT, rt.Int8Ptr))
	rt.ProtocolDescriptor = named("swift.protocol", types.NewStruct(
		rt.Int8Ptr, rt.Int8Ptr, rt.Int8Ptr, rt.Int8Ptr, rt.Int8Ptr,
		rt.Int8Ptr, rt.Int8Ptr, rt.Int8Ptr, types.I32, types.I32))
	rt.ProtocolRecord = named("swift.protocol_record", types.NewStruct(rt.Int8Ptr, types.NewPointer(rt.ProtocolDescriptor)))
	rt.Existential = named("swift.existential", types.NewStruct(rt.FixedBuffer, rt.TypeMetadataPtr, rt.WitnessTable))
	rt.ThickFunction = named("swift.function", types.NewStruct(rt.Int8Ptr, rt.RefCountedPtr))

	rt.ValueWitnessTable = types.NewArray(uint64(entity.NumValueWitnesses), rt.Int8Ptr)
	rt.initValueWitnessTypes()
	return rt
}

func (rt *Runtime) initValueWitnessTypes() {
	buf := types.NewPointer(rt.FixedBuffer)
	obj := rt.OpaquePtr
	md := rt.TypeMetadataPtr
	set := func(w entity.ValueWitness, ret types.Type, params ...types.Type) {
		rt.valueWitnessFnTypes[w] = types.NewFunc(ret, params...)
	}
	set(entity.WitnessDestroyBuffer, types.Void, buf, md)
	set(entity.WitnessInitializeBufferWithCopyOfBuffer, obj, buf, buf, md)
	set(entity.WitnessProjectBuffer, obj, buf, md)
	set(entity.WitnessDeallocateBuffer, types.Void, buf, md)
	set(entity.WitnessDestroy, types.Void, obj, md)
	set(entity.WitnessInitializeBufferWithCopy, obj, buf, obj, md)
	set(entity.WitnessInitializeWithCopy, obj, obj, obj, md)
	set(entity.WitnessAssignWithCopy, obj, obj, obj, md)
	set(entity.WitnessInitializeBufferWithTake, obj, buf, obj, md)
	set(entity.WitnessInitializeWithTake, obj, obj, obj, md)
	set(entity.WitnessAssignWithTake, obj, obj, obj, md)
	set(entity.WitnessAllocateBuffer, obj, buf, md)
	set(entity.WitnessTypeOf, md, obj, md)
}

// ValueWitnessType returns the function type of a function witness, nil for
// the size, flags and stride entries.
func (rt *Runtime) ValueWitnessType(w entity.ValueWitness) *types.FuncType {
	if !w.IsFunction() {
		return nil
	}
	return rt.valueWitnessFnTypes[w]
}
