package irtypes

import (
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/diag"
)

// SizeAlign returns the store size and ABI alignment of t on the target.
// Opaque structs have size zero.
func (rt *Runtime) SizeAlign(t lltypes.Type) (size, align uint64) {
	ptr := uint64(rt.PointerSize)
	switch t := t.(type) {
	case *lltypes.IntType:
		size = (t.BitSize + 7) / 8
		if size == 0 {
			size = 1
		}
		align = 1
		for align < size && align < 8 {
			align *= 2
		}
		return roundUp(size, align), align
	case *lltypes.FloatType:
		switch t.Kind {
		case lltypes.FloatKindHalf:
			return 2, 2
		case lltypes.FloatKindFloat:
			return 4, 4
		}
		return 8, 8
	case *lltypes.PointerType, *lltypes.FuncType:
		return ptr, ptr
	case *lltypes.ArrayType:
		es, ea := rt.SizeAlign(t.ElemType)
		return es * t.Len, ea
	case *lltypes.StructType:
		if t.Opaque {
			return 0, 1
		}
		return rt.structLayout(t.Fields)
	}
	diag.Fatalf("irtypes", "no layout for %s", t)
	return 0, 0
}

// FieldOffsets lays out fields after a header of headerSize bytes and
// returns each field's offset.
func (rt *Runtime) FieldOffsets(headerSize uint64, fields []lltypes.Type) []uint64 {
	offsets := make([]uint64, len(fields))
	off := headerSize
	for i, f := range fields {
		s, a := rt.SizeAlign(f)
		off = roundUp(off, a)
		offsets[i] = off
		off += s
	}
	return offsets
}

func (rt *Runtime) structLayout(fields []lltypes.Type) (size, align uint64) {
	align = 1
	for _, f := range fields {
		s, a := rt.SizeAlign(f)
		size = roundUp(size, a)
		size += s
		if a > align {
			align = a
		}
	}
	return roundUp(size, align), align
}

func roundUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
