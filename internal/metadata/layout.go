// Package metadata computes addresses of type metadata and the other
// per-type runtime records.
package metadata

import (
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/irtypes"
)

// LayoutClass selects how a type's metadata record is laid out and where
// its address point sits.
type LayoutClass uint8

const (
	// Pattern is the template a generic type's metadata is instantiated from.
	Pattern LayoutClass = iota
	// Indirect is a pointer slot holding the metadata address.
	Indirect
	// HostClass is a class record owned by the host runtime.
	HostClass
	// HeapDirect is the metadata of a native reference type.
	HeapDirect
	// Direct is the metadata of any other type.
	Direct
	numLayoutClasses
)

func (c LayoutClass) String() string {
	switch c {
	case Pattern:
		return "pattern"
	case Indirect:
		return "indirect"
	case HostClass:
		return "host-class"
	case HeapDirect:
		return "heap-direct"
	case Direct:
		return "direct"
	default:
		return "unknown"
	}
}

// Layout is one row of the layout table.
type Layout struct {
	// Storage is the default type of the record's global.
	Storage func(rt *irtypes.Runtime) lltypes.Type
	// Adjust is the field index of the address point inside Storage.
	Adjust int64
}

var layouts = [numLayoutClasses]Layout{
	Pattern:    {Storage: func(rt *irtypes.Runtime) lltypes.Type { return rt.TypeMetadataPattern }},
	Indirect:   {Storage: func(rt *irtypes.Runtime) lltypes.Type { return rt.TypeMetadataPtr }},
	HostClass:  {Storage: func(rt *irtypes.Runtime) lltypes.Type { return rt.ObjCClass }},
	HeapDirect: {Storage: func(rt *irtypes.Runtime) lltypes.Type { return rt.FullHeapMetadata }, Adjust: 2},
	Direct:     {Storage: func(rt *irtypes.Runtime) lltypes.Type { return rt.FullTypeMetadata }, Adjust: 1},
}

// LayoutOf returns the table row for c.
func LayoutOf(c LayoutClass) Layout {
	if c >= numLayoutClasses {
		return Layout{}
	}
	return layouts[c]
}
