package types

import "fmt"

// TypeID uniquely identifies a canonical type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// DeclRef points at the declaration behind a nominal type. It carries the
// raw value of an ast.DeclID; 0 means none.
type DeclRef uint32

// Kind enumerates the canonical type forms.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindTuple
	KindFunction
	KindPolyFunction
	KindNominal
	KindBoundGeneric
	KindUnboundGeneric
	KindLValue
	KindMetatype
	KindInt
	KindFloat
	KindRawPointer
	KindArchetype
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindTuple:
		return "tuple"
	case KindFunction:
		return "function"
	case KindPolyFunction:
		return "polymorphic-function"
	case KindNominal:
		return "nominal"
	case KindBoundGeneric:
		return "bound-generic"
	case KindUnboundGeneric:
		return "unbound-generic"
	case KindLValue:
		return "lvalue"
	case KindMetatype:
		return "metatype"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindRawPointer:
		return "raw-pointer"
	case KindArchetype:
		return "archetype"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of builtin integers/floats.
type Width uint8

const (
	Width1  Width = 1
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Type is a compact comparable descriptor. List-shaped payloads (tuple
// elements, generic arguments, generic parameters, archetype names) live in
// side tables referenced by Payload.
type Type struct {
	Kind    Kind    `msgpack:"k"`
	Elem    TypeID  `msgpack:"el,omitempty"` // function input, lvalue/metatype object
	Result  TypeID  `msgpack:"r,omitempty"`  // function result
	Parent  TypeID  `msgpack:"p,omitempty"`  // enclosing nominal type
	Decl    DeclRef `msgpack:"d,omitempty"`
	Width   Width   `msgpack:"w,omitempty"`
	Payload uint32  `msgpack:"pl,omitempty"`
}

// GenericParam is one parameter of a polymorphic function type.
type GenericParam struct {
	Name       string    `msgpack:"n"`
	Protocols  []DeclRef `msgpack:"ps,omitempty"`
	Superclass TypeID    `msgpack:"sc,omitempty"`
}

// IsFunction reports whether t is a monomorphic or polymorphic function.
func (t Type) IsFunction() bool {
	return t.Kind == KindFunction || t.Kind == KindPolyFunction
}
