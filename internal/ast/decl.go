package ast

import (
	"fmt"

	"linkgen/internal/source"
	"linkgen/internal/types"
)

// DeclKind is the closed set of declaration forms.
type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclFunc
	DeclConstructor
	DeclDestructor
	DeclVar
	DeclSubscript
	DeclStruct
	DeclClass
	DeclEnum
	DeclEnumElement
	DeclProtocol
	DeclExtension
	DeclTypeAlias
	DeclOperator
	DeclImport
	DeclTopLevelCode

	declKindCount
)

// DeclKinds lists every valid kind in declaration order.
func DeclKinds() []DeclKind {
	out := make([]DeclKind, 0, declKindCount-1)
	for k := DeclFunc; k < declKindCount; k++ {
		out = append(out, k)
	}
	return out
}

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "func"
	case DeclConstructor:
		return "constructor"
	case DeclDestructor:
		return "destructor"
	case DeclVar:
		return "var"
	case DeclSubscript:
		return "subscript"
	case DeclStruct:
		return "struct"
	case DeclClass:
		return "class"
	case DeclEnum:
		return "enum"
	case DeclEnumElement:
		return "enum-element"
	case DeclProtocol:
		return "protocol"
	case DeclExtension:
		return "extension"
	case DeclTypeAlias:
		return "typealias"
	case DeclOperator:
		return "operator"
	case DeclImport:
		return "import"
	case DeclTopLevelCode:
		return "top-level-code"
	}
	return fmt.Sprintf("DeclKind(%d)", k)
}

// IsNominal reports struct, class, enum and protocol.
func (k DeclKind) IsNominal() bool {
	switch k {
	case DeclStruct, DeclClass, DeclEnum, DeclProtocol:
		return true
	}
	return false
}

type DeclFlags uint16

const (
	FlagStatic      DeclFlags = 1 << iota // static/class member
	FlagObjC                              // visible to the host runtime
	FlagSettable                          // var/subscript has a setter
	FlagComputed                          // var is computed, not stored
	FlagPrivate                           // file-private
	FlagDynamic                           // always dispatched dynamically
	FlagHasPayload                        // enum element carries a value
	FlagTransparent                       // body is inlined at every use
)

func (f DeclFlags) Has(x DeclFlags) bool { return f&x != 0 }

// Decl is one typed declaration. Read-only once the tree is built.
type Decl struct {
	Kind    DeclKind     `msgpack:"k"`
	Name    string       `msgpack:"n"`
	Span    source.Span  `msgpack:"sp"`
	Context ContextID    `msgpack:"cx"`             // declaring context
	Self    ContextID    `msgpack:"self,omitempty"` // context introduced by this decl
	Type    types.TypeID `msgpack:"t,omitempty"`
	Flags   DeclFlags    `msgpack:"f,omitempty"`

	Members      []DeclID        `msgpack:"m,omitempty"`
	Extended     DeclID          `msgpack:"ext,omitempty"` // extension target
	Superclass   types.TypeID    `msgpack:"sup,omitempty"`
	Protocols    []DeclID        `msgpack:"pr,omitempty"` // directly adopted/inherited
	Conformances []ConformanceID `msgpack:"cf,omitempty"`
	Locals       []DeclID        `msgpack:"loc,omitempty"`
	Body         []Stmt          `msgpack:"body,omitempty"`
	Selector     string          `msgpack:"sel,omitempty"` // runtime selector override
}

// Conformance records that Type conforms to Protocol.
type Conformance struct {
	Type      types.TypeID    `msgpack:"t"`
	Protocol  DeclID          `msgpack:"p"`
	Module    ModuleID        `msgpack:"m"`
	Inherited []ConformanceID `msgpack:"inh,omitempty"`
}
