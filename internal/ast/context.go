package ast

import (
	"fmt"

	"linkgen/internal/types"
)

// ContextKind classifies declaration contexts.
type ContextKind uint8

const (
	CtxInvalid ContextKind = iota
	CtxModule
	CtxFile
	CtxNominal
	CtxExtension
	CtxFunction
	CtxClosure
	CtxTopLevelCode
	CtxInitializer
)

func (k ContextKind) String() string {
	switch k {
	case CtxModule:
		return "module"
	case CtxFile:
		return "file"
	case CtxNominal:
		return "nominal"
	case CtxExtension:
		return "extension"
	case CtxFunction:
		return "function"
	case CtxClosure:
		return "closure"
	case CtxTopLevelCode:
		return "top-level-code"
	case CtxInitializer:
		return "initializer"
	}
	return fmt.Sprintf("ContextKind(%d)", k)
}

// IsLocal reports kinds whose declarations are invisible outside the body.
func (k ContextKind) IsLocal() bool {
	switch k {
	case CtxFunction, CtxClosure, CtxTopLevelCode, CtxInitializer:
		return true
	}
	return false
}

// Context is a node of the declaration-context chain. Parent and Decl are
// non-owning indices.
type Context struct {
	Kind    ContextKind  `msgpack:"k"`
	Parent  ContextID    `msgpack:"p,omitempty"`
	Decl    DeclID       `msgpack:"d,omitempty"`
	Module  ModuleID     `msgpack:"m"`
	File    FileID       `msgpack:"f,omitempty"`
	Generic bool         `msgpack:"g,omitempty"`
	Type    types.TypeID `msgpack:"t,omitempty"` // closure type
	Index   uint32       `msgpack:"i,omitempty"` // closure discriminator within the parent
}
