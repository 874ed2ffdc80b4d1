// Package interop registers classes and extension categories with the host
// object runtime.
package interop

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/irtypes"
)

// Accessor selects which implementation of a member is registered.
type Accessor uint8

const (
	Method Accessor = iota
	Getter
	Setter
)

func (a Accessor) String() string {
	switch a {
	case Getter:
		return "getter"
	case Setter:
		return "setter"
	}
	return "method"
}

// Host resolves the symbols a registration refers to. The lowering context
// implements it on top of its artifact accessors.
type Host interface {
	Implementation(member ast.DeclID, acc Accessor) constant.Constant
	ClassMetadata(class ast.DeclID) constant.Constant
	Metaclass(class ast.DeclID) constant.Constant
	ProtocolRecord(proto ast.DeclID) constant.Constant
}

// Bridge holds the pending interop lists of one compilation unit.
type Bridge struct {
	tree  *ast.Tree
	cache *artifact.Cache
	rt    *irtypes.Runtime
	host  Host

	classes       []constant.Constant
	categories    []constant.Constant
	categoryDecls []ast.DeclID

	classInit    *ir.Func
	categoryInit *ir.Func
}

func New(tree *ast.Tree, cache *artifact.Cache, rt *irtypes.Runtime, host Host) *Bridge {
	return &Bridge{tree: tree, cache: cache, rt: rt, host: host}
}

// AddClass queues a class record for load-time registration.
func (b *Bridge) AddClass(cls constant.Constant) {
	b.classes = append(b.classes, cls)
}

// AddExtension queues a category for ext if it needs one and reports
// whether it did.
func (b *Bridge) AddExtension(ext ast.DeclID) bool {
	if !b.RequiresCategory(ext) {
		return false
	}
	b.categories = append(b.categories, b.categoryData(ext))
	b.categoryDecls = append(b.categoryDecls, ext)
	return true
}

func (b *Bridge) Classes() []constant.Constant    { return b.classes }
func (b *Bridge) Categories() []constant.Constant { return b.categories }
func (b *Bridge) CategoryDecls() []ast.DeclID     { return b.categoryDecls }

// Empty reports whether nothing is pending.
func (b *Bridge) Empty() bool {
	return len(b.classes) == 0 && len(b.categoryDecls) == 0
}

// Reset clears the pending lists after they were drained.
func (b *Bridge) Reset() {
	b.classes = nil
	b.categories = nil
	b.categoryDecls = nil
	b.classInit = nil
	b.categoryInit = nil
}
