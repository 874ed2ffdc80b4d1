// Package abi computes formal signatures of declarations and flattens them
// into IR function types.
package abi

import (
	"github.com/llir/llvm/ir/enum"

	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/irtypes"
	"linkgen/internal/types"
)

// CC is the abstract calling convention of a formal signature.
type CC uint8

const (
	Freestanding CC = iota + 1
	Method
)

func (c CC) String() string {
	if c == Method {
		return "method"
	}
	return "freestanding"
}

// IR maps both conventions to the C convention; self travels as the last
// ordinary parameter.
func (c CC) IR() enum.CallingConv { return enum.CallingConvC }

// FormalSignature is the lowered logical type of an entity.
type FormalSignature struct {
	Type    types.TypeID
	CC      CC
	Uncurry uint16
}

// Lowerer computes formal signatures. It is pure: equal inputs give equal
// signatures.
type Lowerer struct {
	tree *ast.Tree
	conv *irtypes.Converter
}

func NewLowerer(tree *ast.Tree, conv *irtypes.Converter) *Lowerer {
	return &Lowerer{tree: tree, conv: conv}
}

func (l *Lowerer) in() *types.Interner { return l.tree.Types }

// Lower returns the signature of a function-like declaration.
func (l *Lowerer) Lower(id ast.DeclID) FormalSignature {
	d := l.mustDecl(id)
	switch d.Kind {
	case ast.DeclSubscript:
		// a subscript used as a value is its getter
		return l.Getter(id)
	case ast.DeclConstructor:
		return l.Constructor(id, entity.Allocating)
	case ast.DeclDestructor:
		return l.Destroyer(id)
	case ast.DeclEnumElement:
		return l.Injection(id)
	}
	return l.addReceiver(d, FormalSignature{Type: d.Type, CC: Freestanding})
}

// Getter is "() -> T" for variables and "(Index) -> () -> T" for subscripts.
func (l *Lowerer) Getter(id ast.DeclID) FormalSignature {
	d := l.mustDecl(id)
	in := l.in()
	value, index := l.storage(d)
	sig := FormalSignature{Type: in.Function(in.Unit(), value), CC: Freestanding}
	if index != types.NoTypeID {
		sig.Type = in.Function(index, sig.Type)
		sig.Uncurry++
	}
	return l.addReceiver(d, sig)
}

// Setter is "(T) -> ()" for variables and "(Index) -> (T) -> ()" for subscripts.
func (l *Lowerer) Setter(id ast.DeclID) FormalSignature {
	d := l.mustDecl(id)
	in := l.in()
	value, index := l.storage(d)
	sig := FormalSignature{Type: in.Function(value, in.Unit()), CC: Freestanding}
	if index != types.NoTypeID {
		sig.Type = in.Function(index, sig.Type)
		sig.Uncurry++
	}
	return l.addReceiver(d, sig)
}

// Constructor: allocating constructors take the metatype, initializing ones
// the instance.
func (l *Lowerer) Constructor(id ast.DeclID, kind entity.ConstructorKind) FormalSignature {
	d := l.mustDecl(id)
	self := l.tree.SelfType(d.Context)
	recv := self
	if kind == entity.Allocating {
		recv = l.in().Metatype(self)
	}
	return l.wrap(d.Context, FormalSignature{Type: d.Type, CC: Method}, recv)
}

// Destroyer is "(Self) -> ()"; deallocating destructors use the fixed
// runtime type instead, see irtypes.Runtime.DeallocatingDtor.
func (l *Lowerer) Destroyer(id ast.DeclID) FormalSignature {
	d := l.mustDecl(id)
	in := l.in()
	return l.wrap(d.Context, FormalSignature{Type: in.Function(in.Unit(), in.Unit()), CC: Method},
		l.tree.SelfType(d.Context))
}

// Injection builds an enum value from an element: "(Self.Type) -> Self" or,
// with a payload, "(Self.Type) -> (Payload) -> Self".
func (l *Lowerer) Injection(id ast.DeclID) FormalSignature {
	d := l.mustDecl(id)
	in := l.in()
	self := l.tree.SelfType(d.Context)
	if !d.Flags.Has(ast.FlagHasPayload) {
		return FormalSignature{Type: in.Function(in.Metatype(self), self), CC: Freestanding}
	}
	return FormalSignature{
		Type:    in.Function(in.Metatype(self), in.Function(d.Type, self)),
		CC:      Freestanding,
		Uncurry: 1,
	}
}

// Closure lowers an anonymous function context.
func (l *Lowerer) Closure(ctx ast.ContextID) FormalSignature {
	c := l.tree.Context(ctx)
	if c == nil {
		diag.Fatalf("abi", "invalid closure context %d", ctx)
	}
	return FormalSignature{Type: c.Type, CC: Freestanding}
}

// storage returns the value type and, for subscripts, the index type.
func (l *Lowerer) storage(d *ast.Decl) (value, index types.TypeID) {
	if d.Kind != ast.DeclSubscript {
		return d.Type, types.NoTypeID
	}
	tt := l.in().MustLookup(d.Type)
	return tt.Result, tt.Elem
}

func (l *Lowerer) addReceiver(d *ast.Decl, sig FormalSignature) FormalSignature {
	if !l.tree.IsTypeContext(d.Context) {
		return sig
	}
	sig.CC = Method
	return l.wrap(d.Context, sig, l.receiver(d))
}

// receiver: metatype for static members, the instance for classes and
// protocol members, an lvalue for value types.
func (l *Lowerer) receiver(d *ast.Decl) types.TypeID {
	in := l.in()
	nominal := l.tree.Decl(l.tree.NominalOf(d.Context))
	self := nominal.Type
	if nominal.Kind == ast.DeclProtocol {
		self = in.Archetype("Self")
	}
	switch {
	case d.Flags.Has(ast.FlagStatic):
		return in.Metatype(self)
	case nominal.Kind == ast.DeclClass || nominal.Kind == ast.DeclProtocol:
		return self
	}
	return in.LValue(self)
}

// wrap prepends a receiver clause, polymorphic when the context is generic.
func (l *Lowerer) wrap(ctx ast.ContextID, sig FormalSignature, recv types.TypeID) FormalSignature {
	in := l.in()
	nominal := l.tree.NominalOf(ctx)
	switch {
	case l.tree.Decl(nominal) != nil && l.tree.Decl(nominal).Kind == ast.DeclProtocol:
		sig.Type = in.PolyFunction([]types.GenericParam{{Name: "Self", Protocols: []types.DeclRef{ast.Ref(nominal)}}}, recv, sig.Type)
	case l.tree.IsGenericContext(ctx):
		sig.Type = in.PolyFunction([]types.GenericParam{{Name: "Self"}}, recv, sig.Type)
	default:
		sig.Type = in.Function(recv, sig.Type)
	}
	sig.Uncurry++
	return sig
}

func (l *Lowerer) mustDecl(id ast.DeclID) *ast.Decl {
	d := l.tree.Decl(id)
	if d == nil {
		diag.Fatalf("abi", "invalid declaration %d", id)
	}
	return d
}
