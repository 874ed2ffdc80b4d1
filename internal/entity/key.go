package entity

import (
	"fmt"

	"linkgen/internal/ast"
	"linkgen/internal/types"
)

// Key identifies one artifact. It is comparable; equal keys always denote
// the same symbol. Types are interned, so canonical types compare by id.
type Key struct {
	Kind        Kind
	Decl        ast.DeclID
	Context     ast.ContextID
	Type        types.TypeID
	Conformance ast.ConformanceID
	Explosion   Explosion
	Uncurry     uint16
	Variant     uint8 // ConstructorKind or DestructorKind
	Index       uint32
	Indirect    bool
	Pattern     bool
}

func ForFunction(d ast.DeclID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindFunction, Decl: d, Explosion: e, Uncurry: uncurry}
}

func ForGetter(d ast.DeclID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindGetter, Decl: d, Explosion: e, Uncurry: uncurry}
}

func ForSetter(d ast.DeclID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindSetter, Decl: d, Explosion: e, Uncurry: uncurry}
}

func ForConstructor(d ast.DeclID, kind ConstructorKind, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindConstructor, Decl: d, Variant: uint8(kind), Explosion: e, Uncurry: uncurry}
}

// ForDestructor keys a class destructor; deallocating destructors have a
// fixed signature so explosion and uncurry do not apply.
func ForDestructor(d ast.DeclID, kind DestructorKind) Key {
	return Key{Kind: KindDestructor, Decl: d, Variant: uint8(kind)}
}

// ForInjection keys the function that builds an enum value from an element.
func ForInjection(d ast.DeclID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindInjection, Decl: d, Explosion: e, Uncurry: uncurry}
}

func ForGlobalVariable(d ast.DeclID) Key {
	return Key{Kind: KindGlobalVariable, Decl: d}
}

func ForWitnessTableOffset(d ast.DeclID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindWitnessTableOffset, Decl: d, Explosion: e, Uncurry: uncurry}
}

func ForFieldOffset(d ast.DeclID, indirect bool) Key {
	return Key{Kind: KindFieldOffset, Decl: d, Indirect: indirect}
}

func ForObjCClass(d ast.DeclID) Key     { return Key{Kind: KindObjCClass, Decl: d} }
func ForObjCMetaclass(d ast.DeclID) Key { return Key{Kind: KindObjCMetaclass, Decl: d} }
func ForMetaclassStub(d ast.DeclID) Key { return Key{Kind: KindMetaclassStub, Decl: d} }

func ForNominalTypeDescriptor(d ast.DeclID) Key {
	return Key{Kind: KindNominalTypeDescriptor, Decl: d}
}

func ForProtocolDescriptor(d ast.DeclID) Key {
	return Key{Kind: KindProtocolDescriptor, Decl: d}
}

func ForProtocolRecord(d ast.DeclID) Key {
	return Key{Kind: KindProtocolRecord, Decl: d}
}

// ForAnonymousFunction keys the body of a closure context.
func ForAnonymousFunction(ctx ast.ContextID, e Explosion, uncurry uint16) Key {
	return Key{Kind: KindAnonymousFunction, Context: ctx, Explosion: e, Uncurry: uncurry}
}

// ForBridgeShim keys the adapter that converts a native function value of
// type t to a host-runtime block.
func ForBridgeShim(t types.TypeID) Key {
	return Key{Kind: KindBridgeShim, Type: t}
}

func ForValueWitness(t types.TypeID, w ValueWitness) Key {
	return Key{Kind: KindValueWitness, Type: t, Index: uint32(w)}
}

func ForValueWitnessTable(t types.TypeID) Key {
	return Key{Kind: KindValueWitnessTable, Type: t}
}

func ForTypeMetadata(t types.TypeID, indirect, pattern bool) Key {
	return Key{Kind: KindTypeMetadata, Type: t, Indirect: indirect, Pattern: pattern}
}

func ForDirectWitnessTable(c ast.ConformanceID) Key {
	return Key{Kind: KindDirectWitnessTable, Conformance: c}
}

func ForLazyWitnessTableAccessor(c ast.ConformanceID) Key {
	return Key{Kind: KindLazyWitnessTableAccessor, Conformance: c}
}

func ForLazyWitnessTableTemplate(c ast.ConformanceID) Key {
	return Key{Kind: KindLazyWitnessTableTemplate, Conformance: c}
}

func ForDependentWitnessTableGenerator(c ast.ConformanceID) Key {
	return Key{Kind: KindDependentWitnessTableGenerator, Conformance: c}
}

func ForDependentWitnessTableTemplate(c ast.ConformanceID) Key {
	return Key{Kind: KindDependentWitnessTableTemplate, Conformance: c}
}

// ConstructorKind returns the constructor discriminator.
func (k Key) ConstructorKind() ConstructorKind { return ConstructorKind(k.Variant) }

// DestructorKind returns the destructor discriminator.
func (k Key) DestructorKind() DestructorKind { return DestructorKind(k.Variant) }

// ValueWitness returns the witness index of a value witness key.
func (k Key) ValueWitness() ValueWitness { return ValueWitness(k.Index) }

func (k Key) String() string {
	switch {
	case k.Kind.IsDeclKind():
		return fmt.Sprintf("%s(decl=%d, %s, uncurry=%d)", k.Kind, k.Decl, k.Explosion, k.Uncurry)
	case k.Kind == KindAnonymousFunction:
		return fmt.Sprintf("%s(ctx=%d)", k.Kind, k.Context)
	case k.Kind.IsTypeKind():
		return fmt.Sprintf("%s(type=%d)", k.Kind, k.Type)
	case k.Kind.IsConformanceKind():
		return fmt.Sprintf("%s(conf=%d)", k.Kind, k.Conformance)
	}
	return k.Kind.String()
}
