package entity

import "fmt"

// Kind tags what a Key identifies.
type Kind uint8

const (
	KindInvalid Kind = iota

	// declaration entities
	KindFunction
	KindGetter
	KindSetter
	KindConstructor
	KindDestructor
	KindInjection
	KindGlobalVariable
	KindWitnessTableOffset
	KindFieldOffset
	KindObjCClass
	KindObjCMetaclass
	KindMetaclassStub
	KindNominalTypeDescriptor
	KindProtocolDescriptor
	KindProtocolRecord

	// context entities
	KindAnonymousFunction

	// type entities
	KindBridgeShim
	KindValueWitness
	KindValueWitnessTable
	KindTypeMetadata

	// conformance entities
	KindDirectWitnessTable
	KindLazyWitnessTableAccessor
	KindLazyWitnessTableTemplate
	KindDependentWitnessTableGenerator
	KindDependentWitnessTableTemplate
)

var kindNames = map[Kind]string{
	KindFunction:                       "function",
	KindGetter:                         "getter",
	KindSetter:                         "setter",
	KindConstructor:                    "constructor",
	KindDestructor:                     "destructor",
	KindInjection:                      "injection",
	KindGlobalVariable:                 "global-variable",
	KindWitnessTableOffset:             "witness-table-offset",
	KindFieldOffset:                    "field-offset",
	KindObjCClass:                      "objc-class",
	KindObjCMetaclass:                  "objc-metaclass",
	KindMetaclassStub:                  "metaclass-stub",
	KindNominalTypeDescriptor:          "nominal-type-descriptor",
	KindProtocolDescriptor:             "protocol-descriptor",
	KindProtocolRecord:                 "protocol-record",
	KindAnonymousFunction:              "anonymous-function",
	KindBridgeShim:                     "bridge-shim",
	KindValueWitness:                   "value-witness",
	KindValueWitnessTable:              "value-witness-table",
	KindTypeMetadata:                   "type-metadata",
	KindDirectWitnessTable:             "direct-witness-table",
	KindLazyWitnessTableAccessor:       "lazy-witness-table-accessor",
	KindLazyWitnessTableTemplate:       "lazy-witness-table-template",
	KindDependentWitnessTableGenerator: "dependent-witness-table-generator",
	KindDependentWitnessTableTemplate:  "dependent-witness-table-template",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsDeclKind reports kinds whose subject is a declaration.
func (k Kind) IsDeclKind() bool {
	return k >= KindFunction && k <= KindProtocolRecord
}

// IsTypeKind reports kinds whose subject is a canonical type.
func (k Kind) IsTypeKind() bool {
	return k >= KindBridgeShim && k <= KindTypeMetadata
}

// IsConformanceKind reports kinds whose subject is a protocol conformance.
func (k Kind) IsConformanceKind() bool {
	return k >= KindDirectWitnessTable && k <= KindDependentWitnessTableTemplate
}

// IsValueWitness reports value witness functions and tables.
func (k Kind) IsValueWitness() bool {
	return k == KindValueWitness || k == KindValueWitnessTable
}

// Explosion selects how aggregate arguments are passed.
type Explosion uint8

const (
	// ExplosionMinimal passes aggregates as single values; the resilient ABI.
	ExplosionMinimal Explosion = iota
	// ExplosionMaximal flattens aggregates into scalars.
	ExplosionMaximal
)

func (e Explosion) String() string {
	if e == ExplosionMaximal {
		return "maximal"
	}
	return "minimal"
}

type ConstructorKind uint8

const (
	// Allocating constructors allocate the instance and call the initializer.
	Allocating ConstructorKind = iota + 1
	// Initializing constructors fill in an already allocated instance.
	Initializing
)

type DestructorKind uint8

const (
	// Deallocating destructors destroy and free the object.
	Deallocating DestructorKind = iota + 1
	// Destroying destructors only release the fields.
	Destroying
)

// ValueWitness indexes the value witness table.
type ValueWitness uint8

const (
	WitnessDestroyBuffer ValueWitness = iota
	WitnessInitializeBufferWithCopyOfBuffer
	WitnessProjectBuffer
	WitnessDeallocateBuffer
	WitnessDestroy
	WitnessInitializeBufferWithCopy
	WitnessInitializeWithCopy
	WitnessAssignWithCopy
	WitnessInitializeBufferWithTake
	WitnessInitializeWithTake
	WitnessAssignWithTake
	WitnessAllocateBuffer
	WitnessTypeOf

	// non-function entries
	WitnessSize
	WitnessFlags
	WitnessStride

	NumValueWitnesses
)

// IsFunction reports witnesses that are function pointers.
func (w ValueWitness) IsFunction() bool { return w < WitnessSize }

var witnessCodes = [NumValueWitnesses]string{
	"XX", "CP", "prj", "de", "xx", "Cp", "cp", "ca", "Tk", "tk", "ta", "al", "ty", "size", "flags", "stride",
}

// Code is the short mangling code of a witness.
func (w ValueWitness) Code() string {
	if w < NumValueWitnesses {
		return witnessCodes[w]
	}
	return "?"
}
