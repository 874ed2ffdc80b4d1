package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Interner hands out stable TypeIDs for structurally equal descriptors, so
// canonical types compare by ID.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	lists    [][]TypeID
	listIdx  map[string]uint32
	generics [][]GenericParam
	genIdx   map[string]uint32
	names    []string
	nameIdx  map[string]uint32
}

// NewInterner constructs an empty interner with slot 0 reserved.
func NewInterner() *Interner {
	in := &Interner{
		index:   make(map[Type]TypeID, 64),
		listIdx: make(map[string]uint32),
		genIdx:  make(map[string]uint32),
		nameIdx: make(map[string]uint32),
	}
	in.types = append(in.types, Type{})
	in.lists = append(in.lists, nil)
	in.generics = append(in.generics, nil)
	in.names = append(in.names, "")
	return in
}

// Intern ensures the descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	id := TypeID(mustU32(len(in.types), "types"))
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len returns the number of interned types including the reserved slot.
func (in *Interner) Len() int { return len(in.types) }

func (in *Interner) internList(elems []TypeID) uint32 {
	if len(elems) == 0 {
		return 0
	}
	var sb strings.Builder
	for _, e := range elems {
		sb.WriteString(strconv.FormatUint(uint64(e), 36))
		sb.WriteByte(',')
	}
	key := sb.String()
	if slot, ok := in.listIdx[key]; ok {
		return slot
	}
	slot := mustU32(len(in.lists), "type lists")
	in.lists = append(in.lists, append([]TypeID(nil), elems...))
	in.listIdx[key] = slot
	return slot
}

func (in *Interner) internGenerics(params []GenericParam) uint32 {
	if len(params) == 0 {
		return 0
	}
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(p.Name)
		sb.WriteByte(':')
		for _, proto := range p.Protocols {
			sb.WriteString(strconv.FormatUint(uint64(proto), 36))
			sb.WriteByte('&')
		}
		sb.WriteString(strconv.FormatUint(uint64(p.Superclass), 36))
		sb.WriteByte(';')
	}
	key := sb.String()
	if slot, ok := in.genIdx[key]; ok {
		return slot
	}
	slot := mustU32(len(in.generics), "generic params")
	cp := make([]GenericParam, len(params))
	for i, p := range params {
		cp[i] = GenericParam{
			Name:       p.Name,
			Protocols:  append([]DeclRef(nil), p.Protocols...),
			Superclass: p.Superclass,
		}
	}
	in.generics = append(in.generics, cp)
	in.genIdx[key] = slot
	return slot
}

func (in *Interner) internName(name string) uint32 {
	if slot, ok := in.nameIdx[name]; ok {
		return slot
	}
	slot := mustU32(len(in.names), "names")
	in.names = append(in.names, name)
	in.nameIdx[name] = slot
	return slot
}

// Elems returns tuple elements or generic arguments of id.
func (in *Interner) Elems(id TypeID) []TypeID {
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindTuple && tt.Kind != KindBoundGeneric) {
		return nil
	}
	return in.lists[tt.Payload]
}

// GenericParams returns the generic clause of a polymorphic function type.
func (in *Interner) GenericParams(id TypeID) []GenericParam {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPolyFunction {
		return nil
	}
	return in.generics[tt.Payload]
}

// ArchetypeName returns the name of an archetype.
func (in *Interner) ArchetypeName(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindArchetype {
		return ""
	}
	return in.names[tt.Payload]
}

func mustU32(n int, what string) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("len(%s) overflow: %w", what, err))
	}
	return v
}
