package types

import (
	"maps"
	"slices"
)

// Table is the serializable form of an Interner.
type Table struct {
	Types    []Type           `msgpack:"types"`
	Lists    [][]TypeID       `msgpack:"lists"`
	Generics [][]GenericParam `msgpack:"generics"`
	Names    []string         `msgpack:"names"`
}

// Snapshot copies the interner contents. IDs stay valid after Restore.
func (in *Interner) Snapshot() Table {
	return Table{
		Types:    append([]Type(nil), in.types...),
		Lists:    append([][]TypeID(nil), in.lists...),
		Generics: append([][]GenericParam(nil), in.generics...),
		Names:    append([]string(nil), in.names...),
	}
}

// Restore rebuilds an interner from a snapshot.
func Restore(t Table) *Interner {
	in := NewInterner()
	if len(t.Types) == 0 {
		return in
	}
	in.types = append(in.types[:0], t.Types...)
	in.lists = append(in.lists[:0], t.Lists...)
	in.generics = append(in.generics[:0], t.Generics...)
	in.names = append(in.names[:0], t.Names...)
	if len(in.lists) == 0 {
		in.lists = append(in.lists, nil)
	}
	if len(in.generics) == 0 {
		in.generics = append(in.generics, nil)
	}
	if len(in.names) == 0 {
		in.names = append(in.names, "")
	}
	for i := 1; i < len(in.types); i++ {
		in.index[in.types[i]] = TypeID(mustU32(i, "types"))
	}
	// rebuild the content indexes by re-interning through the key builders
	lists := in.lists
	in.lists = [][]TypeID{nil}
	for _, l := range lists[1:] {
		in.internList(l)
	}
	gens := in.generics
	in.generics = [][]GenericParam{nil}
	for _, g := range gens[1:] {
		in.internGenerics(g)
	}
	names := in.names
	in.names = []string{""}
	for _, n := range names[1:] {
		in.internName(n)
	}
	return in
}

// Clone returns an independent interner holding the same types under the
// same IDs.
func (in *Interner) Clone() *Interner {
	return &Interner{
		types:    slices.Clone(in.types),
		index:    maps.Clone(in.index),
		lists:    slices.Clone(in.lists),
		listIdx:  maps.Clone(in.listIdx),
		generics: slices.Clone(in.generics),
		genIdx:   maps.Clone(in.genIdx),
		names:    slices.Clone(in.names),
		nameIdx:  maps.Clone(in.nameIdx),
	}
}
