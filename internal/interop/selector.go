package interop

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"linkgen/internal/ast"
	"linkgen/internal/types"
)

// Selector returns the runtime selector of a member accessor. An explicit
// selector on the declaration wins for methods and getters.
func (b *Bridge) Selector(id ast.DeclID, acc Accessor) string {
	d := b.tree.Decl(id)
	if d == nil {
		return ""
	}
	if d.Selector != "" && acc != Setter {
		return d.Selector
	}
	switch {
	case d.Kind == ast.DeclSubscript && acc == Getter:
		return "objectAtIndexedSubscript:"
	case d.Kind == ast.DeclSubscript && acc == Setter:
		return "setObject:atIndexedSubscript:"
	case acc == Getter:
		return d.Name
	case acc == Setter:
		return "set" + upperFirst(d.Name) + ":"
	}
	name := d.Name
	if d.Kind == ast.DeclConstructor {
		name = "init"
	}
	return name + strings.Repeat(":", len(b.arguments(d.Type)))
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// arguments splits a function type's input into its parameters.
func (b *Bridge) arguments(fn types.TypeID) []types.TypeID {
	in := b.tree.Types
	tt, ok := in.Lookup(fn)
	if !ok || !tt.IsFunction() {
		return nil
	}
	arg, ok := in.Lookup(tt.Elem)
	if !ok {
		return nil
	}
	if arg.Kind == types.KindTuple {
		return in.Elems(tt.Elem)
	}
	return []types.TypeID{tt.Elem}
}

func (b *Bridge) result(fn types.TypeID) types.TypeID {
	tt, ok := b.tree.Types.Lookup(fn)
	if !ok || !tt.IsFunction() {
		return types.NoTypeID
	}
	return tt.Result
}

// TypeEncoding returns the runtime type encoding of a member accessor:
// result, frame size, receiver and selector, then each argument with its
// frame offset.
func (b *Bridge) TypeEncoding(id ast.DeclID, acc Accessor) string {
	d := b.tree.Decl(id)
	if d == nil {
		return ""
	}
	var ret types.TypeID
	var args []types.TypeID
	switch {
	case d.Kind == ast.DeclSubscript:
		index, value := b.tree.Types.MustLookup(d.Type).Elem, b.result(d.Type)
		if acc == Setter {
			args = []types.TypeID{value, index}
		} else {
			ret, args = value, []types.TypeID{index}
		}
	case acc == Getter:
		ret = d.Type
	case acc == Setter:
		args = []types.TypeID{d.Type}
	case d.Kind == ast.DeclConstructor:
		ret, args = b.tree.SelfType(d.Context), b.arguments(d.Type)
	default:
		ret, args = b.result(d.Type), b.arguments(d.Type)
	}

	ptr := b.rt.PointerSize
	var sb strings.Builder
	sb.WriteString(b.encode(ret))
	sb.WriteString(strconv.Itoa(ptr * (2 + len(args))))
	sb.WriteString("@0:")
	sb.WriteString(strconv.Itoa(ptr))
	for i, a := range args {
		sb.WriteString(b.encode(a))
		sb.WriteString(strconv.Itoa(ptr * (2 + i)))
	}
	return sb.String()
}

func (b *Bridge) encode(id types.TypeID) string {
	if id == types.NoTypeID {
		return "v"
	}
	tt, ok := b.tree.Types.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case types.KindTuple:
		if len(b.tree.Types.Elems(id)) == 0 {
			return "v"
		}
	case types.KindInt:
		switch tt.Width {
		case types.Width1:
			return "B"
		case types.Width8:
			return "c"
		case types.Width16:
			return "s"
		case types.Width32:
			return "i"
		default:
			return "q"
		}
	case types.KindFloat:
		if tt.Width == types.Width32 {
			return "f"
		}
		return "d"
	case types.KindRawPointer:
		return "^v"
	case types.KindMetatype:
		return "#"
	case types.KindNominal, types.KindBoundGeneric:
		if nd := b.tree.Decl(ast.DeclOf(tt.Decl)); nd != nil && nd.Kind == ast.DeclClass {
			return "@"
		}
	case types.KindFunction, types.KindPolyFunction:
		return "@?"
	}
	return "?"
}
