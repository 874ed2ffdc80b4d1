package abi

import (
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/entity"
	"linkgen/internal/types"
)

// FuncType flattens sig into an IR function type. Clauses are passed
// innermost first, so the receiver of a method comes last; each
// polymorphic clause appends one metadata pointer per generic parameter and
// one witness table per protocol bound. Address-only results are returned
// through a leading out pointer.
func (l *Lowerer) FuncType(sig FormalSignature, e entity.Explosion) *lltypes.FuncType {
	in := l.in()
	clauses := make([]types.TypeID, 0, sig.Uncurry+1)
	var generic [][]types.GenericParam
	cur := sig.Type
	for level := 0; level <= int(sig.Uncurry); level++ {
		tt, ok := in.Lookup(cur)
		if !ok || !tt.IsFunction() {
			break
		}
		clauses = append(clauses, tt.Elem)
		generic = append(generic, in.GenericParams(cur))
		cur = tt.Result
	}
	result := cur

	var params []lltypes.Type
	var ret lltypes.Type = lltypes.Void
	if l.conv.IsAddressOnly(result) {
		params = append(params, l.indirect(result))
	} else if !l.isUnit(result) {
		ret = l.conv.Convert(result)
	}

	for i := len(clauses) - 1; i >= 0; i-- {
		params = l.appendClause(params, clauses[i], e)
		for _, gp := range generic[i] {
			params = append(params, l.conv.Runtime.TypeMetadataPtr)
			for range gp.Protocols {
				params = append(params, l.conv.Runtime.WitnessTable)
			}
		}
	}
	return lltypes.NewFunc(ret, params...)
}

func (l *Lowerer) isUnit(id types.TypeID) bool {
	tt, ok := l.in().Lookup(id)
	return ok && tt.Kind == types.KindTuple && len(l.in().Elems(id)) == 0
}

// appendClause expands one argument clause: tuples spread into their
// elements, address-only values travel by pointer.
func (l *Lowerer) appendClause(params []lltypes.Type, id types.TypeID, e entity.Explosion) []lltypes.Type {
	tt, ok := l.in().Lookup(id)
	if !ok {
		return params
	}
	if tt.Kind == types.KindTuple {
		for _, elem := range l.in().Elems(id) {
			params = l.appendClause(params, elem, e)
		}
		return params
	}
	if l.conv.IsAddressOnly(id) {
		return append(params, l.indirect(id))
	}
	ty := l.conv.Convert(id)
	if e == entity.ExplosionMaximal {
		return appendScalars(params, ty)
	}
	return append(params, ty)
}

// appendScalars flattens struct types into their scalar leaves.
func appendScalars(params []lltypes.Type, ty lltypes.Type) []lltypes.Type {
	st, ok := ty.(*lltypes.StructType)
	if !ok || st.Opaque {
		return append(params, ty)
	}
	for _, f := range st.Fields {
		params = appendScalars(params, f)
	}
	return params
}

// indirect is the pointer through which an address-only value travels.
func (l *Lowerer) indirect(id types.TypeID) lltypes.Type {
	ty := l.conv.Convert(id)
	if _, ok := ty.(*lltypes.PointerType); ok {
		return ty
	}
	return lltypes.NewPointer(ty)
}
