package types

// Descriptor constructors. All of them intern, so structurally equal calls
// return the same TypeID.

func (in *Interner) Tuple(elems ...TypeID) TypeID {
	return in.Intern(Type{Kind: KindTuple, Payload: in.internList(elems)})
}

// Unit is the empty tuple.
func (in *Interner) Unit() TypeID { return in.Tuple() }

func (in *Interner) Function(input, result TypeID) TypeID {
	return in.Intern(Type{Kind: KindFunction, Elem: input, Result: result})
}

func (in *Interner) PolyFunction(params []GenericParam, input, result TypeID) TypeID {
	if len(params) == 0 {
		return in.Function(input, result)
	}
	return in.Intern(Type{Kind: KindPolyFunction, Elem: input, Result: result, Payload: in.internGenerics(params)})
}

func (in *Interner) Nominal(decl DeclRef, parent TypeID) TypeID {
	return in.Intern(Type{Kind: KindNominal, Decl: decl, Parent: parent})
}

func (in *Interner) BoundGeneric(decl DeclRef, parent TypeID, args ...TypeID) TypeID {
	return in.Intern(Type{Kind: KindBoundGeneric, Decl: decl, Parent: parent, Payload: in.internList(args)})
}

func (in *Interner) UnboundGeneric(decl DeclRef, parent TypeID) TypeID {
	return in.Intern(Type{Kind: KindUnboundGeneric, Decl: decl, Parent: parent})
}

func (in *Interner) LValue(object TypeID) TypeID {
	return in.Intern(Type{Kind: KindLValue, Elem: object})
}

func (in *Interner) Metatype(instance TypeID) TypeID {
	return in.Intern(Type{Kind: KindMetatype, Elem: instance})
}

func (in *Interner) Int(w Width) TypeID {
	return in.Intern(Type{Kind: KindInt, Width: w})
}

func (in *Interner) Float(w Width) TypeID {
	return in.Intern(Type{Kind: KindFloat, Width: w})
}

func (in *Interner) RawPointer() TypeID {
	return in.Intern(Type{Kind: KindRawPointer})
}

func (in *Interner) Archetype(name string) TypeID {
	return in.Intern(Type{Kind: KindArchetype, Payload: in.internName(name)})
}

// NominalDecl returns the declaration behind a nominal, bound or unbound
// generic type.
func (in *Interner) NominalDecl(id TypeID) (DeclRef, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return 0, false
	}
	switch tt.Kind {
	case KindNominal, KindBoundGeneric, KindUnboundGeneric:
		return tt.Decl, tt.Decl != 0
	}
	return 0, false
}

// Object strips one lvalue layer.
func (in *Interner) Object(id TypeID) TypeID {
	if tt, ok := in.Lookup(id); ok && tt.Kind == KindLValue {
		return tt.Elem
	}
	return id
}
