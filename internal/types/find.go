package types

// FindIf walks id depth-first and reports whether pred holds for any
// component. Generic parameter bounds of polymorphic functions are not
// visited; callers that care inspect GenericParams directly.
func (in *Interner) FindIf(id TypeID, pred func(TypeID, Type) bool) bool {
	seen := make(map[TypeID]struct{})
	var walk func(TypeID) bool
	walk = func(cur TypeID) bool {
		if cur == NoTypeID {
			return false
		}
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		tt, ok := in.Lookup(cur)
		if !ok {
			return false
		}
		if pred(cur, tt) {
			return true
		}
		switch tt.Kind {
		case KindTuple:
			for _, e := range in.lists[tt.Payload] {
				if walk(e) {
					return true
				}
			}
		case KindFunction, KindPolyFunction:
			return walk(tt.Elem) || walk(tt.Result)
		case KindNominal, KindUnboundGeneric:
			return walk(tt.Parent)
		case KindBoundGeneric:
			if walk(tt.Parent) {
				return true
			}
			for _, a := range in.lists[tt.Payload] {
				if walk(a) {
					return true
				}
			}
		case KindLValue, KindMetatype:
			return walk(tt.Elem)
		}
		return false
	}
	return walk(id)
}
