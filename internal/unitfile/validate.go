package unitfile

import (
	"fmt"

	"linkgen/internal/ast"
	"linkgen/internal/types"
)

// Validate checks that every id stored in the tree points inside its arena
// and that contexts and declarations agree on modules. Lowering assumes a
// valid tree and panics otherwise.
func Validate(t *ast.Tree) error {
	v := validator{t: t, types: uint32(t.Types.Len())}
	for i := range t.Modules.Data {
		m := &t.Modules.Data[i]
		v.ctx(fmt.Sprintf("module %q", m.Name), m.Context)
		for _, f := range m.Files {
			if t.File(f) == nil {
				v.failf("module %q lists missing file %d", m.Name, f)
			}
		}
	}
	for i := range t.Files.Data {
		f := &t.Files.Data[i]
		where := fmt.Sprintf("file %q", f.Name)
		v.module(where, f.Module)
		v.ctx(where, f.Context)
		v.decls(where, f.Decls)
	}
	for i := range t.Contexts.Data {
		c := &t.Contexts.Data[i]
		where := fmt.Sprintf("context %d", i+1)
		if c.Kind != ast.CtxModule {
			v.ctx(where, c.Parent)
		}
		if c.Decl.IsValid() && t.Decl(c.Decl) == nil {
			v.failf("%s: missing declaration %d", where, c.Decl)
		}
		v.module(where, c.Module)
		v.typ(where, c.Type)
	}
	for i := range t.Decls.Data {
		d := &t.Decls.Data[i]
		where := fmt.Sprintf("%s %q", d.Kind, d.Name)
		if d.Kind == ast.DeclInvalid {
			v.failf("declaration %d has no kind", i+1)
		}
		v.ctx(where, d.Context)
		if d.Self.IsValid() && t.Context(d.Self) == nil {
			v.failf("%s: missing self context %d", where, d.Self)
		}
		v.typ(where, d.Type)
		v.typ(where, d.Superclass)
		v.decls(where, d.Members)
		v.decls(where, d.Protocols)
		v.decls(where, d.Locals)
		if d.Kind == ast.DeclExtension && t.Decl(d.Extended) == nil {
			v.failf("%s: extends missing declaration %d", where, d.Extended)
		}
		for _, c := range d.Conformances {
			if t.Conformance(c) == nil {
				v.failf("%s: missing conformance %d", where, c)
			}
		}
	}
	for i := range t.Conformances.Data {
		c := &t.Conformances.Data[i]
		where := fmt.Sprintf("conformance %d", i+1)
		v.typ(where, c.Type)
		v.module(where, c.Module)
		if p := t.Decl(c.Protocol); p == nil || p.Kind != ast.DeclProtocol {
			v.failf("%s: protocol %d is not a protocol", where, c.Protocol)
		}
	}
	v.decls("external list", t.External)
	return v.err
}

type validator struct {
	t     *ast.Tree
	types uint32
	err   error
}

func (v *validator) failf(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf("invalid unit: "+format, args...)
	}
}

func (v *validator) ctx(where string, id ast.ContextID) {
	if v.t.Context(id) == nil {
		v.failf("%s: missing context %d", where, id)
	}
}

func (v *validator) module(where string, id ast.ModuleID) {
	if v.t.Module(id) == nil {
		v.failf("%s: missing module %d", where, id)
	}
}

func (v *validator) decls(where string, ids []ast.DeclID) {
	for _, id := range ids {
		if v.t.Decl(id) == nil {
			v.failf("%s: missing declaration %d", where, id)
		}
	}
}

func (v *validator) typ(where string, id types.TypeID) {
	if id != types.NoTypeID && uint32(id) >= v.types {
		v.failf("%s: type %d out of range", where, id)
	}
}
