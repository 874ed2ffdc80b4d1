package abi

import (
	"testing"

	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/irtypes"
	"linkgen/internal/types"
)

type fixture struct {
	b    *ast.Builder
	l    *Lowerer
	rt   *irtypes.Runtime
	fctx ast.ContextID
	pt   ast.DeclID
}

func newFixture() *fixture {
	b := ast.NewBuilder()
	mod := b.AddModule("App", ast.ModuleSource)
	f := &fixture{b: b, fctx: b.FileContext(b.AddFile(mod, "a.sw", ast.FileLibrary))}
	in := b.Types()
	f.pt = b.Nominal(ast.DeclStruct, "Point", f.fctx)
	self := b.Tree.Decl(f.pt).Self
	b.Var("x", self, in.Int(types.Width64), 0)
	b.Var("y", self, in.Int(types.Width32), 0)
	m := ir.NewModule()
	f.rt = irtypes.NewRuntime(m)
	f.l = NewLowerer(b.Tree, irtypes.NewConverter(b.Tree, m, f.rt))
	return f
}

func TestFreestandingFunction(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	fn := f.b.Func("add", f.fctx, in.Function(in.Tuple(in.Int(types.Width64), in.Int(types.Width64)), in.Int(types.Width64)))
	sig := f.l.Lower(fn)
	if sig.CC != Freestanding || sig.Uncurry != 0 {
		t.Fatalf("unexpected signature %+v", sig)
	}
	ft := f.l.FuncType(sig, entity.ExplosionMinimal)
	if len(ft.Params) != 2 || !ft.RetType.Equal(lltypes.I64) {
		t.Fatalf("function type = %v", ft)
	}
}

func TestMethodReceiverComesLast(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	self := f.b.Tree.Decl(f.pt).Self
	m := f.b.Func("scale", self, in.Function(in.Tuple(in.Float(types.Width64)), in.Unit()))
	sig := f.l.Lower(m)
	if sig.CC != Method || sig.Uncurry != 1 {
		t.Fatalf("method signature = %+v", sig)
	}
	outer := in.MustLookup(sig.Type)
	if in.MustLookup(outer.Elem).Kind != types.KindLValue {
		t.Fatalf("value type receiver must be an lvalue")
	}
	ft := f.l.FuncType(sig, entity.ExplosionMinimal)
	if len(ft.Params) != 2 || !ft.Params[0].Equal(lltypes.Double) {
		t.Fatalf("params = %v", ft.Params)
	}
	if _, ok := ft.Params[1].(*lltypes.PointerType); !ok {
		t.Fatalf("receiver must be passed by address, got %v", ft.Params[1])
	}
	if !ft.RetType.Equal(lltypes.Void) {
		t.Fatalf("unit result must lower to void")
	}
}

func TestMaximalExplosionFlattens(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	pt := f.b.Tree.Decl(f.pt).Type
	fn := f.b.Func("take", f.fctx, in.Function(in.Tuple(pt), in.Unit()))
	sig := f.l.Lower(fn)
	if n := len(f.l.FuncType(sig, entity.ExplosionMinimal).Params); n != 1 {
		t.Fatalf("minimal explosion params = %d", n)
	}
	if n := len(f.l.FuncType(sig, entity.ExplosionMaximal).Params); n != 2 {
		t.Fatalf("maximal explosion params = %d", n)
	}
}

func TestAccessors(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	self := f.b.Tree.Decl(f.pt).Self
	i64 := in.Int(types.Width64)
	sub := f.b.AddDecl(ast.DeclSubscript, "subscript", self, in.Function(in.Tuple(i64), i64))
	g := f.l.Getter(sub)
	s := f.l.Setter(sub)
	if g.Uncurry != 2 || s.Uncurry != 2 {
		t.Fatalf("subscript accessors take index and receiver clauses: %d %d", g.Uncurry, s.Uncurry)
	}
	gft := f.l.FuncType(g, entity.ExplosionMinimal)
	if len(gft.Params) != 2 || !gft.RetType.Equal(lltypes.I64) {
		t.Fatalf("getter type = %v", gft)
	}
	sft := f.l.FuncType(s, entity.ExplosionMinimal)
	if len(sft.Params) != 3 || !sft.Params[0].Equal(lltypes.I64) {
		t.Fatalf("setter type = %v", sft)
	}

	global := f.b.Var("count", f.fctx, i64, ast.FlagComputed)
	gg := f.l.Getter(global)
	if gg.CC != Freestanding || gg.Uncurry != 0 {
		t.Fatalf("global getter = %+v", gg)
	}
}

func TestConstructorsAndInjection(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	cls := f.b.Class("Node", f.fctx, types.NoTypeID)
	ctor := f.b.AddDecl(ast.DeclConstructor, "init", f.b.Tree.Decl(cls).Self,
		in.Function(in.Unit(), f.b.Tree.Decl(cls).Type))
	alloc := f.l.Constructor(ctor, entity.Allocating)
	if in.MustLookup(in.MustLookup(alloc.Type).Elem).Kind != types.KindMetatype {
		t.Fatalf("allocating constructors take the metatype")
	}
	init := f.l.Constructor(ctor, entity.Initializing)
	if in.MustLookup(init.Type).Elem != f.b.Tree.Decl(cls).Type {
		t.Fatalf("initializing constructors take the instance")
	}

	enum := f.b.Nominal(ast.DeclEnum, "Shape", f.fctx)
	plain := f.b.AddDecl(ast.DeclEnumElement, "none", f.b.Tree.Decl(enum).Self, types.NoTypeID)
	payload := f.b.Flag(f.b.AddDecl(ast.DeclEnumElement, "circle", f.b.Tree.Decl(enum).Self, in.Float(types.Width64)), ast.FlagHasPayload)
	if f.l.Injection(plain).Uncurry != 0 || f.l.Injection(payload).Uncurry != 1 {
		t.Fatalf("payload elements take an extra clause")
	}
}

func TestGenericContextIsPolymorphic(t *testing.T) {
	f := newFixture()
	in := f.b.Types()
	box := f.b.Nominal(ast.DeclStruct, "Box", f.fctx)
	f.b.MakeGeneric(box)
	m := f.b.Func("get", f.b.Tree.Decl(box).Self, in.Function(in.Unit(), in.Archetype("T")))
	sig := f.l.Lower(m)
	if in.MustLookup(sig.Type).Kind != types.KindPolyFunction {
		t.Fatalf("generic receiver clause must be polymorphic")
	}
	ft := f.l.FuncType(sig, entity.ExplosionMinimal)
	// out pointer, receiver, self metadata
	if len(ft.Params) != 3 || !ft.RetType.Equal(lltypes.Void) {
		t.Fatalf("generic method type = %v", ft)
	}
	if !ft.Params[2].Equal(f.rt.TypeMetadataPtr) {
		t.Fatalf("metadata argument must follow the receiver")
	}
	if f.l.Lower(m) != sig {
		t.Fatalf("lowering must be stable")
	}
}
