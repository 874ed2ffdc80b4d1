package artifact

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/linkage"
	"linkgen/internal/mangle"
)

type fixture struct {
	tree  *ast.Tree
	mang  mangle.Mangler
	bag   *diag.Bag
	cache *Cache
	v, w  ast.DeclID
	fn    ast.DeclID
}

func newFixture() *fixture {
	b := ast.NewBuilder()
	in := b.Types()
	app := b.AddModule("App", ast.ModuleSource)
	fctx := b.FileContext(b.AddFile(app, "a.sw", ast.FileLibrary))
	f := &fixture{tree: b.Tree, bag: diag.NewBag(16)}
	f.v = b.Var("counter", fctx, in.Int(64), 0)
	f.w = b.Var("limit", fctx, in.Int(64), 0)
	f.fn = b.Func("run", fctx, in.Function(in.Unit(), in.Unit()))
	f.mang = mangle.New(b.Tree)
	f.cache = New(ir.NewModule(), linkage.New(b.Tree, f.mang), diag.BagReporter{Bag: f.bag})
	return f
}

var (
	i8ptr   = lltypes.NewPointer(lltypes.I8)
	pairTy  = lltypes.NewStruct(lltypes.I64, lltypes.I64)
	voidSig = lltypes.NewFunc(lltypes.Void)
)

func mustPanicInternal(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if _, ok := diag.AsInternalError(recover()); !ok {
			t.Fatalf("expected internal error")
		}
	}()
	fn()
}

func TestFunctionAtMostOnce(t *testing.T) {
	f := newFixture()
	k := entity.ForFunction(f.fn, entity.ExplosionMinimal, 0)
	a := f.cache.Function(k, voidSig, enum.CallingConvC)
	b := f.cache.Function(k, voidSig, enum.CallingConvC)
	if a != b {
		t.Fatalf("second request created a new function")
	}
	if n := len(f.cache.Module().Funcs); n != 1 {
		t.Fatalf("module has %d functions, want 1", n)
	}
	if a.Name() != f.mang.Mangle(k) {
		t.Fatalf("name %q, want %q", a.Name(), f.mang.Mangle(k))
	}
	if got, ok := f.cache.LookupFunction(k); !ok || got != a {
		t.Fatalf("lookup missed cached function")
	}
}

func TestFunctionSignatureMismatchIsFatal(t *testing.T) {
	f := newFixture()
	k := entity.ForFunction(f.fn, entity.ExplosionMinimal, 0)
	f.cache.Function(k, voidSig, enum.CallingConvC)
	mustPanicInternal(t, func() {
		f.cache.Function(k, lltypes.NewFunc(lltypes.I64), enum.CallingConvC)
	})
}

func TestSynthesizedNeverReuses(t *testing.T) {
	f := newFixture()
	a := f.cache.Synthesized("App.init.lib.sw", linkage.External, voidSig)
	a.NewBlock("entry").NewRet(nil)
	b := f.cache.Synthesized("App.init.lib.sw", linkage.External, voidSig)
	if b == a {
		t.Fatalf("second synthesized function reused the first")
	}
	if b.Name() != "App.init.lib.sw.1" || len(b.Blocks) != 0 {
		t.Fatalf("second function %q with %d blocks", b.Name(), len(b.Blocks))
	}
	if f.cache.Failed() {
		t.Fatalf("numbered name reported as a collision")
	}
}

func TestVariableReferenceThenDefinition(t *testing.T) {
	f := newFixture()
	k := entity.ForGlobalVariable(f.v)
	ref := f.cache.Variable(k, nil, lltypes.I8, i8ptr)
	old := ref.(*ir.Global)

	user := f.cache.Module().NewGlobalDef("holder", ref)
	fn := f.cache.Module().NewFunc("touch", lltypes.Void)
	entry := fn.NewBlock("")
	entry.NewLoad(lltypes.I8, ref)
	entry.NewRet(nil)

	def := f.cache.Define(k, pairTy, lltypes.I8, i8ptr)
	if def == old {
		t.Fatalf("definition reused the forward declaration")
	}
	if !def.ContentType.Equal(pairTy) {
		t.Fatalf("definition type %s", def.ContentType)
	}
	if def.Name() != f.mang.Mangle(k) {
		t.Fatalf("replacement did not take the name: %q", def.Name())
	}
	for _, g := range f.cache.Module().Globals {
		if g == old {
			t.Fatalf("forward declaration still in module")
		}
	}
	cast, ok := user.Init.(*constant.ExprBitCast)
	if !ok || cast.From != constant.Constant(def) {
		t.Fatalf("initializer not redirected: %v", user.Init)
	}
	load := entry.Insts[0].(*ir.InstLoad)
	if c, ok := load.Src.(*constant.ExprBitCast); !ok || c.From != constant.Constant(def) {
		t.Fatalf("load not redirected: %v", load.Src)
	}

	// later references see the definition through a cast
	again := f.cache.Variable(k, nil, lltypes.I8, i8ptr)
	if c, ok := again.(*constant.ExprBitCast); !ok || c.From != constant.Constant(def) {
		t.Fatalf("reference after definition: %v", again)
	}
}

func TestVariableOrderIndependent(t *testing.T) {
	refFirst := newFixture()
	k := entity.ForGlobalVariable(refFirst.v)
	refFirst.cache.Variable(k, nil, lltypes.I8, i8ptr)
	refFirst.cache.Define(k, pairTy, lltypes.I8, i8ptr)

	defFirst := newFixture()
	defFirst.cache.Define(k, pairTy, lltypes.I8, i8ptr)
	defFirst.cache.Variable(k, nil, lltypes.I8, i8ptr)

	if a, b := refFirst.cache.Module().String(), defFirst.cache.Module().String(); a != b {
		t.Fatalf("modules differ:\n%s\n---\n%s", a, b)
	}
}

func TestVariableSameTypeDefinitionKeepsGlobal(t *testing.T) {
	f := newFixture()
	k := entity.ForGlobalVariable(f.v)
	ref := f.cache.Variable(k, nil, pairTy, lltypes.NewPointer(pairTy))
	def := f.cache.Define(k, pairTy, pairTy, lltypes.NewPointer(pairTy))
	if constant.Constant(def) != ref {
		t.Fatalf("matching definition replaced the global")
	}
}

func TestVariableRedefinitionIsFatal(t *testing.T) {
	f := newFixture()
	k := entity.ForGlobalVariable(f.v)
	f.cache.Define(k, pairTy, lltypes.I8, i8ptr)
	mustPanicInternal(t, func() {
		f.cache.Define(k, lltypes.I32, lltypes.I8, i8ptr)
	})
}

func TestFunctionCollision(t *testing.T) {
	f := newFixture()
	k := entity.ForFunction(f.fn, entity.ExplosionMinimal, 0)
	name := f.mang.Mangle(k)
	squatter := f.cache.Module().NewGlobal(name, lltypes.I32)

	fn := f.cache.Function(k, voidSig, enum.CallingConvC)
	if fn.Name() != name {
		t.Fatalf("new function named %q", fn.Name())
	}
	if squatter.Name() != name+".unique" {
		t.Fatalf("existing symbol renamed to %q", squatter.Name())
	}
	if !f.cache.Failed() || !f.bag.HasErrors() {
		t.Fatalf("collision not reported")
	}
	d := f.bag.Items()[0]
	if d.Code != diag.LnkFunctionCollision || !d.Primary.IsNull() {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if !strings.Contains(d.Message, "function collides with existing symbol "+name) {
		t.Fatalf("message %q", d.Message)
	}
}

func TestVariableCollisionNumbersUniqueNames(t *testing.T) {
	f := newFixture()
	k := entity.ForGlobalVariable(f.v)
	name := f.mang.Mangle(k)
	m := f.cache.Module()
	m.NewGlobal(name+".unique", lltypes.I8)
	squatter := m.NewFunc(name, lltypes.Void)

	g := f.cache.Define(k, pairTy, lltypes.I8, i8ptr)
	if g.Name() != name {
		t.Fatalf("variable named %q", g.Name())
	}
	if squatter.Name() != name+".unique.1" {
		t.Fatalf("existing symbol renamed to %q", squatter.Name())
	}
	if d := f.bag.Items()[0]; d.Code != diag.LnkVariableCollision {
		t.Fatalf("code %s", d.Code)
	}
}

func TestSameShapeSymbolIsReused(t *testing.T) {
	f := newFixture()
	k := entity.ForFunction(f.fn, entity.ExplosionMinimal, 0)
	pre := f.cache.Module().NewFunc(f.mang.Mangle(k), lltypes.Void)
	if got := f.cache.Function(k, voidSig, enum.CallingConvC); got != pre {
		t.Fatalf("matching symbol was not reused")
	}
	if f.cache.Failed() {
		t.Fatalf("reuse reported as a collision")
	}
}

func TestSimpleVariable(t *testing.T) {
	f := newFixture()
	k := entity.ForFieldOffset(f.w, false)
	g := f.cache.SimpleVariable(k, lltypes.I64, 8)
	if !g.Immutable || g.Align != 8 {
		t.Fatalf("offset global not constant and aligned: %+v", g)
	}
	if again := f.cache.SimpleVariable(k, lltypes.I64, 8); again != g {
		t.Fatalf("second request created a new global")
	}
	mustPanicInternal(t, func() { f.cache.SimpleVariable(k, lltypes.I64, 4) })
}

func TestGlobalStringDedup(t *testing.T) {
	f := newFixture()
	a := f.cache.GlobalString("load")
	b := f.cache.GlobalString("load")
	c := f.cache.GlobalString("init")
	if a != b {
		t.Fatalf("equal strings not shared")
	}
	if a == c {
		t.Fatalf("distinct strings shared")
	}
	if n := len(f.cache.Module().Globals); n != 2 {
		t.Fatalf("%d string globals, want 2", n)
	}
	g := f.cache.Module().Globals[0]
	if g.Linkage != enum.LinkagePrivate || !g.Immutable {
		t.Fatalf("string global not private constant")
	}
	if arr := g.Init.(*constant.CharArray); string(arr.X) != "load\x00" {
		t.Fatalf("contents %q", arr.X)
	}
}

func TestRuntimeFunction(t *testing.T) {
	f := newFixture()
	sig := lltypes.NewFunc(i8ptr, i8ptr)
	a := f.cache.RuntimeFunction("objc_getClass", sig)
	if b := f.cache.RuntimeFunction("objc_getClass", sig); b != a {
		t.Fatalf("runtime function declared twice")
	}
	fn := a.(*ir.Func)
	if fn.Linkage != enum.LinkageNone || len(fn.FuncAttrs) != 1 {
		t.Fatalf("unexpected declaration %s", fn.LLString())
	}
	other := f.cache.RuntimeFunction("objc_getClass", lltypes.NewFunc(lltypes.Void))
	if c, ok := other.(*constant.ExprBitCast); !ok || c.From != a {
		t.Fatalf("mismatched signature should cast, got %v", other)
	}
}

func TestEmitListAndUsed(t *testing.T) {
	f := newFixture()
	k := entity.ForGlobalVariable(f.v)
	g := f.cache.Define(k, lltypes.I64, lltypes.I8, i8ptr)
	g.Init = constant.NewInt(lltypes.I64, 0)

	if f.cache.EmitList("empty", "", enum.LinkageInternal, 8, nil) != nil {
		t.Fatalf("empty list emitted")
	}
	list := f.cache.EmitList("objc_classes", "__DATA, __objc_classlist, regular, no_dead_strip", enum.LinkageInternal, 8, []constant.Constant{g})
	if list.Section == "" || list.Align != 8 {
		t.Fatalf("list attributes lost")
	}
	arr := list.Init.(*constant.Array)
	if len(arr.Elems) != 1 || !arr.Elems[0].Type().Equal(i8ptr) {
		t.Fatalf("elements not cast to i8*")
	}
	if len(f.cache.Used()) != 1 {
		t.Fatalf("internal list not added to llvm.used")
	}
	used := f.cache.EmitUsed(8)
	if used.Name() != "llvm.used" || used.Linkage != enum.LinkageAppending || used.Section != "llvm.metadata" {
		t.Fatalf("llvm.used malformed: %s", used.LLString())
	}

	decl := f.cache.Module().NewGlobal("extern_only", lltypes.I8)
	mustPanicInternal(t, func() { f.cache.AddUsed(decl) })
}

func TestSymbolsSorted(t *testing.T) {
	f := newFixture()
	f.cache.Function(entity.ForFunction(f.fn, entity.ExplosionMinimal, 0), voidSig, enum.CallingConvC)
	f.cache.Define(entity.ForGlobalVariable(f.v), lltypes.I64, lltypes.I8, i8ptr)
	f.cache.Define(entity.ForGlobalVariable(f.w), lltypes.I64, lltypes.I8, i8ptr)
	syms := f.cache.Symbols()
	if len(syms) != 3 {
		t.Fatalf("%d symbols", len(syms))
	}
	for i := 1; i < len(syms); i++ {
		if syms[i-1].Name > syms[i].Name {
			t.Fatalf("symbols not sorted: %v", syms)
		}
	}
}

func TestSealLinkage(t *testing.T) {
	f := newFixture()
	m := f.cache.Module()
	zero := constant.NewInt(lltypes.I32, 0)

	globalDef := func(name string, l enum.Linkage) *ir.Global {
		g := m.NewGlobalDef(name, zero)
		g.Linkage = l
		return g
	}
	globalDecl := func(name string, l enum.Linkage) *ir.Global {
		g := m.NewGlobal(name, lltypes.I32)
		g.Linkage = l
		return g
	}
	funcDef := func(name string, l enum.Linkage) *ir.Func {
		fn := m.NewFunc(name, lltypes.Void)
		fn.NewBlock("entry").NewRet(nil)
		fn.Linkage = l
		return fn
	}
	funcDecl := func(name string, l enum.Linkage) *ir.Func {
		fn := m.NewFunc(name, lltypes.Void)
		fn.Linkage = l
		return fn
	}

	globals := []struct {
		g    *ir.Global
		want enum.Linkage
	}{
		{globalDef("def_default", enum.LinkageNone), enum.LinkageNone},
		{globalDef("def_external", enum.LinkageExternal), enum.LinkageNone},
		{globalDef("def_linkonce", enum.LinkageLinkOnceODR), enum.LinkageLinkOnceODR},
		{globalDef("def_internal", enum.LinkageInternal), enum.LinkageInternal},
		{globalDecl("decl_default", enum.LinkageNone), enum.LinkageExternal},
		{globalDecl("decl_linkonce", enum.LinkageLinkOnceODR), enum.LinkageExternal},
		{globalDecl("decl_weak", enum.LinkageExternWeak), enum.LinkageExternWeak},
		{globalDecl("decl_private", enum.LinkagePrivate), enum.LinkagePrivate},
	}
	funcs := []struct {
		fn   *ir.Func
		want enum.Linkage
	}{
		{funcDef("fdef_external", enum.LinkageExternal), enum.LinkageNone},
		{funcDef("fdef_linkonce", enum.LinkageLinkOnceODR), enum.LinkageLinkOnceODR},
		{funcDecl("fdecl_default", enum.LinkageNone), enum.LinkageNone},
		{funcDecl("fdecl_linkonce", enum.LinkageLinkOnceODR), enum.LinkageNone},
		{funcDecl("fdecl_internal", enum.LinkageInternal), enum.LinkageInternal},
	}

	f.cache.SealLinkage()
	for _, tt := range globals {
		if tt.g.Linkage != tt.want {
			t.Errorf("%s: linkage %v, want %v", tt.g.Name(), tt.g.Linkage, tt.want)
		}
	}
	for _, tt := range funcs {
		if tt.fn.Linkage != tt.want {
			t.Errorf("%s: linkage %v, want %v", tt.fn.Name(), tt.fn.Linkage, tt.want)
		}
	}
	if text := m.String(); strings.Contains(text, "= external global i32 0") {
		t.Errorf("definition printed with external linkage:\n%s", text)
	}
}
