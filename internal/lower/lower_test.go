package lower

import (
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/initsynth"
	"linkgen/internal/interop"
	"linkgen/internal/testkit"
	"linkgen/internal/types"
)

type fixture struct {
	b    *ast.Builder
	app  ast.ModuleID
	file ast.FileID
	fctx ast.ContextID
	i64  types.TypeID
	i8   types.TypeID
	unit types.TypeID
}

func newFixture(kind ast.FileKind) *fixture {
	b := ast.NewBuilder()
	f := &fixture{b: b}
	f.app = b.AddModule("App", ast.ModuleSource)
	f.file = b.AddFile(f.app, "lib.sw", kind)
	f.fctx = b.FileContext(f.file)
	f.i64 = b.Types().Int(types.Width64)
	f.i8 = b.Types().Int(types.Width8)
	f.unit = b.Types().Unit()
	return f
}

func (f *fixture) fn(result types.TypeID) types.TypeID {
	return f.b.Types().Function(f.unit, result)
}

func (f *fixture) self(id ast.DeclID) ast.ContextID { return f.b.Tree.Decl(id).Self }

func (f *fixture) lower(opts Options) *Context {
	c := New(f.b.Tree, f.app, Config{Options: opts})
	c.EmitModule()
	return c
}

func expectInternal(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if _, ok := r.(*InternalError); !ok {
			t.Fatalf("expected an internal error, got %v", r)
		}
	}()
	fn()
}

func findGlobal(m *ir.Module, name string) *ir.Global {
	for _, g := range m.Globals {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

func findFunc(m *ir.Module, name string) *ir.Func {
	for _, fn := range m.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	return nil
}

func calleeNames(fn *ir.Func) []string {
	var out []string
	for _, inst := range fn.Blocks[0].Insts {
		call, ok := inst.(*ir.InstCall)
		if !ok {
			continue
		}
		if named, ok := call.Callee.(value.Named); ok {
			out = append(out, named.Name())
		}
	}
	return out
}

func TestActionTablesCoverEveryKind(t *testing.T) {
	tables := map[string]actionTable{
		"global":    globalActions,
		"external":  externalActions,
		"extension": extensionMemberActions,
		"member":    memberActions,
	}
	for name, table := range tables {
		for _, k := range ast.DeclKinds() {
			if _, ok := table[k]; !ok {
				t.Errorf("%s table has no entry for %s", name, k)
			}
		}
	}
	if GlobalAction(ast.DeclConstructor) != ActionInvalid || MemberAction(ast.DeclDestructor) != ActionDefer {
		t.Fatalf("unexpected actions")
	}
	if ExternalAction(ast.DeclInvalid) != ActionInvalid {
		t.Fatalf("unknown kinds must be invalid")
	}
}

func TestInvalidPositionsAreFatal(t *testing.T) {
	cases := []struct {
		name  string
		build func(f *fixture)
	}{
		{"constructor at file scope", func(f *fixture) {
			f.b.AddDecl(ast.DeclConstructor, "init", f.fctx, f.fn(f.unit))
		}},
		{"import inside a struct", func(f *fixture) {
			s := f.b.Nominal(ast.DeclStruct, "S", f.fctx)
			f.b.AddDecl(ast.DeclImport, "Foundation", f.self(s), 0)
		}},
		{"stored property in an extension", func(f *fixture) {
			s := f.b.Nominal(ast.DeclStruct, "S", f.fctx)
			ext := f.b.Extension(s, f.fctx)
			f.b.Var("cache", f.self(ext), f.i64, 0)
		}},
		{"destructor in a struct", func(f *fixture) {
			s := f.b.Nominal(ast.DeclStruct, "S", f.fctx)
			f.b.AddDecl(ast.DeclDestructor, "deinit", f.self(s), f.fn(f.unit))
		}},
		{"type nested in a protocol", func(f *fixture) {
			p := f.b.Nominal(ast.DeclProtocol, "P", f.fctx)
			f.b.Nominal(ast.DeclStruct, "Inner", f.self(p))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(ast.FileLibrary)
			tc.build(f)
			expectInternal(t, func() { f.lower(Options{}) })
		})
	}
}

func TestFinalizeTwiceIsFatal(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	c := f.lower(Options{})
	expectInternal(t, c.Finalize)
	expectInternal(t, func() { c.EmitSourceFile(f.file) })
}

func TestLowerLibraryModule(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b

	shape := b.Nominal(ast.DeclProtocol, "Shape", f.fctx)
	areaReq := b.Func("area", f.self(shape), f.fn(f.i64))

	point := b.Nominal(ast.DeclStruct, "Point", f.fctx)
	b.Var("x", f.self(point), f.i64, 0)
	b.Var("y", f.self(point), f.i64, 0)
	area := b.Func("area", f.self(point), f.fn(f.i64))
	conf := b.Conform(point, point, shape)

	node := b.Class("Node", f.fctx, 0)
	a := b.Var("a", f.self(node), f.i64, 0)
	tag := b.Var("tag", f.self(node), f.i8, 0)
	ctor := b.AddDecl(ast.DeclConstructor, "init", f.self(node), f.fn(f.unit))
	dtor := b.AddDecl(ast.DeclDestructor, "deinit", f.self(node), f.fn(f.unit))

	counter := b.Var("counter", f.fctx, f.i64, 0)
	run := b.Func("run", f.fctx, f.fn(f.unit))
	top := b.AddDecl(ast.DeclTopLevelCode, "", f.fctx, 0)
	b.Tree.Decl(top).Body = []ast.Stmt{
		{Kind: ast.StmtStore, Target: counter, Value: 1},
		{Kind: ast.StmtCall, Target: run},
	}

	c := f.lower(Options{})
	m := c.IR

	for _, fn := range []*ir.Func{
		c.AddrOfFunction(area),
		c.AddrOfFunction(run),
		c.AddrOfConstructor(ctor, entity.Allocating),
		c.AddrOfConstructor(ctor, entity.Initializing),
		c.AddrOfDestructor(dtor, entity.Deallocating),
		c.AddrOfDestructor(dtor, entity.Destroying),
	} {
		if len(fn.Blocks) == 0 {
			t.Errorf("%s has no body", fn.Name())
		}
	}
	if g := c.AddrOfGlobalVariable(counter, false); g.Init == nil {
		t.Errorf("counter is not defined")
	}

	wt, ok := c.Cache.LookupVariable(entity.ForDirectWitnessTable(conf))
	if !ok || wt.Init == nil {
		t.Fatalf("witness table of Point: Shape not defined")
	}
	entries := wt.Init.(*constant.Array).Elems
	if len(entries) != 2 {
		t.Fatalf("witness table has %d entries", len(entries))
	}
	if cast, ok := entries[1].(*constant.ExprBitCast); !ok || cast.From != c.AddrOfFunction(area) {
		t.Errorf("area witness = %v", entries[1])
	}
	if slot := c.AddrOfWitnessTableOffset(areaReq); slot.Init.(*constant.Int).X.Int64() != 8 {
		t.Errorf("area slot offset = %v", slot.Init)
	}

	if off := c.AddrOfFieldOffset(a, false).Init.(*constant.Int).X.Int64(); off != 16 {
		t.Errorf("offset of a = %d", off)
	}
	if off := c.AddrOfFieldOffset(tag, false).Init.(*constant.Int).X.Int64(); off != 24 {
		t.Errorf("offset of tag = %d", off)
	}

	c.AddrOfNominalTypeDescriptor(point)
	if _, ok := c.Cache.LookupVariable(entity.ForNominalTypeDescriptor(point)); !ok {
		t.Errorf("Point descriptor not cached")
	}

	md, ok := c.Cache.LookupVariable(entity.ForTypeMetadata(b.Tree.Decl(point).Type, false, false))
	if !ok || md.Init == nil || !md.ContentType.Equal(c.Runtime.FullTypeMetadata) {
		t.Fatalf("Point metadata not defined as full metadata")
	}

	ctors := findGlobal(m, "llvm.global_ctors")
	if ctors == nil || ctors.Linkage != enum.LinkageAppending {
		t.Fatalf("missing llvm.global_ctors")
	}
	initFn := findFunc(m, "App.init.lib.sw")
	if initFn == nil || initFn.Linkage != enum.LinkageNone {
		t.Fatalf("missing external file initializer")
	}
	tlc := findFunc(m, "App.top_level_code.lib.sw")
	if tlc == nil || initsynth.IsTrivial(tlc) {
		t.Fatalf("top-level code missing or empty")
	}
	if names := calleeNames(tlc); len(names) != 1 || names[0] != c.AddrOfFunction(run).Name() {
		t.Errorf("top-level calls = %v", names)
	}
	if findFunc(m, "main") != nil {
		t.Errorf("library module must not get main")
	}
	if c.Failed() {
		t.Errorf("unexpected collision")
	}
	rep := c.Timer().Report()
	if len(rep.Phases) != 3 {
		t.Errorf("phases = %+v", rep.Phases)
	}
}

func TestTrivialTopLevelCodeIsErased(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	f.b.AddDecl(ast.DeclTopLevelCode, "", f.fctx, 0)
	f.b.Func("helper", f.fctx, f.fn(f.unit))

	c := f.lower(Options{})
	if fn := findFunc(c.IR, "App.top_level_code.lib.sw"); fn != nil {
		t.Errorf("trivial top-level code kept")
	}
	if findFunc(c.IR, "App.init.lib.sw") != nil || findGlobal(c.IR, "llvm.global_ctors") != nil {
		t.Errorf("initializer registered for trivial top-level code")
	}
}

func TestNestedDeclarationsAreLocal(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b
	outer := b.Func("outer", f.fctx, f.fn(f.unit))
	inner := b.Nominal(ast.DeclStruct, "Inner", f.self(outer))
	helper := b.Func("helper", f.self(outer), f.fn(f.unit))
	cx := b.Closure(outer, f.fn(f.i64))
	nested := b.Closure(outer, f.fn(f.unit))

	c := f.lower(Options{})

	desc, ok := c.Cache.LookupVariable(entity.ForNominalTypeDescriptor(inner))
	if !ok || desc.Linkage != enum.LinkageInternal {
		t.Fatalf("local type descriptor linkage = %v", desc)
	}
	if fn := c.AddrOfFunction(helper); fn.Linkage != enum.LinkageInternal || len(fn.Blocks) == 0 {
		t.Errorf("local function: linkage %v, %d blocks", fn.Linkage, len(fn.Blocks))
	}
	for _, closure := range []ast.ContextID{cx, nested} {
		if fn := c.AddrOfAnonymousFunction(closure); len(fn.Blocks) == 0 {
			t.Errorf("closure %d not emitted", closure)
		}
	}
	if fn := c.AddrOfFunction(outer); fn.Linkage != enum.LinkageNone {
		t.Errorf("outer linkage = %v", fn.Linkage)
	}
}

func TestGenericAndRetroactiveConformances(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b
	shape := b.Nominal(ast.DeclProtocol, "Shape", f.fctx)
	b.Func("area", f.self(shape), f.fn(f.i64))

	box := b.Nominal(ast.DeclStruct, "Box", f.fctx)
	b.MakeGeneric(box)
	generic := b.Conform(box, box, shape)

	lib := b.AddModule("Geometry", ast.ModuleSerialized)
	lctx := b.FileContext(b.AddFile(lib, "geo.sw", ast.FileLibrary))
	vec := b.Nominal(ast.DeclStruct, "Vec", lctx)
	ext := b.Extension(vec, f.fctx)
	retro := b.Conform(ext, vec, shape)

	c := f.lower(Options{})

	gen, ok := c.Cache.LookupFunction(entity.ForDependentWitnessTableGenerator(generic))
	if !ok || len(gen.Blocks) == 0 {
		t.Fatalf("generic conformance has no generator")
	}
	if tmpl, ok := c.Cache.LookupVariable(entity.ForDependentWitnessTableTemplate(generic)); !ok || tmpl.Init == nil {
		t.Errorf("generic conformance has no template")
	}
	if _, ok := c.Cache.LookupVariable(entity.ForDirectWitnessTable(generic)); ok {
		t.Errorf("generic conformance got a direct table")
	}
	pat, ok := c.Cache.LookupVariable(entity.ForTypeMetadata(b.Tree.Decl(box).Type, false, true))
	if !ok || !pat.ContentType.Equal(c.Runtime.TypeMetadataPattern) {
		t.Errorf("generic type has no metadata pattern")
	}

	acc, ok := c.Cache.LookupFunction(entity.ForLazyWitnessTableAccessor(retro))
	if !ok || len(acc.Blocks) == 0 {
		t.Fatalf("retroactive conformance has no lazy accessor")
	}
	if _, ok := c.Cache.LookupVariable(entity.ForLazyWitnessTableTemplate(retro)); !ok {
		t.Errorf("retroactive conformance has no template")
	}
}

func TestExternalDefinitions(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b
	host := b.AddModule("Host", ast.ModuleForeign)
	hctx := b.FileContext(b.AddFile(host, "host.h", ast.FileLibrary))
	rect := b.Nominal(ast.DeclStruct, "Rect", hctx)
	b.Var("w", b.Tree.Decl(rect).Self, f.i64, 0)
	copying := b.Nominal(ast.DeclProtocol, "Copying", hctx)
	view := b.Class("View", hctx, 0)
	inline := b.Func("inlineHelper", hctx, f.fn(f.unit))
	cx := b.Closure(inline, f.fn(f.unit))
	for _, id := range []ast.DeclID{rect, copying, view, inline} {
		b.AddExternal(id)
	}

	c := f.lower(Options{})

	md, ok := c.Cache.LookupVariable(entity.ForTypeMetadata(b.Tree.Decl(rect).Type, false, false))
	if !ok || md.Linkage != enum.LinkageLinkOnceODR || md.Visibility != enum.VisibilityHidden {
		t.Fatalf("foreign struct metadata = %v", md)
	}
	if pd, ok := c.Cache.LookupVariable(entity.ForProtocolDescriptor(copying)); !ok || pd.Linkage != enum.LinkageLinkOnceODR {
		t.Errorf("foreign protocol descriptor = %v", pd)
	}
	if _, ok := c.Cache.LookupVariable(entity.ForObjCClass(view)); ok {
		t.Errorf("foreign class must not get a record")
	}
	if fn := c.AddrOfAnonymousFunction(cx); len(fn.Blocks) == 0 {
		t.Errorf("closure of an inlinable foreign function not emitted")
	}
}

func TestMainRegistersClassesBeforeCategories(t *testing.T) {
	f := newFixture(ast.FileMain)
	b := f.b
	widget := b.Flag(b.Class("Widget", f.fctx, 0), ast.FlagObjC)
	b.Func("draw", f.self(widget), f.fn(f.unit))
	ext := b.Extension(widget, f.fctx)
	b.Func("refresh", f.self(ext), f.fn(f.unit))
	model := b.Class("Model", f.fctx, 0)
	plainExt := b.Extension(model, f.fctx)
	b.Func("reset", f.self(plainExt), f.fn(f.unit))
	b.AddDecl(ast.DeclTopLevelCode, "", f.fctx, 0)

	c := f.lower(Options{ObjCInterop: true, Immediate: true})
	m := c.IR

	main := findFunc(m, "main")
	if main == nil {
		t.Fatalf("main not emitted")
	}
	names := strings.Join(calleeNames(main), ",")
	classAt := strings.Index(names, interop.ClassInitializerName)
	catAt := strings.Index(names, interop.CategoryInitializerName)
	tlcAt := strings.Index(names, "App.top_level_code.lib.sw")
	if classAt < 0 || catAt < classAt || tlcAt < catAt {
		t.Fatalf("main calls %s", names)
	}

	classes := findGlobal(m, "objc_classes")
	if classes == nil || classes.Section != interop.ClassListSection {
		t.Fatalf("class list missing")
	}
	if cats := findGlobal(m, "objc_categories"); cats == nil {
		t.Fatalf("category list missing")
	} else if n := len(cats.Init.(*constant.Array).Elems); n != 1 {
		t.Errorf("%d categories, want only the runtime-visible class's", n)
	}
	if used := findGlobal(m, "llvm.used"); used == nil {
		t.Fatalf("llvm.used missing")
	}
	if !c.Bridge.Empty() {
		t.Errorf("bridge not reset")
	}
	if findGlobal(m, "llvm.global_ctors") != nil {
		t.Errorf("registration listed as a constructor although main runs it")
	}
}

func TestLibraryRegistersThroughConstructors(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b
	widget := b.Flag(b.Class("Widget", f.fctx, 0), ast.FlagObjC)
	b.Func("draw", f.self(widget), f.fn(f.unit))
	ext := b.Extension(widget, f.fctx)
	b.Func("refresh", f.self(ext), f.fn(f.unit))
	counter := b.Var("counter", f.fctx, f.i64, 0)
	top := b.AddDecl(ast.DeclTopLevelCode, "", f.fctx, 0)
	b.Tree.Decl(top).Body = []ast.Stmt{{Kind: ast.StmtStore, Target: counter, Value: 1}}

	for _, immediate := range []bool{false, true} {
		c := New(f.b.Tree.Fork(), f.app, Config{Options: Options{ObjCInterop: true, Immediate: immediate}})
		c.EmitModule()
		ctors := findGlobal(c.IR, "llvm.global_ctors")
		if ctors == nil {
			t.Fatalf("immediate=%v: llvm.global_ctors missing", immediate)
		}
		var got []string
		for _, e := range ctors.Init.(*constant.Array).Elems {
			got = append(got, e.(*constant.Struct).Fields[1].(*ir.Func).Name())
		}
		want := []string{interop.ClassInitializerName, interop.CategoryInitializerName, "App.init.lib.sw"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("immediate=%v: constructors %v, want %v", immediate, got, want)
		}
	}
}

func TestSameBaseNameFilesLowerSeparately(t *testing.T) {
	f := newFixture(ast.FileLibrary)
	b := f.b
	sub := b.FileContext(b.AddFile(f.app, "sub/lib.sw", ast.FileLibrary))
	tests := []struct {
		ctx      ast.ContextID
		variable string
		tlc      string
		init     string
	}{
		{f.fctx, "first", "App.top_level_code.lib.sw", "App.init.lib.sw"},
		{sub, "second", "App.top_level_code.lib.sw.1", "App.init.lib.sw.1"},
	}
	vars := make([]ast.DeclID, len(tests))
	for i, tt := range tests {
		vars[i] = b.Var(tt.variable, tt.ctx, f.i64, 0)
		top := b.AddDecl(ast.DeclTopLevelCode, "", tt.ctx, 0)
		b.Tree.Decl(top).Body = []ast.Stmt{{Kind: ast.StmtStore, Target: vars[i], Value: int64(i + 1)}}
	}

	c := f.lower(Options{})
	ctors := findGlobal(c.IR, "llvm.global_ctors")
	if ctors == nil || len(ctors.Init.(*constant.Array).Elems) != len(tests) {
		t.Fatalf("want %d constructors, got %v", len(tests), ctors)
	}
	for i, tt := range tests {
		initFn := findFunc(c.IR, tt.init)
		if initFn == nil || len(initFn.Blocks) != 1 {
			t.Fatalf("%s missing or has extra blocks", tt.init)
		}
		if got := calleeNames(initFn); len(got) != 1 || got[0] != tt.tlc {
			t.Errorf("%s calls %v", tt.init, got)
		}
		g, ok := c.Cache.LookupVariable(entity.ForGlobalVariable(vars[i]))
		if !ok {
			t.Fatalf("%s not defined", tt.variable)
		}
		tlc := findFunc(c.IR, tt.tlc)
		if tlc == nil || !strings.Contains(tlc.LLString(), g.Ident()) {
			t.Errorf("%s does not store to %s", tt.tlc, g.Ident())
		}
		entry := ctors.Init.(*constant.Array).Elems[i].(*constant.Struct)
		if entry.Fields[1] != constant.Constant(initFn) {
			t.Errorf("constructor %d registers %v", i, entry.Fields[1])
		}
	}
}

func TestLoweredModulesPassIRChecks(t *testing.T) {
	tests := []struct {
		name string
		kind ast.FileKind
		opts Options
	}{
		{"library", ast.FileLibrary, Options{}},
		{"library with interop", ast.FileLibrary, Options{ObjCInterop: true}},
		{"immediate main", ast.FileMain, Options{ObjCInterop: true, Immediate: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testkit.NewFixture("App", "lib.sw", tt.kind)
			widget := f.B.Flag(f.B.Class("Widget", f.Ctx, 0), ast.FlagObjC)
			ext := f.B.Extension(widget, f.Ctx)
			f.B.Func("refresh", f.Self(ext), f.Fn(f.Unit))
			f.PopulateLibrary()

			c := New(f.Tree(), f.Module, Config{Options: tt.opts})
			c.EmitModule()
			if err := testkit.CheckIR(c.IR); err != nil {
				t.Fatalf("%v\n%s", err, c.IR)
			}
			if err := testkit.CheckSymbols(c.Cache.Symbols()); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestInteropDisabledSkipsRegistration(t *testing.T) {
	f := newFixture(ast.FileMain)
	b := f.b
	widget := b.Flag(b.Class("Widget", f.fctx, 0), ast.FlagObjC)
	ext := b.Extension(widget, f.fctx)
	b.Func("refresh", f.self(ext), f.fn(f.unit))

	c := f.lower(Options{})
	if findFunc(c.IR, interop.ClassInitializerName) != nil || findGlobal(c.IR, "objc_classes") != nil {
		t.Fatalf("registration emitted without interop")
	}
	if cls, ok := c.Cache.LookupVariable(entity.ForObjCClass(widget)); !ok || cls.Init == nil {
		t.Fatalf("class record still expected")
	}
}
