package initsynth

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/linkage"
	"linkgen/internal/mangle"
)

type stubRegs struct {
	mod           *ir.Module
	class, catgry *ir.Func
	classN, catgN int
}

func (r *stubRegs) EmitClassInitializer() *ir.Func {
	r.classN++
	if r.class == nil {
		r.class = r.mod.NewFunc("init_classes", lltypes.Void)
	}
	return r.class
}

func (r *stubRegs) EmitCategoryInitializer() *ir.Func {
	r.catgN++
	if r.catgry == nil {
		r.catgry = r.mod.NewFunc("init_categories", lltypes.Void)
	}
	return r.catgry
}

func setup(kind ast.FileKind, opts Options) (*Synthesizer, *ir.Module, ast.FileID) {
	b := ast.NewBuilder()
	app := b.AddModule("App", ast.ModuleSource)
	file := b.AddFile(app, "src/util.sw", kind)
	m := ir.NewModule()
	cache := artifact.New(m, linkage.New(b.Tree, mangle.New(b.Tree)), diag.BagReporter{Bag: diag.NewBag(4)})
	return New(b.Tree, cache, opts), m, file
}

func findFunc(m *ir.Module, name string) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func TestTrivialTopLevelCodeIsElided(t *testing.T) {
	s, m, file := setup(ast.FileLibrary, Options{})
	tlc := s.TopLevelCode(file)
	if tlc.Name() != "App.top_level_code.util.sw" || tlc.Linkage != enum.LinkageInternal {
		t.Fatalf("top-level function %s", tlc.Name())
	}
	tlc.NewBlock("entry").NewRet(nil)

	s.FinishFile(file, nil)
	if len(m.Funcs) != 0 {
		t.Fatalf("trivial initializer left %d functions", len(m.Funcs))
	}
	if s.EmitCtors() != nil {
		t.Fatalf("llvm.global_ctors emitted for an elided initializer")
	}
}

func TestLibraryInitializerRegistered(t *testing.T) {
	s, m, file := setup(ast.FileLibrary, Options{})
	tlc := s.TopLevelCode(file)
	entry := tlc.NewBlock("entry")
	entry.NewCall(m.NewFunc("work", lltypes.Void))
	entry.NewRet(nil)

	s.FinishFile(file, nil)
	initFn := findFunc(m, "App.init.util.sw")
	if initFn == nil || initFn.Linkage != enum.LinkageNone {
		t.Fatalf("library initializer missing or not external")
	}
	if call := initFn.Blocks[0].Insts[0].(*ir.InstCall); call.Callee != tlc {
		t.Fatalf("initializer does not call the top-level code")
	}
	g := s.EmitCtors()
	if g == nil || g.Name() != "llvm.global_ctors" || g.Linkage != enum.LinkageAppending {
		t.Fatalf("llvm.global_ctors malformed")
	}
	entryC := g.Init.(*constant.Array).Elems[0].(*constant.Struct)
	if p := entryC.Fields[0].(*constant.Int); p.X.Int64() != CtorPriority || entryC.Fields[1] != constant.Constant(initFn) {
		t.Fatalf("ctor entry %v", entryC)
	}
	if len(entryC.Fields) != 3 {
		t.Fatalf("ctor entry has %d fields", len(entryC.Fields))
	}
	if _, ok := entryC.Fields[2].(*constant.Null); !ok {
		t.Fatalf("ctor data field = %v, want null", entryC.Fields[2])
	}
}

func TestSameBaseNameFilesGetOwnInitializers(t *testing.T) {
	b := ast.NewBuilder()
	app := b.AddModule("App", ast.ModuleSource)
	files := []ast.FileID{
		b.AddFile(app, "src/util.sw", ast.FileLibrary),
		b.AddFile(app, "vendor/util.sw", ast.FileLibrary),
	}
	m := ir.NewModule()
	cache := artifact.New(m, linkage.New(b.Tree, mangle.New(b.Tree)), diag.BagReporter{Bag: diag.NewBag(4)})
	s := New(b.Tree, cache, Options{})

	tests := []struct {
		work, tlc, init string
	}{
		{"work_src", "App.top_level_code.util.sw", "App.init.util.sw"},
		{"work_vendor", "App.top_level_code.util.sw.1", "App.init.util.sw.1"},
	}
	for i, tt := range tests {
		tlc := s.TopLevelCode(files[i])
		if tlc.Name() != tt.tlc {
			t.Fatalf("file %d top-level code %s, want %s", i, tlc.Name(), tt.tlc)
		}
		entry := tlc.NewBlock("entry")
		entry.NewCall(m.NewFunc(tt.work, lltypes.Void))
		entry.NewRet(nil)
	}
	for _, f := range files {
		s.FinishFile(f, nil)
	}
	for i, tt := range tests {
		initFn := findFunc(m, tt.init)
		if initFn == nil || len(initFn.Blocks) != 1 {
			t.Fatalf("initializer %s missing or has extra blocks", tt.init)
		}
		if got := calls(initFn); len(got) != 1 || got[0] != tt.tlc {
			t.Errorf("%s calls %v", tt.init, got)
		}
		if got := calls(findFunc(m, tt.tlc)); len(got) != 1 || got[0] != tt.work {
			t.Errorf("%s calls %v", tt.tlc, got)
		}
		ctor := s.Ctors()[i].(*constant.Struct)
		if ctor.Fields[1] != constant.Constant(initFn) {
			t.Errorf("ctor %d registers %v", i, ctor.Fields[1])
		}
	}
}

func TestRegisterFirstPrecedesFileInitializers(t *testing.T) {
	s, m, file := setup(ast.FileLibrary, Options{ObjCInterop: true})
	tlc := s.TopLevelCode(file)
	entry := tlc.NewBlock("entry")
	entry.NewCall(m.NewFunc("work", lltypes.Void))
	entry.NewRet(nil)
	s.FinishFile(file, &stubRegs{mod: m})
	if s.MainRegisters() {
		t.Fatalf("library file claims main registration")
	}

	regs := &stubRegs{mod: m}
	s.RegisterFirst(regs.EmitClassInitializer(), nil, regs.EmitCategoryInitializer())
	g := s.EmitCtors()
	elems := g.Init.(*constant.Array).Elems
	want := []string{"init_classes", "init_categories", "App.init.util.sw"}
	if len(elems) != len(want) {
		t.Fatalf("%d ctor entries, want %d", len(elems), len(want))
	}
	for i, name := range want {
		if fn := elems[i].(*constant.Struct).Fields[1].(*ir.Func); fn.Name() != name {
			t.Errorf("ctor %d = %s, want %s", i, fn.Name(), name)
		}
	}
}

func TestLibraryWithoutTopLevelCode(t *testing.T) {
	s, m, file := setup(ast.FileLibrary, Options{})
	s.FinishFile(file, nil)
	if len(m.Funcs) != 0 || s.HasTopLevelCode(file) {
		t.Fatalf("file without top-level code produced functions")
	}
}

func calls(fn *ir.Func) []string {
	var out []string
	for _, inst := range fn.Blocks[0].Insts {
		if c, ok := inst.(*ir.InstCall); ok {
			if f, ok := c.Callee.(*ir.Func); ok {
				out = append(out, f.Name())
			}
		}
	}
	return out
}

func TestMainImmediateOrder(t *testing.T) {
	s, m, file := setup(ast.FileMain, Options{Immediate: true, ObjCInterop: true})
	tlc := s.TopLevelCode(file)
	tlc.NewBlock("entry").NewRet(nil)
	regs := &stubRegs{mod: m}

	s.FinishFile(file, regs)
	main := findFunc(m, "main")
	if main == nil || len(main.Params) != 2 {
		t.Fatalf("main missing")
	}
	if !s.MainRegisters() {
		t.Fatalf("immediate main does not report registration")
	}
	if findFunc(m, "App.init.util.sw") != nil {
		t.Fatalf("main file got a library initializer")
	}
	want := []string{DefaultArgcAccessor, DefaultArgvAccessor, "init_classes", "init_categories", tlc.Name()}
	got := calls(main)
	if len(got) != len(want) {
		t.Fatalf("main calls %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("main call %d = %s, want %s", i, got[i], want[i])
		}
	}
	ret := main.Blocks[0].Term.(*ir.TermRet)
	if c, ok := ret.X.(*constant.Int); !ok || c.X.Int64() != 0 {
		t.Fatalf("main returns %v", ret.X)
	}
}

func TestMainWithoutImmediateSkipsRegistration(t *testing.T) {
	s, m, file := setup(ast.FileREPL, Options{ObjCInterop: true})
	regs := &stubRegs{mod: m}
	s.FinishFile(file, regs)
	if regs.classN != 0 || regs.catgN != 0 {
		t.Fatalf("registration called outside immediate mode")
	}
	if s.MainRegisters() {
		t.Fatalf("main reports registration outside immediate mode")
	}
	if got := calls(findFunc(m, "main")); len(got) != 2 {
		t.Fatalf("main calls %v", got)
	}
}

func TestIsTrivial(t *testing.T) {
	m := ir.NewModule()
	empty := m.NewFunc("a", lltypes.Void)
	empty.NewBlock("").NewRet(nil)
	busy := m.NewFunc("b", lltypes.Void)
	bb := busy.NewBlock("")
	bb.NewCall(empty)
	bb.NewRet(nil)
	decl := m.NewFunc("c", lltypes.Void)
	if !IsTrivial(empty) || IsTrivial(busy) || IsTrivial(decl) {
		t.Fatalf("IsTrivial misclassified")
	}
}
