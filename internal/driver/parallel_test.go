package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/lower"
	"linkgen/internal/observ"
	"linkgen/internal/testkit"
	"linkgen/internal/unitfile"
)

func writeUnit(t *testing.T, dir, name string, tree *ast.Tree) string {
	t.Helper()
	path := filepath.Join(dir, name+unitfile.Extension)
	if err := unitfile.Write(path, tree, unitfile.Options{Compress: true}); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// definesMain reports a "define" line for @main with any linkage or
// attributes between the keyword and the name.
func definesMain(ir string) bool {
	for _, line := range strings.Split(ir, "\n") {
		if strings.HasPrefix(line, "define ") && strings.Contains(line, " @main(") {
			return true
		}
	}
	return false
}

func libraryUnit(t *testing.T, dir, module string) string {
	t.Helper()
	f := testkit.NewFixture(module, "lib.sw", ast.FileLibrary)
	f.PopulateLibrary()
	return writeUnit(t, dir, strings.ToLower(module), f.Tree())
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]Status
	phases []PhaseEvent
}

func (r *recorder) progress(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]Status)
	}
	r.events[ev.Module] = append(r.events[ev.Module], ev.Status)
}

func (r *recorder) observe(ev PhaseEvent) { r.phases = append(r.phases, ev) }

func TestLowerUnitsInParallel(t *testing.T) {
	dir := t.TempDir()
	units := []string{libraryUnit(t, dir, "App"), libraryUnit(t, dir, "Tools")}
	rec := &recorder{}

	res, err := Lower(context.Background(), Request{
		Units:    units,
		Jobs:     2,
		Timings:  true,
		Progress: rec.progress,
		Observer: rec.observe,
	})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %+v", res.Broken)
	}
	if len(res.Modules) != 2 || res.Modules[0].Name != "App" || res.Modules[1].Name != "Tools" {
		t.Fatalf("modules = %+v", res.Modules)
	}
	for _, m := range res.Modules {
		if !strings.Contains(m.IR, "App.init.lib.sw") && !strings.Contains(m.IR, "Tools.init.lib.sw") {
			t.Errorf("%s: no file initializer in IR", m.Name)
		}
		if err := testkit.CheckSymbols(m.Symbols); err != nil {
			t.Errorf("%s: %v", m.Name, err)
		}
		got := rec.events[m.Name]
		want := []Status{StatusQueued, StatusWorking, StatusDone}
		if len(got) != len(want) {
			t.Fatalf("%s events = %v", m.Name, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s event %d = %s, want %s", m.Name, i, got[i], want[i])
			}
		}
		items := m.Bag.Items()
		if len(items) != 1 || items[0].Code != diag.ObsTimings {
			t.Fatalf("%s: bag = %+v", m.Name, items)
		}
		rep, ok := TimingNote(items[0])
		if !ok || len(rep.Phases) == 0 {
			t.Errorf("%s: timing note unreadable", m.Name)
		}
	}
	if len(rec.phases) != 4 || rec.phases[0].Name != observ.PhaseLoad || rec.phases[3].Status != PhaseEnd {
		t.Errorf("phases = %+v", rec.phases)
	}
	if len(res.Timing.Phases) != 2 {
		t.Errorf("driver timing = %+v", res.Timing)
	}
}

func TestLowerReportsBrokenUnits(t *testing.T) {
	dir := t.TempDir()
	good := libraryUnit(t, dir, "App")
	bad := filepath.Join(dir, "bad"+unitfile.Extension)
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing"+unitfile.Extension)

	res, err := Lower(context.Background(), Request{Units: []string{good, bad, missing}})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(res.Modules) != 1 || res.Modules[0].Err != nil {
		t.Fatalf("modules = %+v", res.Modules)
	}
	if len(res.Broken) != 2 || res.Broken[0].Path != bad || res.Broken[1].Path != missing {
		t.Fatalf("broken = %+v", res.Broken)
	}
	for _, b := range res.Broken {
		if d := b.Bag.Items()[0]; d.Code != diag.IOLoadUnitError || d.Severity != diag.SevError {
			t.Errorf("%s: %+v", b.Path, d)
		}
	}
	if !res.HasErrors() {
		t.Errorf("broken units must count as errors")
	}
}

func TestModuleFilter(t *testing.T) {
	dir := t.TempDir()
	units := []string{libraryUnit(t, dir, "App"), libraryUnit(t, dir, "Tools")}

	res, err := Lower(context.Background(), Request{Units: units, Modules: []string{"Tools"}})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(res.Modules) != 1 || res.Modules[0].Name != "Tools" {
		t.Fatalf("modules = %+v", res.Modules)
	}

	if _, err := Lower(context.Background(), Request{Units: units, Modules: []string{"Geometry"}}); err == nil {
		t.Fatalf("serialized module selected for lowering")
	}
}

func TestInternalErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()
	f := testkit.NewFixture("Broken", "main.sw", ast.FileMain)
	f.B.AddDecl(ast.DeclConstructor, "init", f.Ctx, f.Fn(f.Unit))
	units := []string{writeUnit(t, dir, "broken", f.Tree())}
	rec := &recorder{}

	res, err := Lower(context.Background(), Request{Units: units, Jobs: 1, Progress: rec.progress})
	var ie *lower.InternalError
	if !errors.As(err, &ie) || ie.Component != "lower" {
		t.Fatalf("err = %v, want an internal error", err)
	}
	m := res.Modules[0]
	if m.Err == nil || m.IR != "" {
		t.Fatalf("module result = %+v", m)
	}
	if items := m.Bag.Items(); len(items) != 1 || items[0].Code != diag.LnkInternalError {
		t.Errorf("bag = %+v", items)
	}
	if got := rec.events["Broken"]; got[len(got)-1] != StatusError {
		t.Errorf("events = %v", got)
	}
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Lower(ctx, Request{Units: []string{libraryUnit(t, dir, "App")}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestOptionsReachLowering(t *testing.T) {
	dir := t.TempDir()
	f := testkit.NewFixture("App", "main.sw", ast.FileMain)
	f.PopulateLibrary()
	units := []string{writeUnit(t, dir, "app", f.Tree())}

	res, err := Lower(context.Background(), Request{
		Units:   units,
		Options: lower.Options{ObjCInterop: true, Immediate: true, PointerSize: 4},
	})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	ir := res.Modules[0].IR
	if !definesMain(ir) {
		t.Errorf("main not emitted for a main file")
	}
	if !strings.Contains(ir, "align 4") {
		t.Errorf("32-bit pointer size not applied")
	}
}

func TestDefinesMain(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"define i32 @main(i32 %argc, i8** %argv) {", true},
		{"define external i32 @main(i32 %argc, i8** %argv) {", true},
		{"declare i32 @main(i32, i8**)", false},
		{"define void @domain() {", false},
	}
	for _, tc := range cases {
		if got := definesMain("; module\n" + tc.line + "\n"); got != tc.want {
			t.Errorf("definesMain(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

// Each module interns fresh function, lvalue and metatype types while its
// methods and constructors are lowered.
func TestModulesOfOneUnitLowerConcurrently(t *testing.T) {
	f := testkit.NewFixture("App", "app.sw", ast.FileLibrary)
	b := f.B
	names := []string{"App", "Tools", "Net", "Store"}
	for i, name := range names {
		ctx := f.Ctx
		if i > 0 {
			ctx = b.FileContext(b.AddFile(b.AddModule(name, ast.ModuleSource), strings.ToLower(name)+".sw", ast.FileLibrary))
		}
		box := b.Nominal(ast.DeclStruct, name+"Box", ctx)
		b.Var("raw", f.Self(box), f.I64, 0)
		b.Func("get", f.Self(box), f.Fn(f.I64))
		node := b.Class(name+"Node", ctx, 0)
		b.AddDecl(ast.DeclConstructor, "init", f.Self(node), f.Fn(f.Unit))
		b.Func("touch", f.Self(node), f.Fn(f.Unit))
	}
	units := []string{writeUnit(t, t.TempDir(), "multi", f.Tree())}

	res, err := Lower(context.Background(), Request{Units: units, Jobs: len(names)})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if res.HasErrors() || len(res.Modules) != len(names) {
		t.Fatalf("modules = %+v broken = %+v", res.Modules, res.Broken)
	}
	for i, m := range res.Modules {
		if m.Name != names[i] || !strings.Contains(m.IR, names[i]+"Box") {
			t.Errorf("module %d: %s lowered without its own declarations", i, m.Name)
		}
	}
}
