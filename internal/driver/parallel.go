// Package driver loads unit files and lowers their source modules in
// parallel, one lowering context per module.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/lower"
	"linkgen/internal/observ"
	"linkgen/internal/source"
	"linkgen/internal/trace"
	"linkgen/internal/unitfile"
)

// Request describes one lowering run.
type Request struct {
	Units []string
	// Modules restricts lowering to the named source modules; empty means all.
	Modules []string
	Options lower.Options
	// Jobs bounds concurrent work; zero means GOMAXPROCS.
	Jobs           int
	MaxDiagnostics int
	// Timings appends a timing diagnostic to every module bag.
	Timings  bool
	Tracer   trace.Tracer
	Progress ProgressFunc
	Observer PhaseObserver
	// Bodies overrides the function body lowerer; nil keeps the stub.
	Bodies func() lower.BodyLowerer
}

// ModuleResult is the outcome of one module lowering.
type ModuleResult struct {
	Unit    string
	Name    string
	IR      string
	Bag     *diag.Bag
	Timing  observ.Report
	Symbols []artifact.Symbol
	// Failed is set when a symbol collision left the module unlinkable.
	Failed bool
	// Err holds the internal error that aborted this module, if any.
	Err error
}

// UnitResult reports a unit file that could not be loaded.
type UnitResult struct {
	Path string
	Bag  *diag.Bag
}

// Result collects everything a run produced. Modules keep unit order and,
// within a unit, module declaration order.
type Result struct {
	Modules []ModuleResult
	Broken  []UnitResult
	Timing  observ.Report
}

// HasErrors reports load failures, collisions or error diagnostics.
func (r *Result) HasErrors() bool {
	if len(r.Broken) > 0 {
		return true
	}
	for i := range r.Modules {
		m := &r.Modules[i]
		if m.Failed || m.Err != nil || (m.Bag != nil && m.Bag.HasErrors()) {
			return true
		}
	}
	return false
}

type job struct {
	unit   string
	tree   *ast.Tree
	module ast.ModuleID
	name   string
}

// Lower loads req.Units and lowers every selected source module. A broken
// invariant in any module cancels the run and is returned as the error;
// results gathered so far are still returned.
func Lower(ctx context.Context, req Request) (*Result, error) {
	tracer := req.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	span := trace.Begin(tracer, trace.ScopeDriver, "lower", trace.CurrentSpan(ctx))
	defer span.End("")

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	progress := req.Progress.serialized()
	timer := observ.NewTimer()
	res := &Result{}

	observe(req.Observer, observ.PhaseLoad, PhaseStart, 0)
	loadStart := time.Now()
	trees, broken := loadUnits(ctx, req.Units, jobs, req.MaxDiagnostics)
	timer.Add(observ.PhaseLoad, time.Since(loadStart), fmt.Sprintf("%d units", len(req.Units)))
	observe(req.Observer, observ.PhaseLoad, PhaseEnd, time.Since(loadStart))
	res.Broken = broken
	if err := ctx.Err(); err != nil {
		return res, err
	}

	work, err := selectModules(req.Units, trees, req.Modules)
	if err != nil {
		return res, err
	}
	for _, j := range work {
		progress(Event{Unit: j.unit, Module: j.name, Status: StatusQueued})
	}

	observe(req.Observer, observ.PhaseEmit, PhaseStart, 0)
	emitStart := time.Now()
	res.Modules = make([]ModuleResult, len(work))
	if len(work) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(work)))
		for i, j := range work {
			i, j := i, j // per-iteration copies (go 1.21 loop semantics)
			g.Go(func() error {
				select {
				case <-gctx.Done():
					res.Modules[i] = ModuleResult{Unit: j.unit, Name: j.name, Err: gctx.Err()}
					return gctx.Err()
				default:
				}
				progress(Event{Unit: j.unit, Module: j.name, Status: StatusWorking})
				mr := lowerModule(j, req, tracer, span.ID())
				res.Modules[i] = mr
				if mr.Err != nil {
					progress(Event{Unit: j.unit, Module: j.name, Status: StatusError, Err: mr.Err})
					return mr.Err
				}
				st := StatusDone
				if mr.Failed || mr.Bag.HasErrors() {
					st = StatusError
				}
				progress(Event{Unit: j.unit, Module: j.name, Status: st})
				return nil
			})
		}
		err = g.Wait()
	}
	timer.Add(observ.PhaseEmit, time.Since(emitStart), fmt.Sprintf("%d modules", len(work)))
	observe(req.Observer, observ.PhaseEmit, PhaseEnd, time.Since(emitStart))
	res.Timing = timer.Report()
	span.WithExtra("modules", fmt.Sprint(len(work)))
	return res, err
}

func loadUnits(ctx context.Context, paths []string, jobs, maxDiagnostics int) ([]*ast.Tree, []UnitResult) {
	trees := make([]*ast.Tree, len(paths))
	errs := make([]error, len(paths))
	if len(paths) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(paths)))
		for i, path := range paths {
			i, path := i, path // per-iteration copies (go 1.21 loop semantics)
			g.Go(func() error {
				if gctx.Err() != nil {
					errs[i] = gctx.Err()
					return nil
				}
				// load failures are per-unit diagnostics, not run errors
				trees[i], errs[i] = unitfile.Read(path)
				return nil
			})
		}
		_ = g.Wait()
	}

	var broken []UnitResult
	for i, err := range errs {
		if err == nil {
			continue
		}
		bag := diag.NewBag(maxDiagnostics)
		bag.Add(diag.NewError(loadErrorCode(err), source.Span{}, err.Error()))
		broken = append(broken, UnitResult{Path: paths[i], Bag: bag})
	}
	return trees, broken
}

func loadErrorCode(err error) diag.Code {
	switch {
	case errors.Is(err, unitfile.ErrSchema):
		return diag.IOBadUnitSchema
	case errors.Is(err, unitfile.ErrCompressed):
		return diag.IOUnitCompressed
	default:
		return diag.IOLoadUnitError
	}
}

// selectModules lists the source modules to lower. Every name in filter
// must match a source module of some loaded unit.
func selectModules(paths []string, trees []*ast.Tree, filter []string) ([]job, error) {
	want := make(map[string]bool, len(filter))
	for _, name := range filter {
		want[name] = false
	}
	var out []job
	for i, tree := range trees {
		if tree == nil {
			continue
		}
		for m := range tree.Modules.Data {
			mod := &tree.Modules.Data[m]
			if mod.Kind != ast.ModuleSource {
				continue
			}
			if len(filter) > 0 {
				if _, ok := want[mod.Name]; !ok {
					continue
				}
				want[mod.Name] = true
			}
			out = append(out, job{unit: paths[i], tree: tree, module: ast.ModuleID(m + 1), name: mod.Name})
		}
	}
	for _, name := range filter {
		if !want[name] {
			return out, fmt.Errorf("no source module named %q", name)
		}
	}
	return out, nil
}

// lowerModule runs one lowering context on a fork of the unit tree, so
// modules of the same unit may run concurrently.
func lowerModule(j job, req Request, tracer trace.Tracer, parent uint64) (res ModuleResult) {
	res = ModuleResult{Unit: j.unit, Name: j.name, Bag: diag.NewBag(req.MaxDiagnostics)}
	span := trace.Begin(tracer, trace.ScopeModule, "module", parent).WithExtra("module", j.name)
	timer := observ.NewTimer()
	defer func() {
		if r := recover(); r != nil {
			ie, ok := diag.AsInternalError(r)
			if !ok {
				panic(r)
			}
			res.IR = ""
			res.Err = fmt.Errorf("module %s: %w", j.name, ie)
			res.Bag.Add(diag.NewError(diag.LnkInternalError, source.Span{}, ie.Error()))
			span.End("internal error")
		}
		res.Timing = timer.Report()
		if req.Timings {
			appendTimingDiagnostic(res.Bag, timingPayload{
				Kind:    "module",
				Path:    j.name,
				TotalMS: res.Timing.TotalMS,
				Phases:  res.Timing.Phases,
			})
		}
	}()

	cfg := lower.Config{
		Options:    req.Options,
		Reporter:   diag.NewDedupReporter(diag.BagReporter{Bag: res.Bag}),
		Tracer:     tracer,
		Timer:      timer,
		SpanParent: span.ID(),
	}
	if req.Bodies != nil {
		cfg.Bodies = req.Bodies()
	}
	c := lower.New(j.tree.Fork(), j.module, cfg)
	c.EmitModule()
	timer.Track(observ.PhaseEmit, func() string {
		res.IR = c.IR.String()
		return fmt.Sprintf("%d bytes", len(res.IR))
	})
	res.Symbols = c.Cache.Symbols()
	res.Failed = c.Failed()
	span.End(fmt.Sprintf("%d symbols", len(res.Symbols)))
	return res
}

// Status is the state of one module in a progress event.
type Status uint8

const (
	StatusQueued Status = iota
	StatusWorking
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusWorking:
		return "lowering"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Event reports progress of one module.
type Event struct {
	Unit   string
	Module string
	Status Status
	Err    error
}

// ProgressFunc receives progress events, one at a time.
type ProgressFunc func(Event)

func (f ProgressFunc) serialized() ProgressFunc {
	if f == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		f(ev)
	}
}
