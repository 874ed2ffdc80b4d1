// Package lower drives declaration lowering for one module: it dispatches
// declarations to their emission routines, hands out artifact addresses
// and finalizes the module.
package lower

import (
	"time"

	"github.com/llir/llvm/ir"

	"linkgen/internal/abi"
	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/initsynth"
	"linkgen/internal/interop"
	"linkgen/internal/irtypes"
	"linkgen/internal/linkage"
	"linkgen/internal/mangle"
	"linkgen/internal/metadata"
	"linkgen/internal/observ"
	"linkgen/internal/trace"
)

// InternalError is raised by panic when the input tree breaks an invariant
// the lowering relies on.
type InternalError = diag.InternalError

func fatalf(format string, args ...any) {
	diag.Fatalf("lower", format, args...)
}

// Options are the per-run lowering switches.
type Options struct {
	ObjCInterop bool
	// Immediate runs host runtime registration from main.
	Immediate bool
	Explosion entity.Explosion
	// PointerSize is 4 or 8; zero means 8.
	PointerSize int
}

// Config wires the collaborators of a Context. Nil fields get defaults.
type Config struct {
	Options
	Mangler  mangle.Mangler
	Reporter diag.Reporter
	Bodies   BodyLowerer
	Tracer   trace.Tracer
	Timer    *observ.Timer
	// SpanParent nests the context's spans under a driver span.
	SpanParent uint64
}

// Context is the state of one module lowering. It is single-threaded; run
// several modules concurrently with one Context each.
type Context struct {
	Tree    *ast.Tree
	Module  ast.ModuleID
	IR      *ir.Module
	Runtime *irtypes.Runtime
	Types   *irtypes.Converter
	ABI     *abi.Lowerer
	Cache   *artifact.Cache
	Meta    *metadata.Addresser
	Bridge  *interop.Bridge
	Init    *initsynth.Synthesizer

	opts     Options
	bodies   BodyLowerer
	tracer   trace.Tracer
	timer    *observ.Timer
	span     uint64
	closures map[ast.ContextID][]ast.ContextID
	files    []ast.FileID
	emitted  map[ast.DeclID]bool
	done     bool

	declCount int
	bodyCount int
	bodyTime  time.Duration
}

// New prepares a lowering context for one module of tree.
func New(tree *ast.Tree, module ast.ModuleID, cfg Config) *Context {
	if tree.Module(module) == nil {
		fatalf("unknown module %d", module)
	}
	if cfg.Mangler == nil {
		cfg.Mangler = mangle.New(tree)
	}
	if cfg.Reporter == nil {
		cfg.Reporter = diag.BagReporter{}
	}
	if cfg.Bodies == nil {
		cfg.Bodies = StubBodies{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	if cfg.Timer == nil {
		cfg.Timer = observ.NewTimer()
	}

	m := ir.NewModule()
	m.SourceFilename = tree.Module(module).Name
	rt := irtypes.NewRuntimeFor(m, cfg.PointerSize)
	conv := irtypes.NewConverter(tree, m, rt)
	cache := artifact.New(m, linkage.New(tree, cfg.Mangler), cfg.Reporter)

	c := &Context{
		Tree:     tree,
		Module:   module,
		IR:       m,
		Runtime:  rt,
		Types:    conv,
		ABI:      abi.NewLowerer(tree, conv),
		Cache:    cache,
		Meta:     metadata.New(tree, cache, rt),
		opts:     cfg.Options,
		bodies:   cfg.Bodies,
		tracer:   cfg.Tracer,
		timer:    cfg.Timer,
		span:     cfg.SpanParent,
		closures: indexClosures(tree),
		emitted:  make(map[ast.DeclID]bool),
	}
	c.Bridge = interop.New(tree, cache, rt, c)
	c.Init = initsynth.New(tree, cache, initsynth.Options{
		Immediate:   cfg.Immediate,
		ObjCInterop: cfg.ObjCInterop,
	})
	return c
}

func indexClosures(tree *ast.Tree) map[ast.ContextID][]ast.ContextID {
	out := make(map[ast.ContextID][]ast.ContextID)
	for i := range tree.Contexts.Data {
		cx := &tree.Contexts.Data[i]
		if cx.Kind == ast.CtxClosure {
			out[cx.Parent] = append(out[cx.Parent], ast.ContextID(i+1))
		}
	}
	return out
}

// Options returns the lowering switches.
func (c *Context) Options() Options { return c.opts }

// Failed reports whether a symbol collision made the output unlinkable.
func (c *Context) Failed() bool { return c.Cache.Failed() }

// Timer returns the phase timer of this lowering.
func (c *Context) Timer() *observ.Timer { return c.timer }

func (c *Context) decl(id ast.DeclID) *ast.Decl {
	d := c.Tree.Decl(id)
	if d == nil {
		fatalf("invalid declaration %d", id)
	}
	return d
}
