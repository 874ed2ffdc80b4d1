// Package initsynth builds per-file module initializers and the program
// entry point.
package initsynth

import (
	"path/filepath"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/linkage"
)

// Default accessors returning the addresses of the runtime's argc and argv
// globals.
const (
	DefaultArgcAccessor = "_TFSsa6C_ARGCVSs5Int32"
	DefaultArgvAccessor = "_TFSsa6C_ARGVGVSs13UnsafePointerVSs7CString_"
)

// CtorPriority is the priority of every registered module initializer.
const CtorPriority = 1

type Options struct {
	// Immediate runs registration from main instead of the loader.
	Immediate    bool
	ObjCInterop  bool
	ArgcAccessor string
	ArgvAccessor string
}

// Registrations produces the host runtime registration initializers.
type Registrations interface {
	EmitClassInitializer() *ir.Func
	EmitCategoryInitializer() *ir.Func
}

// Synthesizer owns the top-level code functions of one module.
type Synthesizer struct {
	tree  *ast.Tree
	cache *artifact.Cache
	opts  Options

	topLevel map[ast.FileID]*ir.Func
	bases    map[ast.FileID]string
	claimed  map[string]bool
	ctors    []constant.Constant
	ctorType *lltypes.StructType
	// mainRegisters is set once main calls the registration initializers.
	mainRegisters bool
}

func New(tree *ast.Tree, cache *artifact.Cache, opts Options) *Synthesizer {
	if opts.ArgcAccessor == "" {
		opts.ArgcAccessor = DefaultArgcAccessor
	}
	if opts.ArgvAccessor == "" {
		opts.ArgvAccessor = DefaultArgvAccessor
	}
	voidFn := lltypes.NewPointer(lltypes.NewFunc(lltypes.Void))
	i8ptr := lltypes.NewPointer(lltypes.I8)
	return &Synthesizer{
		tree:     tree,
		cache:    cache,
		opts:     opts,
		topLevel: make(map[ast.FileID]*ir.Func),
		bases:    make(map[ast.FileID]string),
		claimed:  make(map[string]bool),
		ctorType: lltypes.NewStruct(lltypes.I32, voidFn, i8ptr),
	}
}

// prefix names the synthesized functions of file. Files of one module that
// share a base name are told apart by a numeric suffix in file order of
// first use.
func (s *Synthesizer) prefix(file ast.FileID) (module, base string) {
	f := s.tree.File(file)
	if m := s.tree.Module(f.Module); m != nil {
		module = m.Name
	}
	if base, ok := s.bases[file]; ok {
		return module, base
	}
	base = filepath.Base(f.Name)
	for i := 1; s.claimed[base]; i++ {
		base = filepath.Base(f.Name) + "." + strconv.Itoa(i)
	}
	s.claimed[base] = true
	s.bases[file] = base
	return module, base
}

// TopLevelCode returns the function holding a file's top-level statements,
// creating it on first use.
func (s *Synthesizer) TopLevelCode(file ast.FileID) *ir.Func {
	if fn, ok := s.topLevel[file]; ok {
		return fn
	}
	mod, base := s.prefix(file)
	fn := s.cache.Synthesized(mod+".top_level_code."+base, linkage.Internal, lltypes.NewFunc(lltypes.Void))
	s.topLevel[file] = fn
	return fn
}

// HasTopLevelCode reports whether TopLevelCode was requested for file.
func (s *Synthesizer) HasTopLevelCode(file ast.FileID) bool {
	_, ok := s.topLevel[file]
	return ok
}

// IsTrivial reports a function whose only content is "ret void".
func IsTrivial(fn *ir.Func) bool {
	if len(fn.Blocks) != 1 {
		return false
	}
	b := fn.Blocks[0]
	ret, ok := b.Term.(*ir.TermRet)
	return ok && ret.X == nil && len(b.Insts) == 0
}

// FinishFile closes a source file. Library files get an external
// initializer calling the top-level code, registered in llvm.global_ctors,
// unless the top-level code is trivial, in which case both functions are
// erased. Main and REPL files get main instead.
func (s *Synthesizer) FinishFile(file ast.FileID, regs Registrations) {
	f := s.tree.File(file)
	if f.Kind == ast.FileMain || f.Kind == ast.FileREPL {
		s.emitMain(file, regs)
		return
	}
	tlc, ok := s.topLevel[file]
	if !ok {
		return
	}
	if IsTrivial(tlc) {
		s.cache.Erase(tlc)
		delete(s.topLevel, file)
		return
	}
	mod, base := s.prefix(file)
	initFn := s.cache.Synthesized(mod+".init."+base, linkage.External, lltypes.NewFunc(lltypes.Void))
	entry := initFn.NewBlock("entry")
	entry.NewCall(tlc)
	entry.NewRet(nil)
	s.ctors = append(s.ctors, s.ctorEntry(initFn))
}

func (s *Synthesizer) ctorEntry(fn *ir.Func) constant.Constant {
	return constant.NewStruct(s.ctorType,
		constant.NewInt(lltypes.I32, CtorPriority), fn,
		constant.NewNull(s.ctorType.Fields[2].(*lltypes.PointerType)))
}

// RegisterFirst puts fns ahead of every file initializer in
// llvm.global_ctors, keeping their order. Nil entries are skipped.
func (s *Synthesizer) RegisterFirst(fns ...*ir.Func) {
	var head []constant.Constant
	for _, fn := range fns {
		if fn != nil {
			head = append(head, s.ctorEntry(fn))
		}
	}
	s.ctors = append(head, s.ctors...)
}

// MainRegisters reports whether main runs the host runtime registration.
func (s *Synthesizer) MainRegisters() bool { return s.mainRegisters }

func (s *Synthesizer) emitMain(file ast.FileID, regs Registrations) *ir.Func {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	sig := lltypes.NewFunc(lltypes.I32, lltypes.I32, lltypes.NewPointer(i8ptr))
	main := s.cache.Synthesized("main", linkage.External, sig)
	entry := main.NewBlock("entry")

	accessor := lltypes.NewFunc(i8ptr)
	for i, name := range [...]string{"argc", "argv"} {
		p := main.Params[i]
		p.SetName(name)
		acc := s.accessor(name)
		addr := entry.NewCall(s.cache.RuntimeFunction(acc, accessor))
		slot := entry.NewBitCast(addr, lltypes.NewPointer(p.Typ))
		entry.NewStore(p, slot)
	}

	if s.opts.Immediate && s.opts.ObjCInterop && regs != nil {
		s.mainRegisters = true
		if fn := regs.EmitClassInitializer(); fn != nil {
			entry.NewCall(fn)
		}
		if fn := regs.EmitCategoryInitializer(); fn != nil {
			entry.NewCall(fn)
		}
	}
	if tlc, ok := s.topLevel[file]; ok {
		entry.NewCall(tlc)
	}
	entry.NewRet(constant.NewInt(lltypes.I32, 0))
	return main
}

func (s *Synthesizer) accessor(param string) string {
	if param == "argc" {
		return s.opts.ArgcAccessor
	}
	return s.opts.ArgvAccessor
}

// EmitCtors writes llvm.global_ctors. Nothing is written without
// registered initializers.
func (s *Synthesizer) EmitCtors() *ir.Global {
	if len(s.ctors) == 0 {
		return nil
	}
	arr := lltypes.NewArray(uint64(len(s.ctors)), s.ctorType)
	g := s.cache.Module().NewGlobalDef("llvm.global_ctors", constant.NewArray(arr, s.ctors...))
	g.Linkage = enum.LinkageAppending
	s.ctors = nil
	return g
}

// Ctors returns the pending llvm.global_ctors entries.
func (s *Synthesizer) Ctors() []constant.Constant { return s.ctors }
