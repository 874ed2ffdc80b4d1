package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/types"
)

// BodyKind tells the body lowerer what a function implements.
type BodyKind uint8

const (
	BodyFunction BodyKind = iota + 1
	BodyGetter
	BodySetter
	BodyConstructor
	BodyDestructor
	BodyInjection
	BodyClosure
	BodyValueWitness
	BodyTopLevel
)

func (k BodyKind) String() string {
	switch k {
	case BodyFunction:
		return "function"
	case BodyGetter:
		return "getter"
	case BodySetter:
		return "setter"
	case BodyConstructor:
		return "constructor"
	case BodyDestructor:
		return "destructor"
	case BodyInjection:
		return "injection"
	case BodyClosure:
		return "closure"
	case BodyValueWitness:
		return "value-witness"
	case BodyTopLevel:
		return "top-level"
	}
	return "unknown"
}

// Body describes a function whose instructions the body lowerer emits.
type Body struct {
	Kind    BodyKind
	Decl    ast.DeclID
	Context ast.ContextID
	Type    types.TypeID
	Witness entity.ValueWitness
	Stmts   []ast.Stmt
}

// BodyLowerer fills function bodies. The dispatcher only decides where a
// body goes; the lowerer owns its instructions.
type BodyLowerer interface {
	LowerBody(c *Context, fn *ir.Func, body Body)
}

// StubBodies returns a zero value from every function and lowers top-level
// statements as direct calls and integer stores.
type StubBodies struct{}

func (StubBodies) LowerBody(c *Context, fn *ir.Func, body Body) {
	if len(fn.Blocks) > 0 {
		return
	}
	entry := fn.NewBlock("entry")
	if body.Kind == BodyTopLevel {
		for _, st := range body.Stmts {
			lowerStmt(c, entry, st)
		}
	}
	ret := fn.Sig.RetType
	if ret.Equal(lltypes.Void) {
		entry.NewRet(nil)
		return
	}
	entry.NewRet(constant.NewZeroInitializer(ret))
}

func lowerStmt(c *Context, b *ir.Block, st ast.Stmt) {
	switch st.Kind {
	case ast.StmtCall:
		d := c.decl(st.Target)
		if d.Kind != ast.DeclFunc {
			fatalf("call target %s is a %s", d.Name, d.Kind)
		}
		fn := c.AddrOfFunction(st.Target)
		if len(fn.Sig.Params) != 0 {
			args := make([]value.Value, len(fn.Sig.Params))
			for i, p := range fn.Sig.Params {
				args[i] = constant.NewZeroInitializer(p)
			}
			b.NewCall(fn, args...)
			return
		}
		b.NewCall(fn)
	case ast.StmtStore:
		g := c.AddrOfGlobalVariable(st.Target, false)
		it, ok := g.ContentType.(*lltypes.IntType)
		if !ok {
			fatalf("store into non-integer global %s", g.Name())
		}
		b.NewStore(constant.NewInt(it, st.Value), g)
	default:
		fatalf("unknown statement kind %d", st.Kind)
	}
}
