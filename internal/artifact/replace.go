package artifact

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
)

// replaceAllUses redirects every reference to old inside m to repl: global
// initializers and the operands of emitted instructions.
func replaceAllUses(m *ir.Module, old value.Value, repl constant.Constant) {
	r := replacer{old: old, repl: repl}
	for _, g := range m.Globals {
		if g.Init != nil {
			g.Init = r.constant(g.Init)
		}
	}
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				r.inst(inst)
			}
			if ret, ok := b.Term.(*ir.TermRet); ok && ret.X != nil {
				ret.X = r.value(ret.X)
			}
		}
	}
}

type replacer struct {
	old  value.Value
	repl constant.Constant
}

func (r replacer) value(v value.Value) value.Value {
	if v == r.old {
		return r.repl
	}
	if c, ok := v.(constant.Constant); ok {
		return r.constant(c)
	}
	return v
}

func (r replacer) constant(c constant.Constant) constant.Constant {
	if value.Value(c) == r.old {
		return r.repl
	}
	switch e := c.(type) {
	case *constant.ExprBitCast:
		e.From = r.constant(e.From)
	case *constant.ExprGetElementPtr:
		e.Src = r.constant(e.Src)
		for i, idx := range e.Indices {
			e.Indices[i] = r.constant(idx)
		}
	case *constant.ExprPtrToInt:
		e.From = r.constant(e.From)
	case *constant.ExprIntToPtr:
		e.From = r.constant(e.From)
	case *constant.Struct:
		for i, f := range e.Fields {
			e.Fields[i] = r.constant(f)
		}
	case *constant.Array:
		for i, el := range e.Elems {
			e.Elems[i] = r.constant(el)
		}
	}
	return c
}

func (r replacer) inst(inst ir.Instruction) {
	switch i := inst.(type) {
	case *ir.InstCall:
		i.Callee = r.value(i.Callee)
		for j, a := range i.Args {
			i.Args[j] = r.value(a)
		}
	case *ir.InstStore:
		i.Src = r.value(i.Src)
		i.Dst = r.value(i.Dst)
	case *ir.InstLoad:
		i.Src = r.value(i.Src)
	case *ir.InstBitCast:
		i.From = r.value(i.From)
	case *ir.InstGetElementPtr:
		i.Src = r.value(i.Src)
		for j, idx := range i.Indices {
			i.Indices[j] = r.value(idx)
		}
	}
}
