// Package artifact owns the IR symbols of one module: at most one function
// or global per entity key, created lazily and upgraded in place.
package artifact

import (
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/linkage"
	"linkgen/internal/source"
)

// Cache maps entity keys to IR symbols. Not safe for concurrent use; one
// Cache belongs to one lowering context.
type Cache struct {
	mod      *ir.Module
	policy   *linkage.Policy
	reporter diag.Reporter
	names    *nameIndex

	funcs   map[entity.Key]*ir.Func
	vars    map[entity.Key]*ir.Global
	defined map[entity.Key]bool
	strings map[string]constant.Constant
	used    []constant.Constant
	failed  bool
}

func New(m *ir.Module, policy *linkage.Policy, reporter diag.Reporter) *Cache {
	return &Cache{
		mod:      m,
		policy:   policy,
		reporter: reporter,
		names:    newNameIndex(m),
		funcs:    make(map[entity.Key]*ir.Func),
		vars:     make(map[entity.Key]*ir.Global),
		defined:  make(map[entity.Key]bool),
		strings:  make(map[string]constant.Constant),
	}
}

// Module returns the IR module the cache writes into.
func (c *Cache) Module() *ir.Module { return c.mod }

// Policy returns the linkage policy used for new symbols.
func (c *Cache) Policy() *linkage.Policy { return c.policy }

// Failed reports whether a symbol collision was diagnosed.
func (c *Cache) Failed() bool { return c.failed }

// Function returns the function for k, creating a declaration with the
// given signature on first use. Asking again with another signature is an
// internal error.
func (c *Cache) Function(k entity.Key, sig *lltypes.FuncType, cc enum.CallingConv) *ir.Func {
	if f, ok := c.funcs[k]; ok {
		if !f.Sig.Equal(sig) {
			diag.Fatalf("artifact", "%s requested as %s, cached as %s", k, sig, f.Sig)
		}
		return f
	}
	f := c.createFunction(c.policy.Get(k), sig, cc)
	c.funcs[k] = f
	return f
}

// LookupFunction returns the cached function for k without creating it.
func (c *Cache) LookupFunction(k entity.Key) (*ir.Func, bool) {
	f, ok := c.funcs[k]
	return f, ok
}

// LookupVariable returns the cached global for k without creating it.
func (c *Cache) LookupVariable(k entity.Key) (*ir.Global, bool) {
	g, ok := c.vars[k]
	return g, ok
}

// Variable returns the global for k.
//
// Without a definition type the result has type ptrToDefault, through a
// bitcast if the cached global differs. With a definition type the result
// is always an *ir.Global of that type: a forward declaration of another
// type is replaced, and every reference inside the module is redirected to
// the new global. A key is redefined at most once.
func (c *Cache) Variable(k entity.Key, definitionType, defaultType lltypes.Type, ptrToDefault *lltypes.PointerType) constant.Constant {
	entry, ok := c.vars[k]
	if ok {
		if definitionType == nil {
			if entry.Typ.Equal(ptrToDefault) {
				return entry
			}
			return constant.NewBitCast(entry, ptrToDefault)
		}
		if entry.ContentType.Equal(definitionType) {
			c.defined[k] = true
			return entry
		}
		if c.defined[k] {
			diag.Fatalf("artifact", "%s redefined as %s after a definition as %s", k, definitionType, entry.ContentType)
		}
		// free the name so the replacement does not look like a collision
		c.names.rename(entry, "")
	}

	typ := definitionType
	if typ == nil {
		typ = defaultType
	}
	g := c.createVariable(c.policy.Get(k), typ)
	if definitionType != nil {
		c.defined[k] = true
	}
	if ok {
		var repl constant.Constant = g
		if !g.Typ.Equal(ptrToDefault) {
			repl = constant.NewBitCast(g, ptrToDefault)
		}
		replaceAllUses(c.mod, entry, repl)
		c.names.remove(entry)
	}
	c.vars[k] = g
	return g
}

// Define is Variable with a definition type; it always yields the global.
func (c *Cache) Define(k entity.Key, definitionType, defaultType lltypes.Type, ptrToDefault *lltypes.PointerType) *ir.Global {
	return c.Variable(k, definitionType, defaultType, ptrToDefault).(*ir.Global)
}

// SimpleVariable returns a constant, aligned global of type typ, used for
// field and witness-table offsets.
func (c *Cache) SimpleVariable(k entity.Key, typ lltypes.Type, align ir.Align) *ir.Global {
	if g, ok := c.vars[k]; ok {
		if g.Align != align {
			diag.Fatalf("artifact", "%s requested with alignment %d, cached with %d", k, align, g.Align)
		}
		return g
	}
	g := c.createVariable(c.policy.Get(k), typ)
	g.Immutable = true
	g.Align = align
	c.vars[k] = g
	return g
}

func (c *Cache) createFunction(info linkage.Info, sig *lltypes.FuncType, cc enum.CallingConv) *ir.Func {
	if existing := c.names.lookup(info.Name); existing != nil {
		if f, ok := existing.(*ir.Func); ok && f.Sig.Equal(sig) {
			return f
		}
		c.collide(diag.LnkFunctionCollision, "function", existing, info.Name)
	}
	params := make([]*ir.Param, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = ir.NewParam("", p)
	}
	f := c.mod.NewFunc(info.Name, sig.RetType, params...)
	f.Sig.Variadic = sig.Variadic
	f.Linkage = info.Linkage.IR()
	f.Visibility = info.Visibility.IR()
	f.CallingConv = cc
	return f
}

func (c *Cache) createVariable(info linkage.Info, typ lltypes.Type) *ir.Global {
	if existing := c.names.lookup(info.Name); existing != nil {
		if g, ok := existing.(*ir.Global); ok && g.ContentType.Equal(typ) {
			return g
		}
		c.collide(diag.LnkVariableCollision, "variable", existing, info.Name)
	}
	g := c.mod.NewGlobal(info.Name, typ)
	g.Linkage = info.Linkage.IR()
	g.Visibility = info.Visibility.IR()
	return g
}

// collide reports a name clash and moves the existing symbol aside.
func (c *Cache) collide(code diag.Code, what string, existing value.Named, name string) {
	diag.ReportError(c.reporter, code, source.Null,
		what+" collides with existing symbol "+name).Emit()
	c.names.rename(existing, c.names.uniqueName(name))
	c.failed = true
}

// Synthesized creates a function that has no entity key, such as module
// initializers and the program entry point. It always creates a new
// function; a taken name gets a numeric suffix.
func (c *Cache) Synthesized(name string, l linkage.Linkage, sig *lltypes.FuncType) *ir.Func {
	name = c.names.uniqueString(name)
	return c.createFunction(linkage.Info{Name: name, Linkage: l, Visibility: linkage.Default}, sig, enum.CallingConvC)
}

// RuntimeFunction declares an external runtime entry point, reusing an
// existing declaration of the same name.
func (c *Cache) RuntimeFunction(name string, sig *lltypes.FuncType) constant.Constant {
	if existing := c.names.lookup(name); existing != nil {
		if f, ok := existing.(*ir.Func); ok {
			if f.Sig.Equal(sig) {
				return f
			}
			return constant.NewBitCast(f, lltypes.NewPointer(sig))
		}
	}
	f := c.createFunction(linkage.Info{Name: name, Linkage: linkage.External, Visibility: linkage.Default}, sig, enum.CallingConvC)
	f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrNoUnwind)
	return f
}

// Erase removes a symbol from the module and forgets any key bound to it.
func (c *Cache) Erase(v value.Named) {
	for k, f := range c.funcs {
		if value.Named(f) == v {
			delete(c.funcs, k)
		}
	}
	for k, g := range c.vars {
		if value.Named(g) == v {
			delete(c.vars, k)
		}
	}
	c.names.remove(v)
}

// Symbol describes one keyed artifact.
type Symbol struct {
	Key        entity.Key
	Name       string
	Linkage    enum.Linkage
	Visibility enum.Visibility
	Function   bool
}

// Symbols lists keyed artifacts ordered by name.
func (c *Cache) Symbols() []Symbol {
	out := make([]Symbol, 0, len(c.funcs)+len(c.vars))
	for k, f := range c.funcs {
		out = append(out, Symbol{Key: k, Name: f.Name(), Linkage: f.Linkage, Visibility: f.Visibility, Function: true})
	}
	for k, g := range c.vars {
		out = append(out, Symbol{Key: k, Name: g.Name(), Linkage: g.Linkage, Visibility: g.Visibility})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
