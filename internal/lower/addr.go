package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/abi"
	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/interop"
	"linkgen/internal/types"
)

func (c *Context) function(k entity.Key, sig abi.FormalSignature) *ir.Func {
	return c.Cache.Function(k, c.ABI.FuncType(sig, k.Explosion), sig.CC.IR())
}

// AddrOfFunction returns the function implementing a func declaration.
func (c *Context) AddrOfFunction(id ast.DeclID) *ir.Func {
	sig := c.ABI.Lower(id)
	return c.function(entity.ForFunction(id, c.opts.Explosion, sig.Uncurry), sig)
}

// AddrOfGetter returns the getter of a variable or subscript.
func (c *Context) AddrOfGetter(id ast.DeclID) *ir.Func {
	sig := c.ABI.Getter(id)
	return c.function(entity.ForGetter(id, c.opts.Explosion, sig.Uncurry), sig)
}

// AddrOfSetter returns the setter of a variable or subscript.
func (c *Context) AddrOfSetter(id ast.DeclID) *ir.Func {
	sig := c.ABI.Setter(id)
	return c.function(entity.ForSetter(id, c.opts.Explosion, sig.Uncurry), sig)
}

// AddrOfConstructor returns one entry point of a constructor.
func (c *Context) AddrOfConstructor(id ast.DeclID, kind entity.ConstructorKind) *ir.Func {
	sig := c.ABI.Constructor(id, kind)
	return c.function(entity.ForConstructor(id, kind, c.opts.Explosion, sig.Uncurry), sig)
}

// AddrOfDestructor returns one entry point of a destructor. Deallocating
// destructors have the fixed runtime signature.
func (c *Context) AddrOfDestructor(id ast.DeclID, kind entity.DestructorKind) *ir.Func {
	k := entity.ForDestructor(id, kind)
	if kind == entity.Deallocating {
		return c.Cache.Function(k, c.Runtime.DeallocatingDtor, enum.CallingConvC)
	}
	sig := c.ABI.Destroyer(id)
	return c.Cache.Function(k, c.ABI.FuncType(sig, entity.ExplosionMinimal), sig.CC.IR())
}

// AddrOfInjection returns the function building an enum value from one of
// its elements.
func (c *Context) AddrOfInjection(id ast.DeclID) *ir.Func {
	sig := c.ABI.Injection(id)
	return c.function(entity.ForInjection(id, entity.ExplosionMinimal, sig.Uncurry), sig)
}

// AddrOfAnonymousFunction returns the function of a closure context.
func (c *Context) AddrOfAnonymousFunction(ctx ast.ContextID) *ir.Func {
	sig := c.ABI.Closure(ctx)
	return c.function(entity.ForAnonymousFunction(ctx, c.opts.Explosion, sig.Uncurry), sig)
}

// AddrOfGlobalVariable returns the global of a stored variable. With
// define set the global is given a zero initializer.
func (c *Context) AddrOfGlobalVariable(id ast.DeclID, define bool) *ir.Global {
	d := c.decl(id)
	if d.Kind != ast.DeclVar || d.Flags.Has(ast.FlagComputed) {
		fatalf("%s is not a stored variable", d.Name)
	}
	typ := c.Types.Convert(d.Type)
	ptr := lltypes.NewPointer(typ)
	k := entity.ForGlobalVariable(id)
	if define {
		g := c.Cache.Define(k, typ, typ, ptr)
		if g.Init == nil {
			g.Init = constant.NewZeroInitializer(typ)
		}
		return g
	}
	g, ok := c.Cache.Variable(k, nil, typ, ptr).(*ir.Global)
	if !ok {
		fatalf("global %s was defined with a different type", d.Name)
	}
	return g
}

// AddrOfTypeMetadata returns the address point of a type's metadata.
func (c *Context) AddrOfTypeMetadata(t types.TypeID, pattern, indirect bool) constant.Constant {
	return c.Meta.TypeMetadata(t, nil, pattern, indirect)
}

// AddrOfValueWitness returns one value witness function of a type.
func (c *Context) AddrOfValueWitness(t types.TypeID, w entity.ValueWitness) *ir.Func {
	return c.Meta.ValueWitness(t, w)
}

// AddrOfValueWitnessTable returns the value witness table of a type.
func (c *Context) AddrOfValueWitnessTable(t types.TypeID) constant.Constant {
	return c.Meta.ValueWitnessTable(t, nil)
}

// AddrOfBridgeShim returns the shim converting a thick function of type t
// into a host runtime block.
func (c *Context) AddrOfBridgeShim(t types.TypeID) *ir.Func {
	rt := c.Runtime
	sig := lltypes.NewFunc(rt.Int8Ptr, rt.Int8Ptr, rt.RefCountedPtr)
	return c.Cache.Function(entity.ForBridgeShim(t), sig, enum.CallingConvC)
}

func (c *Context) AddrOfObjCClass(id ast.DeclID) constant.Constant { return c.Meta.ObjCClass(id) }
func (c *Context) AddrOfMetaclass(id ast.DeclID) constant.Constant { return c.Meta.Metaclass(id) }

func (c *Context) AddrOfNominalTypeDescriptor(id ast.DeclID) constant.Constant {
	return c.Meta.NominalTypeDescriptor(id, nil)
}

func (c *Context) AddrOfProtocolDescriptor(id ast.DeclID) constant.Constant {
	return c.Meta.ProtocolDescriptor(id, false)
}

func (c *Context) AddrOfFieldOffset(id ast.DeclID, indirect bool) *ir.Global {
	return c.Meta.FieldOffset(id, indirect)
}

func (c *Context) AddrOfWitnessTableOffset(id ast.DeclID) *ir.Global {
	return c.Meta.WitnessTableOffset(id, entity.ExplosionMinimal, 0)
}

// AddrOfWitnessTable returns the direct witness table of a conformance.
func (c *Context) AddrOfWitnessTable(conf ast.ConformanceID) constant.Constant {
	return c.Meta.WitnessTable(conf, nil)
}

// AddrOfLazyWitnessTableAccessor returns the function that instantiates a
// conformance's witness table on first use.
func (c *Context) AddrOfLazyWitnessTableAccessor(conf ast.ConformanceID) *ir.Func {
	return c.Cache.Function(entity.ForLazyWitnessTableAccessor(conf),
		lltypes.NewFunc(c.Runtime.WitnessTable), enum.CallingConvC)
}

func (c *Context) AddrOfLazyWitnessTableTemplate(conf ast.ConformanceID, storage lltypes.Type) constant.Constant {
	return c.Cache.Variable(entity.ForLazyWitnessTableTemplate(conf), storage, c.Runtime.Int8Ptr, c.Runtime.WitnessTable)
}

// AddrOfDependentWitnessTableGenerator returns the function building the
// witness table of a generic conformance from type metadata.
func (c *Context) AddrOfDependentWitnessTableGenerator(conf ast.ConformanceID) *ir.Func {
	rt := c.Runtime
	return c.Cache.Function(entity.ForDependentWitnessTableGenerator(conf),
		lltypes.NewFunc(rt.WitnessTable, rt.TypeMetadataPtr), enum.CallingConvC)
}

func (c *Context) AddrOfDependentWitnessTableTemplate(conf ast.ConformanceID, storage lltypes.Type) constant.Constant {
	return c.Cache.Variable(entity.ForDependentWitnessTableTemplate(conf), storage, c.Runtime.Int8Ptr, c.Runtime.WitnessTable)
}

// Implementation resolves the function a category registers for a member.
func (c *Context) Implementation(member ast.DeclID, acc interop.Accessor) constant.Constant {
	d := c.decl(member)
	switch acc {
	case interop.Getter:
		return c.AddrOfGetter(member)
	case interop.Setter:
		return c.AddrOfSetter(member)
	}
	if d.Kind == ast.DeclConstructor {
		return c.AddrOfConstructor(member, entity.Initializing)
	}
	return c.AddrOfFunction(member)
}

// ClassMetadata is the record the host runtime knows a class by.
func (c *Context) ClassMetadata(class ast.DeclID) constant.Constant {
	return c.AddrOfTypeMetadata(c.decl(class).Type, false, false)
}

func (c *Context) Metaclass(class ast.DeclID) constant.Constant { return c.AddrOfMetaclass(class) }

func (c *Context) ProtocolRecord(proto ast.DeclID) constant.Constant {
	return c.Meta.ProtocolRecord(proto, nil)
}
