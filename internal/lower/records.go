package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/types"
)

// Metadata kind values stored in the address point record.
const (
	metadataKindStruct = 1
	metadataKindEnum   = 2
	metadataKindClass  = 3
)

func metadataKind(k ast.DeclKind) int64 {
	switch k {
	case ast.DeclEnum:
		return metadataKindEnum
	case ast.DeclClass:
		return metadataKindClass
	}
	return metadataKindStruct
}

// Protocol descriptor flags.
const protocolFlagObjC = 1

// emitTypeMetadata defines the metadata record and the type descriptor of
// a struct, enum or class.
func (c *Context) emitTypeMetadata(id ast.DeclID) {
	d := c.decl(id)
	rt := c.Runtime
	kind := metadataKind(d.Kind)

	switch {
	case c.Tree.IsGenericContext(d.Self):
		pat := rt.TypeMetadataPattern
		g := c.Meta.TypeMetadata(d.Type, pat, true, false).(*ir.Global)
		g.Init = constant.NewStruct(pat,
			constant.NewInt(lltypes.I32, kind),
			constant.NewInt(lltypes.I32, 0),
			constant.NewZeroInitializer(pat.Fields[2]))
	case d.Kind == ast.DeclClass && c.Tree.IsObjC(id):
		c.emitHostClass(id)
	case d.Kind == ast.DeclClass:
		c.emitHeapMetadata(id)
	default:
		vwt := c.emitValueWitnessTable(d.Type)
		g := c.Meta.TypeMetadata(d.Type, rt.FullTypeMetadata, false, false).(*ir.Global)
		g.Init = constant.NewStruct(rt.FullTypeMetadata,
			constant.NewBitCast(vwt, rt.Int8PtrPtr),
			constant.NewStruct(rt.TypeMetadata, constant.NewInt(rt.SizeT, kind)))
	}

	desc := c.Meta.NominalTypeDescriptor(id, rt.NominalTypeDescriptor).(*ir.Global)
	desc.Init = constant.NewStruct(rt.NominalTypeDescriptor,
		constant.NewInt(rt.SizeT, kind),
		c.Cache.GlobalString(c.Tree.QualifiedName(id)))
}

// emitValueWitnessTable defines the value witness table of a fixed-layout
// type together with its witness functions.
func (c *Context) emitValueWitnessTable(t types.TypeID) *ir.Global {
	rt := c.Runtime
	g := c.Meta.ValueWitnessTable(t, rt.ValueWitnessTable).(*ir.Global)
	if g.Init != nil {
		return g
	}
	size, align := rt.SizeAlign(c.Types.Convert(t))
	stride := size
	if stride == 0 {
		stride = 1
	}

	elems := make([]constant.Constant, entity.NumValueWitnesses)
	for w := entity.ValueWitness(0); w < entity.NumValueWitnesses; w++ {
		if w.IsFunction() {
			fn := c.AddrOfValueWitness(t, w)
			c.lowerBody(fn, Body{Kind: BodyValueWitness, Type: t, Witness: w})
			elems[w] = constant.NewBitCast(fn, rt.Int8Ptr)
			continue
		}
		var v uint64
		switch w {
		case entity.WitnessSize:
			v = size
		case entity.WitnessFlags:
			v = align - 1
		case entity.WitnessStride:
			v = stride
		}
		elems[w] = constant.NewIntToPtr(constant.NewInt(rt.SizeT, int64(v)), rt.Int8Ptr)
	}
	g.Init = constant.NewArray(rt.ValueWitnessTable, elems...)
	return g
}

func (c *Context) superclass(id ast.DeclID) (ast.DeclID, bool) {
	d := c.decl(id)
	if d.Superclass == types.NoTypeID {
		return ast.NoDeclID, false
	}
	ref, ok := c.Tree.Types.NominalDecl(d.Superclass)
	if !ok {
		fatalf("superclass of %s is not a nominal type", d.Name)
	}
	return ast.DeclOf(ref), true
}

// emitHostClass defines the host runtime class and metaclass records of a
// runtime-visible class and queues the class for registration.
func (c *Context) emitHostClass(id ast.DeclID) {
	d := c.decl(id)
	rt := c.Runtime
	cls := c.Meta.TypeMetadata(d.Type, rt.ObjCClass, false, false).(*ir.Global)
	meta := c.Cache.Define(entity.ForObjCMetaclass(id), rt.ObjCClass, rt.ObjCClass, rt.ObjCClassPtr)

	var superCls, superMeta constant.Constant = constant.NewNull(rt.ObjCClassPtr), constant.NewNull(rt.ObjCClassPtr)
	var isa constant.Constant = meta
	if super, ok := c.superclass(id); ok && c.Tree.IsObjC(super) {
		superCls = c.AddrOfObjCClass(super)
		superMeta = c.AddrOfMetaclass(super)
		isa = superMeta
	}
	opaque := constant.NewNull(rt.OpaquePtr)
	zero := constant.NewInt(rt.SizeT, 0)
	meta.Init = constant.NewStruct(rt.ObjCClass, isa, superMeta, opaque, opaque, zero)
	cls.Init = constant.NewStruct(rt.ObjCClass, meta, superCls, opaque, opaque, zero)

	if c.opts.ObjCInterop {
		c.Bridge.AddClass(cls)
	}
}

// emitHeapMetadata defines the metadata of a native class and its
// metaclass stub.
func (c *Context) emitHeapMetadata(id ast.DeclID) {
	d := c.decl(id)
	rt := c.Runtime
	g := c.Meta.TypeMetadata(d.Type, rt.FullHeapMetadata, false, false).(*ir.Global)

	var dtor constant.Constant = constant.NewNull(lltypes.NewPointer(rt.DeallocatingDtor))
	for _, m := range d.Members {
		if c.decl(m).Kind == ast.DeclDestructor {
			dtor = c.AddrOfDestructor(m, entity.Deallocating)
		}
	}
	g.Init = constant.NewStruct(rt.FullHeapMetadata,
		dtor,
		constant.NewNull(rt.Int8PtrPtr),
		constant.NewStruct(rt.TypeMetadata, constant.NewInt(rt.SizeT, metadataKindClass)))

	stub := c.Cache.Define(entity.ForMetaclassStub(id), rt.ObjCClass, rt.ObjCClass, rt.ObjCClassPtr)
	stub.Init = constant.NewZeroInitializer(rt.ObjCClass)
}

func (c *Context) isStoredField(id ast.DeclID) bool {
	d := c.decl(id)
	return d.Kind == ast.DeclVar && !d.Flags.Has(ast.FlagComputed) && !d.Flags.Has(ast.FlagStatic)
}

// classFields lists the stored fields of a class after those of its
// superclasses.
func (c *Context) classFields(id ast.DeclID) ([]ast.DeclID, []lltypes.Type) {
	var vars []ast.DeclID
	var fields []lltypes.Type
	if super, ok := c.superclass(id); ok && !c.Tree.IsResilient(super) {
		vars, fields = c.classFields(super)
	}
	for _, m := range c.decl(id).Members {
		if c.isStoredField(m) {
			vars = append(vars, m)
			fields = append(fields, c.Types.Convert(c.decl(m).Type))
		}
	}
	return vars, fields
}

// emitFieldOffsets defines the offset globals of a class's stored
// properties. Below a resilient superclass the offsets are only known at
// run time, so they are emitted as writable indirect offsets.
func (c *Context) emitFieldOffsets(id ast.DeclID) {
	rt := c.Runtime
	indirect := false
	if super, ok := c.superclass(id); ok && c.Tree.IsResilient(super) {
		indirect = true
	}
	vars, fields := c.classFields(id)
	header, _ := rt.SizeAlign(rt.RefCounted)
	offsets := rt.FieldOffsets(header, fields)

	own := make(map[ast.DeclID]bool)
	for _, m := range c.decl(id).Members {
		own[m] = true
	}
	for i, v := range vars {
		if !own[v] {
			continue
		}
		g := c.AddrOfFieldOffset(v, indirect)
		if indirect {
			g.Immutable = false
			g.Init = constant.NewInt(rt.SizeT, 0)
			continue
		}
		g.Init = constant.NewInt(rt.SizeT, int64(offsets[i]))
	}
}

// emitProtocolMetadata defines a protocol's descriptor, and its record
// when the protocol is visible to the host runtime.
func (c *Context) emitProtocolMetadata(id ast.DeclID) {
	d := c.decl(id)
	rt := c.Runtime
	pd := c.Meta.ProtocolDescriptor(id, true).(*ir.Global)

	null := constant.NewNull(rt.Int8Ptr)
	fields := []constant.Constant{null, c.Cache.GlobalString(d.Name)}
	for len(fields) < 8 {
		fields = append(fields, null)
	}
	size, _ := rt.SizeAlign(rt.ProtocolDescriptor)
	objc := d.Flags.Has(ast.FlagObjC) || c.Tree.IsForeign(id)
	var flags int64
	if objc {
		flags |= protocolFlagObjC
	}
	fields = append(fields, constant.NewInt(lltypes.I32, int64(size)), constant.NewInt(lltypes.I32, flags))
	pd.Init = constant.NewStruct(rt.ProtocolDescriptor, fields...)

	if objc {
		rec := c.Meta.ProtocolRecord(id, rt.ProtocolRecord).(*ir.Global)
		rec.Init = constant.NewStruct(rt.ProtocolRecord, c.Cache.GlobalString(d.Name), pd)
	}
}

func isRequirement(k ast.DeclKind) bool {
	switch k {
	case ast.DeclFunc, ast.DeclConstructor, ast.DeclVar, ast.DeclSubscript:
		return true
	}
	return false
}

// emitRequirements assigns witness table slots to a protocol's
// requirements. Slot 0 holds the protocol descriptor.
func (c *Context) emitRequirements(proto ast.DeclID) {
	pd := c.decl(proto)
	slot := int64(1)
	for _, m := range pd.Members {
		md := c.decl(m)
		switch {
		case MemberAction(md.Kind) == ActionInvalid, md.Kind.IsNominal():
			fatalf("%s %s cannot be declared in protocol %s", md.Kind, md.Name, pd.Name)
		case !isRequirement(md.Kind):
			continue
		}
		g := c.AddrOfWitnessTableOffset(m)
		g.Init = constant.NewInt(c.Runtime.SizeT, slot*int64(c.Runtime.PointerSize))
		slot++
	}
}

// witnessCandidates lists the members of a nominal and of every extension
// of it.
func (c *Context) witnessCandidates(nominal ast.DeclID) []ast.DeclID {
	out := append([]ast.DeclID(nil), c.decl(nominal).Members...)
	for i := range c.Tree.Decls.Data {
		d := &c.Tree.Decls.Data[i]
		if d.Kind == ast.DeclExtension && d.Extended == nominal {
			out = append(out, d.Members...)
		}
	}
	return out
}

// witness finds the implementation of a requirement among candidates; nil
// when the type satisfies it with stored storage or a default.
func (c *Context) witness(candidates []ast.DeclID, req ast.DeclID) constant.Constant {
	rd := c.decl(req)
	for _, m := range candidates {
		md := c.decl(m)
		if md.Kind != rd.Kind || md.Name != rd.Name || md.Flags.Has(ast.FlagStatic) != rd.Flags.Has(ast.FlagStatic) {
			continue
		}
		switch md.Kind {
		case ast.DeclFunc:
			return c.AddrOfFunction(m)
		case ast.DeclConstructor:
			return c.AddrOfConstructor(m, entity.Allocating)
		case ast.DeclSubscript:
			return c.AddrOfGetter(m)
		case ast.DeclVar:
			if md.Flags.Has(ast.FlagComputed) {
				return c.AddrOfGetter(m)
			}
			return nil
		}
	}
	return nil
}

// emitConformance defines the witness table of a conformance. Generic
// types get a template and a generator instantiating it per type; a
// conformance declared outside the type's module is instantiated lazily.
func (c *Context) emitConformance(id ast.ConformanceID) {
	conf := c.Tree.Conformance(id)
	if conf == nil {
		fatalf("invalid conformance %d", id)
	}
	ref, ok := c.Tree.Types.NominalDecl(conf.Type)
	if !ok {
		fatalf("conformance %d of a non-nominal type", id)
	}
	nominal := ast.DeclOf(ref)
	nd := c.decl(nominal)
	pd := c.decl(conf.Protocol)
	rt := c.Runtime

	entries := []constant.Constant{constant.NewBitCast(c.AddrOfProtocolDescriptor(conf.Protocol), rt.Int8Ptr)}
	candidates := c.witnessCandidates(nominal)
	for _, req := range pd.Members {
		if !isRequirement(c.decl(req).Kind) {
			continue
		}
		w := c.witness(candidates, req)
		if w == nil {
			entries = append(entries, constant.NewNull(rt.Int8Ptr))
			continue
		}
		entries = append(entries, constant.NewBitCast(w, rt.Int8Ptr))
	}
	storage := lltypes.NewArray(uint64(len(entries)), rt.Int8Ptr)
	table := constant.NewArray(storage, entries...)

	switch {
	case c.Tree.IsGenericContext(nd.Self):
		tmpl := c.AddrOfDependentWitnessTableTemplate(id, storage).(*ir.Global)
		tmpl.Init = table
		gen := c.AddrOfDependentWitnessTableGenerator(id)
		gen.Params[0].SetName("type")
		gen.NewBlock("entry").NewRet(constant.NewBitCast(tmpl, rt.WitnessTable))
	case c.Tree.Context(nd.Context).Module != conf.Module:
		tmpl := c.AddrOfLazyWitnessTableTemplate(id, storage).(*ir.Global)
		tmpl.Init = table
		acc := c.AddrOfLazyWitnessTableAccessor(id)
		acc.NewBlock("entry").NewRet(constant.NewBitCast(tmpl, rt.WitnessTable))
	default:
		wt := c.Meta.WitnessTable(id, storage).(*ir.Global)
		wt.Init = table
	}
}
