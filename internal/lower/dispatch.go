package lower

import (
	"fmt"
	"strconv"
	"time"

	"github.com/llir/llvm/ir"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/observ"
	"linkgen/internal/trace"
)

func (c *Context) enter(scope trace.Scope, name string) func(detail string) {
	sp := trace.Begin(c.tracer, scope, name, c.span)
	parent := c.span
	c.span = sp.ID()
	return func(detail string) {
		sp.End(detail)
		c.span = parent
	}
}

func (c *Context) lowerBody(fn *ir.Func, b Body) {
	start := time.Now()
	c.bodies.LowerBody(c, fn, b)
	c.bodyTime += time.Since(start)
	c.bodyCount++
}

// EmitModule lowers every file of the module and the foreign declarations
// it references, then finalizes.
func (c *Context) EmitModule() {
	m := c.Tree.Module(c.Module)
	c.timer.Track(observ.PhaseDispatch, func() string {
		for _, f := range m.Files {
			c.EmitSourceFile(f)
		}
		for _, id := range c.Tree.External {
			c.EmitExternalDefinition(id)
		}
		return fmt.Sprintf("%d decls", c.declCount)
	})
	c.Finalize()
}

// EmitSourceFile lowers the declarations of one file of this module. All
// top-level code of the file goes into a single function.
func (c *Context) EmitSourceFile(file ast.FileID) {
	f := c.Tree.File(file)
	if f == nil || f.Module != c.Module {
		fatalf("file %d does not belong to module %d", file, c.Module)
	}
	if c.done {
		fatalf("file %s emitted after finalize", f.Name)
	}
	end := c.enter(trace.ScopeModule, "file "+f.Name)

	var stmts []ast.Stmt
	topLevel := false
	for _, id := range f.Decls {
		c.EmitGlobalDecl(id)
		if d := c.decl(id); d.Kind == ast.DeclTopLevelCode {
			topLevel = true
			stmts = append(stmts, d.Body...)
		}
	}
	if topLevel {
		fn := c.Init.TopLevelCode(file)
		c.lowerBody(fn, Body{Kind: BodyTopLevel, Context: f.Context, Stmts: stmts})
	}
	c.files = append(c.files, file)
	end(strconv.Itoa(len(f.Decls)) + " decls")
}

// EmitGlobalDecl lowers one file-level declaration.
func (c *Context) EmitGlobalDecl(id ast.DeclID) {
	d := c.decl(id)
	action := GlobalAction(d.Kind)
	if action == ActionInvalid {
		fatalf("%s %s cannot appear at file scope", d.Kind, d.Name)
	}
	if action == ActionNone {
		return
	}
	c.declCount++
	end := c.enter(trace.ScopeNode, d.Kind.String()+" "+d.Name)
	defer end(action.String())

	switch d.Kind {
	case ast.DeclFunc:
		c.emitFunction(id)
	case ast.DeclVar:
		c.emitGlobalVariable(id)
	case ast.DeclStruct, ast.DeclClass, ast.DeclEnum, ast.DeclProtocol:
		c.emitNominal(id)
	case ast.DeclExtension:
		c.emitExtension(id)
	case ast.DeclTopLevelCode:
		// statements are collected by the file; only locals are emitted here
		c.emitLocalDecls(id)
	}
}

// EmitExternalDefinition emits what this module needs of a declaration
// defined in a foreign module: metadata for types and the local
// declarations of inlinable functions.
func (c *Context) EmitExternalDefinition(id ast.DeclID) {
	d := c.decl(id)
	action := ExternalAction(d.Kind)
	switch action {
	case ActionInvalid:
		fatalf("external %s %s cannot be lowered", d.Kind, d.Name)
	case ActionNone:
		return
	}
	c.declCount++
	end := c.enter(trace.ScopeNode, "external "+d.Kind.String()+" "+d.Name)
	defer end(action.String())

	switch action {
	case ActionEmit:
		c.emitLocalDecls(id)
	case ActionMetadata:
		if c.emitted[id] {
			return
		}
		c.emitted[id] = true
		if d.Kind == ast.DeclProtocol {
			c.emitProtocolMetadata(id)
			return
		}
		c.emitTypeMetadata(id)
	}
}

func (c *Context) emitGlobalVariable(id ast.DeclID) {
	d := c.decl(id)
	if d.Flags.Has(ast.FlagComputed) {
		c.emitAccessors(id)
		return
	}
	c.AddrOfGlobalVariable(id, true)
}

func (c *Context) emitFunction(id ast.DeclID) {
	d := c.decl(id)
	fn := c.AddrOfFunction(id)
	c.lowerBody(fn, Body{Kind: BodyFunction, Decl: id, Context: d.Self})
	c.emitLocalDecls(id)
}

func (c *Context) emitAccessors(id ast.DeclID) {
	d := c.decl(id)
	c.lowerBody(c.AddrOfGetter(id), Body{Kind: BodyGetter, Decl: id, Context: d.Context})
	if d.Flags.Has(ast.FlagSettable) {
		c.lowerBody(c.AddrOfSetter(id), Body{Kind: BodySetter, Decl: id, Context: d.Context})
	}
	if d.Kind == ast.DeclSubscript {
		c.emitLocalDecls(id)
	}
}

func (c *Context) emitConstructor(owner, id ast.DeclID) {
	d := c.decl(id)
	c.lowerBody(c.AddrOfConstructor(id, entity.Allocating),
		Body{Kind: BodyConstructor, Decl: id, Context: d.Self})
	if c.Tree.IsReferenceType(owner) {
		c.lowerBody(c.AddrOfConstructor(id, entity.Initializing),
			Body{Kind: BodyConstructor, Decl: id, Context: d.Self})
	}
	c.emitLocalDecls(id)
}

func (c *Context) emitDestructor(id ast.DeclID) {
	d := c.decl(id)
	c.lowerBody(c.AddrOfDestructor(id, entity.Deallocating),
		Body{Kind: BodyDestructor, Decl: id, Context: d.Self})
	c.lowerBody(c.AddrOfDestructor(id, entity.Destroying),
		Body{Kind: BodyDestructor, Decl: id, Context: d.Self})
	c.emitLocalDecls(id)
}

// emitLocalDecls emits the types and functions declared inside a
// function-like declaration, and its closures.
func (c *Context) emitLocalDecls(id ast.DeclID) {
	d := c.decl(id)
	for _, l := range d.Locals {
		ld := c.decl(l)
		switch ld.Kind {
		case ast.DeclStruct, ast.DeclClass, ast.DeclEnum, ast.DeclProtocol:
			c.emitNominal(l)
		case ast.DeclFunc:
			c.emitFunction(l)
		case ast.DeclVar, ast.DeclTypeAlias:
			// storage and aliases belong to the body
		default:
			fatalf("%s %s cannot be declared locally", ld.Kind, ld.Name)
		}
	}
	for _, cx := range c.closures[d.Self] {
		c.emitClosure(cx)
	}
}

func (c *Context) emitClosure(cx ast.ContextID) {
	c.lowerBody(c.AddrOfAnonymousFunction(cx), Body{Kind: BodyClosure, Context: cx})
	for _, inner := range c.closures[cx] {
		c.emitClosure(inner)
	}
}

// emitNominal emits a nominal type: metadata, members and conformances.
func (c *Context) emitNominal(id ast.DeclID) {
	if c.emitted[id] {
		return
	}
	c.emitted[id] = true
	d := c.decl(id)

	if d.Kind == ast.DeclProtocol {
		c.emitProtocolMetadata(id)
		c.emitRequirements(id)
		return
	}

	c.emitTypeMetadata(id)
	if d.Kind == ast.DeclClass {
		c.emitFieldOffsets(id)
	}
	for _, m := range d.Members {
		c.emitMember(id, m)
	}
	for _, conf := range d.Conformances {
		c.emitConformance(conf)
	}
}

func (c *Context) emitMember(owner, id ast.DeclID) {
	od := c.decl(owner)
	d := c.decl(id)
	switch MemberAction(d.Kind) {
	case ActionInvalid:
		fatalf("%s %s cannot be a member of %s", d.Kind, d.Name, od.Name)
	case ActionNone:
		return
	}

	switch d.Kind {
	case ast.DeclFunc:
		c.emitFunction(id)
	case ast.DeclConstructor:
		c.emitConstructor(owner, id)
	case ast.DeclDestructor:
		if od.Kind != ast.DeclClass {
			fatalf("destructor in %s %s", od.Kind, od.Name)
		}
		c.emitDestructor(id)
	case ast.DeclVar:
		switch {
		case d.Flags.Has(ast.FlagComputed):
			c.emitAccessors(id)
		case d.Flags.Has(ast.FlagStatic):
			c.AddrOfGlobalVariable(id, true)
		}
	case ast.DeclSubscript:
		c.emitAccessors(id)
	case ast.DeclEnumElement:
		if od.Kind != ast.DeclEnum {
			fatalf("enum element %s in %s %s", d.Name, od.Kind, od.Name)
		}
		c.lowerBody(c.AddrOfInjection(id), Body{Kind: BodyInjection, Decl: id, Context: d.Context})
	case ast.DeclStruct, ast.DeclClass, ast.DeclEnum, ast.DeclProtocol:
		c.emitNominal(id)
	}
}

// emitExtension emits the members and conformances an extension adds, and
// queues a host runtime category when the extension needs one.
func (c *Context) emitExtension(id ast.DeclID) {
	if c.emitted[id] {
		return
	}
	c.emitted[id] = true
	d := c.decl(id)
	nominal := c.decl(d.Extended)

	for _, m := range d.Members {
		md := c.decl(m)
		switch ExtensionMemberAction(md.Kind) {
		case ActionInvalid:
			fatalf("%s %s cannot be declared in an extension of %s", md.Kind, md.Name, nominal.Name)
		case ActionNone:
			continue
		}
		switch md.Kind {
		case ast.DeclVar:
			if !md.Flags.Has(ast.FlagComputed) {
				fatalf("stored property %s in an extension of %s", md.Name, nominal.Name)
			}
			c.emitAccessors(m)
		case ast.DeclSubscript:
			c.emitAccessors(m)
		case ast.DeclFunc:
			c.emitFunction(m)
		case ast.DeclConstructor:
			c.emitConstructor(d.Extended, m)
		case ast.DeclStruct, ast.DeclClass, ast.DeclEnum:
			c.emitNominal(m)
		}
	}
	for _, conf := range d.Conformances {
		c.emitConformance(conf)
	}
	if c.opts.ObjCInterop {
		c.Bridge.AddExtension(id)
	}
}

// Finalize closes the module: initializers and main for every emitted
// file, host runtime registration, the constructor list and llvm.used.
// The context cannot emit anything afterwards.
func (c *Context) Finalize() {
	if c.done {
		fatalf("module %s finalized twice", c.IR.SourceFilename)
	}
	c.timer.Add(observ.PhaseBodies, c.bodyTime, strconv.Itoa(c.bodyCount)+" bodies")
	c.timer.Track(observ.PhaseFinalize, func() string {
		end := c.enter(trace.ScopePass, "finalize")
		defer end("")

		for _, f := range c.files {
			c.Init.FinishFile(f, c.Bridge)
		}
		if c.opts.ObjCInterop {
			classInit := c.Bridge.EmitClassInitializer()
			categoryInit := c.Bridge.EmitCategoryInitializer()
			for _, fn := range [...]*ir.Func{classInit, categoryInit} {
				if fn != nil {
					c.Cache.AddUsed(fn)
				}
			}
			// without an immediate main the loader runs registration
			if !c.Init.MainRegisters() {
				c.Init.RegisterFirst(classInit, categoryInit)
			}
			c.Bridge.EmitLists()
		}
		c.Bridge.Reset()
		c.Init.EmitCtors()
		c.Cache.EmitUsed(ir.Align(c.Runtime.PointerSize))
		c.Cache.SealLinkage()
		return fmt.Sprintf("%d files", len(c.files))
	})
	c.done = true
}
