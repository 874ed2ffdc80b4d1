// Package testkit builds declaration trees for tests and checks the IR
// produced from them.
package testkit

import (
	"linkgen/internal/ast"
	"linkgen/internal/types"
)

// Fixture is a tree with one source module holding one file.
type Fixture struct {
	B      *ast.Builder
	Module ast.ModuleID
	File   ast.FileID
	Ctx    ast.ContextID
	I64    types.TypeID
	I8     types.TypeID
	Unit   types.TypeID
}

// NewFixture starts a tree with source module module and file file.
func NewFixture(module, file string, kind ast.FileKind) *Fixture {
	b := ast.NewBuilder()
	f := &Fixture{B: b}
	f.Module = b.AddModule(module, ast.ModuleSource)
	f.File = b.AddFile(f.Module, file, kind)
	f.Ctx = b.FileContext(f.File)
	f.I64 = b.Types().Int(types.Width64)
	f.I8 = b.Types().Int(types.Width8)
	f.Unit = b.Types().Unit()
	return f
}

// Tree returns the tree under construction.
func (f *Fixture) Tree() *ast.Tree { return f.B.Tree }

// Fn returns the type of a nullary function returning result.
func (f *Fixture) Fn(result types.TypeID) types.TypeID {
	return f.B.Types().Function(f.Unit, result)
}

// Self returns the context opened by a nominal, extension or function.
func (f *Fixture) Self(id ast.DeclID) ast.ContextID { return f.B.Tree.Decl(id).Self }

// Library holds the declarations added by PopulateLibrary.
type Library struct {
	Shape, Point, Node, Color, Vec ast.DeclID
	Area, Run, Counter             ast.DeclID
	Closure                        ast.ContextID
}

// PopulateLibrary adds a representative mix of declarations: a protocol
// with a conforming struct, a class with constructor and destructor, an
// enum, a retroactive conformance on a serialized type, a closure and
// top-level code that touches a global.
func (f *Fixture) PopulateLibrary() Library {
	b := f.B
	var l Library

	l.Shape = b.Nominal(ast.DeclProtocol, "Shape", f.Ctx)
	b.Func("area", f.Self(l.Shape), f.Fn(f.I64))

	l.Point = b.Nominal(ast.DeclStruct, "Point", f.Ctx)
	b.Var("x", f.Self(l.Point), f.I64, 0)
	b.Var("y", f.Self(l.Point), f.I64, 0)
	l.Area = b.Func("area", f.Self(l.Point), f.Fn(f.I64))
	b.Conform(l.Point, l.Point, l.Shape)

	l.Node = b.Class("Node", f.Ctx, 0)
	b.Var("value", f.Self(l.Node), f.I64, 0)
	b.AddDecl(ast.DeclConstructor, "init", f.Self(l.Node), f.Fn(f.Unit))
	b.AddDecl(ast.DeclDestructor, "deinit", f.Self(l.Node), f.Fn(f.Unit))

	l.Color = b.Nominal(ast.DeclEnum, "Color", f.Ctx)
	b.AddDecl(ast.DeclEnumElement, "red", f.Self(l.Color), 0)
	b.Flag(b.AddDecl(ast.DeclEnumElement, "rgb", f.Self(l.Color), f.I64), ast.FlagHasPayload)

	geo := b.AddModule("Geometry", ast.ModuleSerialized)
	gctx := b.FileContext(b.AddFile(geo, "geo.sw", ast.FileLibrary))
	l.Vec = b.Nominal(ast.DeclStruct, "Vec", gctx)
	ext := b.Extension(l.Vec, f.Ctx)
	b.Func("area", f.Self(ext), f.Fn(f.I64))
	b.Conform(ext, l.Vec, l.Shape)

	l.Counter = b.Var("counter", f.Ctx, f.I64, 0)
	l.Run = b.Func("run", f.Ctx, f.Fn(f.Unit))
	l.Closure = b.Closure(l.Run, f.Fn(f.I64))
	top := b.AddDecl(ast.DeclTopLevelCode, "", f.Ctx, 0)
	b.Tree.Decl(top).Body = []ast.Stmt{
		{Kind: ast.StmtStore, Target: l.Counter, Value: 1},
		{Kind: ast.StmtCall, Target: l.Run},
	}
	return l
}
