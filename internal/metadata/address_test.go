package metadata

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"linkgen/internal/artifact"
	"linkgen/internal/ast"
	"linkgen/internal/diag"
	"linkgen/internal/entity"
	"linkgen/internal/irtypes"
	"linkgen/internal/linkage"
	"linkgen/internal/mangle"
)

type env struct {
	tree                 *ast.Tree
	addr                 *Addresser
	rt                   *irtypes.Runtime
	point, model, widget ast.DeclID
	proto                ast.DeclID
}

func newEnv() *env {
	b := ast.NewBuilder()
	in := b.Types()
	app := b.AddModule("App", ast.ModuleSource)
	fctx := b.FileContext(b.AddFile(app, "a.sw", ast.FileLibrary))
	e := &env{tree: b.Tree}
	e.point = b.Nominal(ast.DeclStruct, "Point", fctx)
	e.model = b.Class("Model", fctx, 0)
	e.widget = b.Flag(b.Class("Widget", fctx, 0), ast.FlagObjC)
	e.proto = b.Nominal(ast.DeclProtocol, "Shape", fctx)
	b.Var("x", b.Tree.Decl(e.point).Self, in.Int(64), 0)

	m := ir.NewModule()
	e.rt = irtypes.NewRuntime(m)
	cache := artifact.New(m, linkage.New(b.Tree, mangle.New(b.Tree)), diag.BagReporter{Bag: diag.NewBag(8)})
	e.addr = New(b.Tree, cache, e.rt)
	return e
}

func TestClassify(t *testing.T) {
	e := newEnv()
	tests := []struct {
		name              string
		decl              ast.DeclID
		pattern, indirect bool
		want              LayoutClass
		adjust            int64
	}{
		{"struct", e.point, false, false, Direct, 1},
		{"native class", e.model, false, false, HeapDirect, 2},
		{"runtime-visible class", e.widget, false, false, HostClass, 0},
		{"pattern wins", e.model, true, false, Pattern, 0},
		{"indirect", e.point, false, true, Indirect, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.addr.Classify(e.tree.Decl(tt.decl).Type, tt.pattern, tt.indirect)
			if got != tt.want {
				t.Fatalf("class %s, want %s", got, tt.want)
			}
			if adj := LayoutOf(got).Adjust; adj != tt.adjust {
				t.Fatalf("adjust %d, want %d", adj, tt.adjust)
			}
		})
	}
}

func TestTypeMetadataAddressPoint(t *testing.T) {
	e := newEnv()
	pt := e.tree.Decl(e.point).Type

	addr := e.addr.TypeMetadata(pt, nil, false, false)
	gep, ok := addr.(*constant.ExprGetElementPtr)
	if !ok || !gep.InBounds || len(gep.Indices) != 2 {
		t.Fatalf("direct metadata should be an in-bounds GEP, got %v", addr)
	}
	if idx := gep.Indices[1].(*constant.Int); idx.X.Int64() != 1 {
		t.Fatalf("address point at %s, want 1", idx.X)
	}
	if !gep.Type().Equal(e.rt.TypeMetadataPtr) {
		t.Fatalf("address point type %s", gep.Type())
	}

	def := e.addr.TypeMetadata(pt, e.rt.FullTypeMetadata, false, false)
	g, ok := def.(*ir.Global)
	if !ok || gep.Src != constant.Constant(g) {
		t.Fatalf("definition should be the global behind the address point")
	}
}

func TestHostClassMetadataUsesClassRecord(t *testing.T) {
	e := newEnv()
	addr := e.addr.TypeMetadata(e.tree.Decl(e.widget).Type, nil, false, false)
	if addr != e.addr.ObjCClass(e.widget) {
		t.Fatalf("runtime-visible class metadata is not its class record")
	}
}

func TestHeapMetadataAdjust(t *testing.T) {
	e := newEnv()
	gep := e.addr.TypeMetadata(e.tree.Decl(e.model).Type, nil, false, false).(*constant.ExprGetElementPtr)
	if idx := gep.Indices[1].(*constant.Int); idx.X.Int64() != 2 {
		t.Fatalf("heap address point at %s, want 2", idx.X)
	}
}

func TestMetaclassSelection(t *testing.T) {
	e := newEnv()
	host := e.addr.Metaclass(e.widget).(*ir.Global)
	native := e.addr.Metaclass(e.model).(*ir.Global)
	m := mangle.New(e.tree)
	if host.Name() != m.Mangle(entity.ForObjCMetaclass(e.widget)) {
		t.Fatalf("runtime-visible metaclass named %q", host.Name())
	}
	if native.Name() != m.Mangle(entity.ForMetaclassStub(e.model)) {
		t.Fatalf("native metaclass named %q", native.Name())
	}
}

func TestOffsetsAndDescriptors(t *testing.T) {
	e := newEnv()
	x := e.tree.Decl(e.point).Members[0]
	off := e.addr.FieldOffset(x, false)
	if !off.Immutable || off.Align != 8 || !off.ContentType.Equal(e.rt.SizeT) {
		t.Fatalf("field offset global malformed")
	}
	if e.addr.FieldOffset(x, false) != off {
		t.Fatalf("field offset created twice")
	}
	pd := e.addr.ProtocolDescriptor(e.proto, true).(*ir.Global)
	if !pd.ContentType.Equal(e.rt.ProtocolDescriptor) {
		t.Fatalf("protocol descriptor type %s", pd.ContentType)
	}
	defer func() {
		if _, ok := diag.AsInternalError(recover()); !ok {
			t.Fatalf("descriptor of a variable should be fatal")
		}
	}()
	e.addr.NominalTypeDescriptor(x, nil)
}
