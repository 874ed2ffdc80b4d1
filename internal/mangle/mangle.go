// Package mangle turns entity keys into symbol names.
package mangle

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"linkgen/internal/ast"
	"linkgen/internal/entity"
	"linkgen/internal/types"
)

// Mangler produces linker names. Implementations must be deterministic: the
// same key always yields the same name, and distinct keys distinct names.
type Mangler interface {
	Mangle(k entity.Key) string
	// RuntimeName is the class name registered with the host runtime.
	RuntimeName(d ast.DeclID) string
}

const (
	objcClassPrefix     = "OBJC_CLASS_$_"
	objcMetaclassPrefix = "OBJC_METACLASS_$_"
)

// Default is the built-in mangler.
type Default struct {
	Tree *ast.Tree
}

func New(tree *ast.Tree) *Default { return &Default{Tree: tree} }

type buf struct {
	strings.Builder
	tree *ast.Tree
}

func (m *Default) Mangle(k entity.Key) string {
	b := &buf{tree: m.Tree}
	switch k.Kind {
	case entity.KindObjCClass:
		return objcClassPrefix + m.RuntimeName(k.Decl)
	case entity.KindObjCMetaclass:
		return objcMetaclassPrefix + m.RuntimeName(k.Decl)
	}

	b.WriteString("_T")
	switch k.Kind {
	case entity.KindFunction, entity.KindGetter, entity.KindSetter, entity.KindInjection:
		b.WriteString(accessorCode(k.Kind))
		b.declPath(k.Decl)
		b.declType(k.Decl)
		b.callSuffix(k)
	case entity.KindConstructor:
		if k.ConstructorKind() == entity.Allocating {
			b.WriteString("FC")
		} else {
			b.WriteString("Fc")
		}
		b.declPath(k.Decl)
		b.declType(k.Decl)
		b.callSuffix(k)
	case entity.KindDestructor:
		if k.DestructorKind() == entity.Deallocating {
			b.WriteString("FD")
		} else {
			b.WriteString("Fd")
		}
		b.declPath(k.Decl)
	case entity.KindGlobalVariable:
		b.WriteString("v")
		b.declPath(k.Decl)
	case entity.KindWitnessTableOffset:
		b.WriteString("Wo")
		b.declPath(k.Decl)
		b.declType(k.Decl)
		b.callSuffix(k)
	case entity.KindFieldOffset:
		b.WriteString("Wv")
		if k.Indirect {
			b.WriteString("i")
		} else {
			b.WriteString("d")
		}
		b.declPath(k.Decl)
	case entity.KindMetaclassStub:
		b.WriteString("Mm")
		b.declPath(k.Decl)
	case entity.KindNominalTypeDescriptor:
		b.WriteString("Mn")
		b.declPath(k.Decl)
	case entity.KindProtocolDescriptor:
		b.WriteString("Mp")
		b.declPath(k.Decl)
	case entity.KindProtocolRecord:
		b.WriteString("Mr")
		b.declPath(k.Decl)
	case entity.KindAnonymousFunction:
		b.WriteString("F")
		b.contextPath(k.Context)
		if c := m.Tree.Context(k.Context); c != nil {
			b.typ(c.Type)
		}
		b.callSuffix(k)
	case entity.KindBridgeShim:
		b.WriteString("TTb")
		b.typ(k.Type)
	case entity.KindValueWitness:
		b.WriteString("w")
		b.WriteString(k.ValueWitness().Code())
		b.WriteString("_")
		b.typ(k.Type)
	case entity.KindValueWitnessTable:
		b.WriteString("WV")
		b.typ(k.Type)
	case entity.KindTypeMetadata:
		b.WriteString("M")
		if k.Pattern {
			b.WriteString("P")
		}
		if k.Indirect {
			b.WriteString("i")
		}
		b.WriteString("d")
		b.typ(k.Type)
	case entity.KindDirectWitnessTable:
		b.WriteString("WP")
		b.conformance(k.Conformance)
	case entity.KindLazyWitnessTableAccessor:
		b.WriteString("Wa")
		b.conformance(k.Conformance)
	case entity.KindLazyWitnessTableTemplate:
		b.WriteString("Wl")
		b.conformance(k.Conformance)
	case entity.KindDependentWitnessTableGenerator:
		b.WriteString("WG")
		b.conformance(k.Conformance)
	case entity.KindDependentWitnessTableTemplate:
		b.WriteString("WT")
		b.conformance(k.Conformance)
	default:
		b.WriteString("?")
		b.WriteString(strconv.Itoa(int(k.Kind)))
	}
	return b.String()
}

func accessorCode(k entity.Kind) string {
	switch k {
	case entity.KindGetter:
		return "Fg"
	case entity.KindSetter:
		return "Fs"
	case entity.KindInjection:
		return "Fe"
	}
	return "F"
}

// RuntimeName: foreign classes keep their own name, native classes expose
// "_TtC" plus their mangled path.
func (m *Default) RuntimeName(d ast.DeclID) string {
	if m.Tree.IsForeign(d) {
		if decl := m.Tree.Decl(d); decl != nil {
			return decl.Name
		}
	}
	b := &buf{tree: m.Tree}
	b.WriteString("_TtC")
	b.declPath(d)
	return b.String()
}

func (b *buf) ident(s string) {
	s = norm.NFC.String(s)
	if !isASCII(s) {
		b.WriteString("X")
	}
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// declPath writes module, enclosing contexts and the declaration name.
func (b *buf) declPath(id ast.DeclID) {
	d := b.tree.Decl(id)
	if d == nil {
		b.WriteString("?")
		return
	}
	b.contextPath(d.Context)
	if d.Flags.Has(ast.FlagPrivate) {
		b.WriteString("Pp")
		if f := b.tree.File(b.tree.Context(d.Context).File); f != nil {
			b.ident(f.Name)
		}
	}
	switch d.Kind {
	case ast.DeclStruct:
		b.WriteString("V")
	case ast.DeclClass:
		b.WriteString("C")
	case ast.DeclEnum:
		b.WriteString("O")
	case ast.DeclProtocol:
		b.WriteString("P")
	case ast.DeclSubscript:
		b.WriteString("i")
	}
	b.ident(d.Name)
}

func (b *buf) contextPath(id ast.ContextID) {
	c := b.tree.Context(id)
	if c == nil {
		return
	}
	switch c.Kind {
	case ast.CtxModule:
		if m := b.tree.Module(c.Module); m != nil {
			b.ident(m.Name)
		}
		return
	case ast.CtxFile:
		b.contextPath(c.Parent)
	case ast.CtxNominal, ast.CtxFunction, ast.CtxTopLevelCode, ast.CtxInitializer:
		b.contextPath(c.Parent)
		if d := b.tree.Decl(c.Decl); d != nil {
			b.ident(d.Name)
		} else {
			b.WriteString("_")
		}
		if c.Kind != ast.CtxNominal {
			b.WriteString("L")
		}
	case ast.CtxExtension:
		// members of an extension mangle as members of the extended type
		nd := b.tree.NominalOf(id)
		decl := b.tree.Decl(nd)
		if decl == nil {
			return
		}
		b.contextPath(decl.Context)
		b.ident(decl.Name)
		if owner := b.tree.ModuleOf(nd); owner != nil && owner != b.tree.Module(c.Module) {
			b.WriteString("E")
			b.ident(b.tree.Module(c.Module).Name)
		}
	case ast.CtxClosure:
		b.contextPath(c.Parent)
		b.WriteString("U")
		b.WriteString(strconv.FormatUint(uint64(c.Index), 10))
		b.WriteString("_")
	}
}

func (b *buf) declType(id ast.DeclID) {
	if d := b.tree.Decl(id); d != nil {
		b.typ(d.Type)
	}
}

func (b *buf) callSuffix(k entity.Key) {
	if k.Explosion == entity.ExplosionMaximal {
		b.WriteString("_x")
	} else {
		b.WriteString("_n")
	}
	b.WriteString(strconv.FormatUint(uint64(k.Uncurry), 10))
}

func (b *buf) conformance(id ast.ConformanceID) {
	c := b.tree.Conformance(id)
	if c == nil {
		b.WriteString("?")
		return
	}
	b.typ(c.Type)
	b.declPath(c.Protocol)
	b.WriteString("_")
	if m := b.tree.Module(c.Module); m != nil {
		b.ident(m.Name)
	}
}

func (b *buf) typ(id types.TypeID) {
	in := b.tree.Types
	tt, ok := in.Lookup(id)
	if !ok {
		b.WriteString("v_")
		return
	}
	switch tt.Kind {
	case types.KindTuple:
		b.WriteString("T")
		for _, e := range in.Elems(id) {
			b.typ(e)
		}
		b.WriteString("_")
	case types.KindFunction:
		b.WriteString("F")
		b.typ(tt.Elem)
		b.typ(tt.Result)
	case types.KindPolyFunction:
		b.WriteString("U")
		for _, p := range in.GenericParams(id) {
			b.ident(p.Name)
			for _, proto := range p.Protocols {
				b.WriteString("P")
				b.declPath(ast.DeclOf(proto))
			}
			if p.Superclass != types.NoTypeID {
				b.WriteString("S")
				b.typ(p.Superclass)
			}
		}
		b.WriteString("_")
		b.typ(tt.Elem)
		b.typ(tt.Result)
	case types.KindNominal:
		b.declPath(ast.DeclOf(tt.Decl))
	case types.KindBoundGeneric:
		b.WriteString("G")
		b.declPath(ast.DeclOf(tt.Decl))
		for _, a := range in.Elems(id) {
			b.typ(a)
		}
		b.WriteString("_")
	case types.KindUnboundGeneric:
		b.WriteString("u")
		b.declPath(ast.DeclOf(tt.Decl))
	case types.KindLValue:
		b.WriteString("R")
		b.typ(tt.Elem)
	case types.KindMetatype:
		b.WriteString("M")
		b.typ(tt.Elem)
	case types.KindInt:
		b.WriteString("Bi")
		b.WriteString(strconv.Itoa(int(tt.Width)))
		b.WriteString("_")
	case types.KindFloat:
		b.WriteString("Bf")
		b.WriteString(strconv.Itoa(int(tt.Width)))
		b.WriteString("_")
	case types.KindRawPointer:
		b.WriteString("Bp")
	case types.KindArchetype:
		b.WriteString("Q")
		b.ident(in.ArchetypeName(id))
	default:
		b.WriteString("?")
	}
}
