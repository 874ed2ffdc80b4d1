// Package unitfile reads and writes serialized declaration trees. A unit
// file is a msgpack document, optionally zstd-compressed; the reader tells
// the two apart by the zstd frame magic.
package unitfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"linkgen/internal/ast"
	"linkgen/internal/types"
)

// SchemaVersion is bumped whenever the encoded layout changes.
const SchemaVersion uint16 = 1

// Extension is the conventional file suffix.
const Extension = ".lku"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ErrSchema reports a unit written by an incompatible version.
var ErrSchema = errors.New("unit file schema mismatch")

// ErrCompressed reports a damaged zstd frame.
var ErrCompressed = errors.New("corrupt compressed unit")

// Unit is the on-disk payload.
type Unit struct {
	Schema   uint16      `msgpack:"schema"`
	Producer string      `msgpack:"producer,omitempty"`
	Tree     *ast.Tree   `msgpack:"tree"`
	Types    types.Table `msgpack:"types"`
}

// Options control encoding.
type Options struct {
	Compress bool
	// Level is the zstd encoder level; zero selects the default.
	Level    zstd.EncoderLevel
	Producer string
}

// Encode writes tree to w.
func Encode(w io.Writer, tree *ast.Tree, opts Options) (err error) {
	unit := Unit{
		Schema:   SchemaVersion,
		Producer: opts.Producer,
		Tree:     tree,
		Types:    tree.Types.Snapshot(),
	}
	if !opts.Compress {
		return msgpack.NewEncoder(w).Encode(&unit)
	}

	level := opts.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	defer func() {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("zstd close: %w", cerr)
		}
	}()
	return msgpack.NewEncoder(zw).Encode(&unit)
}

// Decode reads a unit from r, compressed or not, and validates the tree.
func Decode(r io.Reader) (*ast.Tree, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var src io.Reader = br
	compressed := bytes.Equal(head, zstdMagic)
	if compressed {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompressed, err)
		}
		defer zr.Close()
		src = zr
	}

	var unit Unit
	if err := msgpack.NewDecoder(src).Decode(&unit); err != nil {
		if compressed {
			return nil, fmt.Errorf("%w: %v", ErrCompressed, err)
		}
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if unit.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchema, unit.Schema, SchemaVersion)
	}
	if unit.Tree == nil {
		return nil, errors.New("unit has no tree")
	}
	unit.Tree.Types = types.Restore(unit.Types)
	ensureArenas(unit.Tree)
	if err := Validate(unit.Tree); err != nil {
		return nil, err
	}
	return unit.Tree, nil
}

func ensureArenas(t *ast.Tree) {
	if t.Modules == nil {
		t.Modules = ast.NewArena[ast.Module](0)
	}
	if t.Files == nil {
		t.Files = ast.NewArena[ast.File](0)
	}
	if t.Contexts == nil {
		t.Contexts = ast.NewArena[ast.Context](0)
	}
	if t.Decls == nil {
		t.Decls = ast.NewArena[ast.Decl](0)
	}
	if t.Conformances == nil {
		t.Conformances = ast.NewArena[ast.Conformance](0)
	}
}

// Write encodes tree into path through a temporary file and a rename, so
// readers never see a partial unit.
func Write(path string, tree *ast.Tree, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "unit-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	if err := Encode(w, tree, opts); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read decodes the unit at path.
func Read(path string) (*ast.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tree, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// IsCompressed reports whether data starts with a zstd frame.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
