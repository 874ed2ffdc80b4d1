package ast

// StmtKind enumerates the statement forms carried for body lowering.
type StmtKind uint8

const (
	StmtCall  StmtKind = iota + 1 // call Target with no arguments
	StmtStore                     // store Value into global Target
)

// Stmt is a minimal body statement. Instruction selection belongs to the
// body lowerer; the tree only records what it references.
type Stmt struct {
	Kind   StmtKind `msgpack:"k"`
	Target DeclID   `msgpack:"t"`
	Value  int64    `msgpack:"v,omitempty"`
}
