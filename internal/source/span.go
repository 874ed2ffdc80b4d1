package source

import (
	"fmt"
)

// FileID identifies a source file inside a declaration tree.
type FileID uint32

// NoFileID marks spans that do not point into any file.
const NoFileID FileID = 0

// Span is a half-open byte range inside one file.
type Span struct {
	File  FileID `msgpack:"f"`
	Start uint32 `msgpack:"s"` // в байтах включительно
	End   uint32 `msgpack:"e"` // в байтах не включительно
}

// Null is the span used by whole-program diagnostics.
var Null = Span{}

func (s Span) Empty() bool {
	return s.Start == s.End
}

// IsNull reports whether the span carries no location at all.
func (s Span) IsNull() bool {
	return s == Null
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	if s.IsNull() {
		return "<unknown>"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}
