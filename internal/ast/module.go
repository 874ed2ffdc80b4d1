package ast

// ModuleKind tells where a module's declarations come from.
type ModuleKind uint8

const (
	// ModuleSource is being compiled now.
	ModuleSource ModuleKind = iota + 1
	// ModuleForeign is imported from a foreign-language interface.
	ModuleForeign
	// ModuleSerialized was compiled earlier and loaded from disk.
	ModuleSerialized
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleSource:
		return "source"
	case ModuleForeign:
		return "foreign"
	case ModuleSerialized:
		return "serialized"
	}
	return "unknown"
}

type Module struct {
	Name    string     `msgpack:"n"`
	Kind    ModuleKind `msgpack:"k"`
	Context ContextID  `msgpack:"cx"`
	Files   []FileID   `msgpack:"fs,omitempty"`
}

type FileKind uint8

const (
	FileLibrary FileKind = iota + 1
	FileMain
	FileREPL
)

func (k FileKind) String() string {
	switch k {
	case FileLibrary:
		return "library"
	case FileMain:
		return "main"
	case FileREPL:
		return "repl"
	}
	return "unknown"
}

type File struct {
	Name    string    `msgpack:"n"`
	Kind    FileKind  `msgpack:"k"`
	Module  ModuleID  `msgpack:"m"`
	Context ContextID `msgpack:"cx"`
	Decls   []DeclID  `msgpack:"d,omitempty"`
}
