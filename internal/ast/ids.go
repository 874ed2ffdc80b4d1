package ast

import "linkgen/internal/source"

type (
	// главные сущности
	DeclID        uint32
	ContextID     uint32
	ModuleID      uint32
	ConformanceID uint32
	FileID        = source.FileID
)

const (
	NoDeclID        DeclID        = 0
	NoContextID     ContextID     = 0
	NoModuleID      ModuleID      = 0
	NoConformanceID ConformanceID = 0
	NoFileID        FileID        = source.NoFileID
)

func (id DeclID) IsValid() bool        { return id != NoDeclID }
func (id ContextID) IsValid() bool     { return id != NoContextID }
func (id ModuleID) IsValid() bool      { return id != NoModuleID }
func (id ConformanceID) IsValid() bool { return id != NoConformanceID }
