package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// ввод-вывод
	IOLoadUnitError  Code = 4001
	IOWriteIRError   Code = 4002
	IOBadUnitSchema  Code = 4003
	IOUnitCompressed Code = 4004

	// проект
	ProjInvalidManifest Code = 5001
	ProjMissingUnits    Code = 5002

	ObsInfo    Code = 6000
	ObsTimings Code = 6001

	// понижение деклараций
	LnkInfo              Code = 9000
	LnkFunctionCollision Code = 9001
	LnkVariableCollision Code = 9002
	LnkInternalError     Code = 9003
)

var (
	codeDescription = map[Code]string{
		UnknownCode:          "Unknown error",
		IOLoadUnitError:      "Failed to load unit file",
		IOWriteIRError:       "Failed to write IR output",
		IOBadUnitSchema:      "Unsupported unit file schema",
		IOUnitCompressed:     "Corrupted compressed unit file",
		ProjInvalidManifest:  "Invalid linkgen.toml",
		ProjMissingUnits:     "No unit files to lower",
		ObsInfo:              "Observability info",
		ObsTimings:           "Pipeline timings",
		LnkInfo:              "Lowering info",
		LnkFunctionCollision: "Function collides with existing symbol",
		LnkVariableCollision: "Variable collides with existing symbol",
		LnkInternalError:     "Internal lowering error",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("LNK%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
