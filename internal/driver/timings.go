package driver

import (
	"encoding/json"
	"fmt"

	"linkgen/internal/diag"
	"linkgen/internal/observ"
	"linkgen/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic adds an info diagnostic carrying payload as a JSON
// note. It grows a full bag rather than dropping the entry.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "pipeline"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, payload.Path)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, msg).
		WithNote(source.Span{}, string(data))
	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(bag.Len() + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}

// TimingNote extracts the report stored by a timing diagnostic.
func TimingNote(d diag.Diagnostic) (observ.Report, bool) {
	if d.Code != diag.ObsTimings || len(d.Notes) == 0 {
		return observ.Report{}, false
	}
	var p timingPayload
	if err := json.Unmarshal([]byte(d.Notes[0].Msg), &p); err != nil {
		return observ.Report{}, false
	}
	return observ.Report{TotalMS: p.TotalMS, Phases: p.Phases}, true
}
