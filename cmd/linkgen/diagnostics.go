package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"linkgen/internal/diag"
	"linkgen/internal/driver"
	"linkgen/internal/observ"
)

var (
	sevError   = color.New(color.FgRed, color.Bold)
	sevWarning = color.New(color.FgYellow, color.Bold)
	sevInfo    = color.New(color.FgCyan)
	dimmed     = color.New(color.Faint)
)

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return sevError
	case diag.SevWarning:
		return sevWarning
	default:
		return sevInfo
	}
}

// printBag writes the diagnostics of one module or unit:
// <where>: <SEV> <CODE>: <message>
// followed by indented notes. Timing diagnostics are printed only when
// timings is set, as a phase table.
func printBag(w io.Writer, where string, bag *diag.Bag, timings bool) {
	if bag == nil {
		return
	}
	bag.Sort()
	for _, d := range bag.Items() {
		if d.Code == diag.ObsTimings {
			if !timings {
				continue
			}
			if rep, ok := driver.TimingNote(d); ok {
				fmt.Fprintf(w, "%s: %s\n", where, dimmed.Sprint(d.Message))
				printReport(w, rep)
				continue
			}
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n", where,
			severityColor(d.Severity).Sprint(d.Severity), d.Code.ID(), d.Message)
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s\n", dimmed.Sprint("note:"), n.Msg)
		}
	}
}

func printReport(w io.Writer, rep observ.Report) {
	for _, line := range strings.Split(strings.TrimRight(rep.String(), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// printResult reports broken units and module diagnostics, then a one-line
// summary unless quiet.
func printResult(w io.Writer, res *driver.Result, s lowerSettings) {
	for _, b := range res.Broken {
		printBag(w, b.Path, b.Bag, s.timings)
	}
	var failed int
	for i := range res.Modules {
		m := &res.Modules[i]
		printBag(w, m.Name, m.Bag, s.timings)
		if m.Failed || m.Err != nil || (m.Bag != nil && m.Bag.HasErrors()) {
			failed++
		}
	}
	if s.timings && len(res.Modules) > 1 {
		modules := make([]observ.Report, len(res.Modules))
		for i := range res.Modules {
			modules[i] = res.Modules[i].Timing
		}
		merged := observ.Merge(modules...)
		fmt.Fprintln(w, dimmed.Sprint("all modules:"))
		printReport(w, merged)
		for _, p := range merged.Slowest(1) {
			fmt.Fprintf(w, "  slowest phase: %s (%.2f ms)\n", p.Name, p.DurationMS)
		}
	}
	if s.timings {
		fmt.Fprintln(w, dimmed.Sprint("driver:"))
		printReport(w, res.Timing)
	}
	if s.quiet {
		return
	}
	switch {
	case failed > 0 || len(res.Broken) > 0:
		fmt.Fprintf(w, "%s %d of %d modules failed, %d units unreadable\n",
			sevError.Sprint("failed:"), failed, len(res.Modules), len(res.Broken))
	default:
		fmt.Fprintf(w, "%s %d modules\n", color.GreenString("lowered"), len(res.Modules))
	}
}
