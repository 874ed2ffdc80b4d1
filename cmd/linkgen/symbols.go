package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/llir/llvm/ir/enum"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"linkgen/internal/artifact"
)

func newSymbolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols [unit.lku...]",
		Short: "Print the symbol table of each lowered module",
		RunE:  runSymbols,
	}
	addLoweringFlags(cmd)
	cmd.Flags().String("format", "text", "output format (text|json)")
	cmd.Flags().String("filter", "", "show only symbols whose name contains this text")
	return cmd
}

type symbolJSON struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Linkage    string `json:"linkage"`
	Visibility string `json:"visibility"`
	Key        string `json:"key"`
}

type moduleSymbolsJSON struct {
	Module  string       `json:"module"`
	Unit    string       `json:"unit"`
	Symbols []symbolJSON `json:"symbols"`
}

func runSymbols(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return errInvalidFlag("format", format, "text|json")
	}
	filter, _ := cmd.Flags().GetString("filter")

	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	s.ui = uiModeOff
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	res, err := runDriver(cmd, s)
	if res != nil && (res.HasErrors() || s.timings) {
		quiet := s
		quiet.quiet = true
		printResult(cmd.ErrOrStderr(), res, quiet)
	}
	if err != nil {
		return err
	}

	out := make([]moduleSymbolsJSON, 0, len(res.Modules))
	for _, m := range res.Modules {
		entry := moduleSymbolsJSON{Module: m.Name, Unit: m.Unit}
		for _, sym := range m.Symbols {
			if filter != "" && !strings.Contains(sym.Name, filter) {
				continue
			}
			entry.Symbols = append(entry.Symbols, toSymbolJSON(sym))
		}
		out = append(out, entry)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		for _, m := range out {
			renderSymbolTable(cmd.OutOrStdout(), m)
		}
	}
	if res.HasErrors() {
		return errors.New("lowering failed")
	}
	return nil
}

func toSymbolJSON(sym artifact.Symbol) symbolJSON {
	kind := "variable"
	if sym.Function {
		kind = "function"
	}
	return symbolJSON{
		Name:       sym.Name,
		Kind:       kind,
		Linkage:    linkageName(sym.Linkage),
		Visibility: sym.Visibility.String(),
		Key:        sym.Key.String(),
	}
}

// linkageName spells the unmarked default linkage as external.
func linkageName(l enum.Linkage) string {
	if l == enum.LinkageNone {
		return "external"
	}
	return l.String()
}

var symbolColumns = [...]string{"NAME", "KIND", "LINKAGE", "VISIBILITY"}

// renderSymbolTable prints one aligned table per module. Column widths use
// display width so non-ASCII identifiers line up.
func renderSymbolTable(w io.Writer, m moduleSymbolsJSON) {
	fmt.Fprintf(w, "%s (%s)\n", m.Module, m.Unit)
	rows := make([][4]string, 0, len(m.Symbols)+1)
	rows = append(rows, symbolColumns)
	for _, s := range m.Symbols {
		rows = append(rows, [4]string{s.Name, s.Kind, s.Linkage, s.Visibility})
	}
	var widths [4]int
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, r := range rows {
		var sb strings.Builder
		sb.WriteString("  ")
		for i, cell := range r {
			if i == len(r)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}
