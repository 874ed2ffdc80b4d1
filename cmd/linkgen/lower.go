package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"linkgen/internal/diag"
	"linkgen/internal/driver"
	"linkgen/internal/trace"
)

func newLowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lower [unit.lku...]",
		Short: "Lower unit files into LLVM IR modules",
		Long: `Lower every source module of the given unit files, or of the units listed in
linkgen.toml, and write one <module>.ll file per module into the output directory.`,
		RunE: runLower,
	}
	addLoweringFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output directory (default: [output].dir)")
	cmd.Flags().Bool("force", false, "lower even when the outputs are up to date")
	return cmd
}

func runLower(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
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

	fp, err := fingerprint(s)
	if err != nil {
		return err
	}
	if force, _ := cmd.Flags().GetBool("force"); !force && upToDate(s.outDir, fp) {
		if !s.quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "up to date: %s (%s)\n", s.outDir, fp.Short())
		}
		return nil
	}

	res, err := runDriver(cmd, s)
	if res != nil {
		printResult(cmd.ErrOrStderr(), res, s)
	}
	if err != nil {
		return err
	}
	if res.HasErrors() {
		removeStamp(s.outDir)
		return errors.New("lowering failed")
	}

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return err
	}
	outputs := make([]string, 0, len(res.Modules))
	for _, m := range res.Modules {
		name := m.Name + ".ll"
		if err := os.WriteFile(filepath.Join(s.outDir, name), []byte(m.IR), 0o644); err != nil {
			return fmt.Errorf("%s %s: %w", diag.IOWriteIRError.ID(), name, err)
		}
		outputs = append(outputs, name)
	}
	return writeStamp(s.outDir, fp, outputs)
}

// runDriver lowers with or without the progress UI. An internal error
// dumps the trace ring to stderr when one is configured.
func runDriver(cmd *cobra.Command, s lowerSettings) (*driver.Result, error) {
	ctx := cmd.Context()
	tracer := trace.FromContext(ctx)
	req := driver.Request{
		Units:          s.units,
		Modules:        s.modules,
		Options:        s.opts,
		Jobs:           s.jobs,
		MaxDiagnostics: s.maxDiags,
		Timings:        s.timings,
		Tracer:         tracer,
	}

	var res *driver.Result
	var err error
	if shouldUseTUI(s.ui, s.quiet) {
		res, err = runLowerWithUI(ctx, "lowering", req)
	} else {
		res, err = driver.Lower(ctx, req)
	}

	var ie *diag.InternalError
	if errors.As(err, &ie) {
		if ring := trace.Ring(tracer); ring != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "trace ring at failure:")
			if dumpErr := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); dumpErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", dumpErr)
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		return res, errors.New("interrupted")
	}
	return res, err
}
