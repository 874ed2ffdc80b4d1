package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"linkgen/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkgen",
		Short:         "Declaration lowering and symbol linkage",
		Long:          `linkgen lowers serialized declaration trees into LLVM IR modules with their symbol tables`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mode, err := cmd.Root().PersistentFlags().GetString("color")
			if err != nil {
				return err
			}
			return applyColorMode(mode)
		},
	}
	root.AddCommand(newLowerCmd(), newSymbolsCmd(), newPackCmd(), newVersionCmd())

	// Глобальные флаги
	pf := root.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics per module")
	pf.Int("jobs", 0, "modules lowered in parallel (0 = GOMAXPROCS)")
	pf.String("ui", "auto", "progress UI (auto|on|off)")
	pf.String("manifest", "", "path to linkgen.toml (default: search upwards)")

	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "ring", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")

	pf.String("cpu-profile", "", "write CPU profile to file")
	pf.String("mem-profile", "", "write heap profile to file on exit")
	pf.String("runtime-trace", "", "write Go runtime trace to file")
	return root
}

// main executes the root command; Ctrl-C cancels the running lowering.
// Any error exits with status 1.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func applyColorMode(mode string) error {
	switch mode {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return errInvalidFlag("color", mode, "auto|on|off")
	}
	return nil
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
