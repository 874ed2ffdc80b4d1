package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"linkgen/internal/entity"
	"linkgen/internal/lower"
	"linkgen/internal/project"
)

type lowerSettings struct {
	units    []string
	modules  []string
	opts     lower.Options
	outDir   string
	compress bool
	jobs     int
	maxDiags int
	timings  bool
	quiet    bool
	ui       uiMode
}

func addLoweringFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("objc-interop", false, "register classes and categories with the host runtime")
	cmd.Flags().Bool("immediate", false, "run host runtime registration from main")
	cmd.Flags().Int("pointer-size", 0, "target pointer size in bytes (4|8)")
	cmd.Flags().String("explosion", "", "aggregate argument passing (minimal|maximal)")
	cmd.Flags().StringSlice("module", nil, "lower only the named source modules")
}

// loadManifest honours --manifest and otherwise searches upwards from the
// working directory. A missing manifest is not an error.
func loadManifest(cmd *cobra.Command) (*project.Manifest, error) {
	path, err := cmd.Root().PersistentFlags().GetString("manifest")
	if err != nil {
		return nil, err
	}
	if path == "" {
		m, _, err := project.LoadManifest(".")
		return m, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg, err := project.LoadConfig(abs)
	if err != nil {
		return nil, err
	}
	return &project.Manifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}, nil
}

// resolveSettings merges the manifest with command-line flags; flags that
// were set explicitly win.
func resolveSettings(cmd *cobra.Command, args []string) (lowerSettings, error) {
	var s lowerSettings
	manifest, err := loadManifest(cmd)
	if err != nil {
		return s, err
	}

	var cfg project.Config
	if manifest != nil {
		cfg = manifest.Config
		s.units = manifest.UnitPaths()
		s.outDir = manifest.OutputDir()
	}
	if len(args) > 0 {
		s.units = args
	}
	if len(s.units) == 0 {
		if manifest == nil {
			return s, errors.New("no unit files given and no " + project.ManifestName + " found")
		}
		return s, fmt.Errorf("%s: [package].units is empty", manifest.Path)
	}

	flags := cmd.Flags()
	if flags.Changed("objc-interop") {
		cfg.Lower.ObjCInterop, _ = flags.GetBool("objc-interop")
	}
	if flags.Changed("immediate") {
		cfg.Lower.Immediate, _ = flags.GetBool("immediate")
	}
	if flags.Changed("pointer-size") {
		cfg.Lower.PointerSize, _ = flags.GetInt("pointer-size")
	}
	if flags.Changed("explosion") {
		cfg.Lower.Explosion, _ = flags.GetString("explosion")
	}
	if flags.Changed("module") {
		cfg.Lower.Modules, _ = flags.GetStringSlice("module")
	}
	if f := flags.Lookup("output"); f != nil && f.Changed {
		s.outDir = f.Value.String()
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return s, err
	}
	if s.outDir == "" {
		s.outDir = cfg.Output.Dir
	}

	s.modules = cfg.Lower.Modules
	s.compress = cfg.Output.CompressUnits
	s.opts = lower.Options{
		ObjCInterop: cfg.Lower.ObjCInterop,
		Immediate:   cfg.Lower.Immediate,
		PointerSize: cfg.Lower.PointerSize,
		Explosion:   parseExplosion(cfg.Lower.Explosion),
	}

	root := cmd.Root().PersistentFlags()
	s.jobs, _ = root.GetInt("jobs")
	s.maxDiags, _ = root.GetInt("max-diagnostics")
	s.timings, _ = root.GetBool("timings")
	s.quiet, _ = root.GetBool("quiet")
	uiValue, _ := root.GetString("ui")
	if s.ui, err = readUIMode(uiValue); err != nil {
		return s, err
	}
	return s, nil
}

// parseExplosion expects a value already accepted by Config.Validate.
func parseExplosion(s string) entity.Explosion {
	if s == "maximal" {
		return entity.ExplosionMaximal
	}
	return entity.ExplosionMinimal
}
