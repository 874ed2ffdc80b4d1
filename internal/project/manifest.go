package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

var (
	// ErrPackageSectionMissing indicates that [package] is missing.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageNameMissing indicates that [package].name is missing.
	ErrPackageNameMissing = errors.New("missing [package].name")
)

// Manifest is a loaded linkgen.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest sections.
type Config struct {
	Package PackageConfig `toml:"package"`
	Lower   LowerConfig   `toml:"lower"`
	Output  OutputConfig  `toml:"output"`
}

type PackageConfig struct {
	Name string `toml:"name"`
	// Units lists unit files relative to the project root.
	Units []string `toml:"units"`
}

type LowerConfig struct {
	ObjCInterop bool   `toml:"objc_interop"`
	Immediate   bool   `toml:"immediate"`
	PointerSize int    `toml:"pointer_size"`
	Explosion   string `toml:"explosion"`
	// Modules restricts lowering to the named source modules.
	Modules []string `toml:"modules"`
}

type OutputConfig struct {
	Dir           string `toml:"dir"`
	CompressUnits bool   `toml:"compress_units"`
}

// Defaults fills unset values.
func (c *Config) Defaults() {
	if c.Lower.PointerSize == 0 {
		c.Lower.PointerSize = 8
	}
	if c.Lower.Explosion == "" {
		c.Lower.Explosion = "minimal"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "build"
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Lower.PointerSize {
	case 4, 8:
	default:
		return fmt.Errorf("[lower].pointer_size must be 4 or 8, got %d", c.Lower.PointerSize)
	}
	switch c.Lower.Explosion {
	case "minimal", "maximal":
	default:
		return fmt.Errorf("[lower].explosion must be \"minimal\" or \"maximal\", got %q", c.Lower.Explosion)
	}
	if c.Lower.Immediate && !c.Lower.ObjCInterop {
		return errors.New("[lower].immediate requires objc_interop")
	}
	return nil
}

// LoadConfig parses and validates a manifest file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return Config{}, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return Config{}, fmt.Errorf("%s: %w", path, ErrPackageNameMissing)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadManifest finds and loads the manifest above startDir. ok is false
// when there is none.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

// UnitPaths resolves [package].units against the project root.
func (m *Manifest) UnitPaths() []string {
	out := make([]string, len(m.Config.Package.Units))
	for i, u := range m.Config.Package.Units {
		out[i] = filepath.Join(m.Root, filepath.FromSlash(u))
	}
	return out
}

// OutputDir resolves [output].dir against the project root.
func (m *Manifest) OutputDir() string {
	return filepath.Join(m.Root, filepath.FromSlash(m.Config.Output.Dir))
}
