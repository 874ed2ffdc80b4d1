package main

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"linkgen/internal/project"
)

const stampName = ".linkgen-stamp"

// stamp records the inputs of the last successful lowering into an output
// directory, so an unchanged rerun can be skipped.
type stamp struct {
	Fingerprint string   `json:"fingerprint"`
	Outputs     []string `json:"outputs"`
}

// fingerprint hashes the unit contents in order together with the
// settings that affect the produced IR.
func fingerprint(s lowerSettings) (project.Digest, error) {
	settings := project.Digest(sha256.Sum256(fmt.Appendf(nil, "%+v|%v", s.opts, s.modules)))
	deps := make([]project.Digest, len(s.units))
	for i, u := range s.units {
		d, err := project.FileDigest(u)
		if err != nil {
			return project.Digest{}, err
		}
		deps[i] = d
	}
	return project.Combine(settings, deps...), nil
}

// upToDate reports whether outDir holds the outputs of fp.
func upToDate(outDir string, fp project.Digest) bool {
	data, err := os.ReadFile(filepath.Join(outDir, stampName))
	if err != nil {
		return false
	}
	var st stamp
	if json.Unmarshal(data, &st) != nil || st.Fingerprint != fp.String() {
		return false
	}
	for _, out := range st.Outputs {
		if _, err := os.Stat(filepath.Join(outDir, out)); err != nil {
			return false
		}
	}
	return true
}

func writeStamp(outDir string, fp project.Digest, outputs []string) error {
	data, err := json.MarshalIndent(stamp{Fingerprint: fp.String(), Outputs: outputs}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, stampName), data, 0o644)
}

func removeStamp(outDir string) {
	if err := os.Remove(filepath.Join(outDir, stampName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}
