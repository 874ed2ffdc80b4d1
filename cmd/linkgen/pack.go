package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"linkgen/internal/project"
	"linkgen/internal/unitfile"
	"linkgen/internal/version"
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack unit.lku...",
		Short: "Re-encode unit files, optionally compressed",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPack,
	}
	cmd.Flags().Bool("compress", true, "zstd-compress the output")
	cmd.Flags().String("level", "default", "zstd level (fastest|default|better|best)")
	cmd.Flags().StringP("output", "o", "", "output directory (default: rewrite in place)")
	return cmd
}

func runPack(cmd *cobra.Command, args []string) error {
	compress, _ := cmd.Flags().GetBool("compress")
	levelName, _ := cmd.Flags().GetString("level")
	outDir, _ := cmd.Flags().GetString("output")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")

	ok, level := zstd.EncoderLevelFromString(levelName)
	if !ok {
		return errInvalidFlag("level", levelName, "fastest|default|better|best")
	}
	opts := unitfile.Options{Compress: compress, Level: level, Producer: version.Producer()}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	for _, path := range args {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		before, err := os.Stat(path)
		if err != nil {
			return err
		}
		tree, err := unitfile.Read(path)
		if err != nil {
			return err
		}
		dest := path
		if outDir != "" {
			dest = filepath.Join(outDir, filepath.Base(path))
		}
		if err := unitfile.Write(dest, tree, opts); err != nil {
			return err
		}
		if quiet {
			continue
		}
		after, err := os.Stat(dest)
		if err != nil {
			return err
		}
		digest, err := project.FileDigest(dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d bytes [%s]\n", dest, before.Size(), after.Size(), digest.Short())
	}
	return nil
}
