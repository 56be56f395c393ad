package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/infrastructure/manifest"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var (
	// Global flags
	configPath   string
	manifestPath string
	verbose      bool
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var rootCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Build-time fetcher and pinner for native source dependencies",
	Long: `A build-time tool that materializes native source dependencies
(header-only C++ libraries, binding generators) into a content-addressed
local cache before compilation starts.

Dependencies are declared once in a manifest with a pinned version,
fetched exactly once per version, and exposed to the build as include
paths, defines, and compiler flags. Resolved identities are written to
a lockfile so every machine builds against byte-identical sources.`,
}

func Execute() error {
	return rootCmd.Execute()
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to config file (default: auto-detect)")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "",
		"Path to the dependency manifest (default: "+manifest.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")
}

// loadManifest reads the manifest named by --manifest, falling back to
// prefetch.hcl in the working directory.
func loadManifest() (*manifest.Manifest, error) {
	path := manifestPath
	if path == "" {
		path = manifest.DefaultFile
	}
	return manifest.Load(path)
}
