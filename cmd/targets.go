package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
	"github.com/rios0rios0/prefetch/infrastructure/render"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var (
	targetsFormat   string
	targetsPlatform string
	targetsOutput   string
	targetsSet      []string
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var targetsCmd = &cobra.Command{
	Use:   "targets <dependency>",
	Short: "Print the build targets of one dependency",
	Long: `Materialize a single dependency (fetching it if needed) and print the
include paths, defines, and compiler flags a consuming build step needs.

The output format matches the consumer:
  flags   one line of compiler arguments, for $(shell ...) substitution
  env     PREFETCH_<NAME>_* assignments, for eval in shell builds
  cmake   a file to include() from CMakeLists.txt
  json    the structured form, for custom integrations`,
	Args: cobra.ExactArgs(1),
	RunE: runTargets,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	targetsCmd.Flags().StringVarP(&targetsFormat, "format", "f", string(render.FormatFlags),
		"Output format: flags, env, cmake, or json")
	targetsCmd.Flags().StringVar(&targetsPlatform, "platform", "",
		"Target platform for generator hints (e.g. win-amd64)")
	targetsCmd.Flags().StringVarP(&targetsOutput, "output", "o", "",
		"Write to a file instead of stdout")
	targetsCmd.Flags().StringArrayVar(&targetsSet, "set", nil,
		"Override an option binding as <dependency>.<KEY>=<value> (repeatable)")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]

	format, err := render.ParseFormat(targetsFormat)
	if err != nil {
		return err
	}

	man, err := loadManifest()
	if err != nil {
		return err
	}

	overrides, err := manifest.ParseOverrides(targetsSet)
	if err != nil {
		return err
	}

	return invoke(func(svc *application.SyncService, lgr domain.Ledger) error {
		defer lgr.Close()

		materialized, err := svc.MaterializeOne(ctx, man, name, application.SyncOptions{
			Verbose:   verbose,
			Overrides: overrides,
		})
		if err != nil {
			return err
		}

		out := os.Stdout
		if targetsOutput != "" {
			file, createErr := os.Create(targetsOutput)
			if createErr != nil {
				return fmt.Errorf("failed to create output file: %w", createErr)
			}
			defer file.Close()
			out = file
		}

		return render.Targets(out, name, materialized.Targets, render.Options{
			Format:   format,
			Platform: targetsPlatform,
		})
	})
}
