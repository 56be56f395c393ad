package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/domain"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var pruneDryRun bool

//nolint:gochecknoglobals // required by cobra CLI pattern
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cache entries the manifest no longer references",
	Long: `Delete cached dependencies that are no longer declared in the manifest,
including versions left behind by re-pins. The lockfile is not touched;
run sync to refresh it.`,
	RunE: runPrune,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false,
		"Show what would be removed without deleting anything")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(_ *cobra.Command, _ []string) error {
	man, err := loadManifest()
	if err != nil {
		return err
	}

	return invoke(func(svc *application.PruneService, lgr domain.Ledger) error {
		defer lgr.Close()

		pruned, err := svc.Run(man, pruneDryRun)
		if err != nil {
			return err
		}

		if len(pruned) == 0 {
			fmt.Println("Nothing to prune; the cache matches the manifest.")
			return nil
		}

		var freed int64
		for _, entry := range pruned {
			freed += entry.SizeBytes
			if pruneDryRun {
				fmt.Printf("Would remove %s@%s (%s)\n",
					entry.Name, entry.VersionRef, humanize.Bytes(uint64(entry.SizeBytes)))
			} else {
				fmt.Printf("🗑️  Removed %s@%s (%s)\n",
					entry.Name, entry.VersionRef, humanize.Bytes(uint64(entry.SizeBytes)))
			}
		}

		fmt.Println()
		if pruneDryRun {
			fmt.Printf("Would free %s across %d entries.\n", humanize.Bytes(uint64(freed)), len(pruned))
		} else {
			fmt.Printf("Freed %s across %d entries.\n", humanize.Bytes(uint64(freed)), len(pruned))
		}
		return nil
	})
}
