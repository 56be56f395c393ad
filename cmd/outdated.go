package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/application"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var outdatedCmd = &cobra.Command{
	Use:   "outdated",
	Short: "Show dependencies with newer versions available",
	Long: `Check every git dependency's remote for tags newer than the pinned
ref. Archive sources cannot be checked and are skipped.

This command only reports; it never rewrites the manifest or fetches
sources.`,
	RunE: runOutdated,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.AddCommand(outdatedCmd)
}

func runOutdated(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	man, err := loadManifest()
	if err != nil {
		return err
	}

	return invoke(func(svc *application.OutdatedService) error {
		fmt.Println("🔍 Checking remotes for newer versions...")
		fmt.Println()

		reports, err := svc.Run(ctx, man)
		if err != nil {
			return err
		}

		outdated := 0
		for _, report := range reports {
			switch {
			case report.Skipped:
				fmt.Printf("⚪ %s %s (cannot check this source)\n", report.Name, report.Current)
			case report.Latest == "":
				fmt.Printf("✅ %s %s is up to date\n", report.Name, report.Current)
			default:
				outdated++
				marker := "🟢"
				switch report.Kind {
				case "major":
					marker = "🔴"
				case "minor":
					marker = "🟡"
				}
				fmt.Printf("%s %s %s -> %s (%s update)\n",
					marker, report.Name, report.Current, report.Latest, report.Kind)
			}
		}

		fmt.Println()
		if outdated == 0 {
			fmt.Println("All checkable dependencies are up to date.")
		} else {
			fmt.Printf("%d of %d dependencies have newer versions.\n", outdated, len(reports))
		}
		return nil
	})
}
