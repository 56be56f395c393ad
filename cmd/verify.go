package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/domain"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit cached dependencies against the ledger and lockfile",
	Long: `Check that every declared dependency is materialized, that its cached
tree still hashes to what was recorded when it was fetched, and that the
cache agrees with the lockfile's pinned identity.

Exits non-zero when any dependency fails verification, so CI can gate
on cache integrity.`,
	RunE: runVerify,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(_ *cobra.Command, _ []string) error {
	man, err := loadManifest()
	if err != nil {
		return err
	}

	return invoke(func(svc *application.VerifyService, lgr domain.Ledger) error {
		defer lgr.Close()

		results, err := svc.Run(man)
		if err != nil {
			return err
		}

		failed := 0
		for _, result := range results {
			if result.OK() {
				fmt.Printf("✅ %s %s\n", result.Name, result.VersionRef)
				continue
			}
			failed++
			fmt.Printf("❌ %s %s: %s (%s)\n", result.Name, result.VersionRef, result.Status, result.Detail)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d dependencies failed verification", failed, len(results))
		}

		fmt.Printf("\nAll %d dependencies verified.\n", len(results))
		return nil
	})
}
