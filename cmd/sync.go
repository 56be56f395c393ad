package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/application"
	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
)

// jobsEnvVar overrides the configured parallelism when the --jobs flag is
// absent, mirroring make's MAKEFLAGS convention for CI images.
const jobsEnvVar = "PREFETCH_JOBS"

//nolint:gochecknoglobals // required by cobra CLI pattern
var (
	syncJobs      int
	syncDryRun    bool
	syncOverrides []string
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Materialize every dependency declared in the manifest",
	Long: `Fetch every dependency the manifest declares into the local cache,
apply its option bindings, and write the resolved identities to the
lockfile.

Dependencies already present in the cache are reused without network
access. Distinct dependencies fetch in parallel; concurrent requests
for the same dependency share a single fetch.`,
	RunE: runSync,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	syncCmd.Flags().IntVarP(&syncJobs, "jobs", "j", 0,
		"Max parallel fetches (default: "+jobsEnvVar+" env var, then config)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false,
		"Show what would be fetched without touching the cache or lockfile")
	syncCmd.Flags().StringArrayVar(&syncOverrides, "set", nil,
		"Override an option binding as <dependency>.<KEY>=<value> (repeatable)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	man, err := loadManifest()
	if err != nil {
		return err
	}

	overrides, err := manifest.ParseOverrides(syncOverrides)
	if err != nil {
		return err
	}

	return invoke(func(svc *application.SyncService, lgr domain.Ledger) error {
		defer lgr.Close()

		if !syncDryRun {
			fmt.Printf("🔄 Syncing %d dependencies from %s...\n", len(man.Dependencies), man.Path)
		}

		summary, err := svc.Run(ctx, man, application.SyncOptions{
			Jobs:      resolveJobs(syncJobs),
			DryRun:    syncDryRun,
			Verbose:   verbose,
			Overrides: overrides,
		})
		if err != nil {
			return err
		}

		if syncDryRun {
			printPlan(man.Path, summary.Plan)
			return nil
		}

		fmt.Printf("✅ %d dependencies ready (%d fetched, %d reused) in %s\n",
			len(summary.Materialized), summary.Fetched, summary.Reused,
			summary.Duration.Round(time.Millisecond))
		return nil
	})
}

// resolveJobs applies the parallelism precedence: flag, then environment,
// then the configured default.
func resolveJobs(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if raw := os.Getenv(jobsEnvVar); raw != "" {
		jobs, err := strconv.Atoi(raw)
		if err != nil || jobs < 1 {
			logger.Warnf("Ignoring invalid %s=%q", jobsEnvVar, raw)
			return 0
		}
		return jobs
	}
	return 0
}

func printPlan(manifestPath string, plan []application.PlanEntry) {
	fmt.Printf("📋 Plan for %s:\n", manifestPath)

	nameW := len("Dependency")
	refW := len("Ref")
	actionW := len("Action")
	for _, entry := range plan {
		if len(entry.Name) > nameW {
			nameW = len(entry.Name)
		}
		if len(entry.VersionRef) > refW {
			refW = len(entry.VersionRef)
		}
		if len(entry.Action) > actionW {
			actionW = len(entry.Action)
		}
	}

	fmt.Printf("  %-*s  %-*s  %-*s  %s\n", nameW, "Dependency", refW, "Ref", actionW, "Action", "Source")
	for _, entry := range plan {
		source := entry.Source
		if entry.Options > 0 {
			source = fmt.Sprintf("%s (%d options)", entry.Source, entry.Options)
		}
		fmt.Printf("  %-*s  %-*s  %-*s  %s\n",
			nameW, entry.Name, refW, entry.VersionRef, actionW, entry.Action, source)
	}
}
