package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/lockfile"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var listOutput string

//nolint:gochecknoglobals // required by cobra CLI pattern
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared dependencies with their cache status",
	Long: `List every dependency the manifest declares, its pinned ref, the
resolved identity from the lockfile, and whether it is materialized in
the local cache.`,
	RunE: runList,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	listCmd.Flags().StringVar(&listOutput, "output", "table", "Output format: table, json, or markdown")
	rootCmd.AddCommand(listCmd)
}

type dependencyInfo struct {
	Name     string `json:"name"`
	Ref      string `json:"ref"`
	Source   string `json:"source"`
	Resolved string `json:"resolved,omitempty"`
	Fetcher  string `json:"fetcher,omitempty"`
	Cached   bool   `json:"cached"`
}

func runList(_ *cobra.Command, _ []string) error {
	man, err := loadManifest()
	if err != nil {
		return err
	}

	locks, err := lockfile.Load(lockfile.DefaultPath(man.Path))
	if err != nil {
		return err
	}

	return invoke(func(lgr domain.Ledger) error {
		defer lgr.Close()

		infos := make([]dependencyInfo, 0, len(man.Dependencies))
		for _, dep := range man.Dependencies {
			info := dependencyInfo{
				Name:   dep.Spec.Name,
				Ref:    dep.Spec.VersionRef,
				Source: dep.Spec.SourceLocation,
			}

			if entry, locked := locks.LockedEntry(dep.Spec.Name, dep.Spec.VersionRef); locked {
				info.Resolved = entry.ResolvedID
				info.Fetcher = entry.Fetcher
			}

			row, found, findErr := lgr.Find(dep.Spec.Name, dep.Spec.VersionRef)
			if findErr != nil {
				return findErr
			}
			if found {
				if _, statErr := os.Stat(row.LocalPath); statErr == nil {
					info.Cached = true
				}
				if info.Resolved == "" {
					info.Resolved = row.ResolvedID
				}
				if info.Fetcher == "" {
					info.Fetcher = row.Fetcher
				}
			}

			infos = append(infos, info)
		}

		switch listOutput {
		case "json":
			return printJSON(infos)
		case "markdown":
			printMarkdown(infos)
		default:
			printTable(infos)
		}
		return nil
	})
}

func printTable(infos []dependencyInfo) {
	nameW := len("Dependency")
	refW := len("Ref")
	resolvedW := len("Resolved")
	fetcherW := len("Fetcher")

	for _, info := range infos {
		if len(info.Name) > nameW {
			nameW = len(info.Name)
		}
		if len(info.Ref) > refW {
			refW = len(info.Ref)
		}
		if w := len(shortID(info.Resolved)); w > resolvedW {
			resolvedW = w
		}
		if len(info.Fetcher) > fetcherW {
			fetcherW = len(info.Fetcher)
		}
	}

	fmt.Printf("%-*s  %-*s  %-*s  %-*s  %s\n",
		nameW, "Dependency", refW, "Ref", resolvedW, "Resolved", fetcherW, "Fetcher", "Status")
	fmt.Println(strings.Repeat("-", nameW+refW+resolvedW+fetcherW+8+len("Status")))

	cached := 0
	for _, info := range infos {
		status := "⚪ not fetched"
		if info.Cached {
			status = "✅ cached"
			cached++
		}

		resolved := shortID(info.Resolved)
		if resolved == "" {
			resolved = "-"
		}
		fetcherName := info.Fetcher
		if fetcherName == "" {
			fetcherName = "-"
		}

		fmt.Printf("%-*s  %-*s  %-*s  %-*s  %s\n",
			nameW, info.Name, refW, info.Ref, resolvedW, resolved, fetcherW, fetcherName, status)
	}

	fmt.Println()
	fmt.Printf("Total: %d dependencies, %d cached\n", len(infos), cached)
}

func printMarkdown(infos []dependencyInfo) {
	fmt.Println("| Dependency | Ref | Resolved | Fetcher | Cached |")
	fmt.Println("|------------|-----|----------|---------|--------|")

	for _, info := range infos {
		resolved := shortID(info.Resolved)
		if resolved == "" {
			resolved = "N/A"
		}
		fetcherName := info.Fetcher
		if fetcherName == "" {
			fetcherName = "N/A"
		}
		fmt.Printf("| %s | %s | %s | %s | %t |\n",
			info.Name, info.Ref, resolved, fetcherName, info.Cached)
	}
}

func printJSON(infos []dependencyInfo) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(infos)
}

// shortID abbreviates a resolved identity for table display. Digests keep
// their prefix so they stay recognizable.
func shortID(id string) string {
	const short = 12
	if len(id) <= short {
		return id
	}
	if rest, ok := strings.CutPrefix(id, "sha256:"); ok {
		if len(rest) > short {
			rest = rest[:short]
		}
		return "sha256:" + rest
	}
	return id[:short]
}
