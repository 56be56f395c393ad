package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rios0rios0/prefetch/config"
	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/lockfile"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
	"github.com/rios0rios0/prefetch/resolver"
)

// SyncService orchestrates the full prefetch flow:
// load manifest -> declare dependencies -> bind options -> materialize ->
// write lockfile.
type SyncService struct {
	config   *config.Config
	fetchers domain.FetcherSource
	ledger   domain.Ledger
	mirror   domain.Mirror
}

// NewSyncService creates a new service over the given collaborators.
func NewSyncService(
	cfg *config.Config,
	fetchers domain.FetcherSource,
	ledger domain.Ledger,
	mirror domain.Mirror,
) *SyncService {
	return &SyncService{
		config:   cfg,
		fetchers: fetchers,
		ledger:   ledger,
		mirror:   mirror,
	}
}

// SyncOptions holds runtime options for a single run.
type SyncOptions struct {
	Jobs      int
	DryRun    bool
	Verbose   bool
	Overrides []manifest.Override // CLI --set name.KEY=value bindings
}

// PlanEntry is one line of a dry-run plan.
type PlanEntry struct {
	Name       string
	VersionRef string
	Source     string
	Action     string // "reuse cache", "fetch", "fetch (locked)"
	Options    int
}

// SyncSummary reports what a run did, or would do for a dry run.
type SyncSummary struct {
	Materialized []*domain.MaterializedDependency
	Plan         []PlanEntry
	Fetched      int
	Reused       int
	Duration     time.Duration
}

// Run materializes every dependency in the manifest. Distinct dependencies
// fetch in parallel, bounded by the jobs setting; failures abort the run and
// leave the lockfile untouched.
func (s *SyncService) Run(
	ctx context.Context,
	man *manifest.Manifest,
	opts SyncOptions,
) (*SyncSummary, error) {
	if opts.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	started := time.Now()

	locks, err := lockfile.Load(lockfile.DefaultPath(man.Path))
	if err != nil {
		return nil, err
	}

	res := resolver.New(s.config.CacheRoot, man.Project, s.fetchers, s.ledger, s.mirror, locks)

	handles, err := s.declareAndBind(res, man, opts.Overrides)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &SyncSummary{Plan: s.plan(man, locks), Duration: time.Since(started)}, nil
	}

	results := make([]*domain.MaterializedDependency, len(handles))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.jobs(opts.Jobs))
	for i, handle := range handles {
		group.Go(func() error {
			materialized, materializeErr := handle.Materialize(groupCtx)
			if materializeErr != nil {
				return materializeErr
			}
			results[i] = materialized
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	locks.Update(results)
	locks.Retain(dependencyNames(man))
	if err := locks.Save(); err != nil {
		return nil, err
	}

	summary := &SyncSummary{Materialized: results, Duration: time.Since(started)}
	for _, materialized := range results {
		if materialized.Reused {
			summary.Reused++
		} else {
			summary.Fetched++
		}
	}

	logger.Infof("Sync complete: %d fetched, %d reused in %s",
		summary.Fetched, summary.Reused, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// MaterializeOne materializes a single named dependency. The whole manifest
// is still declared first, so conflicting declarations fail before any fetch.
func (s *SyncService) MaterializeOne(
	ctx context.Context,
	man *manifest.Manifest,
	name string,
	opts SyncOptions,
) (*domain.MaterializedDependency, error) {
	if opts.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	locks, err := lockfile.Load(lockfile.DefaultPath(man.Path))
	if err != nil {
		return nil, err
	}

	res := resolver.New(s.config.CacheRoot, man.Project, s.fetchers, s.ledger, s.mirror, locks)

	handles, err := s.declareAndBind(res, man, opts.Overrides)
	if err != nil {
		return nil, err
	}

	index := -1
	for i, dep := range man.Dependencies {
		if dep.Spec.Name == name {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("dependency %q is not declared in %s", name, man.Path)
	}

	materialized, err := handles[index].Materialize(ctx)
	if err != nil {
		return nil, err
	}

	locks.Update([]*domain.MaterializedDependency{materialized})
	if err := locks.Save(); err != nil {
		return nil, err
	}
	return materialized, nil
}

// declareAndBind registers every manifest dependency and applies its option
// bindings, manifest options first, CLI overrides after so they win.
func (s *SyncService) declareAndBind(
	res *resolver.Resolver,
	man *manifest.Manifest,
	overrides []manifest.Override,
) ([]*resolver.Handle, error) {
	handles := make([]*resolver.Handle, 0, len(man.Dependencies))
	for _, dep := range man.Dependencies {
		handle, err := res.Declare(dep.Spec)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	for _, dep := range man.Dependencies {
		for _, binding := range dep.Options {
			if err := res.SetOption(dep.Spec.Name, binding.Key, binding.Value); err != nil {
				return nil, err
			}
		}
	}

	for _, override := range overrides {
		if _, found := man.Find(override.Dependency); !found {
			return nil, fmt.Errorf("option override targets undeclared dependency %q", override.Dependency)
		}
		if err := res.SetOption(override.Dependency, override.Binding.Key, override.Binding.Value); err != nil {
			return nil, err
		}
		logger.Debugf("[sync] override %s.%s applied", override.Dependency, override.Binding.Key)
	}

	return handles, nil
}

// plan reports what a run would do without fetching anything.
func (s *SyncService) plan(man *manifest.Manifest, locks *lockfile.File) []PlanEntry {
	entries := make([]PlanEntry, 0, len(man.Dependencies))
	for _, dep := range man.Dependencies {
		entry := PlanEntry{
			Name:       dep.Spec.Name,
			VersionRef: dep.Spec.VersionRef,
			Source:     dep.Spec.SourceLocation,
			Action:     "fetch",
			Options:    len(dep.Options),
		}

		if _, locked := locks.LockedEntry(dep.Spec.Name, dep.Spec.VersionRef); locked {
			entry.Action = "fetch (locked)"
		}

		srcDir := filepath.Join(s.config.CacheRoot, dep.Spec.Name, dep.Spec.CacheKey(), "src")
		row, found, err := s.ledger.Find(dep.Spec.Name, dep.Spec.VersionRef)
		if err == nil && found && row.LocalPath == srcDir {
			if info, statErr := os.Stat(srcDir); statErr == nil && info.IsDir() {
				entry.Action = "reuse cache"
			}
		}

		entries = append(entries, entry)
	}
	return entries
}

func (s *SyncService) jobs(requested int) int {
	if requested > 0 {
		return requested
	}
	if s.config.Parallel > 0 {
		return s.config.Parallel
	}
	return config.DefaultParallel
}

func dependencyNames(man *manifest.Manifest) []string {
	names := make([]string, 0, len(man.Dependencies))
	for _, dep := range man.Dependencies {
		names = append(names, dep.Spec.Name)
	}
	return names
}
