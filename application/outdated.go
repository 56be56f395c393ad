package application

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
	"github.com/rios0rios0/prefetch/internal/version"
)

// OutdatedService checks pinned refs against the versions a source actually
// advertises. It never fetches sources and never touches the cache.
type OutdatedService struct {
	fetchers domain.FetcherSource
}

// NewOutdatedService creates a new service over the given fetcher registry.
func NewOutdatedService(fetchers domain.FetcherSource) *OutdatedService {
	return &OutdatedService{fetchers: fetchers}
}

// OutdatedReport is the version status of one manifest dependency.
type OutdatedReport struct {
	Name    string
	Current string
	Latest  string // empty when up to date or not comparable
	Kind    string // "major", "minor" or "patch" when Latest is set
	Skipped bool   // source cannot list versions (archives, unreachable remotes)
}

// Run lists remote versions for every dependency whose fetcher supports it
// and reports the newest one above the pinned ref. Listing failures skip the
// dependency instead of aborting the whole report.
func (s *OutdatedService) Run(ctx context.Context, man *manifest.Manifest) ([]OutdatedReport, error) {
	reports := make([]OutdatedReport, 0, len(man.Dependencies))

	for _, dep := range man.Dependencies {
		report := OutdatedReport{Name: dep.Spec.Name, Current: dep.Spec.VersionRef}

		fetcher, err := s.fetchers.For(dep.Spec.SourceLocation)
		if err != nil {
			return nil, err
		}

		lister, ok := fetcher.(domain.VersionLister)
		if !ok {
			logger.Debugf("[outdated] %s: %s sources cannot list versions, skipping",
				dep.Spec.Name, fetcher.Name())
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		versions, err := lister.ListVersions(ctx, dep.Spec.SourceLocation)
		if err != nil {
			logger.Warnf("Failed to list versions for %s: %v", dep.Spec.Name, err)
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		if latest := version.Latest(dep.Spec.VersionRef, versions); latest != "" {
			report.Latest = latest
			report.Kind = diffKind(version.Analyze(dep.Spec.VersionRef, latest))
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func diffKind(diff version.Diff) string {
	switch {
	case diff.IsMajor:
		return "major"
	case diff.IsMinor:
		return "minor"
	case diff.IsPatch:
		return "patch"
	default:
		return ""
	}
}
