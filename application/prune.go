package application

import (
	"os"
	"path/filepath"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
)

// PruneService removes cache entries the manifest no longer references:
// dependencies that were dropped entirely and old versions left behind by
// re-pins.
type PruneService struct {
	ledger domain.Ledger
}

// NewPruneService creates a new service over the given ledger.
func NewPruneService(ledger domain.Ledger) *PruneService {
	return &PruneService{ledger: ledger}
}

// PruneResult describes one removed (or removable) cache entry.
type PruneResult struct {
	Name       string
	VersionRef string
	Path       string
	SizeBytes  int64
}

// Run deletes every ledger entry whose (name, ref) pair is absent from the
// manifest, together with its cache directory. With dryRun the candidates
// are reported but nothing is removed.
func (s *PruneService) Run(man *manifest.Manifest, dryRun bool) ([]PruneResult, error) {
	rows, err := s.ledger.List()
	if err != nil {
		return nil, err
	}

	pinned := make(map[string]string, len(man.Dependencies))
	for _, dep := range man.Dependencies {
		pinned[dep.Spec.Name] = dep.Spec.VersionRef
	}

	var pruned []PruneResult
	for _, row := range rows {
		if ref, ok := pinned[row.Name]; ok && ref == row.VersionRef {
			continue
		}

		result := PruneResult{
			Name:       row.Name,
			VersionRef: row.VersionRef,
			Path:       entryDir(row.LocalPath),
			SizeBytes:  row.SizeBytes,
		}

		if dryRun {
			pruned = append(pruned, result)
			continue
		}

		if result.Path != "" {
			if err := os.RemoveAll(result.Path); err != nil {
				return pruned, err
			}
		}
		if err := s.ledger.Delete(row.ID); err != nil {
			return pruned, err
		}
		logger.Debugf("[prune] removed %s@%s (%s)", row.Name, row.VersionRef, result.Path)
		pruned = append(pruned, result)
	}

	return pruned, nil
}

// entryDir maps the recorded source path back to its cache entry directory.
// Entries lay out as <cacheRoot>/<name>/<key>/src, so the entry is the
// source dir's parent.
func entryDir(localPath string) string {
	if localPath == "" {
		return ""
	}
	dir := filepath.Dir(localPath)
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return dir
}
