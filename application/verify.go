package application

import (
	"fmt"
	"os"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/infrastructure/lockfile"
	"github.com/rios0rios0/prefetch/infrastructure/manifest"
	"github.com/rios0rios0/prefetch/internal/fsutil"
)

// VerifyStatus classifies the state of one cached dependency.
type VerifyStatus string

const (
	// VerifyOK means the cache entry exists and matches both its recorded
	// tree hash and its locked identity.
	VerifyOK VerifyStatus = "ok"
	// VerifyMissing means the dependency was never materialized or its cache
	// entry is gone.
	VerifyMissing VerifyStatus = "missing"
	// VerifyModified means the cached tree no longer matches the hash taken
	// when it was materialized.
	VerifyModified VerifyStatus = "modified"
	// VerifyDrifted means the cache entry and the lockfile disagree about the
	// resolved identity.
	VerifyDrifted VerifyStatus = "drifted"
)

// VerifyResult is the verification outcome for one manifest dependency.
type VerifyResult struct {
	Name       string
	VersionRef string
	Status     VerifyStatus
	Detail     string
}

// OK reports whether the entry passed every check.
func (r VerifyResult) OK() bool {
	return r.Status == VerifyOK
}

// VerifyService audits the local cache against the ledger and the lockfile
// without fetching anything.
type VerifyService struct {
	ledger domain.Ledger
}

// NewVerifyService creates a new service over the given ledger.
func NewVerifyService(ledger domain.Ledger) *VerifyService {
	return &VerifyService{ledger: ledger}
}

// Run checks every manifest dependency: the ledger must have a row, the
// cached tree must exist and hash to what was recorded, and the lockfile
// entry (when present) must agree on the resolved identity.
func (s *VerifyService) Run(man *manifest.Manifest) ([]VerifyResult, error) {
	locks, err := lockfile.Load(lockfile.DefaultPath(man.Path))
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, 0, len(man.Dependencies))
	for _, dep := range man.Dependencies {
		results = append(results, s.verifyOne(dep.Spec, locks))
	}
	return results, nil
}

func (s *VerifyService) verifyOne(spec domain.DependencySpec, locks *lockfile.File) VerifyResult {
	result := VerifyResult{Name: spec.Name, VersionRef: spec.VersionRef}

	row, found, err := s.ledger.Find(spec.Name, spec.VersionRef)
	if err != nil {
		result.Status = VerifyMissing
		result.Detail = fmt.Sprintf("ledger lookup failed: %v", err)
		return result
	}
	if !found {
		result.Status = VerifyMissing
		result.Detail = "never materialized"
		return result
	}

	if info, statErr := os.Stat(row.LocalPath); statErr != nil || !info.IsDir() {
		result.Status = VerifyMissing
		result.Detail = fmt.Sprintf("cache entry %s is gone", row.LocalPath)
		return result
	}

	treeHash, err := fsutil.HashTree(row.LocalPath)
	if err != nil {
		result.Status = VerifyModified
		result.Detail = fmt.Sprintf("failed to hash cached tree: %v", err)
		return result
	}
	if row.TreeHash != "" && treeHash != row.TreeHash {
		result.Status = VerifyModified
		result.Detail = "cached tree was changed after materialization"
		return result
	}

	if lock, locked := locks.LockedEntry(spec.Name, spec.VersionRef); locked {
		if lock.ResolvedID != row.ResolvedID {
			result.Status = VerifyDrifted
			result.Detail = fmt.Sprintf("lockfile pins %s but cache holds %s",
				lock.ResolvedID, row.ResolvedID)
			return result
		}
		if lock.TreeHash != "" && row.TreeHash != "" && lock.TreeHash != row.TreeHash {
			result.Status = VerifyDrifted
			result.Detail = "lockfile and cache disagree on the tree hash"
			return result
		}
	}

	result.Status = VerifyOK
	return result
}
