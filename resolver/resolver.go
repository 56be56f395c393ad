// Package resolver turns declared dependency specs into materialized source
// trees, exactly once per build graph. Declarations are deduplicated by name,
// option bindings are consumed at materialization time, and same-name fetches
// are collapsed into a single flight.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rios0rios0/prefetch/domain"
	"github.com/rios0rios0/prefetch/internal/fsutil"
	logger "github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/singleflight"
)

// Resolver owns the local dependency cache. It is safe for concurrent use:
// distinct dependencies materialize in parallel, same-name materializations
// share one fetch.
type Resolver struct {
	cacheRoot string
	project   domain.ProjectInfo
	fetchers  domain.FetcherSource
	ledger    domain.Ledger
	mirror    domain.Mirror
	locks     domain.LockSource

	mu     sync.Mutex
	deps   map[string]*depState
	flight singleflight.Group
}

// depState tracks one declared dependency through its lifecycle.
type depState struct {
	spec    domain.DependencySpec
	options []domain.OptionBinding
	sealed  bool // options consumed by a materialization in progress
	result  *domain.MaterializedDependency
}

// New builds a resolver rooted at cacheRoot. The lock source supplies
// previously resolved identities; a refetch that disagrees with its lock
// entry fails with an integrity error instead of silently proceeding.
func New(
	cacheRoot string,
	project domain.ProjectInfo,
	fetchers domain.FetcherSource,
	ledger domain.Ledger,
	mirror domain.Mirror,
	locks domain.LockSource,
) *Resolver {
	return &Resolver{
		cacheRoot: cacheRoot,
		project:   project,
		fetchers:  fetchers,
		ledger:    ledger,
		mirror:    mirror,
		locks:     locks,
		deps:      make(map[string]*depState),
	}
}

// Declare registers intent to use a dependency. Re-declaring the same name
// with an identical version ref and source returns the existing handle;
// declaring it with a different ref or source fails with ConflictingVersion
// and performs no fetch.
func (r *Resolver) Declare(spec domain.DependencySpec) (*Handle, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("dependency name must not be empty")
	}
	if spec.SourceLocation == "" {
		return nil, fmt.Errorf("dependency %q: source location must not be empty", spec.Name)
	}
	if spec.VersionRef == "" {
		return nil, fmt.Errorf("dependency %q: version ref must not be empty", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.deps[spec.Name]; ok {
		if existing.spec.VersionRef != spec.VersionRef {
			return nil, domain.NewConflictingVersionError(
				spec.Name,
				existing.spec.VersionRef, existing.spec.DeclaredAt,
				spec.VersionRef, spec.DeclaredAt,
			)
		}
		if existing.spec.SourceLocation != spec.SourceLocation {
			return nil, &domain.ResolveError{
				Code:       domain.ErrCodeConflictingVersion,
				Dependency: spec.Name,
				Message: fmt.Sprintf("already declared at %s from %q, redeclared at %s from %q",
					declaredAtOrUnknown(existing.spec.DeclaredAt), existing.spec.SourceLocation,
					declaredAtOrUnknown(spec.DeclaredAt), spec.SourceLocation),
			}
		}
		logger.Debugf("[resolver] %s@%s already declared, reusing handle", spec.Name, spec.VersionRef)
		return &Handle{resolver: r, name: spec.Name}, nil
	}

	r.deps[spec.Name] = &depState{spec: spec}
	logger.Debugf("[resolver] declared %s@%s from %s", spec.Name, spec.VersionRef, spec.SourceLocation)
	return &Handle{resolver: r, name: spec.Name}, nil
}

// SetOption records an option binding for a declared dependency. Bindings are
// applied in order immediately before the dependency's targets are exposed;
// once a materialization has consumed them the call fails with TooLate and
// the observed configuration is unaffected.
func (r *Resolver) SetOption(name, key string, value cty.Value) error {
	if key == "" {
		return domain.NewConfigurationError(name, "option key must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.deps[name]
	if !ok {
		return fmt.Errorf("dependency %q is not declared", name)
	}
	if state.sealed {
		return domain.NewTooLateError(name, key)
	}

	state.options = append(state.options, domain.OptionBinding{Key: key, Value: value})
	return nil
}

// materialize runs or reuses the fetch for one dependency and builds its
// targets. Successful results are cached on the declaration's state; failures
// leave the dependency unmaterialized so the call can be retried.
func (r *Resolver) materialize(ctx context.Context, name string) (*domain.MaterializedDependency, error) {
	r.mu.Lock()
	state, ok := r.deps[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("dependency %q is not declared", name)
	}
	if state.result != nil {
		result := state.result
		r.mu.Unlock()
		return result, nil
	}

	// Options are consumed from this point on
	state.sealed = true
	r.mu.Unlock()

	shared, err, _ := r.flight.Do(name, func() (interface{}, error) {
		return r.runMaterialization(ctx, state)
	})
	if err != nil {
		r.mu.Lock()
		if state.result == nil {
			// Nothing was consumed; allow rebinding and retry
			state.sealed = false
		}
		r.mu.Unlock()
		return nil, err
	}

	result, ok := shared.(*domain.MaterializedDependency)
	if !ok {
		return nil, fmt.Errorf("dependency %q: unexpected materialization result", name)
	}
	return result, nil
}

// runMaterialization is the single-flight body. It stores the result on the
// state before returning, so a caller arriving after the flight completed
// finds the cached result instead of starting a second fetch.
func (r *Resolver) runMaterialization(ctx context.Context, state *depState) (*domain.MaterializedDependency, error) {
	r.mu.Lock()
	if state.result != nil {
		result := state.result
		r.mu.Unlock()
		return result, nil
	}
	spec := state.spec
	options := make([]domain.OptionBinding, len(state.options))
	copy(options, state.options)
	r.mu.Unlock()

	result, err := r.fetchAndConfigure(ctx, spec, options)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	state.result = result
	r.mu.Unlock()
	return result, nil
}

// fetchAndConfigure ensures the source tree is in the cache, checks its
// identity, then applies options and exposes targets.
func (r *Resolver) fetchAndConfigure(
	ctx context.Context,
	spec domain.DependencySpec,
	options []domain.OptionBinding,
) (*domain.MaterializedDependency, error) {
	entryDir := filepath.Join(r.cacheRoot, spec.Name, spec.CacheKey())
	srcDir := filepath.Join(entryDir, "src")

	lock, locked := r.lockedEntry(spec)

	if reused, ok := r.reuseCached(spec, srcDir, lock, locked); ok {
		targets, err := buildTargets(spec, r.project, options, srcDir)
		if err != nil {
			return nil, err
		}
		reused.Targets = targets
		reused.MadeAvailable = true
		logger.Infof("[resolver] %s@%s reused from cache (%s)", spec.Name, spec.VersionRef, shortID(reused.ResolvedID))
		return reused, nil
	}

	fetched, err := r.fetchIntoCache(ctx, spec, entryDir, srcDir, lock, locked)
	if err != nil {
		return nil, err
	}

	targets, err := buildTargets(spec, r.project, options, srcDir)
	if err != nil {
		// The cache entry is intact; only the configuration was rejected.
		// The dependency stays unmaterialized so corrected options can be
		// bound and the call retried.
		return nil, err
	}
	fetched.Targets = targets
	fetched.MadeAvailable = true

	logger.Infof("[resolver] %s@%s materialized (%s)", spec.Name, spec.VersionRef, shortID(fetched.ResolvedID))
	return fetched, nil
}

// reuseCached returns a result backed by an existing cache entry when the
// ledger row, the directory, and the locked identity all agree.
func (r *Resolver) reuseCached(
	spec domain.DependencySpec,
	srcDir string,
	lock domain.LockEntry,
	locked bool,
) (*domain.MaterializedDependency, bool) {
	row, found, err := r.ledger.Find(spec.Name, spec.VersionRef)
	if err != nil {
		logger.Warnf("[resolver] ledger lookup for %s failed: %v", spec.Name, err)
		return nil, false
	}
	if !found || row.LocalPath != srcDir {
		return nil, false
	}
	if info, statErr := os.Stat(srcDir); statErr != nil || !info.IsDir() {
		return nil, false
	}
	if locked && row.ResolvedID != lock.ResolvedID {
		logger.Warnf("[resolver] cache entry for %s@%s does not match the locked identity, refetching",
			spec.Name, spec.VersionRef)
		return nil, false
	}

	if err := r.ledger.Touch(row.ID); err != nil {
		logger.Warnf("[resolver] ledger touch for %s failed: %v", spec.Name, err)
	}

	return &domain.MaterializedDependency{
		Spec:       spec,
		LocalPath:  srcDir,
		ResolvedID: row.ResolvedID,
		TreeHash:   row.TreeHash,
		Fetcher:    row.Fetcher,
		Reused:     true,
		FetchedAt:  row.FetchedAt,
	}, true
}

// fetchIntoCache stages a fresh fetch and moves it into the cache entry
// atomically. On any failure the staging directory is discarded and no
// cache entry is left behind as valid.
func (r *Resolver) fetchIntoCache(
	ctx context.Context,
	spec domain.DependencySpec,
	entryDir, srcDir string,
	lock domain.LockEntry,
	locked bool,
) (*domain.MaterializedDependency, error) {
	staging := filepath.Join(r.cacheRoot, spec.Name, ".staging-"+uuid.NewString())
	if err := fsutil.EnsureDir(staging); err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}
	defer os.RemoveAll(staging)

	expectedID := ""
	if locked {
		expectedID = lock.ResolvedID
	}

	result, err := r.pullFromMirror(ctx, spec, staging, lock, locked)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = r.fetchFromOrigin(ctx, spec, staging, expectedID)
		if err != nil {
			return nil, err
		}
	}

	// Move the staged tree into place before anything can observe it
	if err := fsutil.EnsureDir(entryDir); err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}
	if err := os.RemoveAll(srcDir); err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}
	if err := os.Rename(staging, srcDir); err != nil {
		return nil, domain.NewFetchError(spec.Name, fmt.Errorf("failed to move staged tree into cache: %w", err))
	}
	result.LocalPath = srcDir

	size, err := fsutil.DirSize(srcDir)
	if err != nil {
		logger.Warnf("[resolver] failed to measure %s cache entry: %v", spec.Name, err)
	}
	record := domain.MaterializationRecord{
		ID:             uuid.NewString(),
		Name:           spec.Name,
		VersionRef:     spec.VersionRef,
		SourceLocation: spec.SourceLocation,
		Fetcher:        result.Fetcher,
		ResolvedID:     result.ResolvedID,
		TreeHash:       result.TreeHash,
		LocalPath:      srcDir,
		SizeBytes:      size,
		FetchedAt:      result.FetchedAt,
		LastUsedAt:     result.FetchedAt,
	}
	if err := r.ledger.Record(record); err != nil {
		logger.Warnf("[resolver] failed to record %s in the ledger: %v", spec.Name, err)
	}

	if !result.Reused && r.mirror.Enabled() {
		r.pushToMirror(ctx, spec, srcDir, result.ResolvedID)
	}
	return result, nil
}

// pullFromMirror tries the remote cache. It only applies when a locked
// identity exists, since mirror objects are keyed by resolved identity.
// A stale or corrupt mirror object falls back to the origin fetch.
func (r *Resolver) pullFromMirror(
	ctx context.Context,
	spec domain.DependencySpec,
	staging string,
	lock domain.LockEntry,
	locked bool,
) (*domain.MaterializedDependency, error) {
	if !locked || !r.mirror.Enabled() {
		return nil, nil
	}

	found, err := r.mirror.Pull(ctx, mirrorKey(spec.Name, lock.ResolvedID), staging)
	if err != nil {
		logger.Warnf("[mirror] pull for %s failed, falling back to origin: %v", spec.Name, err)
		return nil, r.resetStaging(spec, staging)
	}
	if !found {
		return nil, nil
	}

	treeHash, err := fsutil.HashTree(staging)
	if err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}
	if lock.TreeHash != "" && treeHash != lock.TreeHash {
		logger.Warnf("[mirror] object for %s does not match the locked tree, falling back to origin", spec.Name)
		return nil, r.resetStaging(spec, staging)
	}

	logger.Infof("[mirror] %s@%s pulled from mirror", spec.Name, spec.VersionRef)
	return &domain.MaterializedDependency{
		Spec:       spec,
		ResolvedID: lock.ResolvedID,
		TreeHash:   treeHash,
		Fetcher:    lock.Fetcher,
		Reused:     true,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// resetStaging clears a staging directory for the origin fallback.
func (r *Resolver) resetStaging(spec domain.DependencySpec, staging string) error {
	if err := os.RemoveAll(staging); err != nil {
		return domain.NewFetchError(spec.Name, err)
	}
	if err := fsutil.EnsureDir(staging); err != nil {
		return domain.NewFetchError(spec.Name, err)
	}
	return nil
}

// fetchFromOrigin runs the transport fetch and enforces the locked identity.
func (r *Resolver) fetchFromOrigin(
	ctx context.Context,
	spec domain.DependencySpec,
	staging string,
	expectedID string,
) (*domain.MaterializedDependency, error) {
	fetcher, err := r.fetchers.For(spec.SourceLocation)
	if err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}

	res, err := fetcher.Fetch(ctx, domain.FetchRequest{
		Spec:       spec,
		DestDir:    staging,
		ExpectedID: expectedID,
	})
	if err != nil {
		if domain.IsIntegrityError(err) || domain.IsFetchError(err) {
			return nil, err
		}
		return nil, domain.NewFetchError(spec.Name, err)
	}

	if expectedID != "" && res.ResolvedID != expectedID {
		return nil, domain.NewIntegrityError(spec.Name, expectedID, res.ResolvedID)
	}
	if res.RefKind == domain.RefBranch {
		logger.Warnf("[resolver] %s ref %q is a floating branch; locking to %s for reproducibility",
			spec.Name, spec.VersionRef, shortID(res.ResolvedID))
	}

	treeHash, err := fsutil.HashTree(staging)
	if err != nil {
		return nil, domain.NewFetchError(spec.Name, err)
	}

	return &domain.MaterializedDependency{
		Spec:       spec,
		ResolvedID: res.ResolvedID,
		TreeHash:   treeHash,
		Fetcher:    fetcher.Name(),
		RefKind:    res.RefKind,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// pushToMirror uploads a freshly fetched tree. Push failures never fail the
// build.
func (r *Resolver) pushToMirror(ctx context.Context, spec domain.DependencySpec, srcDir, resolvedID string) {
	if err := r.mirror.Push(ctx, mirrorKey(spec.Name, resolvedID), srcDir); err != nil {
		logger.Warnf("[mirror] push for %s failed: %v", spec.Name, err)
		return
	}
	logger.Debugf("[mirror] %s@%s pushed to mirror", spec.Name, spec.VersionRef)
}

func (r *Resolver) lockedEntry(spec domain.DependencySpec) (domain.LockEntry, bool) {
	if r.locks == nil {
		return domain.LockEntry{}, false
	}
	return r.locks.LockedEntry(spec.Name, spec.VersionRef)
}

// mirrorKey addresses mirror objects by content identity, not by ref, so a
// moved tag can never serve stale bytes.
func mirrorKey(name, resolvedID string) string {
	return name + "/" + resolvedID + ".tar.gz"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func declaredAtOrUnknown(at string) string {
	if at == "" {
		return "<unknown>"
	}
	return at
}
