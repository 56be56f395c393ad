// Package testdoubles provides test doubles (spies, stubs, dummies) for domain
// interfaces. These are hand-crafted implementations — no mock frameworks.
package testdoubles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rios0rios0/prefetch/domain"
)

// ---------------------------------------------------------------------------
// SpyFetcher
// ---------------------------------------------------------------------------

// SpyFetcher implements domain.Fetcher as a configurable spy.
// Configure the response fields for the behavior your test exercises,
// then inspect the call-tracking fields to verify interactions. The spy is
// safe for concurrent use since materializations run in parallel.
type SpyFetcher struct {
	mu sync.Mutex

	// --- identity ---
	FetcherName string
	MatchAll    bool
	MatchPrefix string

	// --- Fetch ---
	Files      map[string]string // relative path -> content written into DestDir
	ResolvedID string
	Kind       domain.RefKind
	FetchErr   error
	// FetchErrOnce fails only the first Fetch call when set
	FetchErrOnce error
	// spy: requests received
	FetchCalls []domain.FetchRequest

	// --- ListVersions ---
	Tags       []string
	ListErr    error
	ListedURLs []string
}

var (
	_ domain.Fetcher       = (*SpyFetcher)(nil)
	_ domain.VersionLister = (*SpyFetcher)(nil)
)

func (f *SpyFetcher) Name() string {
	if f.FetcherName == "" {
		return "spy"
	}
	return f.FetcherName
}

func (f *SpyFetcher) Matches(sourceLocation string) bool {
	if f.MatchAll {
		return true
	}
	return f.MatchPrefix != "" && len(sourceLocation) >= len(f.MatchPrefix) &&
		sourceLocation[:len(f.MatchPrefix)] == f.MatchPrefix
}

func (f *SpyFetcher) Fetch(_ context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	f.mu.Lock()
	f.FetchCalls = append(f.FetchCalls, req)
	once := f.FetchErrOnce
	f.FetchErrOnce = nil
	f.mu.Unlock()

	if once != nil {
		return domain.FetchResult{}, once
	}
	if f.FetchErr != nil {
		return domain.FetchResult{}, f.FetchErr
	}

	for rel, content := range f.Files {
		path := filepath.Join(req.DestDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return domain.FetchResult{}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return domain.FetchResult{}, err
		}
	}

	resolved := f.ResolvedID
	if resolved == "" {
		resolved = "0000000000000000000000000000000000000000"
	}
	kind := f.Kind
	if kind == "" {
		kind = domain.RefTag
	}
	return domain.FetchResult{ResolvedID: resolved, RefKind: kind}, nil
}

// CallCount returns how many Fetch invocations the spy received.
func (f *SpyFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.FetchCalls)
}

func (f *SpyFetcher) ListVersions(_ context.Context, sourceLocation string) ([]string, error) {
	f.mu.Lock()
	f.ListedURLs = append(f.ListedURLs, sourceLocation)
	f.mu.Unlock()
	return f.Tags, f.ListErr
}

// ---------------------------------------------------------------------------
// StubFetcherSource
// ---------------------------------------------------------------------------

// StubFetcherSource implements domain.FetcherSource over a fixed fetcher list.
type StubFetcherSource struct {
	Fetchers []domain.Fetcher
	ForErr   error
}

var _ domain.FetcherSource = (*StubFetcherSource)(nil)

func (s *StubFetcherSource) For(sourceLocation string) (domain.Fetcher, error) {
	if s.ForErr != nil {
		return nil, s.ForErr
	}
	for _, fetcher := range s.Fetchers {
		if fetcher.Matches(sourceLocation) {
			return fetcher, nil
		}
	}
	return nil, fmt.Errorf("no fetcher matches %q", sourceLocation)
}

// ---------------------------------------------------------------------------
// SpyLedger
// ---------------------------------------------------------------------------

// SpyLedger implements domain.Ledger in memory.
type SpyLedger struct {
	mu   sync.Mutex
	rows map[string]domain.MaterializationRecord

	// --- error injection ---
	RecordErr error
	FindErr   error

	// --- spy: calls received ---
	Recorded []domain.MaterializationRecord
	Touched  []string
	Deleted  []string
}

var _ domain.Ledger = (*SpyLedger)(nil)

func ledgerKey(name, versionRef string) string {
	return name + "@" + versionRef
}

func (l *SpyLedger) Record(rec domain.MaterializationRecord) error {
	if l.RecordErr != nil {
		return l.RecordErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rows == nil {
		l.rows = make(map[string]domain.MaterializationRecord)
	}
	l.rows[ledgerKey(rec.Name, rec.VersionRef)] = rec
	l.Recorded = append(l.Recorded, rec)
	return nil
}

func (l *SpyLedger) Find(name, versionRef string) (domain.MaterializationRecord, bool, error) {
	if l.FindErr != nil {
		return domain.MaterializationRecord{}, false, l.FindErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rows[ledgerKey(name, versionRef)]
	return rec, ok, nil
}

func (l *SpyLedger) Touch(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Touched = append(l.Touched, id)
	return nil
}

func (l *SpyLedger) List() ([]domain.MaterializationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.MaterializationRecord, 0, len(l.rows))
	for _, rec := range l.rows {
		out = append(out, rec)
	}
	return out, nil
}

func (l *SpyLedger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Deleted = append(l.Deleted, id)
	for key, rec := range l.rows {
		if rec.ID == id {
			delete(l.rows, key)
		}
	}
	return nil
}

func (l *SpyLedger) Close() error { return nil }

// RecordCount returns how many Record invocations the ledger received.
func (l *SpyLedger) RecordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Recorded)
}

// ---------------------------------------------------------------------------
// SpyMirror
// ---------------------------------------------------------------------------

// SpyMirror implements domain.Mirror in memory. Pull writes the configured
// object's files into the destination; Push records the key it was given.
type SpyMirror struct {
	mu sync.Mutex

	// --- behavior ---
	EnabledResult bool
	Objects       map[string]map[string]string // key -> relative path -> content
	PullErr       error
	PushErr       error

	// --- spy: calls received ---
	PullKeys []string
	PushKeys []string
}

var _ domain.Mirror = (*SpyMirror)(nil)

func (m *SpyMirror) Enabled() bool { return m.EnabledResult }

func (m *SpyMirror) Pull(_ context.Context, key, destDir string) (bool, error) {
	m.mu.Lock()
	m.PullKeys = append(m.PullKeys, key)
	m.mu.Unlock()

	if m.PullErr != nil {
		return false, m.PullErr
	}
	files, ok := m.Objects[key]
	if !ok {
		return false, nil
	}
	for rel, content := range files {
		path := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return false, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *SpyMirror) Push(_ context.Context, key, _ string) error {
	m.mu.Lock()
	m.PushKeys = append(m.PushKeys, key)
	m.mu.Unlock()
	return m.PushErr
}

// PushCount returns how many Push invocations the mirror received.
func (m *SpyMirror) PushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PushKeys)
}

// ---------------------------------------------------------------------------
// StubLockSource
// ---------------------------------------------------------------------------

// StubLockSource implements domain.LockSource over a fixed entry map keyed
// by "name@versionRef".
type StubLockSource struct {
	Entries map[string]domain.LockEntry
}

var _ domain.LockSource = (*StubLockSource)(nil)

func (s *StubLockSource) LockedEntry(name, versionRef string) (domain.LockEntry, bool) {
	entry, ok := s.Entries[name+"@"+versionRef]
	return entry, ok
}
