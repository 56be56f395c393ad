package domain

import "context"

// FetchRequest carries everything a fetcher needs to materialize one
// dependency into a destination directory.
type FetchRequest struct {
	Spec DependencySpec

	// DestDir is an empty staging directory owned by the caller. Fetchers
	// write the dependency's tree into it and never touch anything else.
	DestDir string

	// ExpectedID is the locked resolved identity from a previous run, or
	// empty on first fetch. Fetchers that can resolve cheaply (git) may use
	// it to fail fast before downloading.
	ExpectedID string
}

// FetchResult reports what a fetcher actually materialized.
type FetchResult struct {
	// ResolvedID is the immutable identity of the fetched content: a commit
	// hash for git sources, a content digest for archives.
	ResolvedID string

	// RefKind classifies how the version ref was interpreted.
	RefKind RefKind
}

// Fetcher materializes dependency sources. Implementations are registered by
// scheme and selected per source location.
type Fetcher interface {
	// Name returns the registry key, e.g. "git" or "archive".
	Name() string

	// Matches reports whether this fetcher handles the given source location.
	Matches(sourceLocation string) bool

	// Fetch materializes the requested ref into req.DestDir and returns the
	// resolved identity. On error the caller discards DestDir.
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// VersionLister is implemented by fetchers that can enumerate available
// versions without fetching, used by the outdated report.
type VersionLister interface {
	// ListVersions returns the tag names available at the source location.
	ListVersions(ctx context.Context, sourceLocation string) ([]string, error)
}

// FetcherSource selects the fetcher responsible for a source location.
type FetcherSource interface {
	// For returns the fetcher matching the source location, or an error
	// naming the location when none matches.
	For(sourceLocation string) (Fetcher, error)
}
