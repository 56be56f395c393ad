package domain

// LockEntry is the recorded immutable identity of a previously materialized
// dependency. It anchors integrity checks across builds: a refetch of the
// same (name, ref) must resolve to the same identity.
type LockEntry struct {
	Name           string
	SourceLocation string
	VersionRef     string
	ResolvedID     string
	TreeHash       string
	Fetcher        string
}

// LockSource supplies locked identities to the resolver. Implementations
// return ok=false when no entry exists for the pair.
type LockSource interface {
	LockedEntry(name, versionRef string) (LockEntry, bool)
}
