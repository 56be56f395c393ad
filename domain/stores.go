package domain

import "context"

// Ledger records which dependency versions are materialized in the local
// cache. It is the authority for cache reuse decisions.
type Ledger interface {
	// Record inserts or replaces the row for (rec.Name, rec.VersionRef).
	Record(rec MaterializationRecord) error

	// Find returns the record for the given name and version ref. The bool
	// reports whether a record exists.
	Find(name, versionRef string) (MaterializationRecord, bool, error)

	// Touch bumps the last-used timestamp for a record.
	Touch(id string) error

	// List returns all records ordered by name then version ref.
	List() ([]MaterializationRecord, error)

	// Delete removes a record by id.
	Delete(id string) error

	// Close releases the underlying store.
	Close() error
}

// Mirror is an optional remote cache shared between machines. Pull and Push
// are best effort: a missing object is not an error, and a failed push never
// fails the build.
type Mirror interface {
	// Pull downloads the cached tree for key into destDir. The bool reports
	// whether the mirror had the object.
	Pull(ctx context.Context, key, destDir string) (bool, error)

	// Push uploads the tree rooted at srcDir under key.
	Push(ctx context.Context, key, srcDir string) error

	// Enabled reports whether the mirror is configured.
	Enabled() bool
}
