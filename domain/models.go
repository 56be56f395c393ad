package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// DependencySpec declares a third-party source dependency pinned to an
// immutable version reference.
type DependencySpec struct {
	Name           string   // Unique key within a build graph
	SourceLocation string   // Git URL or source-archive URL
	VersionRef     string   // Tag or commit hash; branch names are locked on first fetch
	SHA256         string   // Expected archive digest (archive sources only, optional)
	IncludeDirs    []string // Include dirs relative to the source root; default "."
	DeclaredAt     string   // Manifest position (file:line) for diagnostics
}

// CacheKey returns the stable cache-entry key for this spec. The short source
// hash keeps same-name/same-ref entries from different locations apart.
func (s DependencySpec) CacheKey() string {
	sum := sha256.Sum256([]byte(s.SourceLocation))
	return fmt.Sprintf("%s-%s", sanitizeRef(s.VersionRef), hex.EncodeToString(sum[:4]))
}

// sanitizeRef makes a version ref safe to use as a directory name.
func sanitizeRef(ref string) string {
	out := make([]rune, 0, len(ref))
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '.' || r == '-' || r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// OptionBinding is a build option scoped to a single dependency, applied
// before that dependency is materialized. Values are strings or bools.
type OptionBinding struct {
	Key   string
	Value cty.Value
}

// MaterializedDependency is the result of fetching a dependency into the
// local cache and applying its option bindings.
type MaterializedDependency struct {
	Spec          DependencySpec
	LocalPath     string // Root of the checked-out source tree
	ResolvedID    string // Commit hash (git) or archive digest (archive)
	TreeHash      string
	Fetcher       string
	RefKind       RefKind
	MadeAvailable bool
	Reused        bool // True when served from an intact cache entry
	FetchedAt     time.Time
	Targets       BuildTargets
}

// BuildTargets is what a consuming compile step links against: include paths,
// preprocessor defines, and compiler flags.
type BuildTargets struct {
	IncludeDirs  []string          `json:"include_dirs"`
	Defines      map[string]string `json:"defines,omitempty"`
	CompileFlags []string          `json:"compile_flags,omitempty"`
	SourceDir    string            `json:"source_dir"`
}

// Empty reports whether the targets expose nothing usable to a consumer.
func (t BuildTargets) Empty() bool {
	return len(t.IncludeDirs) == 0 && len(t.Defines) == 0 &&
		len(t.CompileFlags) == 0 && t.SourceDir == ""
}

// ProjectInfo carries consumer-project metadata from the manifest. When
// VersionDefine is set, the project version is propagated into every
// dependency's defines so native code can embed it.
type ProjectInfo struct {
	Name          string
	Version       string
	VersionDefine string
}

// RefKind classifies how a version ref resolved on the remote side.
type RefKind string

const (
	RefTag     RefKind = "tag"
	RefBranch  RefKind = "branch"
	RefCommit  RefKind = "commit"
	RefArchive RefKind = "archive"
)

// MaterializationRecord is the ledger row describing one cache entry.
type MaterializationRecord struct {
	ID             string
	Name           string
	VersionRef     string
	SourceLocation string
	Fetcher        string // Fetcher that produced the entry ("git", "archive")
	ResolvedID     string
	TreeHash       string // Content hash of the materialized tree (VCS dirs excluded)
	LocalPath      string
	SizeBytes      int64
	FetchedAt      time.Time
	LastUsedAt     time.Time
}
