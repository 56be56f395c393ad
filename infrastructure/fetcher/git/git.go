// Package git fetches dependency sources from git remotes at a pinned tag,
// branch, or commit.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/prefetch/domain"
)

const fetcherName = "git"

// Fetcher implements domain.Fetcher over git transports (https, ssh, local
// paths). The checked-out tree is materialized without its .git directory:
// the cache stores sources, not repositories.
type Fetcher struct{}

var (
	_ domain.Fetcher       = (*Fetcher)(nil)
	_ domain.VersionLister = (*Fetcher)(nil)
)

// New creates a git fetcher.
func New() *Fetcher {
	return &Fetcher{}
}

func (f *Fetcher) Name() string { return fetcherName }

// Matches reports whether the source location points at a git remote.
func (f *Fetcher) Matches(sourceLocation string) bool {
	if strings.HasPrefix(sourceLocation, "git::") ||
		strings.HasPrefix(sourceLocation, "git@") ||
		strings.HasPrefix(sourceLocation, "git://") ||
		strings.HasPrefix(sourceLocation, "ssh://") ||
		strings.HasPrefix(sourceLocation, "file://") {
		return true
	}
	if strings.HasSuffix(sourceLocation, ".git") {
		return true
	}
	if strings.Contains(sourceLocation, "github.com") ||
		strings.Contains(sourceLocation, "gitlab.com") ||
		strings.Contains(sourceLocation, "bitbucket.org") ||
		strings.Contains(sourceLocation, "dev.azure.com") ||
		strings.Contains(sourceLocation, "_git/") {
		return true
	}

	// A local working copy counts as a remote too
	if info, err := os.Stat(filepath.Join(sourceLocation, ".git")); err == nil && info.IsDir() {
		return true
	}
	return false
}

// Fetch clones the pinned ref into req.DestDir and reports the resolved
// commit. Branch refs resolve against the locked identity before any clone:
// a branch that moved since it was locked fails instead of refetching
// different content under the same ref.
func (f *Fetcher) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	url := normalizeURL(req.Spec.SourceLocation)
	ref := req.Spec.VersionRef

	kind, advertised, err := f.classifyRef(ctx, url, ref)
	if err != nil {
		return domain.FetchResult{}, err
	}

	if kind == domain.RefBranch && req.ExpectedID != "" && advertised.String() != req.ExpectedID {
		return domain.FetchResult{}, domain.NewIntegrityError(req.Spec.Name, req.ExpectedID, advertised.String())
	}

	var repo *gogit.Repository
	switch kind {
	case domain.RefTag:
		repo, err = f.cloneAt(ctx, url, req.DestDir, plumbing.NewTagReferenceName(ref))
	case domain.RefBranch:
		repo, err = f.cloneAt(ctx, url, req.DestDir, plumbing.NewBranchReferenceName(ref))
	default:
		repo, err = f.cloneCommit(ctx, url, req.DestDir, ref)
	}
	if err != nil {
		return domain.FetchResult{}, err
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(plumbing.HEAD))
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("failed to resolve checked-out commit: %w", err)
	}

	// The cache stores source trees, not repositories
	if err := os.RemoveAll(filepath.Join(req.DestDir, gogit.GitDirName)); err != nil {
		return domain.FetchResult{}, fmt.Errorf("failed to drop repository metadata: %w", err)
	}

	logger.Debugf("[git] %s resolved %s (%s) to %s", req.Spec.Name, ref, kind, resolved.String())
	return domain.FetchResult{ResolvedID: resolved.String(), RefKind: kind}, nil
}

// classifyRef asks the remote how the version ref resolves: an advertised
// tag, an advertised branch, or a raw commit hash.
func (f *Fetcher) classifyRef(
	ctx context.Context,
	url, ref string,
) (domain.RefKind, plumbing.Hash, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return "", plumbing.ZeroHash, fmt.Errorf("failed to list refs at %q: %w", url, err)
	}

	var branchHash, tagHash plumbing.Hash
	foundTag, foundBranch := false, false
	for _, advertised := range refs {
		switch {
		case advertised.Name() == plumbing.NewTagReferenceName(ref):
			foundTag = true
			tagHash = advertised.Hash()
		case advertised.Name() == plumbing.NewBranchReferenceName(ref):
			foundBranch = true
			branchHash = advertised.Hash()
		}
	}

	switch {
	case foundTag:
		return domain.RefTag, tagHash, nil
	case foundBranch:
		return domain.RefBranch, branchHash, nil
	case isCommitHash(ref):
		return domain.RefCommit, plumbing.NewHash(ref), nil
	default:
		return "", plumbing.ZeroHash, fmt.Errorf("ref %q not found at %q (no such tag or branch)", ref, url)
	}
}

// cloneAt clones a single advertised ref.
func (f *Fetcher) cloneAt(
	ctx context.Context,
	url, destDir string,
	refName plumbing.ReferenceName,
) (*gogit.Repository, error) {
	repo, err := gogit.PlainCloneContext(ctx, destDir, false, &gogit.CloneOptions{
		URL:           url,
		ReferenceName: refName,
		SingleBranch:  true,
		Tags:          gogit.NoTags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %q at %s: %w", url, refName.Short(), err)
	}
	return repo, nil
}

// cloneCommit clones the default branch history and checks out a commit.
// Commits are not advertised refs, so a full clone is required.
func (f *Fetcher) cloneCommit(
	ctx context.Context,
	url, destDir, ref string,
) (*gogit.Repository, error) {
	repo, err := gogit.PlainCloneContext(ctx, destDir, false, &gogit.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %q: %w", url, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("commit %q not found in %q: %w", ref, url, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := worktree.Checkout(&gogit.CheckoutOptions{Hash: *hash}); err != nil {
		return nil, fmt.Errorf("failed to check out commit %q: %w", ref, err)
	}
	return repo, nil
}

// ListVersions returns the tag names advertised by the remote.
func (f *Fetcher) ListVersions(ctx context.Context, sourceLocation string) ([]string, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{normalizeURL(sourceLocation)},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list refs at %q: %w", sourceLocation, err)
	}

	var tags []string
	for _, advertised := range refs {
		if advertised.Name().IsTag() {
			tags = append(tags, advertised.Name().Short())
		}
	}
	return tags, nil
}

// normalizeURL strips wrapper prefixes so go-git sees a plain endpoint.
func normalizeURL(sourceLocation string) string {
	return strings.TrimPrefix(sourceLocation, "git::")
}

// isCommitHash reports whether the ref looks like a (possibly abbreviated)
// commit hash.
func isCommitHash(ref string) bool {
	if len(ref) < 7 || len(ref) > 40 {
		return false
	}
	for _, r := range ref {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
