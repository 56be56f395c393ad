// Package archive fetches dependency sources published as release tarballs
// or zip files.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/prefetch/domain"
	archiveutil "github.com/rios0rios0/prefetch/internal/archive"
	"github.com/rios0rios0/prefetch/internal/fsutil"
)

const fetcherName = "archive"

// digestPrefix marks resolved identities produced by this fetcher. Archives
// have no commit hash, so the content digest is the identity.
const digestPrefix = "sha256:"

// Fetcher implements domain.Fetcher for .tar.gz, .tgz and .zip sources
// reachable over HTTP(S) or on the local filesystem.
type Fetcher struct {
	client *http.Client
}

var _ domain.Fetcher = (*Fetcher)(nil)

// New creates an archive fetcher using the given HTTP client, or a default
// one when nil.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client}
}

func (f *Fetcher) Name() string { return fetcherName }

// Matches reports whether the source location points at a supported archive.
func (f *Fetcher) Matches(sourceLocation string) bool {
	return archiveKind(sourceLocation) != ""
}

// Fetch downloads the archive, verifies its digest against the pin and the
// locked identity, and extracts it into req.DestDir. Single-root release
// archives (pybind11-2.6.2/...) are flattened so DestDir holds the tree
// directly.
func (f *Fetcher) Fetch(ctx context.Context, req domain.FetchRequest) (domain.FetchResult, error) {
	kind := archiveKind(req.Spec.SourceLocation)
	if kind == "" {
		return domain.FetchResult{}, fmt.Errorf("unsupported archive location %q", req.Spec.SourceLocation)
	}

	archivePath, digest, cleanup, err := f.obtain(ctx, req.Spec.SourceLocation)
	if err != nil {
		return domain.FetchResult{}, err
	}
	defer cleanup()

	resolvedID := digestPrefix + digest
	if req.Spec.SHA256 != "" && canonicalDigest(req.Spec.SHA256) != resolvedID {
		return domain.FetchResult{}, domain.NewIntegrityError(req.Spec.Name, canonicalDigest(req.Spec.SHA256), resolvedID)
	}
	if req.ExpectedID != "" && req.ExpectedID != resolvedID {
		return domain.FetchResult{}, domain.NewIntegrityError(req.Spec.Name, req.ExpectedID, resolvedID)
	}

	if err := extract(kind, archivePath, req.DestDir); err != nil {
		return domain.FetchResult{}, fmt.Errorf("failed to extract %q: %w", req.Spec.SourceLocation, err)
	}
	if err := archiveutil.HoistSingleRoot(req.DestDir); err != nil {
		return domain.FetchResult{}, fmt.Errorf("failed to flatten archive root: %w", err)
	}

	logger.Debugf("[archive] %s resolved %s to %s", req.Spec.Name, req.Spec.VersionRef, resolvedID)
	return domain.FetchResult{ResolvedID: resolvedID, RefKind: domain.RefArchive}, nil
}

// obtain stages the archive as a local file and returns its path and hex
// digest. Remote archives are streamed to a temp file and hashed on the way
// down; local ones are hashed in place.
func (f *Fetcher) obtain(ctx context.Context, location string) (string, string, func(), error) {
	if !isRemote(location) {
		digest, err := fsutil.HashFile(location)
		if err != nil {
			return "", "", nil, err
		}
		return location, digest, func() {}, nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to build request for %q: %w", location, err)
	}

	response, err := f.client.Do(request)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to download %q: %w", location, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("failed to download %q: unexpected status %s", location, response.Status)
	}

	temp, err := os.CreateTemp("", "prefetch-archive-*")
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to stage download: %w", err)
	}
	cleanup := func() {
		temp.Close()
		os.Remove(temp.Name())
	}

	hasher := sha256.New()
	if _, err := io.Copy(temp, io.TeeReader(response.Body, hasher)); err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("failed to download %q: %w", location, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return "", "", nil, fmt.Errorf("failed to stage download: %w", err)
	}

	return temp.Name(), hex.EncodeToString(hasher.Sum(nil)), func() { os.Remove(temp.Name()) }, nil
}

func extract(kind, archivePath, destDir string) error {
	if kind == "zip" {
		return archiveutil.Unzip(archivePath, destDir)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return archiveutil.UntarGz(file, destDir)
}

// archiveKind returns "targz", "zip" or "" for the location, ignoring any
// query string.
func archiveKind(location string) string {
	path := location
	if parsed, err := url.Parse(location); err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return "targz"
	case strings.HasSuffix(path, ".zip"):
		return "zip"
	default:
		return ""
	}
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// canonicalDigest normalizes a pinned digest to the sha256:<hex> form the
// fetcher reports, accepting bare hex pins from the manifest.
func canonicalDigest(pin string) string {
	return digestPrefix + strings.ToLower(strings.TrimPrefix(strings.ToLower(pin), digestPrefix))
}
