// Package mirror implements the optional remote cache on S3-compatible
// object storage. Cache entries travel as gzipped tarballs keyed by resolved
// identity, so a hit is exact by construction.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/prefetch/domain"
	archiveutil "github.com/rios0rios0/prefetch/internal/archive"
)

const contentType = "application/gzip"

// Config holds the mirror connection settings. An empty endpoint means no
// mirror is configured.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Configured reports whether the settings describe a usable mirror.
func (c Config) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Validate checks the settings needed to reach the mirror.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("mirror endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("mirror bucket is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("mirror credentials are required")
	}
	return nil
}

// Store implements domain.Mirror over an S3-compatible endpoint.
type Store struct {
	client *minio.Client
	bucket string
}

var _ domain.Mirror = (*Store)(nil)

// New connects to the configured mirror.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror %q: %w", cfg.Endpoint, err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(client *minio.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// NewDisabled returns a mirror that reports itself disabled. Pull and Push
// are no-ops.
func NewDisabled() *Store {
	return &Store{}
}

// Enabled reports whether the mirror is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureBucket creates the mirror bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check mirror bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create mirror bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Pull downloads the cached tree for key into destDir. A missing object is
// not an error: the caller falls back to the origin fetch.
func (s *Store) Pull(ctx context.Context, key, destDir string) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat mirror object %q: %w", key, err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to get mirror object %q: %w", key, err)
	}
	defer object.Close()

	if err := archiveutil.UntarGz(object, destDir); err != nil {
		return false, fmt.Errorf("failed to unpack mirror object %q: %w", key, err)
	}

	logger.Debugf("[mirror] pulled %s", key)
	return true, nil
}

// Push uploads the tree rooted at srcDir under key.
func (s *Store) Push(ctx context.Context, key, srcDir string) error {
	if !s.Enabled() {
		return nil
	}

	var buffer bytes.Buffer
	if err := archiveutil.TarGz(srcDir, &buffer); err != nil {
		return fmt.Errorf("failed to pack %q for mirror: %w", srcDir, err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, &buffer, int64(buffer.Len()),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to push mirror object %q: %w", key, err)
	}

	logger.Debugf("[mirror] pushed %s (%d bytes)", key, buffer.Len())
	return nil
}

func isNotFound(err error) bool {
	response := minio.ToErrorResponse(err)
	return response.Code == "NoSuchKey" || response.Code == "NoSuchBucket" ||
		response.StatusCode == http.StatusNotFound
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
