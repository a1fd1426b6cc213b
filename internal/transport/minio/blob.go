// Package minio stores book files in an S3-compatible bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kailas-cloud/shelfindex/internal/domain"
)

// maxRenameAttempts bounds the name_N.ext probe.
const maxRenameAttempts = 1000

// objectClient is the subset of the minio client used by Store.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(
		ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error
	OpenObject(ctx context.Context, bucket, name string) (io.ReadCloser, error)
}

// Config holds connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Store implements the blob store over MinIO.
type Store struct {
	client objectClient
	bucket string
	region string

	mu      sync.Mutex
	pending map[string]struct{} // names chosen by uploads still in flight
}

// New connects to the endpoint in cfg. No request is made until first use.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio: bucket is required")
	}
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{client: &client{c}, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		// a concurrent instance may have won the race
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores r under name. If the name is taken, name_1.ext, name_2.ext
// and so on are tried. Returns the path the file was stored under.
//
// Concurrent uploads through one Store never pick the same name. Two
// processes sharing a bucket can still race between the existence check and
// the write.
func (s *Store) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	name = objectName(name)

	target, err := s.reserve(ctx, name)
	if err != nil {
		return "", err
	}
	defer s.release(target)

	opts := minio.PutObjectOptions{ContentType: contentType}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, target, r, size, opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", target, err)
	}
	return target, nil
}

// Download reads the whole object at p.
func (s *Store) Download(ctx context.Context, p string) ([]byte, error) {
	rc, err := s.client.OpenObject(ctx, s.bucket, p)
	if err != nil {
		return nil, mapError("download", p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, mapError("download", p, err)
	}
	return data, nil
}

// Delete removes the object at p. Removing a missing object succeeds.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Exists reports whether an object is stored at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, p, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	if !ok {
		return fmt.Errorf("minio: bucket %s does not exist", s.bucket)
	}
	return nil
}

// reserve picks a name that is neither stored nor held by another upload,
// and holds it until release.
func (s *Store) reserve(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxRenameAttempts; i++ {
		if _, held := s.pending[candidate]; !held {
			taken, err := s.Exists(ctx, candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				if s.pending == nil {
					s.pending = make(map[string]struct{})
				}
				s.pending[candidate] = struct{}{}
				return candidate, nil
			}
		}
		candidate = stem + "_" + strconv.Itoa(i) + ext
	}
	return "", fmt.Errorf("upload %s: no free name after %d attempts", name, maxRenameAttempts)
}

func (s *Store) release(name string) {
	s.mu.Lock()
	delete(s.pending, name)
	s.mu.Unlock()
}

// objectName keeps the base name of a client supplied file name.
func objectName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func mapError(op, p string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %s: %w", op, p, domain.ErrBlobNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}

// client adapts *minio.Client to objectClient.
type client struct {
	*minio.Client
}

// OpenObject returns a reader over the object, surfacing a missing key
// before the first read.
func (c *client) OpenObject(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	obj, err := c.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}
