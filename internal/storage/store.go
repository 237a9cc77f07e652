// Package storage stages import files in an S3-compatible object store. A
// file is written under a temporary key first and only promoted to its final
// key once the surrounding database transaction commits.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrUnavailable marks an object store operation failure. It is a distinct
// failure kind from serialization conflicts and is never retried.
var ErrUnavailable = errors.New("object storage unavailable")

const defaultContentType = "application/json"

// ObjectClient is the slice of the MinIO API the store needs. It exists so
// the staged-commit lifecycle can be unit tested against a fake.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
}

// minioClient adapts *minio.Client to ObjectClient.
type minioClient struct {
	client *minio.Client
}

// Wrap adapts a MinIO client for use with NewStore.
func Wrap(client *minio.Client) ObjectClient {
	return &minioClient{client: client}
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}

func (m *minioClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.client.MakeBucket(ctx, bucket, opts)
}

func (m *minioClient) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return m.client.PutObject(ctx, bucket, key, reader, size, opts)
}

func (m *minioClient) CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	return m.client.CopyObject(ctx, dst, src)
}

func (m *minioClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	return m.client.RemoveObject(ctx, bucket, key, opts)
}

func (m *minioClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, bucket, key, opts)
}

// Config locates import files within the store.
type Config struct {
	Bucket string
	Folder string
}

// Store uploads import files under temporary keys and loads stored ones.
type Store struct {
	api    ObjectClient
	config Config
	logger *slog.Logger

	// now is replaced in tests to pin the date segment of keys.
	now func() time.Time
}

// NewStore wires a store over an object client.
func NewStore(api ObjectClient, config Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:    api,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.config.Bucket)
	if err != nil {
		return fmt.Errorf("%w: failed to check bucket: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.config.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: failed to create bucket %s: %v", ErrUnavailable, s.config.Bucket, err)
	}
	return nil
}

// Stage writes the payload under a collision-resistant temporary key and
// returns the handle whose Commit or Rollback the caller must drive from the
// outcome of its transaction.
func (s *Store) Stage(ctx context.Context, originalFilename string, payload []byte, contentType string) (*StagedUpload, error) {
	finalKey := fmt.Sprintf("%s/%s/%s-%s",
		s.config.Folder,
		s.now().Format("2006/01/02"),
		uuid.New(),
		sanitizeFilename(originalFilename),
	)
	tempKey := finalKey + ".tmp"

	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	_, err := s.api.PutObject(ctx, s.config.Bucket, tempKey,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stage import file: %v", ErrUnavailable, err)
	}

	return &StagedUpload{
		api:         s.api,
		bucket:      s.config.Bucket,
		tempKey:     tempKey,
		finalKey:    finalKey,
		size:        int64(len(payload)),
		contentType: contentType,
		logger:      s.logger,
	}, nil
}

// Load streams a stored object back by key.
func (s *Store) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.api.GetObject(ctx, s.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %s: %v", ErrUnavailable, key, err)
	}
	return reader, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9_.-]`)
var whitespace = regexp.MustCompile(`\s+`)

func sanitizeFilename(filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	name = whitespace.ReplaceAllString(name, "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	if name == "" {
		return "import.json"
	}
	return name
}
