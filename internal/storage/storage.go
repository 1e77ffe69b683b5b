// Package storage keeps uploaded document files in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrDisabled is returned by every operation when no storage is configured
var ErrDisabled = errors.New("file storage is not configured")

// FileStore stores document files by key
type FileStore interface {
	// Put stores the content and returns the generated key
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)

	// PresignedURL returns a time-limited download URL for key
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Exists reports whether an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures the backend
type Config struct {
	Type      string // minio, s3 or none
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// New creates the configured file store. Type "none" (or empty) yields a
// store that answers ErrDisabled.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (FileStore, error) {
	var client *minio.Client
	var err error

	switch cfg.Type {
	case "", "none":
		logger.Info("file storage disabled")
		return Disabled{}, nil
	case "minio":
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
	case "s3":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
		}
		client, err = minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Type, err)
	}

	store := &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		kind:   cfg.Type,
		logger: logger,
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("file storage initialized", "type", cfg.Type, "bucket", cfg.Bucket, "region", cfg.Region)
	return store, nil
}

// MinioStore is a FileStore on MinIO or S3
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	kind   string
	logger *slog.Logger
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		// Managed S3 buckets are often pre-created without create permission
		if s.kind == "s3" {
			s.logger.Warn("could not create bucket", "bucket", s.bucket, "error", err)
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", "bucket", s.bucket)
	return nil
}

func (s *MinioStore) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := GenerateKey(filename, time.Now())
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": path.Base(filename),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	return key, nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Disabled is the FileStore used when storage is not configured
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", ErrDisabled
}

func (Disabled) PresignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Exists(context.Context, string) (bool, error) {
	return false, ErrDisabled
}

// GenerateKey builds a date-partitioned object key that keeps the file
// extension: documents/2024/03/01/<uuid>.pdf
func GenerateKey(filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, `\`, "/"))))
	return fmt.Sprintf("documents/%s/%s%s", now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
