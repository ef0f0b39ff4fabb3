// Package storage holds file content outside the tree. The tree only keeps
// content refs; purging a file releases its blob here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"gopan-drive/config"
	"gopan-drive/internal/logger"
)

// Blobs is the content store used by drives.
type Blobs interface {
	// Remove deletes the objects behind refs. Missing objects are not an error.
	Remove(ctx context.Context, refs ...string) error
	// URL returns a temporary download URL for ref, or "" when the backend
	// cannot serve content.
	URL(ctx context.Context, ref, fileName string) (string, error)
}

// MinIO stores blobs in a bucket.
type MinIO struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIO initializes the MinIO client and creates the bucket if it doesn't exist
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Check if bucket exists
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	// Create bucket if it doesn't exist
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", zap.String("bucket", cfg.BucketName))
	}

	logger.Info("MinIO client initialized", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.BucketName))
	return &MinIO{client: client, bucket: cfg.BucketName, expiry: time.Hour}, nil
}

func (m *MinIO) Remove(ctx context.Context, refs ...string) error {
	var errs []error
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		err := m.client.RemoveObject(ctx, m.bucket, ref, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			errs = append(errs, fmt.Errorf("remove %s: %w", ref, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MinIO) URL(ctx context.Context, ref, fileName string) (string, error) {
	if ref == "" {
		return "", nil
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, ref, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate preview URL: %w", err)
	}
	return u.String(), nil
}

// Memory keeps no content and records what was released. It backs drives
// when MinIO is disabled.
type Memory struct {
	mu      sync.Mutex
	removed []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Remove(_ context.Context, refs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		if ref != "" {
			m.removed = append(m.removed, ref)
		}
	}
	return nil
}

func (m *Memory) URL(context.Context, string, string) (string, error) {
	return "", nil
}

// Removed lists released refs in order.
func (m *Memory) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}
