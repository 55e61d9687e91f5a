// Package s3storage archives captured request bodies in an S3-compatible
// bucket (MinIO in development).
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// Storage wraps the MinIO client for the payload archive.
type Storage struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
}

// New creates a MinIO client from the archive settings.
func New(cfg config.ArchiveConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region, presignTTL: ttl}, nil
}

// ObjectKey is where the original body of document id is archived.
func ObjectKey(id string) string {
	return "capturas/" + id + ".json"
}

// EnsureBucket creates the archive bucket when missing.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ArchivePayload stores the request body of document id.
func (s *Storage) ArchivePayload(ctx context.Context, id string, raw []byte) error {
	opts := minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"documento-id": id},
	}
	if _, err := s.client.PutObject(ctx, s.bucket, ObjectKey(id), bytes.NewReader(raw), int64(len(raw)), opts); err != nil {
		return fmt.Errorf("archive payload %s: %w", id, err)
	}
	return nil
}

// Exists reports whether the body of document id has been archived.
func (s *Storage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, ObjectKey(id), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("stat payload %s: %w", id, err)
}

// PresignPayloadURL returns a signed GET URL for the archived body. It fails
// with model.ErrNotFound when nothing was archived for id.
func (s *Storage) PresignPayloadURL(ctx context.Context, id string) (string, time.Duration, error) {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, fmt.Errorf("payload %s: %w", id, model.ErrNotFound)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ObjectKey(id), s.presignTTL, url.Values{})
	if err != nil {
		return "", 0, fmt.Errorf("presign payload %s: %w", id, err)
	}
	return u.String(), s.presignTTL, nil
}
