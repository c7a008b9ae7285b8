// Package datalake archives raw pipeline payloads in an S3-compatible
// object store, one object per extracted record.
package datalake

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/aussie-weather-etl/internal/domain"
)

// Store implements pipeline.Datalake over minio.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New creates the client and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logger.Info("created datalake bucket", "bucket", bucket)
	}

	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

// Store writes the raw payload under {source}/{date}/{key}-{unix}.json so
// replays of a feed never overwrite earlier captures.
func (s *Store) Store(ctx context.Context, record domain.RawRecord) error {
	objectName := fmt.Sprintf("%s/%s/%s-%d.json",
		record.Source,
		record.FetchedAt.UTC().Format("2006-01-02"),
		record.Key,
		record.FetchedAt.Unix())

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(record.Payload), int64(len(record.Payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectName, err)
	}

	s.logger.Debug("raw payload archived", "bucket", s.bucket, "object", objectName)
	return nil
}

// HealthCheck verifies the bucket is still reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
