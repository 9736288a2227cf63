package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/pkg/logger"
)

// S3Client talks to AWS S3 (or any S3-compatible endpoint) through the
// minio SDK. Falls back to IAM credentials when no static key is set.
type S3Client struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	useSSL         bool
}

func NewS3Client(cfg config.S3Config) (*S3Client, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}

	return &S3Client{
		client:         client,
		bucket:         cfg.Bucket,
		publicEndpoint: publicEndpoint,
		useSSL:         cfg.UseSSL,
	}, nil
}

func (s *S3Client) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("s3_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      s.bucket,
		})
		return "", err
	}

	logger.Info("s3_upload_success", map[string]interface{}{
		"object_name": objectName,
		"bucket":      s.bucket,
	})
	return publicURL(s.publicEndpoint, s.useSSL, s.bucket, objectName), nil
}

func (s *S3Client) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("s3_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      s.bucket,
		})
	}
	return err
}

func (s *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}
