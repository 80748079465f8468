// Package backup ships document snapshots to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"aqualedger/backend/internal/config"
)

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// Snapshot is the backup payload: every stored document keyed by logical key.
type Snapshot struct {
	TakenAt   time.Time                  `json:"takenAt"`
	Documents map[string]json.RawMessage `json:"documents"`
}

type Result struct {
	Key       string    `json:"key"`
	Documents int       `json:"documents"`
	Bytes     int       `json:"bytes"`
	TakenAt   time.Time `json:"takenAt"`
}

// ObjectKey is "backups/<timestamp>.json" in UTC.
func ObjectKey(takenAt time.Time) string {
	return fmt.Sprintf("backups/%s.json", takenAt.UTC().Format("20060102T150405Z"))
}

// Upload serialises snapshot and hands it to uploader.
func Upload(ctx context.Context, uploader Uploader, snapshot Snapshot) (Result, error) {
	if uploader == nil {
		return Result{}, errors.New("backup storage is not configured")
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := ObjectKey(snapshot.TakenAt)
	if err := uploader.Upload(ctx, key, body, "application/json"); err != nil {
		return Result{}, fmt.Errorf("upload snapshot: %w", err)
	}
	return Result{Key: key, Documents: len(snapshot.Documents), Bytes: len(body), TakenAt: snapshot.TakenAt}, nil
}

type S3Uploader struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3Uploader builds a client for AWS S3 or any S3-compatible endpoint.
func NewS3Uploader(ctx context.Context, cfg config.BackupConfig, logger *zap.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("backup bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		u.logger.Error("backup upload failed", zap.String("bucket", u.bucket), zap.String("key", key), zap.Error(err))
		return err
	}
	u.logger.Info("backup uploaded", zap.String("bucket", u.bucket), zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}
