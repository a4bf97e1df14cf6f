// Package storage keeps exported reports in an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pricing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no export bucket is set
var ErrNotConfigured = errors.New("report export bucket is not configured")

// S3ReportStore uploads report files under a key prefix
type S3ReportStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// Option customizes NewS3ReportStore
type Option func(*S3ReportStore)

func WithLogger(logger *zap.Logger) Option {
	return func(s *S3ReportStore) {
		s.logger = logger
	}
}

// NewS3ReportStore creates a store for cfg.Bucket. Without static keys the
// default AWS credential chain is used.
func NewS3ReportStore(ctx context.Context, cfg config.ExportConfig, opts ...Option) (*S3ReportStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := &S3ReportStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upload writes body to <prefix>/<name> and returns the s3:// URI.
func (s *S3ReportStore) Upload(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	key := path.Join(s.prefix, strings.TrimLeft(name, "/"))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	uri := "s3://" + s.bucket + "/" + key
	s.logger.Info("Report uploaded", zap.String("uri", uri), zap.Int("bytes", len(body)))
	return uri, nil
}
