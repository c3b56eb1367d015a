// Package storage exports aged sync audit records to object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/meschain/marketsync/internal/infrastructure/config"
)

// ErrEmptyKey is returned for an archive without a key
var ErrEmptyKey = errors.New("storage key is required")

// ArchiveContentType is the media type of archive objects (JSON lines)
const ArchiveContentType = "application/x-ndjson"

// ArchiveObject is one exported batch of audit records. From and To bound
// the timestamps of the records it holds.
type ArchiveObject struct {
	Key     string
	Body    []byte
	Records int
	From    time.Time
	To      time.Time
}

func (o ArchiveObject) metadata() map[string]string {
	return map[string]string{
		"records": strconv.Itoa(o.Records),
		"from":    o.From.UTC().Format(time.RFC3339),
		"to":      o.To.UTC().Format(time.RFC3339),
	}
}

// ObjectStore receives archive objects
type ObjectStore interface {
	Put(ctx context.Context, obj ArchiveObject) error
}

var _ ObjectStore = (*S3ObjectStore)(nil)

// S3ObjectStore writes archives to an S3-compatible bucket (AWS S3, MinIO)
type S3ObjectStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

type S3Option func(*S3ObjectStore)

func WithLogger(logger *zap.Logger) S3Option {
	return func(s *S3ObjectStore) {
		s.logger = logger
	}
}

// NewS3ObjectStore builds the client from the storage section of the
// configuration. It does not contact the endpoint.
func NewS3ObjectStore(cfg *infraconfig.StorageConfig, opts ...S3Option) (*S3ObjectStore, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("storage configuration is required")
	case cfg.Bucket == "":
		return nil, errors.New("storage bucket is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := &S3ObjectStore{
		client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = cfg.UsePathStyle
			// MinIO rejects the default trailing checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}),
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid storage endpoint scheme %q", u.Scheme)
	}
	return endpoint, nil
}

// EnsureBucket creates the archive bucket when it is missing
func (s *S3ObjectStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check archive bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create archive bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads obj with its record count and time range as object metadata.
// An archive under the same key is replaced.
func (s *S3ObjectStore) Put(ctx context.Context, obj ArchiveObject) error {
	if obj.Key == "" {
		return ErrEmptyKey
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		ContentType:   aws.String(ArchiveContentType),
		Metadata:      obj.metadata(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", obj.Key, err)
	}
	s.logger.Debug("Archive uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", obj.Key),
		zap.Int("records", obj.Records),
		zap.Int("bytes", len(obj.Body)),
	)
	return nil
}

func (s *S3ObjectStore) Bucket() string {
	return s.bucket
}
