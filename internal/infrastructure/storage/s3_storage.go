// Package storage uploads finished export files to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/erp/orderexport/internal/infrastructure/config"
)

var (
	ErrStorageConfigRequired = errors.New("storage: configuration is required")
	ErrBucketRequired        = errors.New("storage: bucket is required")
	ErrCredentialsRequired   = errors.New("storage: access key and secret key are required")
	// ErrObjectExists is returned instead of overwriting an earlier upload
	ErrObjectExists = errors.New("storage: export already uploaded")
)

// Content types stored with uploaded exports
const (
	CSVContentType  = "text/csv; charset=utf-8"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const defaultPresignExpiration = 24 * time.Hour

// s3API is the subset of the S3 client the store calls
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ExportMetadata is stored as object metadata next to the uploaded file
type ExportMetadata struct {
	Shop  string
	Date  time.Time
	RunID string
}

func (m ExportMetadata) values() map[string]string {
	values := make(map[string]string, 3)
	if m.Shop != "" {
		values["shop"] = m.Shop
	}
	if !m.Date.IsZero() {
		values["export-date"] = m.Date.Format("2006-01-02")
	}
	if m.RunID != "" {
		values["run-id"] = m.RunID
	}
	return values
}

// UploadResult describes an uploaded export
type UploadResult struct {
	Bucket      string
	Key         string
	Size        int64
	DownloadURL string
	ExpiresAt   time.Time
}

// ExportStore uploads export files to any S3-compatible storage (AWS S3, RustFS, MinIO, etc.)
type ExportStore struct {
	client            s3API
	presignClient     presignAPI
	bucket            string
	prefix            string
	presignExpiration time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// ExportStoreOption is a functional option for ExportStore
type ExportStoreOption func(*ExportStore)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ExportStoreOption {
	return func(s *ExportStore) {
		s.logger = logger
	}
}

// WithPresignExpiration overrides the configured download link lifetime
func WithPresignExpiration(d time.Duration) ExportStoreOption {
	return func(s *ExportStore) {
		s.presignExpiration = d
	}
}

// NewExportStore creates an ExportStore from the storage section of the configuration
func NewExportStore(cfg *infraconfig.StorageConfig, opts ...ExportStoreOption) (*ExportStore, error) {
	if cfg == nil {
		return nil, ErrStorageConfigRequired
	}
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrCredentialsRequired
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
		return nil, fmt.Errorf("storage: failed to load AWS config: %w", err)
	}

	// an empty endpoint talks to AWS S3 itself
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	s := &ExportStore{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            strings.Trim(cfg.Prefix, "/"),
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presignExpiration <= 0 {
		s.presignExpiration = defaultPresignExpiration
	}
	return s, nil
}

// normalizeEndpoint adds a scheme to a bare host:port endpoint
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("storage: invalid endpoint %q", endpoint)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *ExportStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: failed to check bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Creating export bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var alreadyOwned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &alreadyOwned) {
		return fmt.Errorf("storage: failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ObjectKey returns the storage key for a local export file
func (s *ExportStore) ObjectKey(localPath string) string {
	return path.Join(s.prefix, filepath.Base(localPath))
}

// UploadFile uploads a finished export file and presigns a download link.
// An object already stored under the same key is never overwritten.
func (s *ExportStore) UploadFile(ctx context.Context, localPath string, meta ExportMetadata) (*UploadResult, error) {
	key := s.ObjectKey(localPath)
	exists, err := s.objectExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectExists, s.bucket, key)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open export file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("storage: failed to stat export file: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               f,
		ContentLength:      aws.Int64(info.Size()),
		ContentType:        aws.String(contentTypeFor(localPath)),
		ContentDisposition: aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(localPath)})),
		Metadata:           meta.values(),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to upload %s: %w", key, err)
	}

	result := &UploadResult{Bucket: s.bucket, Key: key, Size: info.Size()}
	if link, expiresAt, err := s.downloadURL(ctx, key); err != nil {
		// the object is stored; only the printed link is missing
		s.logger.Warn("Failed to presign download URL", zap.String("key", key), zap.Error(err))
	} else {
		result.DownloadURL = link
		result.ExpiresAt = expiresAt
	}

	s.logger.Info("Uploaded export file",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size()),
	)
	return result, nil
}

func (s *ExportStore) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	// some S3-compatible services return untyped errors
	if msg := err.Error(); strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("storage: failed to check %s: %w", key, err)
}

func (s *ExportStore) downloadURL(ctx context.Context, key string) (string, time.Time, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", time.Time{}, err
	}
	return req.URL, s.now().Add(s.presignExpiration), nil
}

func contentTypeFor(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".xlsx":
		return XLSXContentType
	default:
		return CSVContentType
	}
}
