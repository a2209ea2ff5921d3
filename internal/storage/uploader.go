package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mohammad-safakhou/glpisum/config"
	"github.com/mohammad-safakhou/glpisum/internal/telemetry"
	"go.uber.org/zap"
)

// ErrBucketRequired is returned when no bucket is configured.
var ErrBucketRequired = errors.New("storage: bucket required")

// ObjectPutter is the narrow S3 interface used by the uploader.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader pushes local files to an S3-compatible bucket.
type Uploader struct {
	client  ObjectPutter
	bucket  string
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// NewUploader builds an S3 client from cfg. Static keys are used when set,
// otherwise the SDK's default credential chain applies.
func NewUploader(ctx context.Context, cfg config.S3Config, logger *zap.Logger, metrics *telemetry.Metrics) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		// S3-compatible providers reject the newer default checksum headers
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewUploaderWithClient(client, cfg.Bucket, logger, metrics), nil
}

// NewUploaderWithClient wraps an existing client.
func NewUploaderWithClient(client ObjectPutter, bucket string, logger *zap.Logger, metrics *telemetry.Metrics) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{client: client, bucket: bucket, logger: logger.Named("storage"), metrics: metrics}
}

// Bucket returns the destination bucket name.
func (u *Uploader) Bucket() string { return u.bucket }

// UploadFile stores the file at path under key.
func (u *Uploader) UploadFile(ctx context.Context, path, key string) error {
	err := u.put(ctx, path, key)
	u.metrics.Upload(err)
	if err != nil {
		u.logger.Error("upload failed",
			zap.String("bucket", u.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	u.logger.Info("file uploaded",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
	)
	return nil
}

func (u *Uploader) put(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// Publish uploads the file at path under its base name, then removes the
// local file whether or not the upload succeeded.
func (u *Uploader) Publish(ctx context.Context, path string) error {
	defer u.remove(path)
	return u.UploadFile(ctx, path, filepath.Base(path))
}

func (u *Uploader) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		u.logger.Warn("could not remove local file", zap.String("path", path), zap.Error(err))
	}
}
