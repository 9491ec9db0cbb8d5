package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds connection settings for an S3-compatible bucket.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // custom endpoint for MinIO and similar
	UsePathStyle    bool
	PresignDuration time.Duration
	CreateBucket    bool
}

// S3Store stores media objects in an S3 bucket and hands out presigned
// download links.
type S3Store struct {
	client          *s3.Client
	presign         *s3.PresignClient
	uploader        *manager.Uploader
	bucket          string
	region          string
	presignDuration time.Duration
	createBucket    bool
}

// NewS3Store creates an S3 storage backend.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignDuration <= 0 {
		cfg.PresignDuration = 15 * time.Minute
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client:          client,
		presign:         s3.NewPresignClient(client),
		uploader:        manager.NewUploader(client),
		bucket:          cfg.Bucket,
		region:          cfg.Region,
		presignDuration: cfg.PresignDuration,
		createBucket:    cfg.CreateBucket,
	}, nil
}

// EnsureDir checks that the bucket is reachable, creating it when
// configured to.
func (s *S3Store) EnsureDir(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !s.createBucket || (!errors.As(err, &notFound) && !errors.As(err, &noSuchBucket)) {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Save uploads data under key. Returns the number of bytes read.
func (s *S3Store) Save(ctx context.Context, key string, data io.Reader) (int64, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	counter := &countingReader{r: data}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   counter,
	}
	if ct := contentType(key); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return 0, fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return counter.n, nil
}

// URL returns a presigned GET link that downloads the object as filename.
func (s *S3Store) URL(ctx context.Context, key, filename string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(
			mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
		)
	}

	req, err := s.presign.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignDuration
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes the object for key. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func contentType(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return mime.TypeByExtension(key[i:])
	}
	return ""
}
