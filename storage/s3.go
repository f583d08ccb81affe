package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configure the S3 file store. Endpoint and UsePathStyle support
// S3-compatible services (MinIO, Supabase Storage's S3 gateway, Cloudflare R2).
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// S3Store implements core.FileStore on top of an S3 (or S3-compatible) bucket
// using the AWS SDK default credential chain.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store constructs an S3Store for the given bucket.
func NewS3Store(ctx context.Context, bucket string, optFns ...func(o *S3Options)) (*S3Store, error) {
	opts := S3Options{Region: "us-east-1"}
	for _, fn := range optFns {
		fn(&opts)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(opts.Endpoint) })
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
	}, nil
}

// NewS3StoreFromClient constructs an S3Store from an existing client. Useful
// for tests and callers that manage client configuration themselves.
func NewS3StoreFromClient(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Download fetches the object bytes at the given path.
func (s *S3Store) Download(ctx context.Context, objectPath string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 download failed: %w", err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Upload stores bytes under the given path, overwriting any existing object.
func (s *S3Store) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

// List returns object paths beginning with prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, aws.ToString(obj.Key))
		}
	}
	return paths, nil
}
