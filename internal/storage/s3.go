package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Scheme prefixes paths served from S3, as in s3://bucket/key.
const S3Scheme = "s3://"

// ErrInvalidS3Path is returned for s3:// paths without a bucket or key.
var ErrInvalidS3Path = errors.New("storage: invalid s3 path")

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage serves s3:// paths from S3 and delegates every other path to
// LocalStorage.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
}

// Compile-time check that S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)

// NewS3Storage creates a new S3Storage instance.
// The root parameter is passed to the embedded LocalStorage.
func NewS3Storage(ctx context.Context, root string, cfg S3Config) (*S3Storage, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		LocalStorage: NewLocalStorage(root),
		client:       s3.NewFromConfig(awsCfg, clientOpts...),
	}, nil
}

// Open fetches s3:// paths with GetObject; other paths are read from disk.
func (s *S3Storage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, S3Scheme) {
		return s.LocalStorage.Open(ctx, path)
	}
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return out.Body, nil
}

// Save uploads to s3:// paths with PutObject; other paths are written to disk.
func (s *S3Storage) Save(ctx context.Context, path string, data io.Reader) error {
	if !strings.HasPrefix(path, S3Scheme) {
		return s.LocalStorage.Save(ctx, path, data)
	}
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return err
	}

	// PutObject needs a seekable body to compute checksums over plain HTTP
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("upload to S3: %w", err)
	}
	return nil
}

// ParseS3Path splits s3://bucket/key into bucket and key.
func ParseS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3Path, path)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidS3Path, path)
	}
	return bucket, key, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
