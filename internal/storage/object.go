package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"recap/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectStorage fetches audio assets referenced by s3:// file paths.
// Plain filesystem paths are passed through untouched.
type ObjectStorage struct {
	client *s3.Client
}

// NewObjectStorage creates an S3-backed audio fetcher
func NewObjectStorage(endpoint, region, accessKey, secretKey string) (*ObjectStorage, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, reg string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})

	cfg, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	logger.Info("Object storage initialized", zap.String("endpoint", endpoint))

	return &ObjectStorage{client: client}, nil
}

// Fetch resolves a recording file path to a local file. For s3:// URIs the
// object is downloaded to a temp file; cleanup removes it.
func (o *ObjectStorage) Fetch(ctx context.Context, filePath string) (string, func(), error) {
	if !strings.HasPrefix(filePath, "s3://") {
		return filePath, func() {}, nil
	}

	bucket, key, err := parseObjectURI(filePath)
	if err != nil {
		return "", nil, err
	}

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch audio object: %w", err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "recap-audio-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to close audio file: %w", err)
	}

	logger.Info("Audio object downloaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.String("local_path", tmp.Name()))

	cleanup := func() { os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

// Parses s3://bucket/key into its parts
func parseObjectURI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid object URI %q: %w", uri, err)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object URI %q: missing bucket or key", uri)
	}

	return bucket, key, nil
}

// LocalAudio resolves recording file paths directly on the local filesystem
type LocalAudio struct{}

// Fetch verifies the file exists and returns it unchanged
func (LocalAudio) Fetch(_ context.Context, filePath string) (string, func(), error) {
	if _, err := os.Stat(filePath); err != nil {
		return "", nil, fmt.Errorf("audio file not accessible: %w", err)
	}
	return filePath, func() {}, nil
}
