package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// s3API is the slice of the S3 client the store needs. Narrowing it keeps
// the adapter testable without a live endpoint.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the object storage client. Endpoint and keys target
// any S3-compatible service; the defaults in config point at Hetzner.
type S3Options struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PublicBase string
	HTTPClient *http.Client
	// Client overrides the constructed S3 client; used in tests.
	Client s3API
}

// S3Store uploads artifacts to an S3-compatible bucket and hands out
// public URLs.
type S3Store struct {
	client     s3API
	bucket     string
	publicBase string
}

// NewS3Store builds an S3Store from explicit credentials.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client := opts.Client
	if client == nil {
		if opts.AccessKey == "" || opts.SecretKey == "" {
			return nil, errors.New("storage: access key and secret key are required")
		}
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(opts.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
			),
		}
		if opts.HTTPClient != nil {
			loadOpts = append(loadOpts, awsconfig.WithHTTPClient(opts.HTTPClient))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("storage: load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
			}
			o.UsePathStyle = false
		})
	}
	publicBase := strings.TrimRight(opts.PublicBase, "/")
	if publicBase == "" {
		endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")
		publicBase = fmt.Sprintf("https://%s.%s", opts.Bucket, endpoint)
	}
	return &S3Store{client: client, bucket: opts.Bucket, publicBase: publicBase}, nil
}

// Upload stores the bytes under a fresh uploads/<uuid> key with a
// public-read ACL and returns the public URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: empty payload")
	}
	key := "uploads/" + uuid.NewString() + extensionForContentType(contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	return s.publicBase + "/" + key, nil
}

var _ Uploader = (*S3Store)(nil)
