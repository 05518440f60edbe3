package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Region string
	// Endpoint overrides the service endpoint and switches to path style addressing.
	Endpoint string
	Retry    RetryPolicy
}

// S3Store reads objects anonymously through the S3 API.
type S3Store struct {
	catalog domain.Catalog
	client  S3API
	policy  RetryPolicy
}

// NewS3Store creates an S3Store with anonymous credentials.
func NewS3Store(ctx context.Context, catalog domain.Catalog, opts S3Options) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(catalog, client, opts.Retry), nil
}

// NewS3StoreWithClient creates an S3Store on top of an existing client.
func NewS3StoreWithClient(catalog domain.Catalog, client S3API, policy RetryPolicy) *S3Store {
	return &S3Store{catalog: catalog, client: client, policy: policy}
}

// Locate returns an s3:// URI.
func (s *S3Store) Locate(req domain.Requirement) (string, error) {
	bucket, key, err := s.object(req)
	if err != nil {
		return "", err
	}
	return "s3://" + bucket + "/" + key, nil
}

// ContentHash reads the ETag of the object.
func (s *S3Store) ContentHash(ctx context.Context, req domain.Requirement) (domain.Digest, error) {
	bucket, key, err := s.object(req)
	if err != nil {
		return domain.Digest{}, err
	}
	loc := "s3://" + bucket + "/" + key
	return retry(ctx, s.policy, func() (domain.Digest, error) {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return domain.Digest{}, classifyS3(err, loc)
		}
		d, err := parseETag(aws.ToString(out.ETag))
		if err != nil {
			return domain.Digest{}, backoff.Permanent(zerr.With(err, "locator", loc))
		}
		return d, nil
	})
}

// Fetch streams the object body into w.
func (s *S3Store) Fetch(ctx context.Context, req domain.Requirement, w io.Writer) error {
	bucket, key, err := s.object(req)
	if err != nil {
		return err
	}
	loc := "s3://" + bucket + "/" + key
	out, err := retry(ctx, s.policy, func() (*s3.GetObjectOutput, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, classifyS3(err, loc)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = out.Body.Close() }()

	if _, err := io.Copy(w, out.Body); err != nil {
		return transport(err, "download interrupted", loc)
	}
	return nil
}

func (s *S3Store) object(req domain.Requirement) (bucket, key string, err error) {
	b, key, err := objectKey(s.catalog, req)
	if err != nil {
		return "", "", err
	}
	if b.S3Bucket == "" {
		return "", "", zerr.With(zerr.Wrap(domain.ErrUnknownBucket, "bucket has no s3 name"), "bucket", b.Name)
	}
	return b.S3Bucket, key, nil
}

// classifyS3 maps API errors: missing keys are permanent, client faults are permanent
// transport errors and everything else is retried.
func classifyS3(err error, loc string) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return transport(err, "request failed", loc)
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey", "NoSuchBucket", "Forbidden", "AccessDenied":
		return notFound(err, "object is not served", loc)
	}
	if apiErr.ErrorFault() == smithy.FaultClient {
		return backoff.Permanent(transport(err, "request rejected", loc))
	}
	return transport(err, "request failed", loc)
}
