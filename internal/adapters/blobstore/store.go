// Package blobstore implements the remote artifact transports.
//
// Every store answers the same three questions for a requirement: what digest
// the remote object has, how to stream its bytes, and where it lives. Metadata
// lookups and the start of a transfer are retried with exponential backoff; a
// transfer that fails after bytes were written is reported as a transport error
// and left to the caller, since the writer cannot be rewound.
package blobstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// RetryPolicy bounds the transient failure retries of a store.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy is used by stores built from settings.
var DefaultRetryPolicy = RetryPolicy{
	MaxTries:        4,
	InitialInterval: 500 * time.Millisecond,
	MaxElapsed:      time.Minute,
}

func retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}
	return backoff.Retry(ctx, backoff.Operation[T](op), opts...)
}

// New builds the store selected by settings.Store.
func New(ctx context.Context, s *config.Settings, catalog domain.Catalog, verifier ports.Verifier) (ports.BlobStore, error) {
	switch s.Store {
	case config.StoreHTTP:
		return NewHTTPStore(catalog, HTTPOptions{Timeout: s.HTTP.Timeout, Retry: DefaultRetryPolicy}), nil
	case config.StoreS3:
		return NewS3Store(ctx, catalog, S3Options{
			Region:   s.S3.Region,
			Endpoint: s.S3.Endpoint,
			Retry:    DefaultRetryPolicy,
		})
	case config.StoreSSH:
		if s.SSH.Host == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownStore, "ssh store needs a host"), "store", s.Store)
		}
		return NewSSHStore(catalog, ExecRunner{}, SSHOptions{
			Host:    s.SSH.Host,
			User:    s.SSH.User,
			BaseDir: s.SSH.BaseDir,
			Retry:   DefaultRetryPolicy,
		}), nil
	case config.StoreDir:
		if s.Dir.Path == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownStore, "dir store needs a path"), "store", s.Store)
		}
		alg, err := domain.ParseAlgorithm(s.Dir.Algorithm)
		if err != nil {
			return nil, err
		}
		return NewDirStore(catalog, verifier, s.Dir.Path, alg), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownStore, "store kind is not supported"), "store", s.Store)
	}
}

// objectKey resolves the bucket and fully qualified key of a requirement.
func objectKey(catalog domain.Catalog, req domain.Requirement) (domain.Bucket, string, error) {
	bucket, err := catalog.Lookup(req.Bucket)
	if err != nil {
		return domain.Bucket{}, "", err
	}
	if req.RemoteKey != "" {
		return bucket, req.RemoteKey, nil
	}
	key, err := bucket.Key(req.Source, req.Arch)
	if err != nil {
		return domain.Bucket{}, "", err
	}
	return bucket, key, nil
}

// parseETag converts an object ETag into an md5 digest.
// Multipart uploads carry a "<hash>-<parts>" ETag that is not a content digest.
func parseETag(etag string) (domain.Digest, error) {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	etag = strings.Trim(etag, `"`)
	if etag == "" {
		return domain.Digest{}, zerr.Wrap(domain.ErrInvalidDigest, "object has no etag")
	}
	if strings.Contains(etag, "-") {
		return domain.Digest{}, zerr.With(zerr.Wrap(domain.ErrInvalidDigest, "multipart etag is not a content digest"),
			"etag", etag)
	}
	return domain.NewDigest(domain.MD5, etag)
}

func notFound(err error, msg, locator string) error {
	return backoff.Permanent(errors.Join(domain.ErrMetadataNotFound,
		zerr.With(zerr.Wrap(err, msg), "locator", locator)))
}

func transport(err error, msg, locator string) error {
	return errors.Join(domain.ErrTransport, zerr.With(zerr.Wrap(err, msg), "locator", locator))
}
