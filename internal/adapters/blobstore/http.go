package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// HTTPOptions configures an HTTPStore.
type HTTPOptions struct {
	Client  *http.Client
	Timeout time.Duration
	Retry   RetryPolicy
}

// HTTPStore reads objects from the public HTTP endpoint of each bucket.
// The md5 digest is taken from the ETag of a HEAD request.
type HTTPStore struct {
	catalog domain.Catalog
	client  *http.Client
	policy  RetryPolicy
}

// NewHTTPStore creates an HTTPStore.
func NewHTTPStore(catalog domain.Catalog, opts HTTPOptions) *HTTPStore {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPStore{catalog: catalog, client: client, policy: opts.Retry}
}

// Locate returns the object URL.
func (s *HTTPStore) Locate(req domain.Requirement) (string, error) {
	bucket, key, err := objectKey(s.catalog, req)
	if err != nil {
		return "", err
	}
	if bucket.URL == "" {
		return "", zerr.With(zerr.Wrap(domain.ErrUnknownBucket, "bucket has no url"), "bucket", bucket.Name)
	}
	u, err := url.JoinPath(bucket.URL, key)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrUnknownBucket, "bucket url is invalid"), "url", bucket.URL)
	}
	return u, nil
}

// ContentHash issues a HEAD request and parses the ETag.
func (s *HTTPStore) ContentHash(ctx context.Context, req domain.Requirement) (domain.Digest, error) {
	u, err := s.Locate(req)
	if err != nil {
		return domain.Digest{}, err
	}
	return retry(ctx, s.policy, func() (domain.Digest, error) {
		resp, err := s.do(ctx, http.MethodHead, u)
		if err != nil {
			return domain.Digest{}, err
		}
		_ = resp.Body.Close()

		d, err := parseETag(resp.Header.Get("ETag"))
		if err != nil {
			return domain.Digest{}, backoff.Permanent(zerr.With(err, "url", u))
		}
		return d, nil
	})
}

// Fetch streams the body of a GET request into w.
func (s *HTTPStore) Fetch(ctx context.Context, req domain.Requirement, w io.Writer) error {
	u, err := s.Locate(req)
	if err != nil {
		return err
	}
	resp, err := retry(ctx, s.policy, func() (*http.Response, error) {
		return s.do(ctx, http.MethodGet, u)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return transport(err, "download interrupted", u)
	}
	return nil
}

// do performs one request. Missing objects are permanent, server errors are retried.
func (s *HTTPStore) do(ctx context.Context, method, u string) (*http.Response, error) {
	r, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(transport(err, "invalid request", u))
	}
	resp, err := s.client.Do(r)
	if err != nil {
		return nil, transport(err, "request failed", u)
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusOK:
		return resp, nil
	case status == http.StatusNotFound || status == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, notFound(zerr.With(errors.New(resp.Status), "status", status), "object is not served", u)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		_ = resp.Body.Close()
		return nil, transport(zerr.With(errors.New(resp.Status), "status", status), "server unavailable", u)
	default:
		_ = resp.Body.Close()
		return nil, backoff.Permanent(transport(zerr.With(errors.New(resp.Status), "status", status),
			"unexpected response", u))
	}
}
