package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 20 << 20

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// StatusCode extracts the HTTP status from an error chain, if present.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// Options shape a single request. The zero value is a plain GET.
type Options struct {
	Method  string
	Headers map[string]string
	Query   url.Values
	Body    interface{} // JSON-encoded when non-nil
}

// Fetcher is the retrying HTTP helper every adapter goes through.
// Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff; other 4xx responses fail immediately.
type Fetcher struct {
	client *http.Client
	config *common.HTTPConfig
	logger arbor.ILogger
}

// New creates a fetcher using the configured listing timeout.
func New(config *common.HTTPConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger,
	}
}

// WithDetailTimeout returns a fetcher sharing this one's policy but using
// the longer detail-page timeout.
func (f *Fetcher) WithDetailTimeout() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: f.config.DetailTimeout},
		config: f.config,
		logger: f.logger,
	}
}

// FetchJSON performs a request and decodes the JSON response into target.
// A nil target discards the body.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, opts *Options, target interface{}) error {
	body, err := f.fetch(ctx, rawURL, opts, "application/json")
	if err != nil {
		return err
	}
	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}

// FetchText performs a request and returns the raw body, for RSS feeds and
// HTML listing pages.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string, opts *Options) (string, error) {
	body, err := f.fetch(ctx, rawURL, opts, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Head issues a single HEAD request and returns the status code. Used by
// the URL health check; no retries, a dead link is a valid answer.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, opts *Options, accept string) ([]byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyBytes []byte
	if opts.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	fullURL, err := mergeQuery(rawURL, opts.Query)
	if err != nil {
		return nil, err
	}

	var result []byte
	attempt := 0
	op := func() error {
		attempt++

		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request for %s: %w", fullURL, err))
		}
		f.applyHeaders(req, opts, accept, bodyBytes != nil)

		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Debug().
				Err(err).
				Str("url", fullURL).
				Int("attempt", attempt).
				Msg("Request failed")
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("failed to read response from %s: %w", fullURL, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result = data
			return nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: fullURL}
		if retryableStatus(resp.StatusCode) {
			f.logger.Debug().
				Int("status", resp.StatusCode).
				Str("url", fullURL).
				Int("attempt", attempt).
				Msg("Retryable status")
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.config.BackoffFactor
	expo.Multiplier = 2
	expo.MaxInterval = f.config.MaxRetryDelay
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(f.config.MaxRetries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return result, nil
}

func (f *Fetcher) applyHeaders(req *http.Request, opts *Options, accept string, hasBody bool) {
	req.Header.Set("User-Agent", f.config.UserAgent)
	if f.config.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.config.AcceptLanguage)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
}

// retryableStatus reports whether a status is worth retrying: rate limits
// and server-side errors only.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func mergeQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", rawURL, err)
	}

	merged := parsed.Query()
	for k, vs := range query {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	parsed.RawQuery = merged.Encode()

	return parsed.String(), nil
}
