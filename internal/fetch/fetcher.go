// Package fetch retrieves the body of watched pages as text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// Fetcher returns the body of url as text.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type Config struct {
	Timeout   time.Duration // per request. Default: 30s.
	UserAgent string
	MaxBytes  int64 // response body cap. Default: 10MB.
	// RatePerHost is the sustained request rate allowed per host.
	// Zero disables per-host limiting.
	RatePerHost float64
	Burst       int
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "webmonitor/1.0 (+local)"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: upstream status %s", e.URL, e.Status)
}

var ErrTooLarge = errors.New("response body too large")

type HTTPFetcher struct {
	hc      *http.Client
	limiter *HostLimiter
	cfg     Config
}

func New(cfg Config) *HTTPFetcher {
	cfg.defaults()
	f := &HTTPFetcher{
		hc:  &http.Client{Timeout: cfg.Timeout},
		cfg: cfg,
	}
	if cfg.RatePerHost > 0 {
		f.limiter = NewHostLimiter(cfg.RatePerHost, cfg.Burst)
	}
	return f
}

func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return "", fmt.Errorf("rate limit %s: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	res, err := f.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return "", &StatusError{URL: url, StatusCode: res.StatusCode, Status: res.Status}
	}

	// The cap applies to the bytes on the wire, not the decoded text.
	raw := &countingReader{r: io.LimitReader(res.Body, f.cfg.MaxBytes+1)}
	body, err := charset.NewReader(raw, res.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	if raw.n > f.cfg.MaxBytes {
		return "", fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrTooLarge, f.cfg.MaxBytes)
	}
	return string(b), nil
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
