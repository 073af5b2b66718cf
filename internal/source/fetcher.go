package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
	"github.com/ppiankov/veille/internal/worker"
)

const fetchMaxRetries = 3

// RateLimitPause is the minimum wait after an explicit 429 before retrying
const RateLimitPause = 60 * time.Second

// fetchSleepFunc waits between attempts and is replaced in tests
var fetchSleepFunc = sleepCtx

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Request describes one provider call
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Header  map[string]string
	Accept  string
	Adapter string

	// CheckRobots consults robots.txt before the call (feeds and scraped pages, not APIs)
	CheckRobots bool
}

// Response is a successful provider reply
type Response struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FinalURL    string
}

// StatusError is returned for non-2xx replies
type StatusError struct {
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher performs HTTP calls for every adapter with shared retry, pacing and robots handling
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	logger     *zap.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithLimiter paces calls per provider host
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRobots enables robots.txt checks for requests that ask for them
func WithRobots(r *util.RobotsChecker) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = c }
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, opts ...FetcherOption) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 5_000_000
	}
	f := &Fetcher{
		httpClient: util.NewHTTPClient(timeout, "", ""),
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get is a convenience wrapper for a retried GET
func (f *Fetcher) Get(ctx context.Context, adapter, rawURL string) (*Response, error) {
	return f.FetchWithRetry(ctx, &Request{Method: http.MethodGet, URL: rawURL, Adapter: adapter})
}

// Fetch performs a single attempt
func (f *Fetcher) Fetch(ctx context.Context, r *Request) (*Response, error) {
	if f.robots != nil && r.CheckRobots {
		allowed, delay, err := f.robots.CanFetch(ctx, r.URL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("robots: disallowed by robots.txt: %s", r.URL)
		}
		if delay > 0 && f.limiter != nil {
			if err := f.limiter.WaitWithDelay(ctx, r.URL, delay); err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, r.URL); err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	accept := r.Accept
	if accept == "" {
		accept = "application/json, application/xml;q=0.9, */*;q=0.8"
	}
	req.Header.Set("Accept", accept)
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		Body:        data,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures: 1s, 2s backoff between the 3 attempts,
// and at least RateLimitPause after a 429. Exhausted retries yield a model.ErrTransient
// AdapterError; permanent failures are returned as-is.
func (f *Fetcher) FetchWithRetry(ctx context.Context, r *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		resp, err := f.Fetch(ctx, r)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == fetchMaxRetries-1 {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			wait = RateLimitPause
			if statusErr.RetryAfter > wait {
				wait = statusErr.RetryAfter
			}
			if f.limiter != nil {
				f.limiter.Pause(r.URL, wait)
			}
		}

		f.logger.Debug("retrying source request",
			zap.String("adapter", r.Adapter),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := fetchSleepFunc(ctx, wait); err != nil {
			return nil, &model.AdapterError{
				Adapter:  r.Adapter,
				Kind:     model.ErrTransient,
				Attempts: attempt + 1,
				Err:      fmt.Errorf("%w (gave up waiting: %v)", lastErr, err),
			}
		}
	}

	return nil, &model.AdapterError{
		Adapter:  r.Adapter,
		Kind:     model.ErrTransient,
		Attempts: fetchMaxRetries,
		Err:      lastErr,
	}
}

// isRetryableFetchError reports whether err is worth another attempt:
// 5xx, 429, timeouts and connection-level failures.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	if strings.HasPrefix(msg, "unexpected status: ") {
		fields := strings.Fields(strings.TrimPrefix(msg, "unexpected status: "))
		if len(fields) == 0 {
			return false
		}
		code, convErr := strconv.Atoi(fields[0])
		if convErr != nil {
			return false
		}
		return code >= 500 || code == http.StatusTooManyRequests
	}

	return strings.HasPrefix(msg, "fetch:")
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
