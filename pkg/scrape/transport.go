package scrape

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/internal/metrics"
	"github.com/jmylchreest/serpscope/internal/version"
)

const (
	// DefaultMinDelay is the minimum spacing between requests from one client.
	DefaultMinDelay = time.Second

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 60 * time.Second
)

// Option configures a Client or LocalFetcher.
type Option func(*transport)

// WithMinDelay sets the minimum delay between consecutive requests.
// Zero or negative disables rate limiting.
func WithMinDelay(d time.Duration) Option {
	return func(t *transport) {
		t.minDelay = d
	}
}

// WithRetryDelays sets the backoff delays. An empty slice disables retries.
func WithRetryDelays(delays []time.Duration) Option {
	return func(t *transport) {
		t.retryDelays = delays
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *transport) {
		t.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *transport) {
		t.userAgent = ua
	}
}

// WithMaxBodySize limits response bodies in bytes. Zero means unlimited.
func WithMaxBodySize(n int) Option {
	return func(t *transport) {
		t.maxBodySize = n
	}
}

// transport issues rate-limited, retried GET requests through colly.
// One transport serves one client object.
type transport struct {
	name        string
	headers     map[string]string
	minDelay    time.Duration
	retryDelays []time.Duration
	timeout     time.Duration
	userAgent   string
	maxBodySize int
	limiter     *rate.Limiter
}

func newTransport(name string, headers map[string]string, opts []Option) *transport {
	t := &transport{
		name:        name,
		headers:     headers,
		minDelay:    DefaultMinDelay,
		retryDelays: DefaultRetryDelays(),
		timeout:     DefaultTimeout,
		userAgent:   "serpscope/" + version.String(),
		maxBodySize: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(t)
	}

	limit := rate.Inf
	if t.minDelay > 0 {
		limit = rate.Every(t.minDelay)
	}
	t.limiter = rate.NewLimiter(limit, 1)
	return t
}

// get fetches target, waiting on the limiter before every attempt.
func (t *transport) get(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	err := withRetry(ctx, target, t.retryDelays, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := t.once(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (t *transport) once(ctx context.Context, target string) ([]byte, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(t.userAgent),
		colly.MaxBodySize(t.maxBodySize),
	)
	c.SetRequestTimeout(t.timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range t.headers {
			r.Headers.Set(k, v)
		}
	})

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	start := time.Now()
	if err := c.Visit(target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.ExternalRequests.WithLabelValues(t.name, "error").Inc()
		logger.Debug("request failed", "client", t.name, "url", target, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrTransient, target, err)
	}

	metrics.ExternalRequests.WithLabelValues(t.name, strconv.Itoa(status)).Inc()
	logger.Debug("request complete",
		"client", t.name,
		"url", target,
		"status", status,
		"bytes", len(body),
		"duration", time.Since(start))

	if status < 200 || status > 299 {
		return nil, newStatusError(status, target, body)
	}
	return body, nil
}
