// Package fetch retrieves JSON documents over HTTP behind the response cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"golang.org/x/time/rate"
)

// Config configures the gateway.
type Config struct {
	Timeout    time.Duration // HTTP timeout. Default: 30s.
	MaxBytes   int64         // Max response body size. Default: 10MB.
	UserAgent  string
	DefaultTTL time.Duration // TTL when the caller passes none. Default: 60s.
	// RatePerSecond paces outgoing requests. Zero disables pacing.
	RatePerSecond float64
	Burst         int
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "finboard/1.0"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 60 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// NoCache is a TTL that keeps the fetched response out of the cache.
const NoCache time.Duration = -1

// Options are per-call fetch settings.
type Options struct {
	// CacheKey defaults to the URL.
	CacheKey string
	// TTL of the cached response. Zero means Config.DefaultTTL; a negative
	// TTL (see NoCache) stores nothing. A live entry is served either way.
	TTL time.Duration
	// Force evicts any cached entry for the key before fetching.
	Force bool
}

// Attempt describes one Fetch call for recorders.
type Attempt struct {
	CacheKey   string
	URL        string
	Cached     bool
	StatusCode int
	Kind       Kind // empty on success
	Err        error
	Duration   time.Duration
	At         time.Time
}

// Recorder observes fetch attempts (fetch log, metrics).
type Recorder interface {
	RecordFetch(ctx context.Context, a Attempt)
}

// Gateway fetches JSON documents, consulting the cache before any I/O.
type Gateway struct {
	client    *http.Client
	cache     *cache.Cache
	limiter   *rate.Limiter
	config    Config
	logger    *slog.Logger
	recorders []Recorder
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClient replaces the HTTP client (tests use httptest clients).
func WithClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithRecorder adds an attempt recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorders = append(g.recorders, r) }
}

// New creates a Gateway backed by c.
func New(cfg Config, c *cache.Cache, opts ...Option) *Gateway {
	cfg.defaults()
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	g := &Gateway{
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   c,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		config:  cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Cache exposes the backing cache.
func (g *Gateway) Cache() *cache.Cache {
	return g.cache
}

// Fetch returns the document at url. A live cache entry short-circuits the
// request; otherwise the response is decoded, cached for the TTL and returned.
// On failure the error is an *Error and nothing is cached.
func (g *Gateway) Fetch(ctx context.Context, url string, opts Options) (any, error) {
	key := opts.CacheKey
	if key == "" {
		key = url
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = g.config.DefaultTTL
	}

	start := time.Now()
	if opts.Force {
		g.cache.Evict(key)
	} else if doc, ok := g.cache.Get(key); ok {
		g.record(ctx, Attempt{CacheKey: key, URL: url, Cached: true, At: start})
		return doc, nil
	}

	doc, status, err := g.get(ctx, url)
	attempt := Attempt{
		CacheKey:   key,
		URL:        url,
		StatusCode: status,
		Err:        err,
		Duration:   time.Since(start),
		At:         start,
	}
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			attempt.Kind = fe.Kind
		}
		g.record(ctx, attempt)
		g.logger.Warn("fetch: request failed", "url", url, "key", key, "error", err)
		return nil, err
	}

	g.record(ctx, attempt)
	if ttl < 0 {
		return doc, nil
	}
	g.cache.Set(key, doc, ttl)
	g.logger.Debug("fetch: cached response", "url", url, "key", key, "ttl", ttl)
	return doc, nil
}

func (g *Gateway) get(ctx context.Context, url string) (any, int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, 0, &Error{Kind: KindNetwork, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.config.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp.StatusCode, &Error{Kind: KindRateLimit, URL: url, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, &Error{
			Kind:       KindHTTP,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, &Error{Kind: KindNetwork, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > g.config.MaxBytes {
		return nil, resp.StatusCode, &Error{Kind: KindDecode, URL: url, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("body exceeds %d bytes", g.config.MaxBytes)}
	}

	doc, err := jsondoc.Decode(body)
	if err != nil {
		return nil, resp.StatusCode, &Error{Kind: KindDecode, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return doc, resp.StatusCode, nil
}

func (g *Gateway) record(ctx context.Context, a Attempt) {
	for _, r := range g.recorders {
		r.RecordFetch(ctx, a)
	}
}
