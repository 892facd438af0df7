package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *recorded) RecordFetch(_ context.Context, a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newGateway(srv *httptest.Server, c *cache.Cache, opts ...Option) *Gateway {
	opts = append([]Option{WithClient(srv.Client())}, opts...)
	return New(Config{}, c, opts...)
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	// WHAT: A second fetch for the same key inside the TTL does no I/O.
	// WHY: Widgets refresh on timers; the cache prevents redundant calls.
	srv, hits := countingServer(t, 200, `{"price": 10}`)
	g := newGateway(srv, cache.New())

	doc, err := g.Fetch(context.Background(), srv.URL, Options{TTL: time.Minute})
	require.NoError(t, err)
	v, _ := jsondoc.Get(doc, "price")
	assert.Equal(t, 10.0, v)

	_, err = g.Fetch(context.Background(), srv.URL, Options{TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetch_RefetchesAfterExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New(cache.WithClock(func() time.Time { return now }))
	srv, hits := countingServer(t, 200, `{}`)
	g := newGateway(srv, c)

	_, err := g.Fetch(context.Background(), srv.URL, Options{CacheKey: "w1", TTL: 30 * time.Second})
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = g.Fetch(context.Background(), srv.URL, Options{CacheKey: "w1", TTL: 30 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestFetch_CacheKeyDefaultsToURL(t *testing.T) {
	srv, _ := countingServer(t, 200, `[1]`)
	c := cache.New()
	g := newGateway(srv, c)

	_, err := g.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	_, ok := c.Get(srv.URL)
	assert.True(t, ok)
}

func TestFetch_ForceBypassesCache(t *testing.T) {
	// WHAT: Force evicts before fetching.
	// WHY: A manual refresh must not be served the cached document.
	srv, hits := countingServer(t, 200, `{}`)
	g := newGateway(srv, cache.New())

	_, err := g.Fetch(context.Background(), srv.URL, Options{CacheKey: "k", TTL: time.Hour})
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), srv.URL, Options{CacheKey: "k", TTL: time.Hour, Force: true})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestFetch_NoCacheStoresNothing(t *testing.T) {
	// WHAT: A negative TTL fetches without storing the response.
	// WHY: Callers need a way to ask for an uncached read.
	srv, hits := countingServer(t, 200, `{"a": 1}`)
	c := cache.New()
	g := newGateway(srv, c)

	for i := 0; i < 2; i++ {
		doc, err := g.Fetch(context.Background(), srv.URL, Options{CacheKey: "k", TTL: NoCache})
		require.NoError(t, err)
		v, _ := jsondoc.Get(doc, "a")
		assert.Equal(t, 1.0, v)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	assert.Equal(t, 0, c.Len())
}

func TestFetch_RateLimited(t *testing.T) {
	srv, _ := countingServer(t, http.StatusTooManyRequests, `{"message": "slow down"}`)
	c := cache.New()
	g := newGateway(srv, c)

	_, err := g.Fetch(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, "API rate limit reached", Status(err))
	assert.Equal(t, 0, c.Len(), "failures are never cached")
}

func TestFetch_HTTPError(t *testing.T) {
	srv, _ := countingServer(t, http.StatusInternalServerError, `{"error": "boom"}`)
	g := newGateway(srv, cache.New())

	_, err := g.Fetch(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.False(t, errors.Is(err, ErrRateLimited))

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindHTTP, fe.Kind)
	assert.Equal(t, 500, fe.StatusCode)
	assert.Contains(t, fe.Body, "boom")
	assert.Equal(t, "Failed to fetch data", Status(err))
}

func TestFetch_InvalidJSON(t *testing.T) {
	srv, _ := countingServer(t, 200, `{"truncated": `)
	g := newGateway(srv, cache.New())

	doc, err := g.Fetch(context.Background(), srv.URL, Options{})
	assert.Nil(t, doc)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindDecode, fe.Kind)
	assert.ErrorIs(t, err, jsondoc.ErrInvalid)
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv, _ := countingServer(t, 200, `{"a": "0123456789"}`)
	g := New(Config{MaxBytes: 8}, cache.New(), WithClient(srv.Client()))

	_, err := g.Fetch(context.Background(), srv.URL, Options{})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindDecode, fe.Kind)
}

func TestFetch_NetworkError(t *testing.T) {
	srv, _ := countingServer(t, 200, `{}`)
	url := srv.URL
	srv.Close()

	g := New(Config{Timeout: time.Second}, cache.New())
	_, err := g.Fetch(context.Background(), url, Options{})
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNetwork, fe.Kind)
}

func TestFetch_SendsHeaders(t *testing.T) {
	var accept, agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := New(Config{UserAgent: "test-agent"}, cache.New(), WithClient(srv.Client()))
	_, err := g.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", accept)
	assert.Equal(t, "test-agent", agent)
}

func TestFetch_RecordsAttempts(t *testing.T) {
	srv, _ := countingServer(t, 200, `{}`)
	rec := &recorded{}
	g := newGateway(srv, cache.New(), WithRecorder(rec))

	_, _ = g.Fetch(context.Background(), srv.URL, Options{CacheKey: "k"})
	_, _ = g.Fetch(context.Background(), srv.URL, Options{CacheKey: "k"})

	require.Len(t, rec.attempts, 2)
	assert.False(t, rec.attempts[0].Cached)
	assert.Equal(t, 200, rec.attempts[0].StatusCode)
	assert.True(t, rec.attempts[1].Cached)
	assert.Equal(t, "k", rec.attempts[1].CacheKey)
}

func TestFetch_CancelledContext(t *testing.T) {
	srv, hits := countingServer(t, 200, `{}`)
	g := newGateway(srv, cache.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Fetch(ctx, srv.URL, Options{})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

// ---------------------------------------------------------------------------
// Soft errors
// ---------------------------------------------------------------------------

func TestSoftError(t *testing.T) {
	decode := func(s string) any {
		v, err := jsondoc.Decode([]byte(s))
		require.NoError(t, err)
		return v
	}

	msg, ok := SoftError(decode(`{"Information": "Thank you for using Alpha Vantage!"}`))
	assert.True(t, ok)
	assert.Contains(t, msg, "Alpha Vantage")

	_, ok = SoftError(decode(`{"Note": "API call frequency exceeded"}`))
	assert.True(t, ok)

	_, ok = SoftError(decode(`{"data": {"Note": "nested is fine"}}`))
	assert.False(t, ok)

	_, ok = SoftError(decode(`[{"Note": "x"}]`))
	assert.False(t, ok)

	_, ok = SoftError(decode(`{"Note": ""}`))
	assert.False(t, ok)
}
