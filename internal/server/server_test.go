package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/fetchlog"
	"github.com/Rishwanth-M/finboard/internal/metrics"
	"github.com/Rishwanth-M/finboard/internal/refresh"
	"github.com/Rishwanth-M/finboard/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteJSON = `{
	"Global Quote": {"01. symbol": "IBM", "05. price": "161.50"},
	"rows": [{"name": "a"}, {"name": "b"}]
}`

type harness struct {
	api       *httptest.Server
	upstream  *httptest.Server
	hits      *int32
	board     *dashboard.Board
	boardFile string
	deps      Deps
}

// withScheduler runs a refresh scheduler behind the server, as serve does.
func withScheduler(t *testing.T) func(*Deps) {
	return func(d *Deps) {
		s := refresh.New(d.Gateway)
		s.Start(context.Background())
		t.Cleanup(s.Stop)
		d.Scheduler = s
	}
}

func newHarness(t *testing.T, upstreamStatus int, upstreamBody string, opts ...func(*Deps)) *harness {
	t.Helper()
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(upstreamStatus)
		_, _ = w.Write([]byte(upstreamBody))
	}))
	t.Cleanup(upstream.Close)

	m := metrics.New()
	log, err := fetchlog.Open(filepath.Join(t.TempDir(), "fetches.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	gw := fetch.New(fetch.Config{}, cache.New(cache.WithObserver(m.CacheObserver())),
		fetch.WithRecorder(m), fetch.WithRecorder(log))
	board := dashboard.NewBoard()
	boardFile := filepath.Join(t.TempDir(), "board.json")

	deps := Deps{
		Board:     board,
		Gateway:   gw,
		History:   log,
		Metrics:   m.Handler(),
		BoardFile: boardFile,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	ts := httptest.NewServer(New(deps))
	t.Cleanup(ts.Close)

	return &harness{api: ts, upstream: upstream, hits: &hits, board: board, boardFile: boardFile, deps: deps}
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.api.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeResp[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (h *harness) addWidget(t *testing.T, title string, typ api.WidgetType, paths ...string) api.Widget {
	t.Helper()
	w := api.Widget{Title: title, APIURL: h.upstream.URL, Type: typ}
	for _, p := range paths {
		w.SelectedFields = append(w.SelectedFields, api.Field{Path: p})
	}
	resp := h.do(t, http.MethodPost, "/api/widgets", w)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeResp[api.Widget](t, resp)
}

// ---------------------------------------------------------------------------
// Discovery and resolution
// ---------------------------------------------------------------------------

func TestDiscover(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)

	resp := h.do(t, http.MethodPost, "/api/discover", map[string]any{"url": h.upstream.URL})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeResp[discoverResponse](t, resp)

	paths := make([]string, 0, len(got.Fields))
	for _, f := range got.Fields {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"Global Quote.01. symbol", "Global Quote.05. price", "name"}, paths)

	resp = h.do(t, http.MethodPost, "/api/discover", map[string]any{"url": h.upstream.URL, "q": "PRICE"})
	got = decodeResp[discoverResponse](t, resp)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "161.50", got.Fields[0].Sample)

	// The second discovery was served from the cache.
	assert.Equal(t, int32(1), atomic.LoadInt32(h.hits))
}

func TestDiscover_Errors(t *testing.T) {
	h := newHarness(t, 500, `down`)

	resp := h.do(t, http.MethodPost, "/api/discover", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/discover", map[string]any{"url": h.upstream.URL})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Failed to fetch data", decodeResp[errorBody](t, resp).Error)
}

func TestDiscover_SoftError(t *testing.T) {
	h := newHarness(t, 200, `{"Note": "Thank you for using our API"}`)

	resp := h.do(t, http.MethodPost, "/api/discover", map[string]any{"url": h.upstream.URL})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeResp[errorBody](t, resp)
	assert.True(t, body.Soft)
	assert.Equal(t, "API rate limit reached", body.Error)
}

func TestResolve(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)

	resp := h.do(t, http.MethodPost, "/api/resolve", `{"document": {"a": {"5. adjusted close": 3}}, "path": "a.5. adjusted close"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeResp[resolveResponse](t, resp)
	assert.True(t, got.Found)
	assert.Equal(t, 3.0, got.Value)

	resp = h.do(t, http.MethodPost, "/api/resolve", map[string]any{"url": h.upstream.URL, "path": "Global Quote.01. symbol"})
	got = decodeResp[resolveResponse](t, resp)
	assert.True(t, got.Found)
	assert.Equal(t, "IBM", got.Value)

	resp = h.do(t, http.MethodPost, "/api/resolve", map[string]any{"url": h.upstream.URL, "path": "nope"})
	got = decodeResp[resolveResponse](t, resp)
	assert.False(t, got.Found)
	assert.Nil(t, got.Value)

	resp = h.do(t, http.MethodPost, "/api/resolve", map[string]any{"path": "a"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// Widgets
// ---------------------------------------------------------------------------

func TestWidgetLifecycle(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)

	resp := h.do(t, http.MethodGet, "/api/widgets", nil)
	assert.Equal(t, []api.Widget{}, decodeResp[[]api.Widget](t, resp))

	a := h.addWidget(t, "Price", api.WidgetCard, "Global Quote.05. price")
	b := h.addWidget(t, "Rows", api.WidgetTable, "name")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, dashboard.DefaultRefreshInterval, a.RefreshInterval)

	resp = h.do(t, http.MethodGet, "/api/widgets/"+a.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, a, decodeResp[api.Widget](t, resp))

	resp = h.do(t, http.MethodPatch, "/api/widgets/"+a.ID, map[string]any{"title": "IBM"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeResp[api.Widget](t, resp)
	assert.Equal(t, "IBM", patched.Title)
	assert.Greater(t, patched.RefreshNonce, a.RefreshNonce)

	resp = h.do(t, http.MethodPost, "/api/widgets/reorder", reorderRequest{From: b.ID, To: a.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	order := decodeResp[[]api.Widget](t, resp)
	assert.Equal(t, []string{b.ID, a.ID}, []string{order[0].ID, order[1].ID})

	resp = h.do(t, http.MethodDelete, "/api/widgets/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/widgets/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Every change was saved.
	saved := dashboard.NewBoard()
	require.NoError(t, saved.LoadFile(h.boardFile))
	require.Len(t, saved.List(), 1)
	assert.Equal(t, b.ID, saved.List()[0].ID)
}

func TestWidgetErrors(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)

	resp := h.do(t, http.MethodPost, "/api/widgets", map[string]any{"title": "no url"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/widgets", "{")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPatch, "/api/widgets/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/widgets/reorder", reorderRequest{From: "x", To: "y"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/widgets/missing/refresh", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefreshBumpsNonceAndRefetches(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)
	w := h.addWidget(t, "Price", api.WidgetCard, "Global Quote.05. price")

	resp := h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(h.hits))

	resp = h.do(t, http.MethodPost, "/api/widgets/"+w.ID+"/refresh", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	touched := decodeResp[api.Widget](t, resp)
	assert.Greater(t, touched.RefreshNonce, w.RefreshNonce)

	h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(h.hits))
}

func TestRefreshWithSchedulerDropsEveryChartInterval(t *testing.T) {
	// WHAT: A manual refresh refetches every chart interval, not only the
	// one the scheduler keeps warm.
	// WHY: Weekly and monthly views must not serve the pre-refresh document.
	h := newHarness(t, 200, `{"Weekly Time Series": {"2024-01-05": {"4. close": "5"}}}`, withScheduler(t))
	w := h.addWidget(t, "Chart", api.WidgetChart, "x")
	weekly := view.CacheKey(w, view.Weekly)

	resp := h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view?interval=weekly", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, cached := h.deps.Gateway.Cache().Get(weekly)
	require.True(t, cached)

	resp = h.do(t, http.MethodPost, "/api/widgets/"+w.ID+"/refresh", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, cached = h.deps.Gateway.Cache().Get(weekly)
	assert.False(t, cached)

	resp = h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view?interval=weekly", nil)
	v := decodeResp[view.View](t, resp)
	assert.Equal(t, []view.Point{{Date: "2024-01-05", Value: 5}}, v.Series)

	entries, err := h.deps.History.History(context.Background(), weekly, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ok", entries[0].Status)
	assert.Equal(t, "ok", entries[1].Status)
}

func TestConcurrentChangesKeepSchedulerAndFileCurrent(t *testing.T) {
	h := newHarness(t, 200, `{"price": 1}`, withScheduler(t))

	const n = 12
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := api.Widget{
				Title:          fmt.Sprintf("w%d", i),
				APIURL:         h.upstream.URL,
				SelectedFields: []api.Field{{Path: "price"}},
			}
			resp := h.do(t, http.MethodPost, "/api/widgets", body)
			if resp.StatusCode == http.StatusCreated {
				ids[i] = decodeResp[api.Widget](t, resp).ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.NotEmpty(t, id)
	}

	saved := dashboard.NewBoard()
	require.NoError(t, saved.LoadFile(h.boardFile))
	assert.Len(t, saved.List(), n)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h.do(t, http.MethodDelete, "/api/widgets/"+id, nil)
		}(id)
	}
	wg.Wait()

	saved = dashboard.NewBoard()
	require.NoError(t, saved.LoadFile(h.boardFile))
	assert.Empty(t, saved.List())
	for _, id := range ids {
		_, err := h.deps.Scheduler.Refresh(context.Background(), id)
		assert.ErrorIs(t, err, refresh.ErrUnknownWidget, id)
	}
}

func TestView(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)
	card := h.addWidget(t, "Price", api.WidgetCard, "Global Quote.05. price")
	table := h.addWidget(t, "Rows", api.WidgetTable, "name")

	resp := h.do(t, http.MethodGet, "/api/widgets/"+card.ID+"/view", nil)
	v := decodeResp[view.View](t, resp)
	require.Len(t, v.Cells, 1)
	assert.Equal(t, "161.5", v.Cells[0].Display)

	resp = h.do(t, http.MethodGet, "/api/widgets/"+table.ID+"/view?search=B&page=1", nil)
	v = decodeResp[view.View](t, resp)
	require.NotNil(t, v.Table)
	assert.Equal(t, 1, v.Table.Total)

	resp = h.do(t, http.MethodGet, "/api/widgets/"+table.ID+"/view?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestView_FetchFailure(t *testing.T) {
	h := newHarness(t, 429, `slow down`)
	w := h.addWidget(t, "Price", api.WidgetCard, "a")

	resp := h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "API rate limit reached", decodeResp[view.View](t, resp).Error)
}

// ---------------------------------------------------------------------------
// Export / import
// ---------------------------------------------------------------------------

func TestExportImport(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)
	w := h.addWidget(t, "Price", api.WidgetCard, "Global Quote.05. price")

	resp := h.do(t, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	doc := decodeResp[api.Dashboard](t, h.do(t, http.MethodGet, "/api/export", nil))
	assert.Equal(t, api.SchemaVersion, doc.Version)
	require.Len(t, doc.Widgets, 1)

	// Invalid input leaves the board alone.
	resp = h.do(t, http.MethodPost, "/api/import", `{"widgets": {}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, h.board.List(), 1)

	h.do(t, http.MethodDelete, "/api/widgets/"+w.ID, nil)
	require.Empty(t, h.board.List())

	resp = h.do(t, http.MethodPost, "/api/import", string(exported))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeResp[importResponse](t, resp).Imported)
	assert.Equal(t, []api.Widget{w}, h.board.List())

	_, err = os.Stat(h.boardFile)
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func TestFetchHistoryAndMetrics(t *testing.T) {
	h := newHarness(t, 200, quoteJSON)
	w := h.addWidget(t, "Price", api.WidgetCard, "a")
	h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)
	h.do(t, http.MethodGet, "/api/widgets/"+w.ID+"/view", nil)

	resp := h.do(t, http.MethodGet, "/api/fetches/"+w.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decodeResp[[]fetchlog.Entry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "cached", entries[0].Status)
	assert.Equal(t, "ok", entries[1].Status)

	resp = h.do(t, http.MethodGet, "/api/fetches/unknown", nil)
	assert.Empty(t, decodeResp[[]fetchlog.Entry](t, resp))

	resp = h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `finboard_fetches_total{outcome="cached"} 1`)

	resp = h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
