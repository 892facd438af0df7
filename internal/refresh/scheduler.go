// Package refresh keeps every widget's bound view current by re-fetching its
// endpoint on the widget's refresh interval.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/cache"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/view"
)

// ErrUnknownWidget is returned for a widget the scheduler is not running.
var ErrUnknownWidget = errors.New("unknown widget")

// DefaultInterval is used for widgets without a positive refresh interval.
const DefaultInterval = 30 * time.Second

// Fetcher is the subset of *fetch.Gateway the scheduler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) (any, error)
	Cache() *cache.Cache
}

// Snapshot is the latest bound view of a widget.
type Snapshot struct {
	view.View
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sink receives every snapshot as it is produced.
type Sink func(Snapshot)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSink delivers snapshots to fn. fn is called from loop goroutines.
func WithSink(fn Sink) Option {
	return func(s *Scheduler) { s.sink = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock sets the time source for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs one refresh loop per widget.
type Scheduler struct {
	fetcher Fetcher
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	pending []api.Widget
	loops   map[string]*loop
	latest  map[string]Snapshot
	wg      sync.WaitGroup
}

type loop struct {
	widget api.Widget
	force  bool
	cancel context.CancelFunc
}

// New creates a Scheduler. Loops run once Start is called.
func New(f Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher: f,
		logger:  slog.Default(),
		now:     time.Now,
		loops:   make(map[string]*loop),
		latest:  make(map[string]Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start launches loops for the widgets synced so far. Loops stop when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		return
	}
	s.base, s.stop = context.WithCancel(ctx)
	for _, w := range s.pending {
		s.startLocked(w, false)
	}
	s.pending = nil
	s.logger.Info("refresh: scheduler started", "widgets", len(s.loops))
}

// Stop cancels every loop and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Sync reconciles running loops with widgets. New widgets get a loop; a
// widget whose URL, interval or type changed gets a restarted loop; a changed
// refresh nonce drops all of the widget's cached responses and restarts the
// loop with a cache-bypassing fetch. Loops of
// widgets no longer present are stopped and their snapshots dropped.
func (s *Scheduler) Sync(widgets []api.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		s.pending = append([]api.Widget(nil), widgets...)
		return
	}

	seen := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		seen[w.ID] = true
		l, ok := s.loops[w.ID]
		switch {
		case !ok:
			s.startLocked(w, false)
		case l.widget.RefreshNonce != w.RefreshNonce:
			l.cancel()
			s.fetcher.Cache().Evict(view.CacheKeys(w)...)
			s.startLocked(w, true)
		case l.widget.APIURL != w.APIURL || l.widget.RefreshInterval != w.RefreshInterval || l.widget.Type != w.Type:
			l.cancel()
			s.startLocked(w, false)
		default:
			// Title, field and format edits apply on the next tick.
			l.widget = w
		}
	}

	for id, l := range s.loops {
		if !seen[id] {
			l.cancel()
			delete(s.loops, id)
			delete(s.latest, id)
			s.logger.Debug("refresh: loop stopped", "widget", id)
		}
	}
}

// Latest returns the most recent snapshot of a widget.
func (s *Scheduler) Latest(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.latest[id]
	return snap, ok
}

// Refresh fetches a widget now, bypassing the cache, and returns the new
// snapshot.
func (s *Scheduler) Refresh(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	l, ok := s.loops[id]
	var w api.Widget
	if ok {
		w = l.widget
	}
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrUnknownWidget
	}

	s.fetcher.Cache().Evict(view.CacheKeys(w)...)
	snap := s.load(ctx, w, true)
	s.store(l, snap)
	return snap, nil
}

func (s *Scheduler) startLocked(w api.Widget, force bool) {
	ctx, cancel := context.WithCancel(s.base)
	l := &loop{widget: w, force: force, cancel: cancel}
	s.loops[w.ID] = l

	interval := w.Interval()
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, l, interval)
	}()
	s.logger.Debug("refresh: loop started", "widget", w.ID, "interval", interval, "force", force)
}

func (s *Scheduler) run(ctx context.Context, l *loop, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.mu.Lock()
	force := l.force
	s.mu.Unlock()
	s.tick(ctx, l, force)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, l, false)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, l *loop, force bool) {
	s.mu.Lock()
	w := l.widget
	s.mu.Unlock()

	snap := s.load(ctx, w, force)
	if ctx.Err() != nil {
		return
	}
	s.store(l, snap)
}

// load fetches and binds w. Periodic loads are served from the cache while
// the previous response is live. The TTL equals the refresh interval and is
// counted from the end of the fetch, so the entry is still live at the next
// tick and the network is reached on every other tick: data changes at most
// once per two intervals.
func (s *Scheduler) load(ctx context.Context, w api.Widget, force bool) Snapshot {
	doc, err := s.fetcher.Fetch(ctx, w.APIURL, fetch.Options{
		CacheKey: view.CacheKey(w, view.Daily),
		TTL:      w.Interval(),
		Force:    force,
	})

	var v view.View
	if err != nil {
		s.logger.Warn("refresh: fetch failed", "widget", w.ID, "url", w.APIURL, "error", err)
		v = view.Failed(w, err)
	} else {
		v = view.Build(w, doc, view.Query{Interval: view.Daily})
	}
	return Snapshot{View: v, UpdatedAt: s.now()}
}

// store records snap unless the loop has been replaced or stopped meanwhile.
func (s *Scheduler) store(l *loop, snap Snapshot) {
	s.mu.Lock()
	if s.loops[snap.WidgetID] != l {
		s.mu.Unlock()
		return
	}
	s.latest[snap.WidgetID] = snap
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(snap)
	}
}
