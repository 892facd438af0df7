// Package dashboard holds the ordered widget list and its export format.
package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/flatten"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("widget not found")
	ErrInvalidWidget = errors.New("invalid widget")
)

const (
	// DefaultRefreshInterval applies when a widget is added without one (seconds).
	DefaultRefreshInterval = 30
	// MinRefreshInterval is the smallest accepted polling period (seconds).
	MinRefreshInterval = 5
)

// Board is the ordered, concurrency-safe list of widgets.
type Board struct {
	mu      sync.RWMutex
	widgets []api.Widget
	now     func() time.Time
}

// Option configures a Board.
type Option func(*Board)

// WithClock sets the time source used for refresh nonces and exports.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

func NewBoard(opts ...Option) *Board {
	b := &Board{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add validates w, fills in defaults and appends it. An empty ID is replaced
// by a random UUID.
func (b *Board) Add(w api.Widget) (api.Widget, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Type == "" {
		w.Type = api.WidgetCard
	}
	if w.RefreshInterval == 0 {
		w.RefreshInterval = DefaultRefreshInterval
	}
	w.SelectedFields = flatten.Dedupe(w.SelectedFields)
	if err := validate(w); err != nil {
		return api.Widget{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexLocked(w.ID) >= 0 {
		return api.Widget{}, fmt.Errorf("%w: duplicate id %q", ErrInvalidWidget, w.ID)
	}
	w.RefreshNonce = b.nextNonce(0)
	b.widgets = append(b.widgets, w)
	return clone(w), nil
}

func validate(w api.Widget) error {
	var missing []string
	if strings.TrimSpace(w.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(w.APIURL) == "" {
		missing = append(missing, "apiUrl")
	}
	if len(w.SelectedFields) == 0 {
		missing = append(missing, "selectedFields")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidWidget, strings.Join(missing, ", "))
	}
	if !w.Type.Valid() {
		return fmt.Errorf("%w: unknown widget type %q", ErrInvalidWidget, w.Type)
	}
	if w.RefreshInterval < MinRefreshInterval {
		return fmt.Errorf("%w: refresh interval %ds below minimum %ds", ErrInvalidWidget, w.RefreshInterval, MinRefreshInterval)
	}
	return nil
}

// Get returns a copy of the widget with the given id.
func (b *Board) Get(id string) (api.Widget, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.indexLocked(id)
	if i < 0 {
		return api.Widget{}, false
	}
	return clone(b.widgets[i]), true
}

// List returns a copy of all widgets in display order.
func (b *Board) List() []api.Widget {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]api.Widget, len(b.widgets))
	for i, w := range b.widgets {
		out[i] = clone(w)
	}
	return out
}

// Patch lists the settings an update may change. Nil fields are left alone.
type Patch struct {
	Title           *string         `json:"title,omitempty"`
	APIURL          *string         `json:"apiUrl,omitempty"`
	RefreshInterval *int            `json:"refreshInterval,omitempty"`
	Type            *api.WidgetType `json:"widgetType,omitempty"`
	SelectedFields  []api.Field     `json:"selectedFields,omitempty"`
	RowsSelector    *string         `json:"rowsSelector,omitempty"`
	Format          *string         `json:"format,omitempty"`
}

// Update applies p to a widget and gives it a new refresh nonce so that
// consumers rebind it.
func (b *Board) Update(id string, p Patch) (api.Widget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return api.Widget{}, ErrNotFound
	}

	w := clone(b.widgets[i])
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.APIURL != nil {
		w.APIURL = *p.APIURL
	}
	if p.RefreshInterval != nil {
		w.RefreshInterval = *p.RefreshInterval
	}
	if p.Type != nil {
		w.Type = *p.Type
	}
	if p.SelectedFields != nil {
		w.SelectedFields = flatten.Dedupe(p.SelectedFields)
	}
	if p.RowsSelector != nil {
		w.RowsSelector = *p.RowsSelector
	}
	if p.Format != nil {
		w.Format = *p.Format
	}
	if err := validate(w); err != nil {
		return api.Widget{}, err
	}
	w.RefreshNonce = b.nextNonce(w.RefreshNonce)
	b.widgets[i] = w
	return clone(w), nil
}

// Touch gives a widget a new refresh nonce without changing its settings.
func (b *Board) Touch(id string) (api.Widget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return api.Widget{}, ErrNotFound
	}
	b.widgets[i].RefreshNonce = b.nextNonce(b.widgets[i].RefreshNonce)
	return clone(b.widgets[i]), nil
}

// Remove deletes a widget. It reports whether the widget existed.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return false
	}
	b.widgets = append(b.widgets[:i], b.widgets[i+1:]...)
	return true
}

// Reorder moves the widget fromID to the position currently held by toID.
// Unknown ids leave the order unchanged and report false.
func (b *Board) Reorder(fromID, toID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	from, to := b.indexLocked(fromID), b.indexLocked(toID)
	if from < 0 || to < 0 {
		return false
	}
	moved := b.widgets[from]
	list := append(b.widgets[:from:from], b.widgets[from+1:]...)
	list = append(list[:to], append([]api.Widget{moved}, list[to:]...)...)
	b.widgets = list
	return true
}

// Replace swaps the whole widget list.
func (b *Board) Replace(widgets []api.Widget) {
	cp := make([]api.Widget, len(widgets))
	for i, w := range widgets {
		cp[i] = clone(w)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.widgets = cp
}

func (b *Board) indexLocked(id string) int {
	for i, w := range b.widgets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// nextNonce returns a millisecond timestamp strictly greater than prev.
func (b *Board) nextNonce(prev int64) int64 {
	n := b.now().UnixMilli()
	if n <= prev {
		n = prev + 1
	}
	return n
}

func clone(w api.Widget) api.Widget {
	if w.SelectedFields != nil {
		fields := make([]api.Field, len(w.SelectedFields))
		copy(fields, w.SelectedFields)
		w.SelectedFields = fields
	}
	return w
}
