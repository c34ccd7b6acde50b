package refresh

import (
	"sort"
	"sync"
	"time"
)

// State is the refresh state of one widget.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// WidgetStatus is a point-in-time view of one widget.
type WidgetStatus struct {
	Widget     string    `json:"widget"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
	DurationMs int64     `json:"durationMs"`
	Refreshes  int       `json:"refreshes"`
}

// Board tracks the refresh state of every registered widget. It is safe for
// concurrent use.
type Board struct {
	mu      sync.Mutex
	widgets map[string]*WidgetStatus
	started map[string]time.Time
	now     func() time.Time
}

// NewBoard creates a Board with widgets registered as idle.
func NewBoard(widgets ...string) *Board {
	b := &Board{
		widgets: make(map[string]*WidgetStatus),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, w := range widgets {
		b.widgets[w] = &WidgetStatus{Widget: w, State: StateIdle}
	}
	return b
}

func (b *Board) entry(widget string) *WidgetStatus {
	st, ok := b.widgets[widget]
	if !ok {
		st = &WidgetStatus{Widget: widget, State: StateIdle}
		b.widgets[widget] = st
	}
	return st
}

// Start marks widget as running.
func (b *Board) Start(widget string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.entry(widget)
	st.State = StateRunning
	st.Error = ""
	b.started[widget] = b.now()
}

// Finish records the outcome of a refresh started with Start.
func (b *Board) Finish(widget string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	st := b.entry(widget)
	if start, ok := b.started[widget]; ok {
		st.DurationMs = now.Sub(start).Milliseconds()
		delete(b.started, widget)
	}
	st.UpdatedAt = now
	st.Refreshes++
	if err != nil {
		st.State = StateError
		st.Error = err.Error()
		return
	}
	st.State = StateComplete
	st.Error = ""
}

// Status returns the status of one widget.
func (b *Board) Status(widget string) (WidgetStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.widgets[widget]
	if !ok {
		return WidgetStatus{}, false
	}
	return *st, true
}

// Snapshot returns every widget's status sorted by name.
func (b *Board) Snapshot() []WidgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]WidgetStatus, 0, len(b.widgets))
	for _, st := range b.widgets {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Widget < out[j].Widget })
	return out
}

// Busy reports whether any widget is running.
func (b *Board) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.started) > 0
}
