// Package prizepool loads the marketplace prize pool snapshot and renders
// it for display.
package prizepool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

// Placeholders rendered while the fetch is pending.
const (
	PlaceholderPotSize  = "0.00"
	PlaceholderPotLimit = "0.0"
)

// displayChars is how many characters of each value are shown.
const displayChars = 4

// Source returns the current snapshot. A nil snapshot means no data.
type Source interface {
	Fetch(ctx context.Context) (*domain.PrizePoolSnapshot, error)
}

// View is what the prize pool banner renders.
type View struct {
	Loading        bool   `json:"loading"`
	CurrentPotSize string `json:"currentPotSize"`
	PotLimit       string `json:"potLimit"`
}

// Display performs a single fetch per mount. There is no retry and no
// polling; a failed or empty fetch leaves both values empty.
type Display struct {
	source Source
	logger *slog.Logger

	mu       sync.Mutex
	mounted  bool
	loading  bool
	snapshot *domain.PrizePoolSnapshot
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDisplay creates an unmounted display reading from source.
func NewDisplay(source Source, logger *slog.Logger) *Display {
	if logger == nil {
		logger = slog.Default()
	}
	return &Display{
		source: source,
		logger: logger.With(slog.String("component", "prize_pool")),
		done:   make(chan struct{}),
	}
}

// Mount starts the fetch. Only the first call has any effect.
func (d *Display) Mount(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted {
		return
	}
	d.mounted = true
	d.loading = true

	fetchCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.fetch(fetchCtx)
}

func (d *Display) fetch(ctx context.Context) {
	defer close(d.done)

	snap, err := d.source.Fetch(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false

	if ctx.Err() != nil {
		d.logger.DebugContext(ctx, "prize pool result discarded after unmount")
		return
	}
	if err != nil {
		d.logger.WarnContext(ctx, "prize pool fetch failed", slog.String("error", err.Error()))
		return
	}
	if snap == nil {
		d.logger.DebugContext(ctx, "prize pool fetch returned no data")
		return
	}
	d.snapshot = snap
}

// Unmount cancels an in-flight fetch. A result arriving afterwards is
// dropped.
func (d *Display) Unmount() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the fetch has resolved. It never closes for a
// display that was not mounted.
func (d *Display) Done() <-chan struct{} { return d.done }

// View returns the current rendering.
func (d *Display) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loading {
		return View{Loading: true, CurrentPotSize: PlaceholderPotSize, PotLimit: PlaceholderPotLimit}
	}
	if d.snapshot == nil {
		return View{}
	}
	return View{
		CurrentPotSize: truncate(d.snapshot.CurrentPotSize, displayChars),
		PotLimit:       truncate(d.snapshot.PotLimit, displayChars),
	}
}

// Load mounts the display, waits for the fetch and returns the resolved
// view. If ctx ends first the fetch is cancelled and ctx.Err is returned.
func (d *Display) Load(ctx context.Context) (View, error) {
	d.Mount(ctx)
	select {
	case <-d.Done():
		return d.View(), nil
	case <-ctx.Done():
		d.Unmount()
		return View{}, ctx.Err()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
