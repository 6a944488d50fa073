package daemon

import (
	"context"
	"errors"
	"time"
)

// DebouncerConfig bounds how change bursts coalesce into builds.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration
}

// Debouncer coalesces bursts of change requests into single build triggers:
// quiet window debounce, with a max delay so a steady stream of edits cannot
// postpone the build indefinitely. The build callback runs on the loop
// goroutine, so exactly one build is in flight; requests arriving during a
// build coalesce into one follow-up.
type Debouncer struct {
	cfg      DebouncerConfig
	requests chan struct{}
}

// NewDebouncer validates the windows and creates a debouncer.
func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, errors.New("quiet window must be > 0")
	}
	if cfg.MaxDelay <= 0 {
		return nil, errors.New("max delay must be > 0")
	}
	return &Debouncer{cfg: cfg, requests: make(chan struct{}, 64)}, nil
}

// Request signals that a rebuild is wanted. Never blocks.
func (d *Debouncer) Request() {
	select {
	case d.requests <- struct{}{}:
	default:
	}
}

// Run drives fire from coalesced requests until the context ends.
func (d *Debouncer) Run(ctx context.Context, fire func(context.Context)) {
	newStoppedTimer := func() *time.Timer {
		t := time.NewTimer(time.Hour)
		if !t.Stop() {
			<-t.C
		}
		return t
	}
	resetTimer := func(t *time.Timer, after time.Duration) {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(after)
	}

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var quietC, maxC <-chan time.Time
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-d.requests:
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
			if !pending {
				pending = true
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			pending = false
			quietC, maxC = nil, nil
			fire(ctx)

		case <-maxC:
			pending = false
			quietC, maxC = nil, nil
			fire(ctx)
		}
	}
}
