// Package hud paces a gauge display. A Refresher pulls views from the
// store on a fixed interval while stimuli keep arriving and parks itself
// after a quiet period.
package hud

import (
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/elemental/gauge"
)

// Source yields the views to draw. *gauge.Store implements it.
type Source interface {
	Views() iter.Seq[gauge.View]
}

// Options tunes a Refresher.
type Options struct {
	Interval    time.Duration // time between frames
	IdleTimeout time.Duration // quiet period after the last Arm before parking
}

// DefaultOptions refreshes ten times a second and parks after five quiet
// seconds.
func DefaultOptions() Options {
	return Options{Interval: 100 * time.Millisecond, IdleTimeout: 5 * time.Second}
}

// Refresher runs render on its own goroutine. Only one loop runs at a time,
// so render calls never overlap.
type Refresher struct {
	src    Source
	render func([]gauge.View)
	opts   Options
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	arm     chan struct{}
	quit    chan struct{}
	done    chan struct{}

	frames atomic.Uint64
}

// New creates a parked refresher.
func New(src Source, render func([]gauge.View), opts Options, logger *slog.Logger) *Refresher {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		src:    src,
		render: render,
		opts:   opts,
		log:    logger.With(slog.String("component", "hud")),
		arm:    make(chan struct{}, 1),
	}
}

// Arm starts the loop, or pushes back its idle deadline when it is
// already running. It implements gauge.Display.
func (r *Refresher) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		select {
		case r.arm <- struct{}{}:
		default:
		}
		return
	}
	// A loop being stopped may still be inside render; the new one waits
	// for it to exit.
	prev := r.done
	r.running = true
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	r.log.Debug("refresh started", "interval", r.opts.Interval)
	go r.loop(prev, r.quit, r.done)
}

func (r *Refresher) loop(prev, quit, done chan struct{}) {
	defer close(done)
	if prev != nil {
		select {
		case <-prev:
		case <-quit:
			return
		}
	}
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()

	r.refresh()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			r.refresh()
		case <-r.arm:
			idle.Reset(r.opts.IdleTimeout)
		case <-idle.C:
			// An Arm racing the timeout wins.
			r.mu.Lock()
			select {
			case <-r.arm:
				r.mu.Unlock()
				idle.Reset(r.opts.IdleTimeout)
				continue
			default:
			}
			r.running = false
			r.mu.Unlock()
			r.log.Debug("refresh parked", "frames", r.frames.Load())
			return
		}
	}
}

func (r *Refresher) refresh() {
	views := slices.Collect(r.src.Views())
	r.render(views)
	r.frames.Add(1)
}

// Stop parks the loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	quit, done := r.quit, r.done
	r.mu.Unlock()

	close(quit)
	<-done
}

// Running reports whether the loop is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Frames returns the number of frames rendered so far.
func (r *Refresher) Frames() uint64 {
	return r.frames.Load()
}
