package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrPollerRunning is returned by Start while a run is active.
var ErrPollerRunning = errors.New("poller already running")

// CapacityReader is the read half of contract.Client.
type CapacityReader interface {
	RemainingCapacity(ctx context.Context) (uint64, error)
}

// Poller periodically reads the remaining capacity. At most one run is active
// per Poller.
type Poller struct {
	reader CapacityReader
	logger *slog.Logger

	mu  sync.Mutex
	run *PollRun
	// last run started, possibly stopped but still finishing its read
	last *PollRun
}

// PollRun is the handle of one started poll loop.
type PollRun struct {
	poller *Poller
	cancel context.CancelFunc
	done   chan struct{}

	// held while callbacks run, so that Stop returns only after any
	// in-progress callback has finished
	mu      sync.Mutex
	stopped bool
}

// NewPoller returns a stopped poller over reader. A nil logger means
// slog.Default().
func NewPoller(reader CapacityReader, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{reader: reader, logger: logger}
}

// Start reads the capacity immediately and then every interval. onReading
// receives every successful reading; onZero is called once, after the
// reading that reports zero, and the run ends. Callbacks run on the poll
// goroutine and must not call Stop.
//
// If a stopped run is still finishing its last read, Start waits for it to
// exit first, so reads of consecutive runs never overlap.
func (p *Poller) Start(ctx context.Context, interval time.Duration, onReading func(uint64), onZero func()) (*PollRun, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	for {
		p.mu.Lock()
		if p.run != nil {
			p.mu.Unlock()
			return nil, ErrPollerRunning
		}
		prev := p.last
		if prev == nil || prev.exited() {
			runCtx, cancel := context.WithCancel(ctx)
			run := &PollRun{poller: p, cancel: cancel, done: make(chan struct{})}
			p.run = run
			p.last = run
			p.mu.Unlock()
			go p.loop(runCtx, run, interval, onReading, onZero)
			return run, nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-prev.done:
		}
	}
}

// Stop ends the active run, if any. It is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	run := p.run
	p.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

// Running reports whether a run is active and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// Stop prevents any further callback of this run. A read in flight is
// cancelled and its result discarded.
func (r *PollRun) Stop() {
	r.poller.detach(r)
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// Done is closed when the poll goroutine has exited.
func (r *PollRun) Done() <-chan struct{} {
	return r.done
}

func (r *PollRun) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (p *Poller) detach(run *PollRun) {
	p.mu.Lock()
	if p.run == run {
		p.run = nil
	}
	p.mu.Unlock()
	run.cancel()
}

func (p *Poller) loop(ctx context.Context, run *PollRun, interval time.Duration, onReading func(uint64), onZero func()) {
	defer close(run.done)
	defer p.detach(run)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !p.tick(ctx, run, onReading, onZero) {
			return
		}
		// drop a tick that fell due while the read was outstanding
		select {
		case <-ticker.C:
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick performs one read and reports whether the loop should continue.
func (p *Poller) tick(ctx context.Context, run *PollRun, onReading func(uint64), onZero func()) bool {
	n, err := p.reader.RemainingCapacity(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		p.logger.Warn("capacity read failed", "error", err)
		return true
	}

	run.mu.Lock()
	if run.stopped {
		run.mu.Unlock()
		return false
	}
	if onReading != nil {
		onReading(n)
	}
	if n > 0 {
		run.mu.Unlock()
		return true
	}
	run.stopped = true
	run.mu.Unlock()

	p.detach(run)
	if onZero != nil {
		onZero()
	}
	return false
}
