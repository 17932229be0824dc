package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mesadesk.app/triage/core/config"
)

// Processor schedules queue passes on a fixed interval, switching to a
// longer backoff interval after a pass-level error. A mutex guard keeps at
// most one pass in flight even if a pass overruns the interval.
type Processor struct {
	queue    *Queue
	interval time.Duration
	backoff  time.Duration

	running sync.Mutex

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewProcessor(queue *Queue, cfg config.QueueConfig) *Processor {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	backoff := cfg.BackoffInterval
	if backoff == 0 {
		backoff = 60 * time.Second
	}
	return &Processor{
		queue:     queue,
		interval:  interval,
		backoff:   backoff,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (p *Processor) Run(ctx context.Context) error {
	defer close(p.stoppedCh)

	slog.InfoContext(ctx, "delivery processor started", "interval", p.interval)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			slog.InfoContext(ctx, "delivery processor stopping")
			return nil
		case <-timer.C:
			timer.Reset(p.nextInterval(ctx))
		}
	}
}

func (p *Processor) Stop() {
	close(p.stopCh)
	<-p.stoppedCh
}

// RunPass executes a single queue pass immediately if none is in flight.
func (p *Processor) RunPass(ctx context.Context) (int, error) {
	if !p.running.TryLock() {
		return 0, nil
	}
	defer p.running.Unlock()
	return p.queue.ProcessOnce(ctx)
}

func (p *Processor) nextInterval(ctx context.Context) time.Duration {
	if !p.running.TryLock() {
		// Previous pass still running, check again soon.
		return p.interval
	}
	defer p.running.Unlock()

	if _, err := p.queue.ProcessOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return p.interval
		}
		slog.ErrorContext(ctx, "queue pass error, backing off",
			"error", err,
			"backoff", p.backoff)
		return p.backoff
	}
	return p.interval
}
