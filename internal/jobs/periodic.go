// Package jobs runs the off-path background work: preference learning and
// transaction cache cleanup.
package jobs

import (
	"context"
	"sync"
	"time"
)

// periodic runs fn every interval until stopped or its context ends.
type periodic struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// start is a no-op when already running.
func (p *periodic) start(ctx context.Context, interval time.Duration, fn func(context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}(p.done)
	return true
}

// stop cancels the loop and waits for the current run to return.
func (p *periodic) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
