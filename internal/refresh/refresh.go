package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("refresher closed")

// Job asks for one commune to be processed.
type Job struct {
	Code string
}

// Refresher is a bounded worker pool that drops a job while an identical
// one is queued or running.
type Refresher struct {
	ch      chan Job
	inFly   sync.Map // code -> struct{}
	g       *errgroup.Group
	ctx     context.Context
	mu      sync.RWMutex
	closed  bool
	Do      func(ctx context.Context, j Job)
	Timeout time.Duration
}

func New(ctx context.Context, capacity int, workerCount int, do func(ctx context.Context, j Job)) *Refresher {
	if capacity <= 0 {
		capacity = 256
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	g, gctx := errgroup.WithContext(ctx)
	r := &Refresher{ch: make(chan Job, capacity), g: g, ctx: gctx, Do: do, Timeout: 2 * time.Minute}
	for i := 0; i < workerCount; i++ {
		g.Go(r.worker)
	}
	return r
}

// Enqueue reports whether the job was accepted. Duplicates and jobs beyond
// capacity are dropped.
func (r *Refresher) Enqueue(j Job) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, ErrClosed
	}
	if _, exists := r.inFly.LoadOrStore(j.Code, struct{}{}); exists {
		return false, nil
	}
	select {
	case r.ch <- j:
		return true, nil
	default:
		// drop if saturated
		r.inFly.Delete(j.Code)
		return false, nil
	}
}

// Close stops intake and waits for queued jobs to finish.
func (r *Refresher) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	return r.g.Wait()
}

func (r *Refresher) worker() error {
	for j := range r.ch {
		if r.ctx.Err() != nil {
			r.inFly.Delete(j.Code)
			continue
		}
		ctx, cancel := context.WithTimeout(r.ctx, r.Timeout)
		func() {
			defer func() {
				r.inFly.Delete(j.Code)
				cancel()
			}()
			if r.Do != nil {
				r.Do(ctx, j)
			}
		}()
	}
	return r.ctx.Err()
}
