// Package worker runs submission processing in the background. A fixed
// pool of goroutines drains a bounded queue; intake enqueues job IDs and
// returns immediately.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Processor handles a single queued submission.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Pool is a bounded worker pool over job IDs.
type Pool struct {
	processor Processor
	jobs      chan string
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a Pool with the given concurrency and queue capacity and
// starts its workers.
func New(processor Processor, concurrency, queueSize int) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		processor: processor,
		jobs:      make(chan string, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues a job without blocking. It returns false when the
// queue is full or the pool is shutting down; the submission stays
// queued in the store either way and can be rerun later.
func (p *Pool) Submit(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- jobID:
		return true
	default:
		zap.L().Warn("worker queue full", zap.String("job_id", jobID))
		return false
	}
}

// Close stops accepting jobs, drains the queue, and waits for in-flight
// work bounded by ctx. After ctx is done remaining work is abandoned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for jobID := range p.jobs {
		if err := p.processor.Process(p.ctx, jobID); err != nil {
			zap.L().Error("submission processing failed",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}
}
