// Package workersvc runs background jobs: emails, read receipts and other side effects
// that must not fail or slow down the request that triggered them.
package workersvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
)

var errClosed = errors.New("worker pool closed")

type (
	Options struct {
		Concurrency int
		QueueSize   int
		Retries     int           // extra attempts after the first failure
		Backoff     time.Duration // delay before the first retry, doubled after each attempt
		JobTimeout  time.Duration
	}

	task struct {
		name string
		job  core.Job
	}

	// Pool is a bounded worker pool. Jobs dispatched while the queue is full are dropped and logged.
	Pool struct {
		opts   Options
		logger core.Logger
		queue  chan task
		wg     sync.WaitGroup

		mu     sync.RWMutex
		closed bool

		ctx    context.Context
		cancel context.CancelFunc
	}
)

var _ core.Dispatcher = (*Pool)(nil)

func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		Concurrency: conf.Worker.Concurrency,
		QueueSize:   conf.Worker.QueueSize,
		Retries:     conf.Worker.Retries,
		Backoff:     conf.Worker.Backoff,
		JobTimeout:  time.Minute,
	}
}

func NewPool(opts Options, logger core.Logger) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		opts:   opts,
		logger: logger,
		queue:  make(chan task, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) Dispatch(name string, job core.Job) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn(fmt.Sprintf("dropping job %q: %v", name, errClosed))
		return
	}
	select {
	case p.queue <- task{name: name, job: job}:
	default:
		p.logger.Warn(fmt.Sprintf("dropping job %q: queue is full", name))
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	backoff := p.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := p.attempt(t)
		if err == nil {
			return
		}
		if attempt >= p.opts.Retries {
			p.logger.Error(fmt.Sprintf("job %q failed after %d attempt(s): %v", t.name, attempt+1, err), err)
			return
		}
		p.logger.Debug(fmt.Sprintf("job %q failed, retrying: %v", t.name, err))

		select {
		case <-time.After(backoff):
		case <-p.ctx.Done():
			p.logger.Warn(fmt.Sprintf("job %q abandoned: pool stopped", t.name))
			return
		}
		backoff *= 2
	}
}

func (p *Pool) attempt(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.JobTimeout)
	defer cancel()
	return t.job(ctx)
}

// Close stops accepting jobs and waits for the queued ones to finish.
// If ctx expires first, running jobs are cancelled and ctx's error is returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return errors.Wrap(ctx.Err(), "draining worker pool")
	}
}

// SyncDispatcher runs jobs immediately, in the caller's goroutine. Used in tests and CLIs.
type SyncDispatcher struct {
	logger core.Logger
}

var _ core.Dispatcher = (*SyncDispatcher)(nil)

func NewSyncDispatcher(logger core.Logger) *SyncDispatcher {
	return &SyncDispatcher{logger: logger}
}

func (d *SyncDispatcher) Dispatch(name string, job core.Job) {
	if err := job(context.Background()); err != nil {
		d.logger.Error(fmt.Sprintf("job %q failed: %v", name, err), err)
	}
}
