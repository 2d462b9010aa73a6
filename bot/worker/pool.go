// Package worker bounds how many acquisitions run at once.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/liuran001/TubeBot-Go/bot"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrTaskPanic  = errors.New("worker task panicked")
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger reports recovered task panics.
func WithLogger(logger bot.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithQueueSize sets how many tasks may wait for a free worker.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// Pool runs tasks on a fixed number of goroutines. A panicking task is
// recovered and never takes its worker down.
type Pool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	shutdown  chan struct{}
	once      sync.Once
	mu        sync.RWMutex
	closed    bool
	size      int
	queueSize int
	active    atomic.Int32
	logger    bot.Logger
}

// New starts size workers. size <= 0 means one.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		shutdown:  make(chan struct{}),
		size:      size,
		queueSize: max(size*8, 8),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan func(), p.queueSize)

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		if task != nil {
			p.run(task)
		}
	}
}

func (p *Pool) run(task func()) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.Error("worker task panic", "panic", r)
		}
	}()
	task()
}

// Submit enqueues a task without waiting for it.
func (p *Pool) Submit(task func()) error {
	return p.submit(context.Background(), task)
}

func (p *Pool) submit(ctx context.Context, task func()) error {
	// Senders hold the read lock so close(p.tasks) never races a send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.shutdown:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// SubmitWait enqueues a task and waits for its result.
func (p *Pool) SubmitWait(task func() error) error {
	return p.SubmitWaitContext(context.Background(), task)
}

// SubmitWaitContext enqueues a task and waits for it to complete or for ctx to end.
// A task that already started keeps running after ctx is done; only the wait is abandoned.
// A panic inside task is returned as ErrTaskPanic.
func (p *Pool) SubmitWaitContext(ctx context.Context, task func() error) error {
	if task == nil {
		return nil
	}

	result := make(chan error, 1)
	err := p.submit(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("%w: %v", ErrTaskPanic, r)
				panic(r)
			}
		}()
		result <- task()
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// Shutdown stops accepting tasks and waits for queued and running ones until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// StopNow stops accepting tasks without waiting.
func (p *Pool) StopNow() {
	p.close()
}

func (p *Pool) close() {
	p.once.Do(func() {
		close(p.shutdown)
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Active returns how many tasks are running right now.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Queued returns how many tasks wait for a free worker.
func (p *Pool) Queued() int {
	return len(p.tasks)
}
