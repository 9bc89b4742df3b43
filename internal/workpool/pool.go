// Package workpool runs short independent tasks on a fixed set of workers.
// Submissions never block, so a running task may enqueue follow-up work, and
// Wait acts as a barrier until every task, nested ones included, has finished.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Task func()

type Stats struct {
	Workers   int   `json:"workers"`
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Panics    int64 `json:"panics"`
}

type Pool struct {
	logger  *slog.Logger
	workers int

	mu      sync.Mutex
	ready   *sync.Cond
	queue   []Task
	pending int
	idle    chan struct{}
	closed  bool

	completed atomic.Int64
	panics    atomic.Int64
	wg        sync.WaitGroup
}

func New(workers int, logger *slog.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("worker count must be > 0, got %d", workers)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	idle := make(chan struct{})
	close(idle)
	p := &Pool{
		logger:  logger,
		workers: workers,
		idle:    idle,
	}
	p.ready = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for w := 0; w < workers; w++ {
		go p.work(w)
	}
	return p, nil
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++
	p.queue = append(p.queue, task)
	p.ready.Signal()
	return nil
}

// Wait blocks until no task is queued or running.
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets queued tasks finish and joins workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.ready.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()
	return Stats{
		Workers:   p.workers,
		Pending:   pending,
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.ready.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(id, task)

		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			close(p.idle)
		}
		p.mu.Unlock()
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked", "worker", id, "panic", r)
		}
		p.completed.Add(1)
	}()
	task()
}
