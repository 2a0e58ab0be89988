package fetch

import (
	"sync"

	"github.com/content-aggregator/pkg/logger"
)

// Pool runs fetch jobs with bounded concurrency. Submit never blocks the
// caller; jobs queue on the semaphore inside their own goroutine.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	log    *logger.Logger
	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most size jobs concurrently
func NewPool(size int, log *logger.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		sem: make(chan struct{}, size),
		log: log.WithComponent("pool"),
	}
}

// Submit schedules a job for execution. Returns false if the pool has been
// shut down.
func (p *Pool) Submit(job func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Interface("panic", r).Msg("Fetch job panicked")
			}
		}()
		job()
	}()
	return true
}

// Shutdown stops accepting new jobs and waits for in-flight ones to finish
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
