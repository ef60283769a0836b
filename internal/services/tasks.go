package services

import (
	"sync"

	"github.com/rs/zerolog"
)

// TaskRunner executes fire-and-forget background work (persisting
// fetched data, warming caches, kicking off market-cap fetches) on a
// bounded queue. Submission never blocks the response path: when the
// queue is full the task is dropped with an error log, and the next
// read simply re-triggers the same fetch-and-persist cycle.
type TaskRunner struct {
	queue chan task
	wg    sync.WaitGroup
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

type task struct {
	name string
	fn   func()
}

// NewTaskRunner starts the worker goroutines.
func NewTaskRunner(queueSize, workers int, log zerolog.Logger) *TaskRunner {
	r := &TaskRunner{
		queue: make(chan task, queueSize),
		log:   log.With().Str("component", "tasks").Logger(),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *TaskRunner) worker() {
	defer r.wg.Done()
	for t := range r.queue {
		r.run(t)
	}
}

func (r *TaskRunner) run(t task) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Str("task", t.name).Msg("background task panicked")
		}
	}()
	t.fn()
}

// Submit enqueues a task. Returns false when the task was dropped
// because the queue is full or the runner is closed.
func (r *TaskRunner) Submit(name string, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	select {
	case r.queue <- task{name: name, fn: fn}:
		return true
	default:
		r.log.Error().Str("task", name).Msg("task queue full, dropping background task")
		return false
	}
}

// Close stops accepting tasks and waits for queued work to drain.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.queue)
	r.wg.Wait()
}
