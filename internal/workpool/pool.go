// Package workpool adapts the external thread-pool collaborator spec.md §1
// assumes ("an external capability with a submit(job) contract") to the
// github.com/Carmen-Shannon/automation/tools/worker pool, grounded on
// Carmen-Shannon-oxy-go/engine/scene.scene's computePool usage.
package workpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Pool is the contract every Terra subsystem programs against. It never
// imports the automation/tools/worker types directly so a different pool
// implementation can be substituted in tests.
type Pool interface {
	// Submit enqueues job to run on a worker goroutine and returns
	// immediately. Errors surface through Wait.
	Submit(job func() error)
	// Wait blocks until every job submitted so far has returned, and
	// returns the first error encountered (if any). Safe to call again
	// after more Submits; it only waits on jobs outstanding at call time.
	Wait() error
}

// queueSize bounds how many pending jobs workerPool accepts before Submit
// blocks; sized for a staging-upload burst of a few hundred sub-ranges.
const queueSize = 256

// idleTimeout is how long a worker goroutine may sit idle before the
// underlying pool retires it. Chosen generously since Terra's pool lives for
// the renderer's lifetime, not per frame.
const idleTimeout = 5 * time.Second

type workerPool struct {
	pool *worker.DynamicWorkerPool

	mu       sync.Mutex
	wg       sync.WaitGroup
	nextID   int64
	firstErr error
}

// New creates a pool backed by workers goroutines. workers must be >= 1; the
// caller typically passes runtime.NumCPU()-1 the way
// Carmen-Shannon-oxy-go/engine/scene.NewScene does for its compute pool.
func New(workers int) Pool {
	if workers < 1 {
		workers = 1
	}
	p := worker.NewDynamicWorkerPool(workers, queueSize, idleTimeout)
	return &workerPool{pool: p}
}

func (p *workerPool) Submit(job func() error) {
	p.wg.Add(1)
	id := atomic.AddInt64(&p.nextID, 1)
	p.pool.SubmitTask(worker.Task{
		ID: int(id),
		Do: func() (any, error) {
			defer p.wg.Done()
			err := job()
			if err != nil {
				p.mu.Lock()
				if p.firstErr == nil {
					p.firstErr = err
				}
				p.mu.Unlock()
			}
			return nil, err
		},
	})
}

// Wait blocks on a WaitGroup rather than the pool's own Wait(), which only
// returns once idle workers exit entirely -- unsuitable for a pool that's
// meant to persist across frames.
func (p *workerPool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.firstErr
	p.firstErr = nil
	return err
}
