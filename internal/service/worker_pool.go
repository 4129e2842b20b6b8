package service

import (
	"sync"

	"github.com/yourorg/market-refresh/internal/model"
)

// refreshTask couples one unit of work with the channel its outcome is
// delivered on.
type refreshTask struct {
	run  func() model.RefreshOutcome
	done chan model.RefreshOutcome
}

// workerPool runs refresh tasks on a fixed number of workers. The queue is
// sized by the caller so that submitting never blocks; the coordinator
// blocks only when it collects outcomes from the returned channels.
type workerPool struct {
	tasks chan *refreshTask
	wg    sync.WaitGroup
}

func newWorkerPool(workers, queueDepth int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool{tasks: make(chan *refreshTask, queueDepth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				t.done <- t.run()
			}
		}()
	}
	return p
}

// submit enqueues a task and returns the channel its outcome will arrive on.
// The channel is buffered so a worker never blocks handing off a result.
func (p *workerPool) submit(run func() model.RefreshOutcome) <-chan model.RefreshOutcome {
	t := &refreshTask{run: run, done: make(chan model.RefreshOutcome, 1)}
	p.tasks <- t
	return t.done
}

// close stops accepting tasks and waits for the workers to drain the queue.
func (p *workerPool) close() {
	close(p.tasks)
	p.wg.Wait()
}
