package worker

import "sync"

// ProcessFunc handles one job. Errors are the processor's responsibility;
// the pool does not retry.
type ProcessFunc[J any] func(job J) error

// Pool runs a fixed number of workers draining a buffered job channel.
type Pool[J any] struct {
	numWorkers int
	jobs       chan J
	processor  ProcessFunc[J]
	wg         sync.WaitGroup
}

func NewPool[J any](numWorkers int, bufferSize int, processor ProcessFunc[J]) *Pool[J] {
	return &Pool[J]{
		numWorkers: numWorkers,
		jobs:       make(chan J, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[J]) Start() {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[J]) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		p.processor(job)
	}
}

// Submit blocks while the buffer is full. Submitting after Stop panics;
// callers own the ordering between producers and shutdown.
func (p *Pool[J]) Submit(job J) {
	p.jobs <- job
}

// TrySubmit enqueues the job unless the buffer is full. Like Submit, it must
// not be called after Stop.
func (p *Pool[J]) TrySubmit(job J) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool[J]) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
