// Package worker runs playlist generation jobs concurrently.
package worker

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/services"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

// Generator is the pipeline entry point a job runs.
type Generator interface {
	Generate(ctx context.Context, in services.GenerateInput) (services.GenerateOutput, error)
}

// Job is one queued generation.
type Job struct {
	Index int
	Input services.GenerateInput
}

// Result pairs a job with its outcome.
type Result struct {
	Index  int
	Input  services.GenerateInput
	Output services.GenerateOutput
	Err    error
}

// Pool manages a fixed set of workers sharing one generator.
type Pool struct {
	gen     Generator
	workers int
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	logger  *log.Logger
}

// NewPool creates a worker pool with the given worker count and queue size.
func NewPool(gen Generator, workers int, queueSize int, logger *log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		gen:     gen,
		workers: workers,
		jobs:    make(chan Job, queueSize),
		results: make(chan Result, queueSize),
		logger:  logging.Component(logger, "worker"),
	}
}

// Start launches the worker goroutines. Results arrive on Results until Stop
// has drained the queue.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- p.process(ctx, id, job)
			}
		}(i)
	}
}

// Submit queues a job, blocking while the queue is full. It returns the
// context error if ctx ends first.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results is closed once Stop returns.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop waits for workers to finish after closing the queue.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

func (p *Pool) process(ctx context.Context, worker int, job Job) Result {
	res := Result{Index: job.Index, Input: job.Input}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	p.logger.Debug("job started", "worker", worker, "index", job.Index, "owner", job.Input.OwnerID)
	res.Output, res.Err = p.gen.Generate(ctx, job.Input)
	if res.Err != nil {
		p.logger.Warn("job failed", "index", job.Index, "err", res.Err)
		return res
	}
	p.logger.Info("job done", "index", job.Index, "tracks", res.Output.TrackCount)
	return res
}

// Run generates every input with the pool and returns results in input order.
func Run(ctx context.Context, gen Generator, inputs []services.GenerateInput, workers int, logger *log.Logger) []Result {
	p := NewPool(gen, workers, len(inputs), logger)
	p.Start(ctx)

	go func() {
		defer p.Stop()
		for i, in := range inputs {
			if err := p.Submit(ctx, Job{Index: i, Input: in}); err != nil {
				return
			}
		}
	}()

	out := make([]Result, len(inputs))
	seen := make([]bool, len(inputs))
	for res := range p.Results() {
		out[res.Index] = res
		seen[res.Index] = true
	}
	for i := range out {
		if !seen[i] {
			out[i] = Result{Index: i, Input: inputs[i], Err: ctx.Err()}
		}
	}
	return out
}
