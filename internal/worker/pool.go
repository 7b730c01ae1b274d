// Package worker seeds overlay tiles in parallel.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
)

// Generator produces one overlay tile. *pipeline.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request, force bool) (pipeline.Result, error)
}

// Task is a single tile to seed.
type Task struct {
	Request pipeline.Request
	Force   bool
}

// Result is the outcome of a task.
type Result struct {
	Task    Task
	Bytes   int
	Cached  bool
	Err     error
	Elapsed time.Duration
}

// Stats is a progress snapshot.
type Stats struct {
	Completed int
	Total     int
	Failed    int
	Cached    int
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(Stats)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool runs seeding tasks on a fixed number of workers.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

// New creates a pool. At least one worker is always started.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Tasks expands the tiles of a bbox and zoom range into one task per layer.
// The same request template (dashboard, scale, filter) is used for every tile.
func Tasks(tmpl pipeline.Request, layers []string, bbox [4]float64, zoomMin, zoomMax int, force bool) []Task {
	coords := tile.TilesInBBox(bbox, zoomMin, zoomMax)
	tasks := make([]Task, 0, len(coords)*len(layers))
	for _, layer := range layers {
		for _, c := range coords {
			req := tmpl
			req.Layer = layer
			req.Coords = c
			tasks = append(tasks, Task{Request: req, Force: force})
		}
	}
	return tasks
}

// Run executes all tasks and blocks until they finish or ctx is cancelled.
// Tasks that were not started before cancellation are not reported.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(tasks))
	stats := Stats{Total: len(tasks)}
	for result := range resultCh {
		results = append(results, result)

		stats.Completed++
		if result.Err != nil {
			stats.Failed++
		} else if result.Cached {
			stats.Cached++
		}
		if p.onProgress != nil {
			p.onProgress(stats)
		}
	}

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		res, err := p.generator.Generate(ctx, task.Request, task.Force)
		results <- Result{
			Task:    task,
			Bytes:   len(res.Data),
			Cached:  res.Cached,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
