package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
)

// mockGenerator simulates tile rendering.
type mockGenerator struct {
	delay     time.Duration
	failTiles map[string]bool
	cached    map[string]bool
	callCount atomic.Int32

	mu   sync.Mutex
	seen []pipeline.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req pipeline.Request, force bool) (pipeline.Result, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.seen = append(m.seen, req)
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failTiles[req.Coords.String()] {
		return pipeline.Result{}, errors.New("simulated failure")
	}
	return pipeline.Result{Data: []byte("png"), Cached: !force && m.cached[req.Coords.String()]}, nil
}

func tasksFor(coords ...tile.Coords) []Task {
	tasks := make([]Task, len(coords))
	for i, c := range coords {
		tasks[i] = Task{Request: pipeline.Request{Dashboard: "parking-citations", Layer: "parkingcitation2024", Coords: c}}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	gen := &mockGenerator{delay: 5 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := tasksFor(
		tile.NewCoords(13, 1402, 3270),
		tile.NewCoords(13, 1402, 3271),
		tile.NewCoords(13, 1403, 3270),
	)
	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, len(tasks))
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, 3, r.Bytes)
	}
	assert.EqualValues(t, len(tasks), gen.callCount.Load())
}

func TestPool_Parallelism(t *testing.T) {
	gen := &mockGenerator{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Generator: gen})

	coords := make([]tile.Coords, 8)
	for i := range coords {
		coords[i] = tile.NewCoords(13, 1400+uint32(i), 3270)
	}

	start := time.Now()
	results := pool.Run(context.Background(), tasksFor(coords...))
	elapsed := time.Since(start)

	// 8 tasks on 4 workers is two rounds of 50ms.
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.Len(t, results, 8)
}

func TestPool_ErrorsAndCacheHits(t *testing.T) {
	failing := tile.NewCoords(13, 1402, 3271)
	hit := tile.NewCoords(13, 1403, 3270)
	gen := &mockGenerator{
		failTiles: map[string]bool{failing.String(): true},
		cached:    map[string]bool{hit.String(): true},
	}

	var last Stats
	pool := New(Config{Workers: 2, Generator: gen, OnProgress: func(s Stats) { last = s }})
	results := pool.Run(context.Background(), tasksFor(tile.NewCoords(13, 1402, 3270), failing, hit))

	require.Len(t, results, 3)
	for _, r := range results {
		if r.Task.Request.Coords == failing {
			assert.Error(t, r.Err)
		} else {
			assert.NoError(t, r.Err)
		}
	}
	assert.Equal(t, Stats{Completed: 3, Total: 3, Failed: 1, Cached: 1}, last)
}

func TestPool_Cancellation(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	coords := make([]tile.Coords, 10)
	for i := range coords {
		coords[i] = tile.NewCoords(13, 1400+uint32(i), 3270)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasksFor(coords...))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.Less(t, len(results), len(coords))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	gen := &mockGenerator{}
	pool := New(Config{Workers: 2, Generator: gen})

	assert.Empty(t, pool.Run(context.Background(), nil))
	assert.Zero(t, gen.callCount.Load())
}

func TestPool_ForceIsPassedThrough(t *testing.T) {
	c := tile.NewCoords(13, 1402, 3270)
	gen := &mockGenerator{cached: map[string]bool{c.String(): true}}
	pool := New(Config{Workers: 1, Generator: gen})

	tasks := tasksFor(c)
	tasks[0].Force = true
	results := pool.Run(context.Background(), tasks)

	require.Len(t, results, 1)
	assert.False(t, results[0].Cached)
}

func TestTasks(t *testing.T) {
	bbox := [4]float64{-118.5, 34.0, -118.3, 34.2}
	tmpl := pipeline.Request{Dashboard: "parking-citations", Scale: 2, Variant: "all"}

	tasks := Tasks(tmpl, []string{"cd-boundaries", "parkingcitation2024"}, bbox, 8, 10, true)

	n := tile.TileCount(bbox, 8, 10)
	require.Len(t, tasks, 2*n)
	assert.Equal(t, "cd-boundaries", tasks[0].Request.Layer)
	assert.Equal(t, "parkingcitation2024", tasks[n].Request.Layer)
	for _, task := range tasks {
		assert.True(t, task.Force)
		assert.Equal(t, 2, task.Request.Scale)
		assert.Equal(t, "parking-citations", task.Request.Dashboard)
	}
}
