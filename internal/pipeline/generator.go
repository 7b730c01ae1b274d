// Package pipeline turns dashboard layers into encoded overlay tiles,
// caching them in the tile store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/heatmap"
	"github.com/MeKo-Tech/civicmaps/internal/metrics"
	"github.com/MeKo-Tech/civicmaps/internal/raster"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/tilestore"
)

// VariantAll is the cache variant of tiles rendered without a filter.
const VariantAll = "all"

var (
	// ErrUnsupportedLayer is returned for layers that are drawn client-side.
	ErrUnsupportedLayer = errors.New("layer has no server-side raster")
	// ErrInvalidTile is returned for coordinates outside the tile grid.
	ErrInvalidTile = errors.New("invalid tile coordinates")
)

// Request identifies one overlay tile.
type Request struct {
	Dashboard string
	Layer     string
	Coords    tile.Coords
	Scale     int // 1, or 2 for @2x tiles

	// Filter restricts point layers; nil renders every feature. Variant
	// names the filter in the cache and must change whenever Filter does.
	Filter  filter.Expr
	Variant string
}

func (r Request) variant() string {
	v := r.Variant
	if v == "" {
		v = VariantAll
	}
	if r.Scale > 1 {
		v += fmt.Sprintf("@%dx", r.Scale)
	}
	return v
}

// Key returns the tile store key of the request.
func (r Request) Key() tilestore.Key {
	return tilestore.Key{
		Layer:   r.Dashboard + "/" + r.Layer,
		Variant: r.variant(),
		Coords:  r.Coords,
	}
}

// Result is an encoded tile.
type Result struct {
	Data   []byte
	Cached bool
}

// Options configures a Generator.
type Options struct {
	MaxConcurrent int
	// Cache is optional; without it every request renders.
	Cache *tilestore.Store
	// Batched queues rendered tiles instead of writing each one; callers
	// must Flush when done. Used for seeding.
	Batched bool
}

// Generator renders overlay tiles for a fixed set of dashboards.
type Generator struct {
	dashboards map[string]*dashboard.Config
	cache      *tilestore.Store
	batched    bool
	logger     *slog.Logger
	sem        chan struct{}
	locks      sync.Map
}

// NewGenerator prepares a generator for the given dashboards.
func NewGenerator(configs []*dashboard.Config, opts Options, logger *slog.Logger) *Generator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	g := &Generator{
		dashboards: make(map[string]*dashboard.Config, len(configs)),
		cache:      opts.Cache,
		batched:    opts.Batched,
		logger:     logger,
		sem:        make(chan struct{}, opts.MaxConcurrent),
	}
	for _, cfg := range configs {
		g.dashboards[cfg.ID] = cfg
	}
	return g
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// Generate returns the tile for req, served from the cache unless force is
// set. Freshly rendered tiles are written back to the cache.
func (g *Generator) Generate(ctx context.Context, req Request, force bool) (Result, error) {
	if !req.Coords.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidTile, req.Coords)
	}
	if _, _, err := g.lookup(req); err != nil {
		return Result{}, err
	}

	key := req.Key()
	if !force {
		if data, ok := g.cached(ctx, key); ok {
			return Result{Data: data, Cached: true}, nil
		}
	}

	mu := g.getLock(key.String())
	mu.Lock()
	defer mu.Unlock()

	// Another request may have rendered it while we waited.
	if !force {
		if data, ok := g.cached(ctx, key); ok {
			return Result{Data: data, Cached: true}, nil
		}
	}

	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	data, err := g.Render(req)
	if err != nil {
		return Result{}, err
	}

	if err := g.store(ctx, key, data); err != nil {
		if g.batched {
			return Result{}, err
		}
		g.log().Warn("failed to cache tile", "key", key.String(), "error", err)
	}
	return Result{Data: data}, nil
}

func (g *Generator) store(ctx context.Context, key tilestore.Key, data []byte) error {
	switch {
	case g.cache == nil:
		return nil
	case g.batched:
		return g.cache.Queue(key, data)
	default:
		return g.cache.Put(ctx, key, data)
	}
}

// Flush writes queued tiles of a batched generator.
func (g *Generator) Flush() error {
	if g.cache == nil {
		return nil
	}
	return g.cache.Flush()
}

func (g *Generator) cached(ctx context.Context, key tilestore.Key) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}
	data, err := g.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.TileCacheTotal.WithLabelValues(key.Layer, "hit").Inc()
		return data, true
	case errors.Is(err, tilestore.ErrTileNotFound):
		metrics.TileCacheTotal.WithLabelValues(key.Layer, "miss").Inc()
	default:
		g.log().Warn("tile cache read failed", "key", key.String(), "error", err)
	}
	return nil, false
}

// Render draws and encodes the tile without touching the cache.
func (g *Generator) Render(req Request) ([]byte, error) {
	layer, src, err := g.lookup(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, err := renderLayer(layer, src, req)
	if err != nil {
		return nil, err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.TileRendersTotal.WithLabelValues(layer.ID).Inc()
	metrics.TileRenderDurationMs.WithLabelValues(layer.ID).Observe(float64(elapsed.Milliseconds()))
	g.log().Debug("tile rendered", "dashboard", req.Dashboard, "layer", layer.ID,
		"coords", req.Coords.String(), "variant", req.variant(), "ms", elapsed.Milliseconds())

	return data, nil
}

// Layers returns the IDs of the layers of a dashboard that can be rendered
// server-side.
func (g *Generator) Layers(dashboardID string) ([]string, error) {
	cfg, ok := g.dashboards[dashboardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dashboard.ErrUnknownDashboard, dashboardID)
	}
	var ids []string
	for _, l := range cfg.Layers {
		if Rasterizable(l) {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

// Rasterizable reports whether a layer has a server-side renderer.
func Rasterizable(l engine.Layer) bool {
	switch l.Type {
	case engine.LayerHeatmap:
		return l.Heatmap != nil
	case engine.LayerLine:
		return l.Line != nil
	case engine.LayerFill:
		return l.Fill != nil
	}
	return false
}

func (g *Generator) lookup(req Request) (engine.Layer, engine.Source, error) {
	cfg, ok := g.dashboards[req.Dashboard]
	if !ok {
		return engine.Layer{}, engine.Source{}, fmt.Errorf("%w: %s", dashboard.ErrUnknownDashboard, req.Dashboard)
	}
	layer, ok := cfg.Layer(req.Layer)
	if !ok {
		return engine.Layer{}, engine.Source{}, fmt.Errorf("%w: %s", engine.ErrUnknownLayer, req.Layer)
	}
	if !Rasterizable(layer) {
		return engine.Layer{}, engine.Source{}, fmt.Errorf("%w: %s", ErrUnsupportedLayer, req.Layer)
	}
	src, ok := cfg.Source(layer.Source)
	if !ok {
		return engine.Layer{}, engine.Source{}, fmt.Errorf("%w: %s", engine.ErrUnknownSource, layer.Source)
	}
	return layer, src, nil
}

func renderLayer(layer engine.Layer, src engine.Source, req Request) (*image.NRGBA, error) {
	scale := req.Scale
	if scale < 1 {
		scale = 1
	}

	zoom := float64(req.Coords.Z)
	if !layer.Visible(zoom) {
		size := tile.DefaultSize * scale
		return image.NewNRGBA(image.Rect(0, 0, size, size)), nil
	}

	switch layer.Type {
	case engine.LayerHeatmap:
		return heatmap.NewRenderer(*layer.Heatmap).Render(src.Points, req.Filter, req.Coords, scale), nil

	case engine.LayerLine:
		c, err := raster.ParseHexColor(layer.Line.Color)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.ID, err)
		}
		style := raster.LineStyle{Color: c, Width: layer.Line.Width, Opacity: layer.Line.Opacity}
		return raster.NewRenderer(req.Coords, scale).RenderBoundaries(src.Boundaries, style), nil

	case engine.LayerFill:
		c, err := raster.ParseHexColor(layer.Fill.Color)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.ID, err)
		}
		r := raster.NewRenderer(req.Coords, scale)
		dst := image.NewNRGBA(r.Bounds())
		r.FillBoundaries(dst, src.Boundaries, raster.FillStyle{Color: c, Opacity: layer.Fill.Opacity})
		return dst, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLayer, layer.ID)
}

func (g *Generator) getLock(key string) *sync.Mutex {
	if v, ok := g.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := g.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}
