package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/tilestore"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/MeKo-Tech/civicmaps/internal/worker"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Pre-render overlay tiles into the tile cache",
	Long: `Render the heatmap and boundary overlays of a dashboard for a bounding box
and zoom range and store them in the SQLite tile cache used by "serve".

Without --bbox the city boundary is used. Filter actions (--action) seed the
variant a session with the same selection would request.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	f := seedCmd.Flags()
	f.String("dashboard", dashboard.IDParkingCitations, "Dashboard to seed")
	f.StringSlice("layers", nil, "Layers to seed (default: every raster layer)")
	f.StringArray("action", nil, "Filter action applied before seeding, e.g. set:year=2023 (repeatable)")
	f.String("bbox", "", "Bounding box: minLon,minLat,maxLon,maxLat (default: city bounds)")
	f.Float64("bbox-margin", 0, "Grow the bounding box by this fraction of its size on every side")
	f.Int("zoom-min", 8, "Minimum zoom level")
	f.Int("zoom-max", 12, "Maximum zoom level")
	f.IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	f.Bool("progress", true, "Show progress bar")
	f.Bool("force", false, "Re-render tiles already in the cache")
	f.Bool("hidpi", false, "Also seed @2x tiles")
	f.Bool("allow-failures", false, "Exit successfully even if some tiles fail")
	f.String("tiles-db", "tiles.db", "SQLite tile cache")

	mustBind(seedCmd, false, map[string]string{
		"seed.dashboard":      "dashboard",
		"seed.layers":         "layers",
		"seed.actions":        "action",
		"seed.bbox":           "bbox",
		"seed.bbox_margin":    "bbox-margin",
		"seed.zoom_min":       "zoom-min",
		"seed.zoom_max":       "zoom-max",
		"seed.workers":        "workers",
		"seed.progress":       "progress",
		"seed.force":          "force",
		"seed.hidpi":          "hidpi",
		"seed.allow_failures": "allow-failures",
		"seed.tiles_db":       "tiles-db",
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	zoomMin := viper.GetInt("seed.zoom_min")
	zoomMax := viper.GetInt("seed.zoom_max")
	if zoomMin < 0 || zoomMax > tile.MaxZoom || zoomMin > zoomMax {
		return fmt.Errorf("invalid zoom range %d-%d", zoomMin, zoomMax)
	}
	workers := viper.GetInt("seed.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cat, configs, err := loadDashboards()
	if err != nil {
		return err
	}
	cfg, err := findDashboard(configs, viper.GetString("seed.dashboard"))
	if err != nil {
		return err
	}

	bbox, err := seedBBox(viper.GetString("seed.bbox"), cat)
	if err != nil {
		return err
	}
	bbox = bbox.ExpandByFraction(viper.GetFloat64("seed.bbox_margin"))

	cache, err := tilestore.Open(viper.GetString("seed.tiles_db"), overlayMetadata())
	if err != nil {
		return err
	}
	defer cache.Close()

	gen := pipeline.NewGenerator([]*dashboard.Config{cfg}, pipeline.Options{
		MaxConcurrent: workers,
		Cache:         cache,
		Batched:       true,
	}, logger)

	layers, err := seedLayers(gen, cfg.ID, viper.GetStringSlice("seed.layers"))
	if err != nil {
		return err
	}

	var pred filter.Expr
	variant := pipeline.VariantAll
	if actions := viper.GetStringSlice("seed.actions"); len(actions) > 0 {
		state, err := applyActions(filter.NewState(cfg.Categories), actions)
		if err != nil {
			return err
		}
		pred, variant = state.Expr(), "sel-"+state.Key()
	}

	scales := []int{1}
	if viper.GetBool("seed.hidpi") {
		scales = append(scales, 2)
	}
	force := viper.GetBool("seed.force")

	var tasks []worker.Task
	for _, scale := range scales {
		for _, layer := range layers {
			tmpl := pipeline.Request{Dashboard: cfg.ID, Scale: scale}
			if layer == cfg.FilterLayer {
				tmpl.Filter, tmpl.Variant = pred, variant
			}
			tasks = append(tasks, worker.Tasks(tmpl, []string{layer}, bbox.Array(), zoomMin, zoomMax, force)...)
		}
	}

	logger.Info("Starting tile seeding",
		"dashboard", cfg.ID,
		"layers", strings.Join(layers, ","),
		"bbox", bbox.String(),
		"zoom_range", fmt.Sprintf("%d-%d", zoomMin, zoomMax),
		"variant", variant,
		"tiles", len(tasks),
		"workers", workers,
		"tiles_db", cache.Path(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(len(tasks), viper.GetBool("seed.progress"))
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  gen,
		OnProgress: progress.Callback(),
	})
	results := pool.Run(ctx, tasks)
	progress.Done()

	if err := gen.Flush(); err != nil {
		return fmt.Errorf("failed to flush tile cache: %w", err)
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("Tile seeding failed", "key", r.Task.Request.Key().String(), "error", r.Err)
		}
	}
	logger.Info(progress.Summary())

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("seeding interrupted after %d of %d tiles", len(results), len(tasks))
	}
	if failed > 0 {
		if !viper.GetBool("seed.allow_failures") {
			return fmt.Errorf("%d tiles failed to render", failed)
		}
		logger.Warn("Some tiles failed, continuing due to --allow-failures", "failed_count", failed)
	}
	return nil
}

// seedLayers validates the requested layers against the dashboard's raster
// layers. No request selects all of them.
func seedLayers(gen *pipeline.Generator, dashboardID string, requested []string) ([]string, error) {
	available, err := gen.Layers(dashboardID)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return available, nil
	}
	for _, l := range requested {
		if !slices.Contains(available, l) {
			return nil, fmt.Errorf("%w: %s has no raster layer %q (have %s)",
				pipeline.ErrUnsupportedLayer, dashboardID, l, strings.Join(available, ", "))
		}
	}
	return requested, nil
}

// seedBBox parses s, or covers every city boundary when s is empty.
func seedBBox(s string, cat *dataset.Catalog) (types.BoundingBox, error) {
	if s != "" {
		bbox, err := parseBBox(s)
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("invalid bbox: %w", err)
		}
		return types.BoundingBox{MinLon: bbox[0], MinLat: bbox[1], MaxLon: bbox[2], MaxLat: bbox[3]}, nil
	}
	if len(cat.CityBounds) == 0 {
		return types.BoundingBox{}, fmt.Errorf("--bbox is required when no city boundary is loaded")
	}
	var b orb.Bound
	for i, boundary := range cat.CityBounds {
		if i == 0 {
			b = boundary.Bound()
		} else {
			b = b.Union(boundary.Bound())
		}
	}
	return types.FromBound(b), nil
}

func overlayMetadata() tilestore.Metadata {
	return tilestore.Metadata{
		Name:        "civicmaps overlays",
		Format:      "png",
		Description: "Heatmap and boundary overlays of the civicmaps dashboards",
		Version:     "1",
	}
}

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if bbox[0] >= bbox[2] {
		return [4]float64{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", bbox[0], bbox[2])
	}
	if bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", bbox[1], bbox[3])
	}

	return bbox, nil
}
