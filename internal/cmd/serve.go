package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
	"github.com/MeKo-Tech/civicmaps/internal/server"
	"github.com/MeKo-Tech/civicmaps/internal/store"
	"github.com/MeKo-Tech/civicmaps/internal/tilestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and overlay tiles",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	f.String("cache-control", "public, max-age=3600", "Cache-Control header for unfiltered tiles and sources")
	f.Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent tile renders")
	f.Duration("render-timeout", 30*time.Second, "Timeout per tile request")
	f.Duration("session-idle", 30*time.Minute, "Unmount sessions idle for longer than this")
	f.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	f.String("tiles-db", "", "SQLite tile cache (empty disables caching)")

	f.String("store", "memory", "Session store (memory, redis)")
	f.String("redis-addr", "127.0.0.1:6379", "Redis address for --store=redis")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database")
	f.Duration("session-ttl", 24*time.Hour, "How long stored session state survives")

	mustBind(serveCmd, false, map[string]string{
		"serve.addr":                   "addr",
		"serve.cache_control":          "cache-control",
		"serve.max_concurrent_renders": "max-concurrent-renders",
		"serve.render_timeout":         "render-timeout",
		"serve.session_idle":           "session-idle",
		"serve.shutdown_timeout":       "shutdown-timeout",
		"tiles.db":                     "tiles-db",
		"store.kind":                   "store",
		"store.redis_addr":             "redis-addr",
		"store.redis_password":         "redis-password",
		"store.redis_db":               "redis-db",
		"store.session_ttl":            "session-ttl",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, configs, err := loadDashboards()
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	manager, err := dashboard.NewManager(configs, st, logger)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	var cache *tilestore.Store
	if path := viper.GetString("tiles.db"); path != "" {
		cache, err = tilestore.Open(path, overlayMetadata())
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	tiles := pipeline.NewGenerator(manager.Dashboards(), pipeline.Options{
		MaxConcurrent: viper.GetInt("serve.max_concurrent_renders"),
		Cache:         cache,
	}, logger)

	api := server.New(manager, tiles, server.Config{
		CacheControl:  viper.GetString("serve.cache_control"),
		RenderTimeout: viper.GetDuration("serve.render_timeout"),
	}, logger)

	go expireSessions(ctx, manager, viper.GetDuration("serve.session_idle"))

	addr := viper.GetString("serve.addr")
	srv := &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", addr,
			"dashboards", len(configs),
			"store", viper.GetString("store.kind"),
			"tiles_db", viper.GetString("tiles.db"),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("serve.shutdown_timeout"))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context) (store.Store, error) {
	ttl := viper.GetDuration("store.session_ttl")
	switch kind := viper.GetString("store.kind"); kind {
	case "", "memory":
		return store.NewMemory(ttl), nil
	case "redis":
		return store.OpenRedis(ctx,
			viper.GetString("store.redis_addr"),
			viper.GetString("store.redis_password"),
			viper.GetInt("store.redis_db"),
			ttl,
		)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", kind)
	}
}

// expireSessions unmounts idle sessions until ctx is done.
func expireSessions(ctx context.Context, manager *dashboard.Manager, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := manager.Expire(maxIdle); n > 0 {
				logger.Info("expired idle sessions", "count", n, "active", manager.Len())
			}
		}
	}
}
