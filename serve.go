package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/hsbc-statement-converter/internal/api"
	"github.com/insightdelivered/hsbc-statement-converter/internal/cache"
	"github.com/insightdelivered/hsbc-statement-converter/internal/config"
	"github.com/insightdelivered/hsbc-statement-converter/internal/parser"
)

const shutdownTimeout = 30 * time.Second

var serveFlags struct {
	addr     string
	redisURL string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversion API over HTTP",
	Long: `Serve starts the HTTP API used by the web front end:

  GET  /api/health    liveness and version
  POST /api/convert   multipart upload of "file" (PDF) or "extractedText"

Results are cached by content hash in redis when --redis-url is set,
otherwise in memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveFlags.addr
		}
		if cmd.Flags().Changed("redis-url") {
			cfg.Server.RedisURL = serveFlags.redisURL
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg, log)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (default from config: :3000)")
	serveCmd.Flags().StringVar(&serveFlags.redisURL, "redis-url", "", "redis URL for the result cache, e.g. redis://localhost:6379/0")
}

func newCache(ctx context.Context, cfg config.ServerConfig, log zerolog.Logger) (cache.Cache, func() error, error) {
	if cfg.RedisURL == "" {
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("using in-memory result cache")
		return cache.NewMemoryCache(cfg.CacheTTL), func() error { return nil }, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Dur("ttl", cfg.CacheTTL).Msg("using redis result cache")
	return rc, rc.Close, nil
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	engine, err := parser.NewEngine(cfg.Engine.Options(), log)
	if err != nil {
		return err
	}
	wopts, err := cfg.Output.WriterOptions()
	if err != nil {
		return err
	}

	resultCache, closeCache, err := newCache(ctx, cfg.Server, log)
	if err != nil {
		return fmt.Errorf("failed to connect to cache: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error().Err(err).Msg("failed to close cache")
		}
	}()

	app := api.NewApp(&api.Handler{
		Engine:        engine,
		Cache:         resultCache,
		Writer:        wopts,
		ExtractMethod: cfg.Extract.Method,
		CharWidth:     cfg.Extract.CharWidth,
		Log:           log,
		Version:       version,
	}, cfg.Server.BodyLimitMB)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("starting API server")
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
