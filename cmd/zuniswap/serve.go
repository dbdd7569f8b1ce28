package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zuniswap/internal/config"
	"zuniswap/internal/handler"
	"zuniswap/internal/metrics"
	"zuniswap/internal/scenario"
	"zuniswap/internal/storage"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Genesis == "" {
		return fmt.Errorf("genesis scenario is required")
	}
	genesis, err := scenario.Load(cfg.Genesis)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink storage.EventSink
	if cfg.Out != "" {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	world, err := scenario.NewWorld(genesis, logger)
	if err != nil {
		return err
	}
	if len(genesis.Steps) > 0 {
		if _, err := scenario.NewRunner(sink, logger).Apply(ctx, world, genesis); err != nil {
			return fmt.Errorf("replay genesis: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      "zuniswap",
		ErrorHandler: handler.ErrorHandler,
		ReadTimeout:  cfg.ReadTimeout,
	})
	app.Use(recover.New())
	if len(cfg.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{AllowOrigins: strings.Join(cfg.AllowOrigins, ",")}))
	}
	handler.NewPoolHandler(logger, world, sink, m).Register(app)

	var metricsSrv *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: cfg.ReadTimeout}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("metrics_listen", cfg.MetricsListen),
		zap.String("genesis", cfg.Genesis),
		zap.String("pool", world.Pool.Address().Hex()),
		zap.String("allow_origins", strings.Join(cfg.AllowOrigins, ",")),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Listen, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_ = app.ShutdownWithContext(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("serve stopped", zap.Uint64("seq", world.Pool.Snapshot().Seq))
	return serveErr
}
