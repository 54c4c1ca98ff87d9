package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/web3-frozen/market-recorder/internal/app"
	"github.com/web3-frozen/market-recorder/internal/config"
)

func main() {
	runNow := flag.Bool("run-now", false, "run one collection cycle immediately, then keep the daily schedule")
	collect := flag.String("collect", "", "run a single collector (market_dominance, fear_greed, stablecoins, protocol_fees) and exit")
	noServer := flag.Bool("no-server", false, "do not start the HTTP server")
	flag.Parse()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	if *collect != "" {
		err := runSingle(ctx, a, *collect)
		if err != nil {
			logger.Error("collection failed", "source", *collect, "error", err)
		}
		a.Close()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	var srv *http.Server
	if !*noServer {
		srv = &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      a.Router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("server starting", "port", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
				stop()
			}
		}()
	}

	// --run-now cycle runs in the engine goroutine, after the server is up
	logger.Info("daily schedule armed",
		"next_run", a.Engine.NextRun(time.Now()).Format(time.RFC3339),
		"run_now", *runNow,
		"data_dir", cfg.DataDir,
	)
	go a.Engine.WithRunOnStart(*runNow).Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	a.Close()
}

func runSingle(ctx context.Context, a *app.App, name string) error {
	rec, err := a.Engine.RunCollector(ctx, name)
	if err != nil {
		return err
	}
	slog.Info("collection succeeded", "source", name, "captured_at", rec.CapturedAt().Format(time.RFC3339))
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL %q, using info\n", s)
		return slog.LevelInfo
	}
	return level
}
