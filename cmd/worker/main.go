package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"mesadesk.app/triage/common/id"
	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/common/otel"
	"mesadesk.app/triage/core/config"
	"mesadesk.app/triage/internal/delivery"
	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/kv"
	"mesadesk.app/triage/internal/ticketing"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "triage worker starting",
		"env", cfg.Env,
		"queue_interval", cfg.Queue.Interval)

	// Different node ID than the server so snowflakes never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	kvStore := kv.NewRedis(redisClient)
	backend := ticketing.NewDesk(cfg.Desk, ticketing.StaticToken(cfg.Desk.OAuthToken))
	publisher := events.NewRedisPublisher(redisClient)

	queue := delivery.NewQueue(kvStore, backend, publisher, delivery.Options{
		MaxAttempts: cfg.Queue.MaxAttempts,
	})
	processor := delivery.NewProcessor(queue, cfg.Queue)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- processor.Run(runCtx)
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.InfoContext(ctx, "shutting down worker...")
		processor.Stop()
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "processor exited", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

const banner = `
████████╗██████╗ ██╗ █████╗  ██████╗ ███████╗    ██╗    ██╗██╗  ██╗██████╗
╚══██╔══╝██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝    ██║    ██║██║ ██╔╝██╔══██╗
   ██║   ██████╔╝██║███████║██║  ███╗█████╗      ██║ █╗ ██║█████╔╝ ██████╔╝
   ██║   ██╔══██╗██║██╔══██║██║   ██║██╔══╝      ██║███╗██║██╔═██╗ ██╔══██╗
   ██║   ██║  ██║██║██║  ██║╚██████╔╝███████╗    ╚███╔███╔╝██║  ██╗██║  ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝     ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝
`
