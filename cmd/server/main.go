package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"mesadesk.app/triage/common/id"
	"mesadesk.app/triage/common/logger"
	"mesadesk.app/triage/common/otel"
	"mesadesk.app/triage/core/config"
	"mesadesk.app/triage/core/db"
	"mesadesk.app/triage/internal/classify"
	"mesadesk.app/triage/internal/delivery"
	"mesadesk.app/triage/internal/events"
	"mesadesk.app/triage/internal/http/handler"
	"mesadesk.app/triage/internal/http/middleware"
	httprouter "mesadesk.app/triage/internal/http/router"
	"mesadesk.app/triage/internal/incident"
	"mesadesk.app/triage/internal/kv"
	"mesadesk.app/triage/internal/pipeline"
	"mesadesk.app/triage/internal/store"
	"mesadesk.app/triage/internal/ticketing"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "triage server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

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

	providers := buildProviders(ctx, cfg)
	gateway := classify.NewGateway(providers, classify.GatewayOptions{})

	kvStore := kv.NewRedis(redisClient)
	tracker := incident.NewTracker(kvStore, incident.Options{
		BotIdentity: cfg.BotIdentity,
		Window:      cfg.Incidents.Window,
	})

	backend := ticketing.NewDesk(cfg.Desk, ticketing.StaticToken(cfg.Desk.OAuthToken))
	publisher := events.NewRedisPublisher(redisClient)
	queue := delivery.NewQueue(kvStore, backend, publisher, delivery.Options{
		MaxAttempts: cfg.Queue.MaxAttempts,
	})
	auditStore := store.NewAuditStore(database.Pool())

	pipe := pipeline.New(gateway, tracker, queue, backend, publisher, auditStore, pipeline.Options{
		DepartmentID: cfg.Desk.DepartmentID,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, pipe, queue, tracker, auditStore)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildProviders(ctx context.Context, cfg config.Config) []classify.Provider {
	var providers []classify.Provider
	for _, llmCfg := range []config.LLMConfig{cfg.PrimaryLLM, cfg.SecondaryLLM} {
		if !llmCfg.Enabled() {
			continue
		}
		var (
			provider classify.Provider
			err      error
		)
		switch llmCfg.Provider {
		case "openai":
			provider, err = classify.NewOpenAI(llmCfg)
		case "anthropic":
			provider, err = classify.NewAnthropic(llmCfg)
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to build classifier provider",
				"provider", llmCfg.Provider,
				"error", err)
			continue
		}
		providers = append(providers, classify.RateLimited(provider, llmCfg.RateLimit))
	}
	return providers
}

func setupRouter(cfg config.Config, pipe *pipeline.Pipeline, queue *delivery.Queue, tracker *incident.Tracker, audit store.AuditStore) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, httprouter.Handlers{
		Messages: handler.NewMessageHandler(pipe),
		Queue:    handler.NewQueueHandler(queue),
		Tickets:  handler.NewTicketHandler(tracker),
		Reviews:  handler.NewReviewHandler(audit),
	})

	return router
}

const banner = `
████████╗██████╗ ██╗ █████╗  ██████╗ ███████╗
╚══██╔══╝██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
   ██║   ██████╔╝██║███████║██║  ███╗█████╗
   ██║   ██╔══██╗██║██╔══██║██║   ██║██╔══╝
   ██║   ██║  ██║██║██║  ██║╚██████╔╝███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
