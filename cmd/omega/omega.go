package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"omega/internal/api"
	"omega/internal/audit"
	"omega/internal/chat"
	"omega/internal/config"
	"omega/internal/generate"
	"omega/internal/logger"
	"omega/internal/memory"
	"omega/internal/observability"
	"omega/internal/plan"
	"omega/internal/ratelimit"
	"omega/internal/storage"
	"omega/internal/version"
	"omega/internal/webhook"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("example-config", "", "Write an example configuration file to path and exit")
	showVersion   = flag.Bool("version", false, "Print build information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize plan storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	gen, err := generate.New(context.Background(), cfg.Generator)
	if err != nil {
		slog.Error("Failed to initialize generator", "error", err)
		os.Exit(1)
	}

	// Wrap storage and generator with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented

		instrumentedGen, err := observability.NewInstrumentedGenerator(gen)
		if err != nil {
			slog.Error("Failed to create instrumented generator", "error", err)
			os.Exit(1)
		}
		gen = instrumentedGen
	}

	plans := plan.NewStore(activeStorage)
	mem := memory.NewStore(cfg.Memory.Limit, cfg.Memory.Decay)
	auditLog := audit.NewLog(cfg.Audit.Capacity)

	chatService := chat.NewService(mem, plans, auditLog, gen,
		chat.WithSystemInstruction(cfg.Generator.SystemInstruction),
		chat.WithRequirePlan(cfg.Plans.RequirePlan),
	)

	processor := webhook.NewProcessor(
		webhook.NewVerifier(cfg.Webhook.Secret),
		webhook.NewTiers(cfg.Webhook),
		plans,
		auditLog,
	)

	handlers := api.NewHandlers(chatService,
		api.WithWebhookProcessor(processor),
		api.WithMemory(mem),
		api.WithPlans(plans),
		api.WithAudit(auditLog),
		api.WithGenerator(gen),
		api.WithVersion(ver.Version),
		api.WithAuditTail(cfg.Audit.DefaultTail),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	if cfg.Security.RateLimit.Enabled {
		rlCfg := cfg.Security.RateLimit
		trust, err := ratelimit.ProxyTrustFromConfig(rlCfg)
		if err != nil {
			slog.Error("Failed to configure trusted proxies", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.NewMemoryLimiter(rlCfg.Requests, rlCfg.Window, rlCfg.CleanupInterval)
		defer limiter.Close()

		routeOpts = append(routeOpts, api.WithChatRateLimiter(ratelimit.Middleware(limiter, ratelimit.WithProxyTrust(trust))))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server",
			"addr", server.Addr,
			"storage", cfg.Storage.Type,
			"generator_configured", gen.Configured(),
			"webhook_configured", cfg.Webhook.Secret != "",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
