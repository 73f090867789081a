package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SilvusTV/Stream-relay/internal/core/ports"
	"github.com/SilvusTV/Stream-relay/internal/core/services"
	httphandlers "github.com/SilvusTV/Stream-relay/internal/handlers/http"
	"github.com/SilvusTV/Stream-relay/internal/infrastructure/middleware"
	"github.com/SilvusTV/Stream-relay/internal/infrastructure/monitoring"
	"github.com/SilvusTV/Stream-relay/internal/infrastructure/transport"
	"github.com/SilvusTV/Stream-relay/pkg/backoff"
	"github.com/SilvusTV/Stream-relay/pkg/config"
	"github.com/SilvusTV/Stream-relay/pkg/logger"
	"github.com/SilvusTV/Stream-relay/pkg/tracing"
)

func main() {
	startTime := time.Now()

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = usage
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		// An operator-named file must exist; silently running on defaults
		// would hide a typo.
		cfg, err = config.LoadFile(*configPath)
	} else {
		for _, path := range []string{
			"configs/config.yaml",
			"./config.yaml",
			"/etc/stream-relay/config.yaml",
		} {
			cfg, err = config.Load(path)
			if err == nil {
				break
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector(startTime)
	}

	registry := services.NewMetricsRegistry(cfg.Monitoring.BitrateWindow, collectorOrNil(collector))
	factory := transport.NewFactory(cfg.Relay.ReadTimeout)
	policy := backoff.Policy{
		InitialDelay:       cfg.Reconnect.InitialDelay,
		MaxDelay:           cfg.Reconnect.MaxDelay,
		Multiplier:         cfg.Reconnect.Multiplier,
		StabilityThreshold: cfg.Reconnect.StabilityThreshold,
	}
	pipeOpts := []services.PipeOption{
		services.WithBufferSize(cfg.Relay.BufferSize),
		services.WithIdleWait(cfg.Relay.IdleWait),
	}
	relayService := services.NewRelayService(factory, registry, zapLogger, policy, pipeOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Explicit one-shot invocation: stream-relay <proto> <input> <output>
	if args := flag.Args(); len(args) > 0 {
		if len(args) != 3 {
			usage()
			os.Exit(2)
		}
		if err := relayService.RunOnce(ctx, args[0], args[1], args[2]); err != nil {
			log.Fatalw("relay failed", "error", err)
		}
		return
	}

	for _, entry := range cfg.Relays {
		session, err := relayService.AddSession(entry.ID, entry.Input, entry.Output)
		if err != nil {
			log.Fatalw("invalid relay configuration", "relay", entry.ID, "error", err)
		}
		log.Infow("relay session registered", "session", session.Label,
			"input", session.Input.Redacted(), "output", session.Output.Redacted())
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.NewHTTPMetricsMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	statsHandler := httphandlers.NewStatsHandler(registry, relayService)
	statsHandler.SetupRoutes(router)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		log.Fatalw("failed to bind server address", "address", cfg.Server.Address, "error", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting stream-relay server on %s", cfg.Server.Address)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Relays launch only after the server socket is live: second phase of the
	// startup contract.
	relayService.Start(ctx)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	log.Info("shutting down stream-relay...")
	relayService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("stream-relay stopped")
}

// collectorOrNil keeps a disabled collector as a nil interface instead of a
// typed nil pointer.
func collectorOrNil(c *monitoring.PrometheusCollector) ports.Collector {
	if c == nil {
		return nil
	}
	return c
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  stream-relay [-config path]                      run configured auto-relays with the stats server
  stream-relay [-config path] <id> <input> <output>  run one relay until interrupted

Examples:
  stream-relay srt "srt://@:9000?mode=listener" "srt://10.0.0.2:9100?mode=caller"
  stream-relay rist "rist://@:10000" "rist://10.0.0.2:10100"
`)
}
