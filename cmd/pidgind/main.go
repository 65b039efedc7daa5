package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"pidgin/internal/config"
	"pidgin/internal/engine"
	"pidgin/internal/eventmirror"
	"pidgin/internal/monitor"
	"pidgin/internal/observability"
	"pidgin/internal/paths"
	"pidgin/internal/provideradapter/registry"
	"pidgin/internal/ratelimit"
	"pidgin/internal/scheduler"
	"pidgin/internal/specfile"
	"pidgin/internal/statebuilder"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("pidgind")
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pidgind <run|attach> [flags]")
	}
	switch args[0] {
	case "run":
		return runExperiment(args[1:])
	case "attach":
		return runAttach(args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q (want run|attach)", args[0])
	}
}

// runExperiment implements `pidgind run --spec file.yaml`: it loads a spec
// file, resolves it against defaults, and drives it through the scheduler
// until every conversation terminates or the process is signalled.
func runExperiment(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	specPath := fs.String("spec", "", "path to the experiment spec YAML file")
	outputDir := fs.String("output-dir", "", "override output root (default: PIDGIN_OUTPUT_DIR or $PWD/pidgin_output)")
	logLevel := fs.String("log-level", "", "log level override (trace, debug, info, warn, error)")
	mirrorBrokers := fs.String("mirror-brokers", "", "comma-separated Kafka brokers to mirror terminal events to (optional)")
	mirrorTopic := fs.String("mirror-topic", "pidgin.events", "Kafka topic for the optional event mirror")
	redisAddr := fs.String("redis-addr", "", "Redis address (optional; only logs a warning, all limits are enforced by the in-process limiter)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specPath == "" {
		return fmt.Errorf("run: --spec is required")
	}

	_ = godotenv.Overload()
	level := *logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	observability.InitLogger(os.Getenv("PIDGIN_LOG_PATH"), level)
	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName: "pidgind",
		Enabled:     os.Getenv("PIDGIN_OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Warn().Err(err).Msg("tracing init failed, continuing without it")
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	raw, err := specfile.Load(*specPath)
	if err != nil {
		return fmt.Errorf("load spec: %w", err)
	}
	unresolved, err := raw.ToExperimentConfig()
	if err != nil {
		return fmt.Errorf("convert spec: %w", err)
	}
	cfg, err := config.Resolve(unresolved)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	ctx := context.Background()
	creds := registry.CredentialsFromEnv()
	httpClient := observability.NewHTTPClient(&http.Client{Timeout: 5 * time.Minute})
	providers := registry.New(ctx, creds, httpClient)

	var onPause ratelimit.PauseFunc = func(provider string, delay time.Duration, reason string) {
		log.Warn().Str("provider", provider).Dur("delay", delay).Str("reason", reason).
			Msg("rate limit pause")
	}
	limiter := ratelimit.New(cfg.RateLimiting, onPause)

	deps := scheduler.Deps{
		Providers: providers,
		Limiter:   limiter,
		OutputDir: *outputDir,
	}

	if *redisAddr != "" {
		log.Warn().Msg("redis-backed distributed rate limiting is configured per-replica; " +
			"the local in-process limiter above remains the per-process enforcement point")
	}

	if *mirrorBrokers != "" {
		mirror, err := eventmirror.NewFromBrokers(*mirrorBrokers, *mirrorTopic)
		if err != nil {
			log.Warn().Err(err).Msg("event mirror init failed, continuing without it")
		} else {
			defer func() { _ = mirror.Close() }()
			deps.Mirror = mirror
		}
	}

	experimentID := uuid.NewString()
	sched := scheduler.New(experimentID, cfg, deps)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("experiment_id", experimentID).Str("name", cfg.Name).
		Int("repetitions", cfg.Repetitions).Msg("starting experiment")

	manifest, err := sched.Run(runCtx)
	if err != nil {
		return fmt.Errorf("run experiment: %w", err)
	}
	log.Info().Str("experiment_id", experimentID).Str("status", manifest.Status).Msg("experiment done")
	return nil
}

// runAttach implements a small read-only monitor daemon: `pidgind attach
// --output-dir ... --addr :8090` serves the statebuilder's reconstructed
// views and the websocket tail endpoint over HTTP, per spec.md §4.8.
func runAttach(args []string) error {
	fs := flag.NewFlagSet("attach", flag.ExitOnError)
	outputDir := fs.String("output-dir", "", "output root to monitor (default: PIDGIN_OUTPUT_DIR or $PWD/pidgin_output)")
	addr := fs.String("addr", ":8090", "address to serve the monitor HTTP/websocket endpoint on")
	logLevel := fs.String("log-level", "", "log level override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Overload()
	observability.InitLogger(os.Getenv("PIDGIN_LOG_PATH"), *logLevel)

	resolved := paths.OutputDir(*outputDir)
	srv := monitor.NewServer(resolved, statebuilder.NewCache())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpServer := &http.Server{Addr: *addr, Handler: srv}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Info().Str("addr", *addr).Str("output_dir", resolved).Msg("monitor listening")
	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	}
}
