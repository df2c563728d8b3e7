// Command attackgraph serves the ATT&CK knowledge base as MCP tools over
// stdio or streamable HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dd0wney/cluso-attackgraph/pkg/config"
	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/mcpserver"
	"github.com/dd0wney/cluso-attackgraph/pkg/metrics"
	"github.com/dd0wney/cluso-attackgraph/pkg/middleware"
	"github.com/dd0wney/cluso-attackgraph/pkg/server"
	"github.com/dd0wney/cluso-attackgraph/pkg/tools"
	"github.com/dd0wney/cluso-attackgraph/pkg/tracing"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	transport := flag.String("transport", "", "Override server.transport (stdio or http)")
	addr := flag.String("addr", "", "Override server.addr in http mode")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attackgraph: %v\n", err)
		os.Exit(2)
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := logging.NewLogger(cfg.Logging.Level)
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("attackgraph exited with error", logging.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", logging.Error(err))
		}
	}()

	src, err := loader.SourceFromConfig(ctx, cfg.Bundle)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	manager := loader.NewManager(src, loader.Options{
		Logger:      logger,
		Metrics:     reg,
		LoadTimeout: cfg.Bundle.LoadTimeout,
	})
	go func() {
		_ = manager.Run(ctx, cfg.Bundle.ReloadInterval)
	}()

	mode := loader.NoWait
	if cfg.Queries.BlockWhileLoading {
		mode = loader.Block
	}
	svc := tools.NewService(manager, tools.Options{
		Logger:       logger,
		Metrics:      reg,
		Mode:         mode,
		DefaultDepth: cfg.Queries.DefaultDepth,
	})

	opts := mcpserver.Options{
		Version:      version,
		Logger:       logger,
		Metrics:      reg,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		opts.CORS = cors
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = rl.RequestsPerSecond
		limits.BurstSize = rl.Burst
		limiter := middleware.NewRateLimiter(limits, logger)
		defer limiter.Stop()
		opts.RateLimiter = limiter
	}
	srv := mcpserver.New(svc, opts)

	reload := func(ctx context.Context) error {
		_, err := manager.Load(ctx)
		return err
	}

	logger.Info("attackgraph starting",
		logging.String("version", version),
		logging.String("transport", cfg.Server.Transport),
		logging.Source(src.Name()),
	)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		gs := server.NewGracefulServer(cfg.Server.Addr, srv.HTTPHandler(), logger)
		gs.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
		gs.SetReloadFunc(reload)
		return gs.Run(ctx)
	default:
		server.NotifyReload(ctx, logger, reload)
		err := srv.RunStdio(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
			return nil
		}
		return err
	}
}
