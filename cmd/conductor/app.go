package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/stackforge/conductor/agent"
	"github.com/stackforge/conductor/config"
	"github.com/stackforge/conductor/httpapi"
	"github.com/stackforge/conductor/llm"
	_ "github.com/stackforge/conductor/llm/providers"
	"github.com/stackforge/conductor/workflow"
)

const (
	natsReadyTimeout = 10 * time.Second
	shutdownTimeout  = 15 * time.Second
)

// run wires the service together and blocks until a shutdown signal.
func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in service", "panic", r)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var completer agent.Completer
	if cfg.OfflineMode() {
		logger.Warn("No model configured, running with offline stub agents")
	} else {
		if llm.GetProvider(cfg.Model.Provider) == nil {
			return fmt.Errorf("unknown LLM provider %q (known: %v)",
				cfg.Model.Provider, llm.ListProviders())
		}
		completer = llm.NewClient(llm.Config{
			Provider:  cfg.Model.Provider,
			Model:     cfg.Model.Name,
			Fallbacks: cfg.Model.Fallbacks,
			Endpoint:  cfg.Model.Endpoint,
			Timeout:   time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		}, llm.WithLogger(logger))
		logger.Info("LLM client ready", "provider", cfg.Model.Provider, "model", cfg.Model.Name)
	}

	engine := workflow.NewEngine(
		agent.NewPlanner(completer, logger),
		agent.NewCoder(completer, logger),
		agent.NewReviewer(completer, logger),
		workflow.WithLogger(logger),
	)

	registryOpts := []workflow.RegistryOption{workflow.WithRegistryLogger(logger)}

	var natsCleanup func()
	if cfg.Checkpoint.Enabled {
		cp, cleanup, err := setupCheckpointer(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("setup checkpointer: %w", err)
		}
		natsCleanup = cleanup
		registryOpts = append(registryOpts, workflow.WithCheckpointer(cp))
	}
	if natsCleanup != nil {
		defer natsCleanup()
	}

	registry := workflow.NewRegistry(engine, registryOpts...)
	if err := registry.Resume(ctx); err != nil {
		logger.Warn("Checkpoint restore failed, continuing with empty registry", "error", err)
	}

	server := httpapi.NewServer(registry,
		fmt.Sprintf(":%d", cfg.Server.Port),
		httpapi.WithLogger(logger),
		httpapi.WithVersion(version),
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := registry.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("Registry shutdown incomplete", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// setupCheckpointer connects to NATS, embedded or external, and opens
// the checkpoint bucket. The returned cleanup closes the connection and
// stops the embedded server if one was started.
func setupCheckpointer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (workflow.Checkpointer, func(), error) {
	var (
		ns  *natsserver.Server
		url = cfg.NATS.URL
	)

	if cfg.NATS.Embedded {
		storeDir, err := os.MkdirTemp("", "conductor-jetstream-")
		if err != nil {
			return nil, nil, fmt.Errorf("create store dir: %w", err)
		}
		ns, err = natsserver.NewServer(&natsserver.Options{
			ServerName: "conductor-embedded",
			Port:       -1,
			JetStream:  true,
			StoreDir:   storeDir,
			NoLog:      true,
			NoSigs:     true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create embedded NATS server: %w", err)
		}
		ns.Start()
		if !ns.ReadyForConnections(natsReadyTimeout) {
			ns.Shutdown()
			return nil, nil, fmt.Errorf("embedded NATS server not ready after %s", natsReadyTimeout)
		}
		url = ns.ClientURL()
		logger.Info("Embedded NATS server started", "url", url)
	}

	nc, err := nats.Connect(url, nats.Name("conductor"))
	if err != nil {
		if ns != nil {
			ns.Shutdown()
		}
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		if ns != nil {
			ns.Shutdown()
		}
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	cp, err := workflow.NewKVCheckpointer(ctx, js, cfg.Checkpoint.Bucket, logger)
	if err != nil {
		nc.Close()
		if ns != nil {
			ns.Shutdown()
		}
		return nil, nil, err
	}

	cleanup := func() {
		nc.Close()
		if ns != nil {
			ns.Shutdown()
		}
	}
	return cp, cleanup, nil
}
