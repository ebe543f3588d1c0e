package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/spf13/afero"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/kiln/internal/config"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/pipeline"
	"github.com/efebarandurmaz/kiln/internal/server"
	temporalmod "github.com/efebarandurmaz/kiln/internal/temporal"
)

func main() {
	// Without a file, configuration comes from defaults and KILN_ variables.
	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Log.Observability(), os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	tp, err := observability.InitTracing(context.Background(), cfg.Tracing.Observability())
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Fs:        afero.NewOsFs(),
		Registry:  pipeline.DefaultRegistry(),
		Artifacts: cfg.Artifacts,
		Logger:    logger,
		Metrics:   observability.NewKilnMetrics(),
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Logger:  logger,
	})
	shutdown.Register(server.TemporalWorkerShutdownHook(w.Stop))
	shutdown.Register(server.TracingShutdownHook(tp.Shutdown))
	shutdown.Start()
	shutdown.Wait()

	fmt.Println("Worker stopped")
}
