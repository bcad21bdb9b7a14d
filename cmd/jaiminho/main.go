// Package main is the entrypoint of the message decision service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edgard/jaiminho/internal/app"
	"github.com/edgard/jaiminho/internal/config"
	"github.com/edgard/jaiminho/internal/database"
	"github.com/edgard/jaiminho/internal/escalation"
	"github.com/edgard/jaiminho/internal/llm"
	"github.com/edgard/jaiminho/internal/logger"
	"github.com/edgard/jaiminho/internal/pipeline"
	"github.com/edgard/jaiminho/internal/routing"
	"github.com/edgard/jaiminho/internal/scheduler"
	"github.com/edgard/jaiminho/internal/scheduler/tasks"
	"github.com/edgard/jaiminho/internal/server"
	"github.com/edgard/jaiminho/internal/tenant"
	"github.com/edgard/jaiminho/internal/urgency"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, storage, classifier, pipeline, HTTP server and scheduler,
// blocks until shutdown and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	completer, err := llm.NewCompleter(ctx, cfg.Classifier)
	if err != nil {
		log.Error("Failed to initialize classifier", "provider", cfg.Classifier.Provider, "error", err)
		return 1
	}

	// Leave the interfaces nil when no provider is configured so the
	// controller and router take their fallback paths.
	var (
		urgencyClassifier  escalation.Classifier
		categoryClassifier routing.Classifier
	)
	if completer != nil {
		c := llm.NewClassifier(completer, cfg.Classifier, log)
		urgencyClassifier, categoryClassifier = c, c
		log.Info("Classifier enabled", "provider", completer.Name(), "model", cfg.Classifier.Model)
	} else {
		log.Warn("No classifier configured, undecided messages default to not urgent")
	}

	resolver := tenant.NewResolver(store, log, cfg.Tenant.CacheCapacity)
	gate := tenant.NewGate(resolver, store, log)
	rules := urgency.NewEngine(log)

	proc, err := pipeline.New(pipeline.Deps{
		Logger:    log,
		Gate:      gate,
		Rules:     rules,
		Escalator: escalation.NewController(urgencyClassifier, store, log, cfg.Classifier.Timeout),
		Router:    routing.NewRouter(categoryClassifier, log, cfg.Classifier.Timeout),
		Audit:     store,
	})
	if err != nil {
		log.Error("Failed to build pipeline", "error", err)
		return 1
	}

	srv := server.New(cfg.Server, server.Deps{
		Processor: proc,
		Tenants:   gate,
		Feedback:  store,
		Health:    store,
	}, log)

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:         log,
		Store:          store,
		Rules:          rules,
		Tenants:        resolver,
		AuditRetention: cfg.Audit.Retention,
	})
	sched, err := scheduler.New(log, cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	log.Info("Starting service...")
	runErr := app.New(log, srv, sched).Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	return 0
}
