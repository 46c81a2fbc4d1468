package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-compilex/internal/config"
	"github.com/aescanero/dago-node-compilex/internal/eval/cel"
	"github.com/aescanero/dago-node-compilex/internal/render"
	"github.com/aescanero/dago-node-compilex/internal/store"
	"github.com/aescanero/dago-node-compilex/internal/worker"
	"github.com/aescanero/dago-node-compilex/pkg/compilex"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting render worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Initialize stores
	templates, err := store.Open(store.Kind(cfg.TemplateStore), cfg.TemplateDBPath, redisClient)
	if err != nil {
		logger.Fatal("failed to open template store", zap.Error(err))
	}
	logger.Info("template store opened", zap.String("kind", cfg.TemplateStore))

	if cfg.TemplateDir != "" {
		n, err := store.Seed(context.Background(), templates, cfg.TemplateDir)
		if err != nil {
			logger.Fatal("failed to seed templates", zap.Error(err))
		}
		logger.Info("templates seeded",
			zap.String("dir", cfg.TemplateDir),
			zap.Int("count", n),
		)
	}

	states := store.NewRedisStateStore(redisClient, cfg.StateTTL, logger)

	// Initialize compiler
	compiler, err := initCompiler(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize compiler", zap.Error(err))
	}
	logger.Info("compiler initialized", zap.Strings("directives", compiler.Directives()))

	// Initialize render service
	defaultEngine, err := render.ParseEngine(cfg.DefaultEngine)
	if err != nil {
		logger.Fatal("invalid default engine", zap.Error(err))
	}
	service := render.NewService(
		render.NewDirective(compiler),
		render.NewHandlebars(logger),
		defaultEngine,
		logger,
	)

	// Initialize and start worker
	w := worker.NewWorker(cfg, redisClient, service, templates, states, logger)
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	// Start health server
	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, templates, compiler, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("render worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		if err := w.Stop(); err != nil {
			logger.Error("failed to stop worker", zap.Error(err))
		}
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("worker stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	if err := templates.Close(); err != nil {
		logger.Error("failed to close template store", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// initCompiler builds the directive compiler, registering the CEL `when`
// directive when enabled
func initCompiler(cfg *config.Config, logger *zap.Logger) (*compilex.Compiler, error) {
	opts := []compilex.Option{
		compilex.WithLogger(logger.Named("compilex")),
		compilex.WithMaxDepth(cfg.MaxDepth),
	}

	if cfg.CELEnabled {
		evaluator, err := cel.NewEvaluator(logger.Named("cel"))
		if err != nil {
			return nil, fmt.Errorf("failed to create cel evaluator: %w", err)
		}
		opts = append(opts, compilex.WithDirective("when", evaluator.Directive()))
	}

	return compilex.New(opts...), nil
}
