// cmd/chat-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parts-agent/internal/agents/classifier"
	"parts-agent/internal/agents/orchestrator"
	"parts-agent/internal/agents/retrieval"
	"parts-agent/internal/agents/scopeguard"
	"parts-agent/internal/agents/synthesizer"
	"parts-agent/internal/cache"
	"parts-agent/internal/catalog"
	"parts-agent/internal/common/config"
	"parts-agent/internal/common/database"
	"parts-agent/internal/common/llm"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/vectorstore"
	"parts-agent/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting chat server...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
	)

	ctx := context.Background()

	// --- Load catalog data ---
	cat, err := catalog.Load(cfg.Catalog.DataDir)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}
	zapLog.Info("Catalog loaded",
		zap.Int("products", len(cat.Products)),
		zap.Int("troubleshooting", len(cat.Troubleshooting)),
	)

	// --- Init Redis with retry; fall back to in-memory cache ---
	var store cache.Store
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		store = cache.NewMemoryStore()
	} else {
		defer redis.Close()
		store = cache.NewRedisStore(redis, log)
		zapLog.Info("Redis connected successfully")
	}

	// --- Init vector index; degrade to keyword retrieval on failure ---
	var vectors vectorstore.Provider = vectorstore.Disabled{}
	if cfg.VectorDB.URL != "" {
		embedder := vectorstore.NewHTTPEmbedder(
			cfg.VectorDB.Embeddings.BaseURL,
			time.Duration(cfg.VectorDB.Embeddings.Timeout)*time.Millisecond,
		)

		var qd *vectorstore.Qdrant
		err = retryWithBackoff(func() error {
			var err error
			qd, err = vectorstore.New(ctx, vectorstore.Config{
				URL:                       cfg.VectorDB.URL,
				APIKey:                    cfg.VectorDB.APIKey,
				ProductsCollection:        cfg.VectorDB.ProductsCollection,
				TroubleshootingCollection: cfg.VectorDB.TroubleshootingCollection,
				VectorSize:                cfg.VectorDB.VectorSize,
			}, embedder, log)
			return err
		}, 5, 2*time.Second, zapLog, "Qdrant connection")

		if err != nil {
			zapLog.Warn("vector index unavailable, keyword retrieval only", zap.Error(err))
		} else {
			defer qd.Close()
			if err := qd.AddProducts(ctx, cat.Products); err != nil {
				zapLog.Error("product seeding failed", zap.Error(err))
			}
			if err := qd.AddTroubleshooting(ctx, cat.Troubleshooting); err != nil {
				zapLog.Error("troubleshooting seeding failed", zap.Error(err))
			}
			vectors = qd
			zapLog.Info("Qdrant connected successfully")
		}
	}

	// --- Init model provider ---
	var provider llm.Provider = llm.Disabled{}
	if cfg.LLM.APIKey != "" {
		provider = llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			MaxRetries: cfg.LLM.MaxRetries,
			Timeout:    time.Duration(cfg.LLM.Timeout) * time.Millisecond,
		}, log)
	} else {
		zapLog.Warn("no model API key configured, running with deterministic fallbacks only")
	}

	guardProvider := llm.Provider(llm.Disabled{})
	if cfg.Guard.LLMCheckEnabled {
		guardProvider = provider
	}

	// --- Assemble pipeline ---
	orch := orchestrator.New(
		&orchestrator.Config{
			ResponseTTL: time.Duration(cfg.Cache.ResponseTTL) * time.Second,
			NoMatchTTL:  time.Duration(cfg.Cache.NoMatchTTL) * time.Second,
		},
		scopeguard.New(guardProvider, log),
		classifier.New(provider, log),
		retrieval.New(cat, vectors, log),
		synthesizer.New(provider, log),
		store,
		log,
	)

	srv := server.New(server.Config{
		Address:        cfg.Server.Address,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Millisecond,
	}, orch, log)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()
	srv.Ready()
	zapLog.Info("Chat server ready", zap.String("address", cfg.Server.Address))

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down http server", zap.Error(err))
	}

	zapLog.Info("Chat server stopped gracefully")
}
