// Package main provides the utility intelligence API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/utility-explorer/intelligence/internal/agent"
	"github.com/utility-explorer/intelligence/internal/cache"
	"github.com/utility-explorer/intelligence/internal/classify"
	"github.com/utility-explorer/intelligence/internal/config"
	"github.com/utility-explorer/intelligence/internal/consumer"
	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/fallback"
	"github.com/utility-explorer/intelligence/internal/forecast"
	"github.com/utility-explorer/intelligence/internal/llm"
	"github.com/utility-explorer/intelligence/internal/nlp"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/resolve"
	"github.com/utility-explorer/intelligence/internal/retrieve"
	"github.com/utility-explorer/intelligence/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("embedding_model", cfg.Embedding.Model).
		Msg("Starting utility intelligence API")

	db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	startupCtx := context.Background()
	if err := storage.EnsureSchema(startupCtx, db); err != nil {
		logger.Fatal().Err(err).Msg("Schema setup failed")
	}

	var cacheClient cache.Client
	if cfg.Cache.Driver == "redis" {
		rc, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		} else {
			cacheClient = rc
		}
	}
	if cacheClient == nil {
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}
	defer cacheClient.Close()

	embClient, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Embedding client setup failed")
	}
	embedder := embedding.NewCachedEmbedder(embClient, cacheClient, cfg.Cache.TTL)

	var recognizer nlp.EntityRecognizer
	if cfg.NLP.NERBaseURL != "" {
		nerClient, err := nlp.NewNERClient(nlp.NERConfig{
			BaseURL: cfg.NLP.NERBaseURL,
			Timeout: cfg.NLP.Timeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("NER client setup failed, location detection disabled")
		} else {
			recognizer = nerClient
		}
	}

	var labeler nlp.IntentLabeler
	if cfg.NLP.ClassifierBaseURL != "" {
		clsClient, err := nlp.NewClassifierClient(nlp.ClassifierConfig{
			BaseURL: cfg.NLP.ClassifierBaseURL,
			Timeout: cfg.NLP.Timeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Classifier client setup failed, intent labeling disabled")
		} else {
			labeler = clsClient
		}
	}

	classifier, err := classify.NewClassifier(startupCtx, embedder, labeler, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Classifier setup failed")
	}

	factRepo := storage.NewFactValueRepository(db)
	metricRepo := storage.NewMetricMetadataRepository(db)
	chunkRepo := storage.NewKnowledgeChunkRepository(db)
	queryLogRepo := storage.NewQueryLogRepository(db)

	resolver := resolve.NewResolver(embedder, recognizer, metricRepo, logger)
	resolver.SetMaxMetrics(cfg.Agent.MaxMetrics)
	retriever := retrieve.NewEngine(factRepo, logger)
	forecaster := forecast.NewEngine(factRepo, logger)
	knowledgeSearcher := retrieve.NewKnowledgeSearcher(embedder, chunkRepo, logger)

	var generator llm.Generator
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("LLM client setup failed, generative fallback disabled")
	} else {
		generator = llmClient
	}
	executor := fallback.NewReadOnlyExecutor(db)
	fbRouter := fallback.NewRouter(generator, executor, metricRepo, logger)

	app := agent.New(classifier, resolver, retriever, forecaster, fbRouter, knowledgeSearcher, queryLogRepo, logger, cfg.Agent.LowConfidenceThreshold)

	// Metadata consumer runs for the life of the process.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	metadataConsumer := consumer.New(consumer.Config{
		Brokers: cfg.Metadata.Brokers,
		Topic:   cfg.Metadata.Topic,
		GroupID: cfg.Metadata.GroupID,
		Backoff: cfg.Metadata.RetryBackoff,
	}, metricRepo, embedder, logger)
	go metadataConsumer.Run(consumerCtx)

	router := NewRouter(logger, cfg, &Dependencies{
		Agent:    app,
		Chunks:   chunkRepo,
		Embedder: embedder,
		DB:       db,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	stopConsumer()
	if err := metadataConsumer.Close(); err != nil {
		logger.Warn().Err(err).Msg("Consumer close failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
