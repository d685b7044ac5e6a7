// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command datachat starts the conversational analytics API server.
//
// DataChat answers natural-language questions about the sales warehouse:
//   - Intent routing (small talk vs. provenance vs. data questions)
//   - SQL generation through a pluggable completion provider
//   - Read-only safety validation before execution
//   - Chart shaping and one-round suggest-and-confirm recovery
//
// Usage:
//
//	go run ./cmd/datachat
//	go run ./cmd/datachat -port 9090 -debug
//
// With a local Ollama model:
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=llama3.1:8b go run ./cmd/datachat
//
// With a cloud fallback:
//
//	DATACHAT_FALLBACK_PROVIDER=openai OPENAI_API_KEY=... go run ./cmd/datachat
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/datachat/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/datachat/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "top 5 distributors by sales last month", "history": []}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/DataChat/services/datachat"
	"github.com/AleutianAI/DataChat/services/datachat/pipeline"
	"github.com/AleutianAI/DataChat/services/datachat/providers"
	"github.com/AleutianAI/DataChat/services/datachat/schema"
	"github.com/AleutianAI/DataChat/services/datachat/store"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	debug := flag.Bool("debug", false, "enable debug logging and gin debug mode")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C trace context propagation; span export is the deployment's
	// choice of SDK wiring.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Completion provider chain.
	primaryCfg, fallbackCfg, err := providers.LoadConfig()
	if err != nil {
		logger.Error("provider configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}
	provider, err := providers.BuildChain(primaryCfg, fallbackCfg, logger)
	if err != nil {
		logger.Error("provider construction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("completion provider ready", slog.String("provider", provider.Name()))

	// Warehouse executor. A missing DSN degrades rather than aborts: small
	// talk and metadata still work, data questions resolve to
	// database_error, and /ready reports the gap.
	var executor store.Executor
	if dsn := os.Getenv("DATACHAT_DB_DSN"); dsn != "" {
		sqlExecutor, err := store.NewSQLExecutor(dsn, store.PoolConfig{}, logger)
		if err != nil {
			logger.Error("warehouse configuration invalid", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sqlExecutor.Close()
		executor = sqlExecutor
		logger.Info("warehouse executor ready")
	} else {
		logger.Warn("DATACHAT_DB_DSN not set; data questions will be degraded")
	}

	// Schema description: embedded default, optional file override with
	// hot reload.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schemaLoader := schema.NewLoader(logger)
	if path := os.Getenv("DATACHAT_SCHEMA_FILE"); path != "" {
		if err := schemaLoader.Load(path); err != nil {
			logger.Error("schema file invalid", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := schemaLoader.Watch(ctx); err != nil {
			logger.Warn("schema hot reload unavailable", slog.String("error", err.Error()))
		}
	}

	orchestrator := pipeline.New(provider, executor, schemaLoader, logger)
	handlers := datachat.NewHandlers(orchestrator, executor, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("datachat"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	datachat.RegisterRoutes(router.Group("/v1"), handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("datachat server listening", slog.Int("port", *port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
