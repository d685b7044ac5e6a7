// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datachat

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/DataChat/services/datachat/conversation"
	"github.com/AleutianAI/DataChat/services/datachat/pipeline"
	"github.com/AleutianAI/DataChat/services/datachat/store"
)

// Handler limits.
const (
	// defaultHistoryLimit caps how much resent history one request may
	// carry into the pipeline.
	defaultHistoryLimit = 20

	// defaultRequestTimeout bounds one whole turn: generation, execution,
	// and composition together.
	defaultRequestTimeout = 90 * time.Second

	// readyTimeout bounds the readiness DB ping.
	readyTimeout = 3 * time.Second
)

// Handlers holds the dependencies for the HTTP endpoints.
//
// Thread Safety: Handlers is safe for concurrent use once constructed.
type Handlers struct {
	orchestrator *pipeline.Orchestrator
	executor     store.Executor
	logger       *slog.Logger

	historyLimit   int
	requestTimeout time.Duration
}

// NewHandlers creates the endpoint handlers.
//
// Inputs:
//   - orchestrator: The turn pipeline. Must not be nil.
//   - executor: Warehouse executor for readiness checks. May be nil.
//   - logger: Structured logger; nil means slog.Default().
func NewHandlers(orchestrator *pipeline.Orchestrator, executor store.Executor, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		orchestrator:   orchestrator,
		executor:       executor,
		logger:         logger,
		historyLimit:   defaultHistoryLimit,
		requestTimeout: defaultRequestTimeout,
	}
}

// HandleChat handles POST /chat.
//
// Description:
//
//	Validates the body (400 only for malformed input: missing body, absent
//	or whitespace-only question), truncates the resent history to the
//	server's limit, and hands the turn to the orchestrator under the
//	request budget. The envelope's own Status drives the HTTP status, so
//	handled business failures stay 200 and timeouts surface as 504.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID))

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "body must be JSON with a non-empty \"question\" field",
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "question must not be empty",
		})
		return
	}

	hist := conversation.History(req.History).Tail(h.historyLimit)

	logger.Info("chat turn received",
		slog.Int("question_len", len(req.Question)),
		slog.Int("history_len", len(hist)))

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	resp := h.orchestrator.HandleTurn(ctx, strings.TrimSpace(req.Question), hist)

	logger.Info("chat turn resolved",
		slog.String("type", resp.Type),
		slog.Int("row_count", resp.RowCount),
		slog.Int("status", resp.Status))

	c.JSON(resp.Status, resp)
}

// HandleHealth handles GET /health: process liveness only.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /ready: liveness plus warehouse connectivity.
// Degrades to 503 with the reason when the DB is unreachable or absent.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.executor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": "no warehouse configured",
		})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := h.executor.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": "warehouse unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one, and
// echoes it on the response so clients can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
