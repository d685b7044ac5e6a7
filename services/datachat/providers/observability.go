// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/DataChat/services/llm"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datachat_provider_request_seconds",
		Help:    "Completion request latency by provider and outcome.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider", "outcome"})

	fallbackUses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datachat_provider_fallback_total",
		Help: "Completions routed to the fallback provider after a primary failure.",
	}, []string{"primary", "fallback"})
)

// instrumentedClient wraps a backend with latency metrics and a span per
// completion call.
type instrumentedClient struct {
	inner llm.Client
}

func newInstrumentedClient(inner llm.Client) llm.Client {
	return &instrumentedClient{inner: inner}
}

func (c *instrumentedClient) Name() string { return c.inner.Name() }

func (c *instrumentedClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	tracer := otel.Tracer("datachat/providers")
	ctx, span := tracer.Start(ctx, "llm.complete")
	span.SetAttributes(
		attribute.String("llm.provider", c.inner.Name()),
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.max_tokens", opts.MaxTokens),
	)
	defer span.End()

	start := time.Now()
	text, err := c.inner.Complete(ctx, messages, opts)
	elapsed := time.Since(start).Seconds()

	outcome := "ok"
	switch {
	case llm.IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	requestDuration.WithLabelValues(c.inner.Name(), outcome).Observe(elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_len", len(text)))
	return text, nil
}
