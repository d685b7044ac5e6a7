// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datachat_pipeline_turns_total",
		Help: "Handled turns by intent and response type.",
	}, []string{"intent", "type"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datachat_pipeline_turn_seconds",
		Help:    "End-to-end turn latency by intent.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
	}, []string{"intent"})

	safetyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datachat_safety_rejections_total",
		Help: "Generated queries rejected by the safety validator.",
	})

	chartsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datachat_charts_total",
		Help: "Chart descriptors emitted by kind.",
	}, []string{"kind"})

	recoveryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datachat_recovery_total",
		Help: "Recovery coordinator outcomes by failure kind and result.",
	}, []string{"failure", "outcome"})

	panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datachat_pipeline_panics_total",
		Help: "Panics recovered at the orchestrator boundary.",
	})
)
