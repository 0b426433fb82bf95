// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the tutoring
// pipeline. Metrics are exposed on /metrics; all operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "eduguard"

const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for tutoring runs.
// Initialize once at startup via InitMetrics().
type PipelineMetrics struct {
	// RequestsTotal counts tutoring requests by outcome.
	// Labels: status (success, error, crisis)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures end-to-end run duration.
	// Labels: status (success, error)
	RequestDurationSeconds *prometheus.HistogramVec

	// NodeSoftFailuresTotal counts absorbed node failures.
	// Labels: node
	NodeSoftFailuresTotal *prometheus.CounterVec

	// RiskLevelTotal counts assessed risk levels.
	// Labels: level (low, medium, high)
	RiskLevelTotal *prometheus.CounterVec

	// EscalationsTotal counts escalation outcomes.
	// Labels: status (ok, escalated, failed)
	EscalationsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, populated by InitMetrics.
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "requests_total",
				Help:      "Total tutoring requests by outcome",
			},
			[]string{"status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end tutoring run duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		NodeSoftFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "node_soft_failures_total",
				Help:      "Node failures absorbed with default values",
			},
			[]string{"node"},
		),

		RiskLevelTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "risk_level_total",
				Help:      "Assessed risk levels",
			},
			[]string{"level"},
		),

		EscalationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "escalations_total",
				Help:      "Escalation gate outcomes",
			},
			[]string{"status"},
		),
	}
	return DefaultMetrics
}
