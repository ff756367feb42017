// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Metrics records what a generation run did.
//
// testgen is a short-lived CLI, so the Prometheus implementation is exported
// as a node_exporter textfile at the end of a run rather than scraped.
//
// Metrics exported:
//
//   - testgen_ai_exchanges_total: Counter by kind (start, component, fix) and result
//   - testgen_ai_exchange_duration_seconds: Histogram by kind
//   - testgen_runner_executions_total: Counter by exit code
//   - testgen_runner_duration_seconds: Histogram of runner wall time
//   - testgen_repair_attempts_total: Counter by failure category
//   - testgen_components_total: Counter by outcome (passing, failed)
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Metrics interface {
	RecordExchange(kind string, d time.Duration, err error)
	RecordExecution(exitCode int, d time.Duration)
	RecordRepairAttempt(category FailureCategory)
	RecordOutcome(passed bool)
}

const (
	metricsNamespace = "testgen"

	ExchangeStart     = "start"
	ExchangeComponent = "component"
	ExchangeFix       = "fix"
)

// -----------------------------------------------------------------------------
// NoOpMetrics
// -----------------------------------------------------------------------------

// NoOpMetrics keeps a few totals in memory and exports nothing.
type NoOpMetrics struct {
	exchanges  atomic.Int64
	executions atomic.Int64
	repairs    atomic.Int64
	passing    atomic.Int64
	failed     atomic.Int64
}

// NewNoOpMetrics creates an in-memory recorder.
func NewNoOpMetrics() *NoOpMetrics { return &NoOpMetrics{} }

func (m *NoOpMetrics) RecordExchange(string, time.Duration, error) { m.exchanges.Add(1) }
func (m *NoOpMetrics) RecordExecution(int, time.Duration)          { m.executions.Add(1) }
func (m *NoOpMetrics) RecordRepairAttempt(FailureCategory)         { m.repairs.Add(1) }

func (m *NoOpMetrics) RecordOutcome(passed bool) {
	if passed {
		m.passing.Add(1)
		return
	}
	m.failed.Add(1)
}

// Exchanges returns the number of recorded AI exchanges.
func (m *NoOpMetrics) Exchanges() int64 { return m.exchanges.Load() }

// Executions returns the number of recorded runner executions.
func (m *NoOpMetrics) Executions() int64 { return m.executions.Load() }

// RepairAttempts returns the number of recorded repair attempts.
func (m *NoOpMetrics) RepairAttempts() int64 { return m.repairs.Load() }

// Outcomes returns the passing and failed component counts.
func (m *NoOpMetrics) Outcomes() (passing, failed int64) {
	return m.passing.Load(), m.failed.Load()
}

// -----------------------------------------------------------------------------
// PrometheusMetrics
// -----------------------------------------------------------------------------

// PrometheusMetrics records into a private registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	executions       *prometheus.CounterVec
	runnerDuration   prometheus.Histogram
	repairs          *prometheus.CounterVec
	components       *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the testgen collectors.
//
// # Outputs
//
//   - *PrometheusMetrics: Ready to record
//   - error: Registration failure (duplicate collectors)
func NewPrometheusMetrics() (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ai",
				Name:      "exchanges_total",
				Help:      "AI exchanges by kind and result.",
			},
			[]string{"kind", "result"},
		),
		exchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "ai",
				Name:      "exchange_duration_seconds",
				Help:      "AI exchange latency by kind.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"kind"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "runner",
				Name:      "executions_total",
				Help:      "Test runner executions by exit code.",
			},
			[]string{"exit_code"},
		),
		runnerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "runner",
				Name:      "duration_seconds",
				Help:      "Test runner wall time.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
			},
		),
		repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "repair",
				Name:      "attempts_total",
				Help:      "Repair attempts by failure category.",
			},
			[]string{"category"},
		),
		components: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "components_total",
				Help:      "Components classified by outcome.",
			},
			[]string{"outcome"},
		),
	}

	collectors := []prometheus.Collector{
		m.exchanges,
		m.exchangeDuration,
		m.executions,
		m.runnerDuration,
		m.repairs,
		m.components,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register testgen metrics: %w", err)
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordExchange(kind string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exchanges.WithLabelValues(kind, result).Inc()
	m.exchangeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordExecution(exitCode int, d time.Duration) {
	m.executions.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	m.runnerDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordRepairAttempt(category FailureCategory) {
	m.repairs.WithLabelValues(string(category)).Inc()
}

func (m *PrometheusMetrics) RecordOutcome(passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passing"
	}
	m.components.WithLabelValues(outcome).Inc()
}

// Gatherer exposes the private registry, mainly for tests.
func (m *PrometheusMetrics) Gatherer() prometheus.Gatherer { return m.registry }

// WriteTextfile writes every metric to path in the text exposition format.
//
// The write is atomic (temp file plus rename), so a node_exporter textfile
// collector never sees a partial file.
func (m *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Compile-time interface compliance checks.
var _ Metrics = (*NoOpMetrics)(nil)
var _ Metrics = (*PrometheusMetrics)(nil)
