// Package observe records playback metrics through the OpenTelemetry
// metrics API. A Prometheus bridge is available via [InitProvider]; tests
// should use [NewMetrics] with their own provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all wordsprout metrics.
const meterName = "github.com/wordsprout/wordsprout"

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// Outcomes counts terminal pronunciation outcomes. Attributes:
	//   strategy, outcome, reason
	Outcomes metric.Int64Counter

	// Attempts counts strategy attempts. Attributes: strategy, status
	Attempts metric.Int64Counter

	// AttemptDuration tracks how long each strategy attempt took.
	AttemptDuration metric.Float64Histogram

	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter
	CacheEvictions metric.Int64Counter

	// GestureUnlocks counts gate unlocks.
	GestureUnlocks metric.Int64Counter
}

// latencyBuckets are in seconds, sized for short utterances.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Outcomes, err = m.Int64Counter("wordsprout.playback.outcomes",
		metric.WithDescription("Terminal pronunciation outcomes by strategy, outcome and reason."),
	); err != nil {
		return nil, err
	}
	if met.Attempts, err = m.Int64Counter("wordsprout.playback.attempts",
		metric.WithDescription("Strategy attempts by strategy and status."),
	); err != nil {
		return nil, err
	}
	if met.AttemptDuration, err = m.Float64Histogram("wordsprout.playback.attempt.duration",
		metric.WithDescription("Latency of a single strategy attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CacheHits, err = m.Int64Counter("wordsprout.cache.hits",
		metric.WithDescription("Asset cache hits."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("wordsprout.cache.misses",
		metric.WithDescription("Asset cache misses."),
	); err != nil {
		return nil, err
	}
	if met.CacheEvictions, err = m.Int64Counter("wordsprout.cache.evictions",
		metric.WithDescription("Asset cache evictions."),
	); err != nil {
		return nil, err
	}

	if met.GestureUnlocks, err = m.Int64Counter("wordsprout.gesture.unlocks",
		metric.WithDescription("Gesture gate unlocks."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Noop returns metrics that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordOutcome records a terminal outcome. reason is empty for successes.
func (m *Metrics) RecordOutcome(ctx context.Context, strategy, outcome, reason string) {
	m.Outcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("outcome", outcome),
			attribute.String("reason", reason),
		),
	)
}

// RecordAttempt records one strategy attempt and its latency.
func (m *Metrics) RecordAttempt(ctx context.Context, strategy string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("status", status),
	)
	m.Attempts.Add(ctx, 1, attrs)
	m.AttemptDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordUnlock counts a gesture unlock.
func (m *Metrics) RecordUnlock(ctx context.Context) {
	m.GestureUnlocks.Add(ctx, 1)
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(string) { m.CacheHits.Add(context.Background(), 1) }

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(string) { m.CacheMisses.Add(context.Background(), 1) }

// CacheEviction implements cache.Observer.
func (m *Metrics) CacheEviction(string) { m.CacheEvictions.Add(context.Background(), 1) }
