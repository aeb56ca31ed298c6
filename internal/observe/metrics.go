// Package observe provides the observability primitives for meetscribe:
// OpenTelemetry metrics, tracing, trace-aware logging, and HTTP middleware
// for the operational endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. Components receive a [*Metrics] explicitly;
// tests build one with [NewMetrics] over an in-memory reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all meetscribe metrics.
const meterName = "github.com/MrWong99/meetscribe"

// Metrics holds every metric instrument of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// --- Caption engine ---

	// FramesIngested counts polled caption frames. Attribute "outcome" is
	// one of the stabilizer outcomes (growth, duplicate, ...).
	FramesIngested metric.Int64Counter

	// BlocksCommitted counts committed blocks. Attribute "trigger" is
	// volume, silence or flush.
	BlocksCommitted metric.Int64Counter

	// BlockWords records the word count of each committed block.
	BlockWords metric.Int64Histogram

	// HintsEmitted counts glossary hints attached to committed blocks.
	HintsEmitted metric.Int64Counter

	// --- Dispatch ---

	// QueueDepth is the number of blocks waiting for the consumer.
	QueueDepth metric.Int64UpDownCounter

	// HandlerErrors counts failed or panicking block handlers.
	HandlerErrors metric.Int64Counter

	// --- Downstream providers ---

	// TranslationDuration tracks live-view translation latency.
	TranslationDuration metric.Float64Histogram

	// LLMDuration tracks summarisation and naming latency.
	LLMDuration metric.Float64Histogram

	// ProviderRequests counts provider calls. Attributes: "provider",
	// "kind", "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: "provider", "kind".
	ProviderErrors metric.Int64Counter

	// ActiveSessions is 1 while a capture session is running.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks operational endpoint latency. Attributes:
	// "method", "path", "status".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Local LLMs routinely
// take tens of seconds per segment.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

var wordBuckets = []float64{10, 25, 50, 100, 200, 350, 500, 1000}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesIngested, err = m.Int64Counter("meetscribe.caption.frames",
		metric.WithDescription("Caption frames polled, by stabilizer outcome."),
	); err != nil {
		return nil, err
	}
	if met.BlocksCommitted, err = m.Int64Counter("meetscribe.caption.blocks",
		metric.WithDescription("Blocks committed, by trigger."),
	); err != nil {
		return nil, err
	}
	if met.BlockWords, err = m.Int64Histogram("meetscribe.caption.block.words",
		metric.WithDescription("Word count of committed blocks."),
		metric.WithExplicitBucketBoundaries(wordBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HintsEmitted, err = m.Int64Counter("meetscribe.caption.hints",
		metric.WithDescription("Glossary hints attached to committed blocks."),
	); err != nil {
		return nil, err
	}

	if met.QueueDepth, err = m.Int64UpDownCounter("meetscribe.dispatch.queue_depth",
		metric.WithDescription("Blocks waiting for the consumer."),
	); err != nil {
		return nil, err
	}
	if met.HandlerErrors, err = m.Int64Counter("meetscribe.dispatch.handler_errors",
		metric.WithDescription("Block handler failures and panics."),
	); err != nil {
		return nil, err
	}

	if met.TranslationDuration, err = m.Float64Histogram("meetscribe.translation.duration",
		metric.WithDescription("Latency of live-view translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("meetscribe.llm.duration",
		metric.WithDescription("Latency of LLM minute generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("meetscribe.provider.requests",
		metric.WithDescription("Provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("meetscribe.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("meetscribe.active_sessions",
		metric.WithDescription("Running capture sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("meetscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide [Metrics] built on
// [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrame counts one polled frame with its stabilizer outcome.
func (m *Metrics) RecordFrame(ctx context.Context, outcome string) {
	m.FramesIngested.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordBlock records a committed block: its trigger, size and hint count.
func (m *Metrics) RecordBlock(ctx context.Context, trigger string, words, hints int) {
	m.BlocksCommitted.Add(ctx, 1, metric.WithAttributes(Attr("trigger", trigger)))
	m.BlockWords.Record(ctx, int64(words))
	if hints > 0 {
		m.HintsEmitted.Add(ctx, int64(hints))
	}
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
			Attr("status", status),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
		),
	)
}
