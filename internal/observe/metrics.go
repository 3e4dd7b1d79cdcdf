// Package observe provides observability primitives for voxcap: OpenTelemetry
// metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxcap metrics.
const meterName = "github.com/voxcap/voxcap"

// Metrics holds all OpenTelemetry metric instruments for the recorder.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ChunksCaptured counts audio chunks read from the capture device.
	ChunksCaptured metric.Int64Counter

	// FramesEncoded counts Opus frames produced by the encoder.
	FramesEncoded metric.Int64Counter

	// SpeechSegments counts finalised speech segments per session.
	SpeechSegments metric.Int64Counter

	// RecordingDuration tracks completed session lengths in seconds.
	RecordingDuration metric.Float64Histogram

	// ActiveRecordings tracks the number of sessions currently capturing.
	ActiveRecordings metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-note recordings: a few seconds up to several minutes.
var durationBuckets = []float64{
	1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChunksCaptured, err = m.Int64Counter("voxcap.chunks.captured",
		metric.WithDescription("Total audio chunks read from the capture device."),
	); err != nil {
		return nil, err
	}
	if met.FramesEncoded, err = m.Int64Counter("voxcap.frames.encoded",
		metric.WithDescription("Total Opus frames produced by the encoder."),
	); err != nil {
		return nil, err
	}
	if met.SpeechSegments, err = m.Int64Counter("voxcap.speech.segments",
		metric.WithDescription("Total finalised speech segments."),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("voxcap.recording.duration",
		metric.WithDescription("Length of completed recording sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("voxcap.active_recordings",
		metric.WithDescription("Number of sessions currently capturing."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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
