package reassembly

import (
	"context"

	"github.com/stitchwork/stitch/metrics"
)

// InstrumentedSink wraps a Sink and records emit metrics. Each
// EmitPartial/EmitFinal call increments emit_success or emit_failure on the
// metrics collector.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// EmitPartial delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) EmitPartial(ctx context.Context, channel, content string) error {
	err := s.inner.EmitPartial(ctx, channel, content)
	if err != nil {
		s.collector.IncEmitFailure()
	} else {
		s.collector.IncEmitSuccess()
	}
	return err
}

// EmitFinal delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) EmitFinal(ctx context.Context, channel, content string) error {
	err := s.inner.EmitFinal(ctx, channel, content)
	if err != nil {
		s.collector.IncEmitFailure()
	} else {
		s.collector.IncEmitSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements Sink.
var _ Sink = (*InstrumentedSink)(nil)
