package reassembly

import (
	"context"
	"sync"
)

// Sink consumes assembled and partial payload content for a channel.
// Implementations may write to files, forward over HTTP, publish to a
// broker, or stub for testing.
//
// One Sink instance may serve several channels; the channel name is passed
// on every call.
type Sink interface {
	// EmitPartial delivers an incremental slice of the payload for
	// incremental consumption. Slices arrive in payload order.
	EmitPartial(ctx context.Context, channel, content string) error

	// EmitFinal signals end-of-payload. Content is empty except in the
	// single-chunk path, where it carries the full payload (which the
	// preceding EmitPartial already delivered).
	EmitFinal(ctx context.Context, channel, content string) error

	// Close releases any resources held by the sink.
	Close() error
}

// EmitKind distinguishes partial from final emits in recorded call order.
type EmitKind string

// Emit kinds recorded by StubSink.
const (
	EmitKindPartial EmitKind = "partial"
	EmitKindFinal   EmitKind = "final"
)

// Emit is a recorded sink call for ordering verification.
type Emit struct {
	Kind    EmitKind
	Channel string
	Content string
}

// StubSink is a test sink that records emits without delivering them.
// Tracks call statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// Partials stores all EmitPartial calls in order.
	Partials []Emit
	// Finals stores all EmitFinal calls in order.
	Finals []Emit
	// EmitOrder tracks the interleaved order of all emits.
	EmitOrder []Emit
	// Closed indicates whether Close was called.
	Closed bool

	// ErrorOnEmit, if non-nil, is returned by EmitPartial/EmitFinal.
	ErrorOnEmit error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{
		Partials:  make([]Emit, 0),
		Finals:    make([]Emit, 0),
		EmitOrder: make([]Emit, 0),
	}
}

// EmitPartial records the partial emit.
func (s *StubSink) EmitPartial(_ context.Context, channel, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnEmit != nil {
		return s.ErrorOnEmit
	}

	e := Emit{Kind: EmitKindPartial, Channel: channel, Content: content}
	s.Partials = append(s.Partials, e)
	s.EmitOrder = append(s.EmitOrder, e)
	return nil
}

// EmitFinal records the final emit.
func (s *StubSink) EmitFinal(_ context.Context, channel, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnEmit != nil {
		return s.ErrorOnEmit
	}

	e := Emit{Kind: EmitKindFinal, Channel: channel, Content: content}
	s.Finals = append(s.Finals, e)
	s.EmitOrder = append(s.EmitOrder, e)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// PartialContent returns the concatenation of all partial emits for a channel.
func (s *StubSink) PartialContent(channel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out string
	for _, e := range s.Partials {
		if e.Channel == channel {
			out += e.Content
		}
	}
	return out
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
