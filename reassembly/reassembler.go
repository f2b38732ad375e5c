// Package reassembly implements per-channel reassembly of chunked string
// payloads.
//
// Senders split large binary-as-text payloads (images, audio) across many
// small chunks, each tagged with a channel name and a position marker
// (0 start, -1 end, anything else continuation). The Reassembler accumulates
// fragments per channel and emits assembled or partial content to the
// channel's registered sink:
//
//   - A start chunk below the small threshold is a complete payload: the
//     sink receives a partial and a final emit back-to-back, both carrying
//     the full content.
//   - Continuation chunks accumulate until the buffer exceeds the flush
//     threshold, at which point the buffer is emitted as a partial and
//     cleared (streaming flush; bounds memory for large payloads).
//   - An end chunk flushes any remainder as a partial, then emits a final
//     with empty content to signal completion.
//
// The component is best-effort by design: unknown channels and sink
// failures are logged and counted, never surfaced to the caller.
package reassembly

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/stitchwork/stitch/log"
	"github.com/stitchwork/stitch/types"
)

// Default thresholds, in bytes of accumulated fragment content.
const (
	// DefaultSmallThreshold is the single-chunk cutoff: a start fragment
	// shorter than this is treated as a complete payload.
	DefaultSmallThreshold = 1000
	// DefaultFlushThreshold bounds the accumulation buffer: a continuation
	// that pushes the buffer past this triggers a streaming partial flush.
	DefaultFlushThreshold = 5000
)

// Config configures a Reassembler.
type Config struct {
	// SmallThreshold overrides DefaultSmallThreshold when > 0.
	SmallThreshold int
	// FlushThreshold overrides DefaultFlushThreshold when > 0.
	FlushThreshold int
	// Logger is an optional logger for drop and sink-failure observability.
	Logger *log.Logger
}

// accumulator holds per-channel reassembly state.
// The buffer is reset by a start marker, grows by append on continuations,
// and is emptied by every flush. Channels never share an accumulator.
type accumulator struct {
	buffer       strings.Builder
	bytesEmitted int64
	payloads     int64
	chunks       int64
}

// Reassembler consumes an ordered stream of labeled chunks and routes
// assembled content to per-channel sinks.
//
// Ingest is synchronous: all work (append, threshold check, sink call)
// completes before it returns. The internal mutex makes the stats snapshot
// safe to read from another goroutine, but chunks for one channel must be
// ingested in transport order — there is no sequence validation, and
// out-of-order delivery silently corrupts the reassembled payload.
type Reassembler struct {
	config Config
	logger *log.Logger

	mu           sync.Mutex // guards sinks, accumulators, and stats
	sinks        map[string]Sink
	accumulators map[string]*accumulator
	stats        Stats
}

// Stats is a snapshot of reassembler counters.
type Stats struct {
	// ChunksReceived is the total number of chunks ingested.
	ChunksReceived int64
	// UnknownChannelDrops counts chunks dropped for unregistered channels.
	UnknownChannelDrops int64
	// Flushes counts partial emits (streaming and end-of-payload).
	Flushes int64
	// PayloadsCompleted counts final emits.
	PayloadsCompleted int64
	// BytesEmitted is the cumulative content length across partial emits.
	BytesEmitted int64
	// SinkErrors counts swallowed sink failures.
	SinkErrors int64
	// PerChannel maps channel names to per-channel counters.
	PerChannel map[string]ChannelStats
}

// ChannelStats holds per-channel reassembly counters.
type ChannelStats struct {
	// ChunksReceived is the number of chunks ingested for the channel.
	ChunksReceived int64
	// BytesEmitted is the cumulative flushed content length.
	BytesEmitted int64
	// PayloadsCompleted is the number of final emits.
	PayloadsCompleted int64
	// BytesBuffered is the current unflushed buffer length.
	BytesBuffered int64
}

// New creates a Reassembler, applying threshold defaults.
func New(config Config) *Reassembler {
	if config.SmallThreshold <= 0 {
		config.SmallThreshold = DefaultSmallThreshold
	}
	if config.FlushThreshold <= 0 {
		config.FlushThreshold = DefaultFlushThreshold
	}
	return &Reassembler{
		config:       config,
		logger:       config.Logger,
		sinks:        make(map[string]Sink),
		accumulators: make(map[string]*accumulator),
	}
}

// Register binds a channel name to a sink. Chunks for unregistered channels
// are dropped. Registering an already-bound channel replaces its sink; the
// channel's accumulator state is unaffected.
func (r *Reassembler) Register(channel string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[channel] = sink
}

// Channels returns the registered channel names in sorted order.
func (r *Reassembler) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ingest consumes a single chunk.
//
// Never returns an error: unknown channels are dropped, sink failures are
// logged and counted. Callers that need failure visibility read Stats.
// Must be called from one goroutine at a time per the transport's ordering
// guarantee.
func (r *Reassembler) Ingest(ctx context.Context, chunk types.Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.ChunksReceived++

	sink, ok := r.sinks[chunk.Channel]
	if !ok {
		r.stats.UnknownChannelDrops++
		r.logDrop(chunk)
		return
	}

	acc, ok := r.accumulators[chunk.Channel]
	if !ok {
		acc = &accumulator{}
		r.accumulators[chunk.Channel] = acc
	}
	acc.chunks++

	switch {
	case chunk.Marker.IsStart():
		r.ingestStart(ctx, sink, chunk, acc)
	case chunk.Marker.IsEnd():
		r.ingestEnd(ctx, sink, chunk.Channel, acc)
	default:
		r.ingestMiddle(ctx, sink, chunk, acc)
	}
}

// ingestStart resets the buffer to the new fragment, discarding any
// unflushed prior content (last start wins; an in-flight accumulation can
// only be abandoned this way). A fragment below the small threshold is a
// complete payload: partial and final fire back-to-back with the full
// content.
func (r *Reassembler) ingestStart(ctx context.Context, sink Sink, chunk types.Chunk, acc *accumulator) {
	if acc.buffer.Len() > 0 {
		r.logRestart(chunk.Channel, acc.buffer.Len())
	}
	acc.buffer.Reset()
	acc.buffer.WriteString(chunk.Fragment)

	if acc.buffer.Len() < r.config.SmallThreshold {
		content := acc.buffer.String()
		acc.buffer.Reset()
		r.emitPartial(ctx, sink, chunk.Channel, content, acc)
		r.emitFinal(ctx, sink, chunk.Channel, content, acc)
	}
}

// ingestMiddle appends the fragment and performs a streaming flush once the
// buffer exceeds the flush threshold.
func (r *Reassembler) ingestMiddle(ctx context.Context, sink Sink, chunk types.Chunk, acc *accumulator) {
	acc.buffer.WriteString(chunk.Fragment)

	if acc.buffer.Len() > r.config.FlushThreshold {
		content := acc.buffer.String()
		acc.buffer.Reset()
		r.emitPartial(ctx, sink, chunk.Channel, content, acc)
	}
}

// ingestEnd flushes the remainder (if any) and signals completion with an
// empty final emit.
func (r *Reassembler) ingestEnd(ctx context.Context, sink Sink, channel string, acc *accumulator) {
	if acc.buffer.Len() > 0 {
		content := acc.buffer.String()
		acc.buffer.Reset()
		r.emitPartial(ctx, sink, channel, content, acc)
	}
	r.emitFinal(ctx, sink, channel, "", acc)
}

func (r *Reassembler) emitPartial(ctx context.Context, sink Sink, channel, content string, acc *accumulator) {
	r.stats.Flushes++
	r.stats.BytesEmitted += int64(len(content))
	acc.bytesEmitted += int64(len(content))

	if err := sink.EmitPartial(ctx, channel, content); err != nil {
		r.stats.SinkErrors++
		r.logSinkFailure(channel, "partial", err)
	}
}

func (r *Reassembler) emitFinal(ctx context.Context, sink Sink, channel, content string, acc *accumulator) {
	r.stats.PayloadsCompleted++
	acc.payloads++

	if err := sink.EmitFinal(ctx, channel, content); err != nil {
		r.stats.SinkErrors++
		r.logSinkFailure(channel, "final", err)
	}
}

// Stats returns a snapshot of reassembler counters, including per-channel
// cumulative bytes-emitted diagnostics and current buffered bytes.
func (r *Reassembler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.PerChannel = make(map[string]ChannelStats, len(r.accumulators))
	for name, acc := range r.accumulators {
		s.PerChannel[name] = ChannelStats{
			ChunksReceived:    acc.chunks,
			BytesEmitted:      acc.bytesEmitted,
			PayloadsCompleted: acc.payloads,
			BytesBuffered:     int64(acc.buffer.Len()),
		}
	}
	return s
}

// Close closes all registered sinks. A sink registered for several channels
// is closed once per registration; sinks must tolerate repeated Close.
func (r *Reassembler) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
			r.logSinkFailure(name, "close", err)
		}
	}
	return errors.Join(errs...)
}

// --- Logging helpers ---

func (r *Reassembler) logDrop(chunk types.Chunk) {
	if r.logger == nil {
		return
	}
	r.logger.Warn("chunk dropped: unknown channel", map[string]any{
		"channel": chunk.Channel,
		"marker":  chunk.Marker.String(),
		"bytes":   len(chunk.Fragment),
	})
}

func (r *Reassembler) logRestart(channel string, discarded int) {
	if r.logger == nil {
		return
	}
	r.logger.Debug("start marker discarded unflushed buffer", map[string]any{
		"channel":         channel,
		"discarded_bytes": discarded,
	})
}

func (r *Reassembler) logSinkFailure(channel, emit string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error("sink emit failed", map[string]any{
		"channel": channel,
		"emit":    emit,
		"error":   err.Error(),
	})
}
