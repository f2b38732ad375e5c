// Package bridge runs the frame ingestion loop between a transport stream
// and the reassembler.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stitchwork/stitch/log"
	"github.com/stitchwork/stitch/metrics"
	"github.com/stitchwork/stitch/reassembly"
	"github.com/stitchwork/stitch/types"
	"github.com/stitchwork/stitch/wire"
)

// State is the bridge readiness state. It replaces the ambient "is the
// consumer still loading" check with an explicit field: chunks are only
// routed to the reassembler once the bridge is ready.
type State int

const (
	// StateWaiting means the downstream consumer has not signaled readiness;
	// chunk frames are counted and dropped.
	StateWaiting State = iota
	// StateReady means chunk frames are routed to the reassembler.
	StateReady
)

// String returns the state name for logging and rendering.
func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "waiting"
}

// ErrorKind classifies bridge errors.
type ErrorKind int

const (
	// ErrorStream indicates a frame/stream error (corrupt or truncated input).
	ErrorStream ErrorKind = iota
	// ErrorCanceled indicates context cancellation.
	ErrorCanceled
)

// Error classifies a fatal bridge failure for exit-code determination.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a frame/stream error.
func IsStreamError(err error) bool {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Kind == ErrorStream
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Kind == ErrorCanceled
	}
	return false
}

// Bridge reads frames from a transport stream and feeds chunks to the
// reassembler in delivery order. Single-goroutine: Run owns all state.
//
// Frames are ingested strictly in stream order; there is no sequence-number
// validation, so an out-of-order transport silently corrupts payloads.
type Bridge struct {
	decoder     *wire.FrameDecoder
	reassembler *reassembly.Reassembler
	logger      *log.Logger
	collector   *metrics.Collector

	state        State
	framesRead   int64
	waitingDrops int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// StartReady starts the bridge in StateReady, skipping the readiness
// handshake. Used for capture playback where no live consumer exists.
func StartReady() Option {
	return func(b *Bridge) {
		b.state = StateReady
	}
}

// New creates a bridge reading frames from r.
func New(r io.Reader, reassembler *reassembly.Reassembler, logger *log.Logger, collector *metrics.Collector, opts ...Option) *Bridge {
	b := &Bridge{
		decoder:     wire.NewFrameDecoder(r),
		reassembler: reassembler,
		logger:      logger,
		collector:   collector,
		state:       StateWaiting,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current readiness state.
func (b *Bridge) State() State {
	return b.state
}

// SetReady flips the bridge to StateReady. Normally driven by a ready
// control frame; exposed for hosts that learn readiness out-of-band.
func (b *Bridge) SetReady() {
	if b.state == StateReady {
		return
	}
	b.state = StateReady
	b.logger.Info("bridge ready", map[string]any{
		"dropped_while_waiting": b.waitingDrops,
	})
}

// Run runs the ingestion loop until EOF or a fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *Error with Kind=ErrorStream: frame/stream error
//   - *Error with Kind=ErrorCanceled: context canceled
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &Error{Kind: ErrorCanceled, Err: ctx.Err()}
		default:
		}

		payload, err := b.decoder.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				b.finish()
				return nil
			}
			b.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			b.collector.IncDecodeError()
			return &Error{
				Kind: ErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}

		b.framesRead++
		b.collector.IncFrameRead()

		if err := b.processFrame(ctx, payload); err != nil {
			return err
		}
	}
}

// processFrame decodes and dispatches a single frame.
func (b *Bridge) processFrame(ctx context.Context, payload []byte) error {
	decoded, err := wire.DecodeFrame(payload)
	if err != nil {
		b.logger.Error("frame decode error", map[string]any{
			"error": err.Error(),
		})
		b.collector.IncDecodeError()
		// Decode errors are stream errors: the stream has no resync point.
		return &Error{
			Kind: ErrorStream,
			Err:  fmt.Errorf("frame decode error: %w", err),
		}
	}

	switch frame := decoded.(type) {
	case *types.ChunkFrame:
		b.processChunk(ctx, frame)
		return nil
	case *types.ReadyFrame:
		b.collector.IncReadyReceived()
		b.SetReady()
		return nil
	default:
		return &Error{
			Kind: ErrorStream,
			Err:  fmt.Errorf("unexpected frame type: %T", decoded),
		}
	}
}

// processChunk routes a chunk frame to the reassembler, or drops it while
// the bridge is still waiting for readiness.
func (b *Bridge) processChunk(ctx context.Context, frame *types.ChunkFrame) {
	if b.state != StateReady {
		b.waitingDrops++
		b.collector.IncWaitingDrop()
		b.logger.Debug("chunk dropped: bridge not ready", map[string]any{
			"channel": frame.Channel,
			"marker":  types.Marker(frame.Marker).String(),
		})
		return
	}

	b.reassembler.Ingest(ctx, types.Chunk{
		Channel:  frame.Channel,
		Marker:   types.Marker(frame.Marker),
		Fragment: frame.Fragment,
	})
}

// FramesRead returns the number of frames read so far.
func (b *Bridge) FramesRead() int64 {
	return b.framesRead
}

// WaitingDrops returns the number of chunks dropped before readiness.
func (b *Bridge) WaitingDrops() int64 {
	return b.waitingDrops
}

// finish absorbs final reassembly stats into the collector on clean EOF.
func (b *Bridge) finish() {
	stats := b.reassembler.Stats()
	b.collector.AbsorbReassemblyStats(
		stats.ChunksReceived,
		stats.UnknownChannelDrops,
		stats.Flushes,
		stats.PayloadsCompleted,
		stats.BytesEmitted,
		stats.SinkErrors,
	)
	b.logger.Info("stream ended", map[string]any{
		"frames":   b.framesRead,
		"chunks":   stats.ChunksReceived,
		"payloads": stats.PayloadsCompleted,
	})
}
