// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single bridge session. It is
// a leaf package with no internal dependencies. Reassembly counters are
// absorbed from reassembly stats at session completion rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Transport
	FramesRead    int64
	DecodeErrors  int64
	ReadyReceived int64
	WaitingDrops  int64

	// Reassembly (absorbed from reassembly stats at session completion)
	ChunksReceived      int64
	UnknownChannelDrops int64
	Flushes             int64
	PayloadsCompleted   int64
	BytesEmitted        int64
	SinkErrors          int64

	// Sink delivery (per-call, recorded live by InstrumentedSink)
	EmitSuccess int64
	EmitFailure int64

	// Dimensions (informational, set at construction)
	SessionID string
	Input     string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	// Transport
	framesRead    int64
	decodeErrors  int64
	readyReceived int64
	waitingDrops  int64

	// Sink delivery
	emitSuccess int64
	emitFailure int64

	// Reassembly (set once via AbsorbReassemblyStats)
	chunksReceived      int64
	unknownChannelDrops int64
	flushes             int64
	payloadsCompleted   int64
	bytesEmitted        int64
	sinkErrors          int64

	// Dimensions
	sessionID string
	input     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, input string) *Collector {
	return &Collector{
		sessionID: sessionID,
		input:     input,
	}
}

// --- Transport ---

// IncFrameRead records a frame read from the transport.
func (c *Collector) IncFrameRead() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesRead++
	c.mu.Unlock()
}

// IncDecodeError records a frame decode error.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// IncReadyReceived records a ready control frame.
func (c *Collector) IncReadyReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.readyReceived++
	c.mu.Unlock()
}

// IncWaitingDrop records a chunk dropped because the bridge was not ready.
func (c *Collector) IncWaitingDrop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.waitingDrops++
	c.mu.Unlock()
}

// --- Sink delivery ---
// Emit counters are per-call: one EmitPartial with N bytes counts as 1
// success. Byte granularity is tracked separately by reassembly stats.

// IncEmitSuccess records a successful sink emit (per-call).
func (c *Collector) IncEmitSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitSuccess++
	c.mu.Unlock()
}

// IncEmitFailure records a failed sink emit (per-call).
func (c *Collector) IncEmitFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitFailure++
	c.mu.Unlock()
}

// --- Reassembly (absorbed) ---

// AbsorbReassemblyStats copies reassembly counters into the collector.
// Called once after the session ends with the final stats snapshot.
// Plain int64 parameters keep this package free of internal dependencies.
func (c *Collector) AbsorbReassemblyStats(chunks, unknownDrops, flushes, payloads, bytes, sinkErrors int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksReceived = chunks
	c.unknownChannelDrops = unknownDrops
	c.flushes = flushes
	c.payloadsCompleted = payloads
	c.bytesEmitted = bytes
	c.sinkErrors = sinkErrors
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FramesRead:    c.framesRead,
		DecodeErrors:  c.decodeErrors,
		ReadyReceived: c.readyReceived,
		WaitingDrops:  c.waitingDrops,

		ChunksReceived:      c.chunksReceived,
		UnknownChannelDrops: c.unknownChannelDrops,
		Flushes:             c.flushes,
		PayloadsCompleted:   c.payloadsCompleted,
		BytesEmitted:        c.bytesEmitted,
		SinkErrors:          c.sinkErrors,

		EmitSuccess: c.emitSuccess,
		EmitFailure: c.emitFailure,

		SessionID: c.sessionID,
		Input:     c.input,
	}
}
