package bridge_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stitchwork/stitch/bridge"
	"github.com/stitchwork/stitch/log"
	"github.com/stitchwork/stitch/metrics"
	"github.com/stitchwork/stitch/reassembly"
	"github.com/stitchwork/stitch/types"
	"github.com/stitchwork/stitch/wire"
)

func testLogger() *log.Logger {
	return log.NewLogger(&types.SessionMeta{SessionID: "test"}).WithOutput(io.Discard)
}

func writeChunk(t *testing.T, buf *bytes.Buffer, channel string, marker int64, fragment string) {
	t.Helper()
	frame, err := wire.EncodeChunkFrame(&types.ChunkFrame{
		Channel:  channel,
		Marker:   marker,
		Fragment: fragment,
	})
	if err != nil {
		t.Fatalf("EncodeChunkFrame failed: %v", err)
	}
	buf.Write(frame)
}

func writeReady(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	frame, err := wire.EncodeReadyFrame()
	if err != nil {
		t.Fatalf("EncodeReadyFrame failed: %v", err)
	}
	buf.Write(frame)
}

func TestBridge_EndToEnd(t *testing.T) {
	var stream bytes.Buffer
	writeChunk(t, &stream, "image", 0, strings.Repeat("p", 2000))
	writeChunk(t, &stream, "image", 1, strings.Repeat("q", 4000))
	writeChunk(t, &stream, "image", -1, "")

	sink := reassembly.NewStubSink()
	r := reassembly.New(reassembly.Config{})
	r.Register("image", sink)
	collector := metrics.NewCollector("test", "-")

	b := bridge.New(&stream, r, testLogger(), collector, bridge.StartReady())
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := sink.PartialContent("image"); len(got) != 6000 {
		t.Errorf("reassembled %d bytes, want 6000", len(got))
	}
	if len(sink.Finals) != 1 {
		t.Errorf("got %d finals, want 1", len(sink.Finals))
	}
	if b.FramesRead() != 3 {
		t.Errorf("FramesRead = %d, want 3", b.FramesRead())
	}

	snap := collector.Snapshot()
	if snap.FramesRead != 3 {
		t.Errorf("collector FramesRead = %d, want 3", snap.FramesRead)
	}
	if snap.ChunksReceived != 3 {
		t.Errorf("collector ChunksReceived = %d, want 3 (absorbed at EOF)", snap.ChunksReceived)
	}
	if snap.PayloadsCompleted != 1 {
		t.Errorf("collector PayloadsCompleted = %d, want 1", snap.PayloadsCompleted)
	}
}

func TestBridge_WaitsForReadyFrame(t *testing.T) {
	var stream bytes.Buffer
	// Chunks before the ready frame are dropped.
	writeChunk(t, &stream, "image", 0, "early")
	writeReady(t, &stream)
	writeChunk(t, &stream, "image", 0, "late")

	sink := reassembly.NewStubSink()
	r := reassembly.New(reassembly.Config{})
	r.Register("image", sink)
	collector := metrics.NewCollector("test", "-")

	b := bridge.New(&stream, r, testLogger(), collector)
	if b.State() != bridge.StateWaiting {
		t.Fatalf("initial state = %s, want waiting", b.State())
	}

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if b.State() != bridge.StateReady {
		t.Errorf("final state = %s, want ready", b.State())
	}
	if b.WaitingDrops() != 1 {
		t.Errorf("WaitingDrops = %d, want 1", b.WaitingDrops())
	}
	// Only "late" reached the reassembler; it is below the small threshold,
	// so it was delivered as a complete payload.
	if got := sink.PartialContent("image"); got != "late" {
		t.Errorf("content = %q, want %q", got, "late")
	}

	snap := collector.Snapshot()
	if snap.ReadyReceived != 1 {
		t.Errorf("ReadyReceived = %d, want 1", snap.ReadyReceived)
	}
	if snap.WaitingDrops != 1 {
		t.Errorf("collector WaitingDrops = %d, want 1", snap.WaitingDrops)
	}
}

func TestBridge_CleanEOFOnEmptyStream(t *testing.T) {
	r := reassembly.New(reassembly.Config{})
	b := bridge.New(bytes.NewReader(nil), r, testLogger(), nil, bridge.StartReady())

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run on empty stream failed: %v", err)
	}
}

func TestBridge_TruncatedFrameIsStreamError(t *testing.T) {
	var stream bytes.Buffer
	writeChunk(t, &stream, "image", 0, "complete")
	full := stream.Bytes()
	truncated := full[:len(full)-2]

	r := reassembly.New(reassembly.Config{})
	r.Register("image", reassembly.NewStubSink())
	collector := metrics.NewCollector("test", "-")

	b := bridge.New(bytes.NewReader(truncated), r, testLogger(), collector)
	err := b.Run(context.Background())
	if err == nil {
		t.Fatal("expected stream error for truncated frame")
	}
	if !bridge.IsStreamError(err) {
		t.Errorf("expected stream error, got %v", err)
	}
	if collector.Snapshot().DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", collector.Snapshot().DecodeErrors)
	}
}

func TestBridge_UnknownFrameTypeIsStreamError(t *testing.T) {
	var stream bytes.Buffer
	frame, err := wire.EncodeChunkFrame(&types.ChunkFrame{Type: "bogus", Channel: "x"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	stream.Write(frame)

	r := reassembly.New(reassembly.Config{})
	b := bridge.New(&stream, r, testLogger(), nil, bridge.StartReady())

	err = b.Run(context.Background())
	if !bridge.IsStreamError(err) {
		t.Errorf("expected stream error, got %v", err)
	}
}

func TestBridge_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stream bytes.Buffer
	writeChunk(t, &stream, "image", 0, "x")

	r := reassembly.New(reassembly.Config{})
	b := bridge.New(&stream, r, testLogger(), nil, bridge.StartReady())

	err := b.Run(ctx)
	if !bridge.IsCanceledError(err) {
		t.Errorf("expected canceled error, got %v", err)
	}
}

func TestBridge_UnknownChannelDoesNotStopStream(t *testing.T) {
	var stream bytes.Buffer
	writeChunk(t, &stream, "video", 0, "v")
	writeChunk(t, &stream, "image", 0, "ok")

	sink := reassembly.NewStubSink()
	r := reassembly.New(reassembly.Config{})
	r.Register("image", sink)

	b := bridge.New(&stream, r, testLogger(), nil, bridge.StartReady())
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := sink.PartialContent("image"); got != "ok" {
		t.Errorf("content = %q, want %q", got, "ok")
	}
}

func TestBridge_SetReadyIdempotent(t *testing.T) {
	r := reassembly.New(reassembly.Config{})
	b := bridge.New(bytes.NewReader(nil), r, testLogger(), nil)

	b.SetReady()
	b.SetReady()
	if b.State() != bridge.StateReady {
		t.Errorf("state = %s, want ready", b.State())
	}
}
