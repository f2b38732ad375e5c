package reassembly_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stitchwork/stitch/metrics"
	"github.com/stitchwork/stitch/reassembly"
)

func TestInstrumentedSink_RecordsSuccess(t *testing.T) {
	inner := reassembly.NewStubSink()
	collector := metrics.NewCollector("sess-1", "capture.bin")
	sink := reassembly.NewInstrumentedSink(inner, collector)

	if err := sink.EmitPartial(context.Background(), "image", "abc"); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := sink.EmitFinal(context.Background(), "image", ""); err != nil {
		t.Fatalf("EmitFinal failed: %v", err)
	}

	snap := collector.Snapshot()
	if snap.EmitSuccess != 2 {
		t.Errorf("EmitSuccess = %d, want 2", snap.EmitSuccess)
	}
	if snap.EmitFailure != 0 {
		t.Errorf("EmitFailure = %d, want 0", snap.EmitFailure)
	}
	if len(inner.EmitOrder) != 2 {
		t.Errorf("inner sink saw %d emits, want 2", len(inner.EmitOrder))
	}
}

func TestInstrumentedSink_RecordsFailure(t *testing.T) {
	inner := reassembly.NewStubSink()
	inner.ErrorOnEmit = errors.New("down")
	collector := metrics.NewCollector("sess-1", "capture.bin")
	sink := reassembly.NewInstrumentedSink(inner, collector)

	if err := sink.EmitPartial(context.Background(), "image", "abc"); err == nil {
		t.Fatal("expected error from inner sink")
	}
	if err := sink.EmitFinal(context.Background(), "image", ""); err == nil {
		t.Fatal("expected error from inner sink")
	}

	snap := collector.Snapshot()
	if snap.EmitFailure != 2 {
		t.Errorf("EmitFailure = %d, want 2", snap.EmitFailure)
	}
	if snap.EmitSuccess != 0 {
		t.Errorf("EmitSuccess = %d, want 0", snap.EmitSuccess)
	}
}

func TestInstrumentedSink_CloseDelegates(t *testing.T) {
	inner := reassembly.NewStubSink()
	sink := reassembly.NewInstrumentedSink(inner, metrics.NewCollector("s", "i"))

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !inner.Closed {
		t.Error("inner sink not closed")
	}
}
