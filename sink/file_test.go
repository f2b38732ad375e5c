package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stitchwork/stitch/iox"
)

func TestFileSink_PartialThenFinalRotates(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))

	if err := s.EmitPartial(context.Background(), "image", "hello "); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := s.EmitPartial(context.Background(), "image", "world"); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := s.EmitFinal(context.Background(), "image", ""); err != nil {
		t.Fatalf("EmitFinal failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "image-0.payload"))
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("payload = %q, want %q", data, "hello world")
	}

	if _, err := os.Stat(filepath.Join(dir, "image.partial")); !os.IsNotExist(err) {
		t.Error("partial file should be gone after rotation")
	}
}

func TestFileSink_SequentialPayloads(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))

	for i, content := range []string{"first", "second"} {
		if err := s.EmitPartial(context.Background(), "audio", content); err != nil {
			t.Fatalf("EmitPartial %d failed: %v", i, err)
		}
		if err := s.EmitFinal(context.Background(), "audio", ""); err != nil {
			t.Fatalf("EmitFinal %d failed: %v", i, err)
		}
	}

	for i, want := range []string{"first", "second"} {
		path := filepath.Join(dir, fmt.Sprintf("audio-%d.payload", i))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read payload %d: %v", i, err)
		}
		if string(data) != want {
			t.Errorf("payload %d = %q, want %q", i, data, want)
		}
	}
}

func TestFileSink_FinalDuplicateContentNotReappended(t *testing.T) {
	// Single-chunk path: partial and final both carry the full content.
	// The sink must not write the final content again.
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))

	if err := s.EmitPartial(context.Background(), "image", "x"); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := s.EmitFinal(context.Background(), "image", "x"); err != nil {
		t.Fatalf("EmitFinal failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "image-0.payload"))
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(data) != "x" {
		t.Errorf("payload = %q, want %q", data, "x")
	}
}

func TestFileSink_FinalWithoutPartialIsNoop(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))

	if err := s.EmitFinal(context.Background(), "image", ""); err != nil {
		t.Fatalf("EmitFinal failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir, found %d entries", len(entries))
	}
}

func TestFileSink_SanitizesChannelNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))

	if err := s.EmitPartial(context.Background(), "../evil", "x"); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := s.EmitFinal(context.Background(), "../evil", ""); err != nil {
		t.Fatalf("EmitFinal failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil-0.payload")); !os.IsNotExist(err) {
		t.Error("channel name escaped the sink directory")
	}
}

func TestFileSink_RequiresDirectory(t *testing.T) {
	if _, err := NewFileSink(""); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestFileSink_CloseLeavesPartialInPlace(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	if err := s.EmitPartial(context.Background(), "image", "incomplete"); err != nil {
		t.Fatalf("EmitPartial failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "image.partial"))
	if err != nil {
		t.Fatalf("partial file missing after close: %v", err)
	}
	if string(data) != "incomplete" {
		t.Errorf("partial = %q, want %q", data, "incomplete")
	}
}
