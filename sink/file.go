// Package sink provides production sink implementations for reassembled
// payloads: local files, HTTP webhooks, Redis pub/sub, and S3 objects.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stitchwork/stitch/reassembly"
)

// FileSink writes payloads to a directory, one file per completed payload.
//
// Partials append to <dir>/<channel>.partial; a final emit rotates the
// partial file to <dir>/<channel>-<n>.payload. Final content is treated as
// a completion signal only: in the single-chunk path the preceding partial
// already carried the full content, so re-appending it would duplicate data.
type FileSink struct {
	dir string

	mu   sync.Mutex
	open map[string]*os.File // channel -> partial file
	seq  map[string]int      // channel -> next payload number
}

// NewFileSink creates a file sink writing under dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("file sink requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create directory: %w", err)
	}
	return &FileSink{
		dir:  dir,
		open: make(map[string]*os.File),
		seq:  make(map[string]int),
	}, nil
}

// EmitPartial appends content to the channel's partial file.
func (s *FileSink) EmitPartial(_ context.Context, channel, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.partialFile(channel)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("file sink: append %s: %w", channel, err)
	}
	return nil
}

// EmitFinal rotates the channel's partial file to its payload name.
// A final with no open partial file (nothing was ever flushed) is a no-op.
func (s *FileSink) EmitFinal(_ context.Context, channel, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.open[channel]
	if !ok {
		return nil
	}
	delete(s.open, channel)

	if err := f.Close(); err != nil {
		return fmt.Errorf("file sink: close %s: %w", channel, err)
	}

	n := s.seq[channel]
	s.seq[channel] = n + 1
	final := filepath.Join(s.dir, fmt.Sprintf("%s-%d.payload", sanitize(channel), n))
	if err := os.Rename(s.partialPath(channel), final); err != nil {
		return fmt.Errorf("file sink: rotate %s: %w", channel, err)
	}
	return nil
}

// Close closes any open partial files, leaving them in place for inspection.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for channel, f := range s.open {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("file sink: close %s: %w", channel, err))
		}
		delete(s.open, channel)
	}
	return errors.Join(errs...)
}

// partialFile returns the channel's partial file, opening it lazily.
// Caller must hold mu.
func (s *FileSink) partialFile(channel string) (*os.File, error) {
	if f, ok := s.open[channel]; ok {
		return f, nil
	}
	f, err := os.OpenFile(s.partialPath(channel), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", channel, err)
	}
	s.open[channel] = f
	return f, nil
}

func (s *FileSink) partialPath(channel string) string {
	return filepath.Join(s.dir, sanitize(channel)+".partial")
}

// sanitize strips path separators from channel names so a hostile channel
// cannot escape the sink directory.
func sanitize(channel string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return replacer.Replace(channel)
}

// Verify FileSink implements reassembly.Sink.
var _ reassembly.Sink = (*FileSink)(nil)
