package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/stitchwork/stitch/cli/report"
	"github.com/stitchwork/stitch/types"
	"github.com/stitchwork/stitch/wire"
)

// capture is a fully decoded frame stream.
type capture struct {
	frames      int
	readyFrames int
	chunks      []types.Chunk
}

// openInput opens the given path, or stdin for "-".
// The returned closer is a no-op for stdin.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input %q: %w", path, err)
	}
	return f, f.Close, nil
}

// decodeCapture reads and decodes all frames from r.
// Decode errors abort: a length-prefixed stream has no resync point.
func decodeCapture(r io.Reader) (*capture, error) {
	dec := wire.NewFrameDecoder(r)
	capt := &capture{}

	for {
		payload, err := dec.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return capt, nil
			}
			return nil, fmt.Errorf("frame %d: %w", capt.frames, err)
		}
		capt.frames++

		decoded, err := wire.DecodeFrame(payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", capt.frames-1, err)
		}

		switch frame := decoded.(type) {
		case *types.ChunkFrame:
			capt.chunks = append(capt.chunks, types.Chunk{
				Channel:  frame.Channel,
				Marker:   types.Marker(frame.Marker),
				Fragment: frame.Fragment,
			})
		case *types.ReadyFrame:
			capt.readyFrames++
		default:
			return nil, fmt.Errorf("frame %d: unexpected frame type %T", capt.frames-1, decoded)
		}
	}
}

// buildInspectReport summarizes a decoded capture.
func buildInspectReport(input string, capt *capture) *report.InspectReport {
	rep := &report.InspectReport{
		Input:       input,
		Frames:      capt.frames,
		ReadyFrames: capt.readyFrames,
		Chunks:      make([]report.ChunkRecord, 0, len(capt.chunks)),
	}

	summaries := make(map[string]*report.ChannelSummary)
	for i, c := range capt.chunks {
		rep.Chunks = append(rep.Chunks, report.ChunkRecord{
			Index:   i,
			Channel: c.Channel,
			Marker:  c.Marker.String(),
			Bytes:   len(c.Fragment),
		})

		s, ok := summaries[c.Channel]
		if !ok {
			s = &report.ChannelSummary{Channel: c.Channel}
			summaries[c.Channel] = s
		}
		s.Chunks++
		s.Bytes += int64(len(c.Fragment))
		if c.Marker.IsEnd() {
			s.Payloads++
		}
	}

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rep.Channels = append(rep.Channels, *summaries[name])
	}

	return rep
}
