package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/stitchwork/stitch/cli/render"
	"github.com/stitchwork/stitch/cli/report"
	"github.com/stitchwork/stitch/log"
	"github.com/stitchwork/stitch/reassembly"
	"github.com/stitchwork/stitch/types"
)

// StatsCommand returns the stats command with subcommands.
// Stats replays a capture through the reassembler with recording sinks;
// nothing is delivered externally.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Compute reassembly statistics from a capture (read-only)",
		Subcommands: []*cli.Command{
			statsChannelsCommand(),
		},
	}
}

func statsChannelsCommand() *cli.Command {
	return &cli.Command{
		Name:      "channels",
		Usage:     "Per-channel reassembly outcome of a capture replay",
		ArgsUsage: "<capture-file>",
		Flags:     TUIReadOnlyFlags(),
		Action:    statsChannelsAction,
	}
}

func statsChannelsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("capture file required", 1)
	}
	input := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	in, closeInput, err := openInput(input)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = closeInput() }()

	capt, err := decodeCapture(in)
	if err != nil {
		return cli.Exit(fmt.Sprintf("decode failed: %v", err), 1)
	}

	rep := replayCapture(c.Context, input, capt)

	if c.Bool("tui") {
		return r.RenderTUI("stats_channels", rep)
	}

	return r.Render(rep)
}

// replayCapture feeds the capture's chunks through a reassembler with stub
// sinks and summarizes the result. Every channel in the capture gets a sink
// so no chunk is dropped as unknown.
func replayCapture(ctx context.Context, input string, capt *capture) *report.RunReport {
	logger := log.NewLogger(&types.SessionMeta{Input: input}).WithOutput(io.Discard)
	reassembler := reassembly.New(reassembly.Config{Logger: logger})

	seen := make(map[string]bool)
	for _, c := range capt.chunks {
		if !seen[c.Channel] {
			seen[c.Channel] = true
			reassembler.Register(c.Channel, &reassembly.StubSink{})
		}
	}

	for _, c := range capt.chunks {
		reassembler.Ingest(ctx, c)
	}

	stats := reassembler.Stats()
	rep := &report.RunReport{
		Input:          input,
		FramesRead:     int64(capt.frames),
		ChunksIngested: stats.ChunksReceived,
		UnknownDrops:   stats.UnknownChannelDrops,
		Payloads:       stats.PayloadsCompleted,
		BytesEmitted:   stats.BytesEmitted,
		SinkErrors:     stats.SinkErrors,
	}

	for _, name := range reassembler.Channels() {
		ch := stats.PerChannel[name]
		rep.Channels = append(rep.Channels, report.ChannelStats{
			Channel:           name,
			ChunksReceived:    ch.ChunksReceived,
			PayloadsCompleted: ch.PayloadsCompleted,
			BytesEmitted:      ch.BytesEmitted,
			BytesBuffered:     ch.BytesBuffered,
		})
	}

	return rep
}
