package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/stitchwork/stitch/bridge"
	"github.com/stitchwork/stitch/cli/config"
	"github.com/stitchwork/stitch/log"
	"github.com/stitchwork/stitch/metrics"
	"github.com/stitchwork/stitch/reassembly"
	"github.com/stitchwork/stitch/sink"
	"github.com/stitchwork/stitch/types"
)

// Exit codes for the run command.
const (
	exitSuccess     = 0
	exitStreamError = 1
	exitConfigError = 2
)

// RunCommand returns the run command.
// This is the only command that executes work; everything else is read-only.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reassemble a chunk stream into payloads delivered to sinks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "Frame stream source: file path or - for stdin",
				Value: "-",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to stitch.yaml config file",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session identifier for logs and metrics",
			},
			&cli.IntFlag{
				Name:  "small-threshold",
				Usage: "Single-chunk payload cutoff in bytes (0 = default)",
			},
			&cli.IntFlag{
				Name:  "flush-threshold",
				Usage: "Streaming flush threshold in bytes (0 = default)",
			},
			// Shorthand for file-only setups without a config file
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for file sinks (shorthand, with --channels)",
			},
			&cli.StringSliceFlag{
				Name:  "channels",
				Usage: "Channel names to register file sinks for (with --output-dir)",
			},
			&cli.BoolFlag{
				Name:  "start-ready",
				Usage: "Skip the readiness handshake (capture playback)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the run summary",
			},
		},
		Action: runAction,
	}
}

// runSettings is the merged run configuration: config file values
// overridden by CLI flags.
type runSettings struct {
	input          string
	sessionID      string
	smallThreshold int
	flushThreshold int
	startReady     bool
	channels       map[string]config.ChannelConfig
}

func runAction(c *cli.Context) error {
	settings, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfigError)
	}

	meta := &types.SessionMeta{
		SessionID: settings.sessionID,
		Input:     settings.input,
	}
	logger := log.NewLogger(meta)
	collector := metrics.NewCollector(settings.sessionID, settings.input)

	reassembler := reassembly.New(reassembly.Config{
		SmallThreshold: settings.smallThreshold,
		FlushThreshold: settings.flushThreshold,
		Logger:         logger,
	})
	defer func() { _ = reassembler.Close() }()

	if err := registerSinks(c.Context, reassembler, collector, settings.channels); err != nil {
		return cli.Exit(fmt.Sprintf("sink setup failed: %v", err), exitConfigError)
	}

	in, closeInput, err := openInput(settings.input)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer func() { _ = closeInput() }()

	var opts []bridge.Option
	if settings.startReady {
		opts = append(opts, bridge.StartReady())
	}
	b := bridge.New(in, reassembler, logger, collector, opts...)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	runErr := b.Run(ctx)

	if !c.Bool("quiet") {
		printRunSummary(b, reassembler, collector)
	}

	switch {
	case runErr == nil:
		return nil
	case bridge.IsCanceledError(runErr):
		return cli.Exit("interrupted", exitStreamError)
	default:
		return cli.Exit(fmt.Sprintf("stream failed: %v", runErr), exitStreamError)
	}
}

// resolveSettings loads the config file (if any) and applies flag overrides.
func resolveSettings(c *cli.Context) (*runSettings, error) {
	settings := &runSettings{
		input: "-",
	}

	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if cfg.Input != "" {
			settings.input = cfg.Input
		}
		settings.sessionID = cfg.SessionID
		settings.smallThreshold = cfg.SmallThreshold
		settings.flushThreshold = cfg.FlushThreshold
		settings.startReady = cfg.StartReady
		settings.channels = cfg.Channels
	}

	// Flags override config values
	if c.IsSet("input") {
		settings.input = c.String("input")
	}
	if c.IsSet("session-id") {
		settings.sessionID = c.String("session-id")
	}
	if c.IsSet("small-threshold") {
		settings.smallThreshold = c.Int("small-threshold")
	}
	if c.IsSet("flush-threshold") {
		settings.flushThreshold = c.Int("flush-threshold")
	}
	if c.Bool("start-ready") {
		settings.startReady = true
	}

	// Shorthand: --output-dir with --channels registers file sinks
	if dir := c.String("output-dir"); dir != "" {
		names := c.StringSlice("channels")
		if len(names) == 0 {
			return nil, fmt.Errorf("--output-dir requires --channels")
		}
		if settings.channels == nil {
			settings.channels = make(map[string]config.ChannelConfig)
		}
		for _, name := range names {
			settings.channels[name] = config.ChannelConfig{
				Sink: config.SinkFile,
				Path: dir,
			}
		}
	}

	if len(settings.channels) == 0 {
		return nil, fmt.Errorf("no channels configured (use --config or --output-dir with --channels)")
	}

	return settings, nil
}

// registerSinks builds one sink per channel and registers it, wrapped with
// metrics instrumentation.
func registerSinks(ctx context.Context, r *reassembly.Reassembler, collector *metrics.Collector, channels map[string]config.ChannelConfig) error {
	cfg := &config.Config{Channels: channels}
	for _, name := range cfg.ChannelNames() {
		s, err := buildSink(ctx, channels[name])
		if err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
		r.Register(name, reassembly.NewInstrumentedSink(s, collector))
	}
	return nil
}

// buildSink constructs a sink from channel configuration.
func buildSink(ctx context.Context, ch config.ChannelConfig) (reassembly.Sink, error) {
	switch ch.Sink {
	case config.SinkFile:
		return sink.NewFileSink(ch.Path)

	case config.SinkWebhook:
		cfg := sink.WebhookConfig{
			URL:     ch.URL,
			Headers: ch.Headers,
			Timeout: ch.Timeout.Duration,
		}
		if ch.Retries != nil {
			cfg.Retries = *ch.Retries
		}
		return sink.NewWebhookSink(cfg)

	case config.SinkRedis:
		cfg := sink.RedisConfig{
			URL:     ch.URL,
			Prefix:  ch.Prefix,
			Timeout: ch.Timeout.Duration,
		}
		if ch.Retries != nil {
			cfg.Retries = *ch.Retries
		}
		return sink.NewRedisSink(cfg)

	case config.SinkS3:
		return sink.NewS3Sink(ctx, sink.S3Config{
			Bucket:       ch.Bucket,
			Prefix:       ch.Prefix,
			Region:       ch.Region,
			Endpoint:     ch.Endpoint,
			UsePathStyle: ch.S3PathStyle,
		})

	default:
		return nil, fmt.Errorf("unknown sink type: %s", ch.Sink)
	}
}

func printRunSummary(b *bridge.Bridge, r *reassembly.Reassembler, collector *metrics.Collector) {
	stats := r.Stats()
	snap := collector.Snapshot()

	fmt.Printf("\nframes=%d, chunks=%d, payloads=%d, bytes=%d\n",
		b.FramesRead(),
		stats.ChunksReceived,
		stats.PayloadsCompleted,
		stats.BytesEmitted,
	)
	if stats.UnknownChannelDrops > 0 || b.WaitingDrops() > 0 {
		fmt.Printf("dropped: unknown_channel=%d, waiting=%d\n",
			stats.UnknownChannelDrops, b.WaitingDrops())
	}
	if stats.SinkErrors > 0 {
		fmt.Printf("sink_errors=%d (emit failures=%d)\n",
			stats.SinkErrors, snap.EmitFailure)
	}

	fmt.Printf("\n=== Channels ===\n")
	for _, name := range r.Channels() {
		ch := stats.PerChannel[name]
		fmt.Printf("%-16s chunks=%d payloads=%d bytes=%d", name,
			ch.ChunksReceived, ch.PayloadsCompleted, ch.BytesEmitted)
		if ch.BytesBuffered > 0 {
			fmt.Printf(" buffered=%d", ch.BytesBuffered)
		}
		fmt.Printf("\n")
	}
}
