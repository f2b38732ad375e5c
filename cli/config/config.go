package config

import (
	"fmt"
	"sort"
	"time"
)

// Sink type names accepted in channel configuration.
const (
	SinkFile    = "file"
	SinkWebhook = "webhook"
	SinkRedis   = "redis"
	SinkS3      = "s3"
)

// Config represents a stitch.yaml configuration file.
// All top-level values are optional and act as defaults for stitch run
// flags. CLI flags always override config values.
type Config struct {
	SessionID      string                   `yaml:"session_id"`
	Input          string                   `yaml:"input"`
	SmallThreshold int                      `yaml:"small_threshold"`
	FlushThreshold int                      `yaml:"flush_threshold"`
	StartReady     bool                     `yaml:"start_ready"`
	Channels       map[string]ChannelConfig `yaml:"channels"`
}

// ChannelConfig binds one payload channel to a sink.
// The channel name is derived from the map key, not stored in the struct.
// Which fields apply depends on Sink:
//
//	file:    path
//	webhook: url, headers, timeout, retries
//	redis:   url, prefix, timeout, retries
//	s3:      bucket, prefix, region, endpoint, s3_path_style
type ChannelConfig struct {
	Sink        string            `yaml:"sink"`
	Path        string            `yaml:"path,omitempty"`
	URL         string            `yaml:"url,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Timeout     Duration          `yaml:"timeout,omitempty"`
	Retries     *int              `yaml:"retries,omitempty"`
	Prefix      string            `yaml:"prefix,omitempty"`
	Bucket      string            `yaml:"bucket,omitempty"`
	Region      string            `yaml:"region,omitempty"`
	Endpoint    string            `yaml:"endpoint,omitempty"`
	S3PathStyle bool              `yaml:"s3_path_style,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ChannelNames returns the configured channel names in sorted order.
// Sorting ensures deterministic sink registration and log output.
func (c *Config) ChannelNames() []string {
	if len(c.Channels) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks threshold sanity and per-channel sink requirements.
func (c *Config) Validate() error {
	if c.SmallThreshold < 0 {
		return fmt.Errorf("small_threshold must be >= 0, got %d", c.SmallThreshold)
	}
	if c.FlushThreshold < 0 {
		return fmt.Errorf("flush_threshold must be >= 0, got %d", c.FlushThreshold)
	}

	for _, name := range c.ChannelNames() {
		ch := c.Channels[name]
		switch ch.Sink {
		case SinkFile:
			if ch.Path == "" {
				return fmt.Errorf("channel %q: file sink requires path", name)
			}
		case SinkWebhook:
			if ch.URL == "" {
				return fmt.Errorf("channel %q: webhook sink requires url", name)
			}
		case SinkRedis:
			if ch.URL == "" {
				return fmt.Errorf("channel %q: redis sink requires url", name)
			}
		case SinkS3:
			if ch.Bucket == "" {
				return fmt.Errorf("channel %q: s3 sink requires bucket", name)
			}
		case "":
			return fmt.Errorf("channel %q: sink type is required", name)
		default:
			return fmt.Errorf("channel %q: unknown sink type %q", name, ch.Sink)
		}
	}
	return nil
}
