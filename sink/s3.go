package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stitchwork/stitch/reassembly"
)

// S3Config configures the S3 sink.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3API is the subset of the S3 client the sink uses.
// Narrow interface so tests can inject a recording client.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each completed payload as one S3 object.
//
// Partials accumulate in memory per channel; the final emit uploads the
// assembled payload to <prefix>/<channel>/<n>.payload and clears the
// buffer. An empty payload (final with nothing accumulated) is skipped.
type S3Sink struct {
	config S3Config
	client s3API

	mu      sync.Mutex
	pending map[string]*strings.Builder // channel -> accumulated content
	seq     map[string]int              // channel -> next payload number
}

// NewS3Sink creates an S3 sink using the AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Sink(cfg, s3.NewFromConfig(awsConfig, s3Opts...)), nil
}

// newS3Sink creates an S3 sink with an injected client.
func newS3Sink(cfg S3Config, client s3API) *S3Sink {
	return &S3Sink{
		config:  cfg,
		client:  client,
		pending: make(map[string]*strings.Builder),
		seq:     make(map[string]int),
	}
}

// EmitPartial accumulates content for the channel's in-flight payload.
func (s *S3Sink) EmitPartial(_ context.Context, channel, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.pending[channel]
	if !ok {
		buf = &strings.Builder{}
		s.pending[channel] = buf
	}
	buf.WriteString(content)
	return nil
}

// EmitFinal uploads the accumulated payload as a single object.
func (s *S3Sink) EmitFinal(ctx context.Context, channel, _ string) error {
	s.mu.Lock()
	buf, ok := s.pending[channel]
	if !ok || buf.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	content := buf.String()
	buf.Reset()
	n := s.seq[channel]
	s.seq[channel] = n + 1
	s.mu.Unlock()

	key := s.objectKey(channel, n)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
		Body:   strings.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("s3 sink: put %s: %w", key, err)
	}
	return nil
}

// Close discards any incomplete payloads.
func (s *S3Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*strings.Builder)
	return nil
}

// objectKey computes the object key for a payload.
// Format: <prefix>/<channel>/<n>.payload (prefix omitted when empty).
func (s *S3Sink) objectKey(channel string, n int) string {
	key := fmt.Sprintf("%s/%d.payload", sanitize(channel), n)
	if s.config.Prefix != "" {
		key = strings.TrimSuffix(s.config.Prefix, "/") + "/" + key
	}
	return key
}

// Verify S3Sink implements reassembly.Sink.
var _ reassembly.Sink = (*S3Sink)(nil)
