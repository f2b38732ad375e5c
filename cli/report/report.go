// Package report defines the response payloads shared by the stitch CLI
// commands, the renderer, and the TUI. TUI and non-TUI output render the
// same payloads.
package report

// ChunkRecord describes one decoded chunk frame in a capture.
type ChunkRecord struct {
	Index   int    `json:"index"`
	Channel string `json:"channel"`
	Marker  string `json:"marker"`
	Bytes   int    `json:"bytes"`
}

// ChannelSummary aggregates the chunks seen for one channel in a capture.
type ChannelSummary struct {
	Channel  string `json:"channel"`
	Chunks   int    `json:"chunks"`
	Payloads int    `json:"payloads"`
	Bytes    int64  `json:"bytes"`
}

// InspectReport is the full decode of a capture file.
type InspectReport struct {
	Input       string           `json:"input"`
	Frames      int              `json:"frames"`
	ReadyFrames int              `json:"ready_frames"`
	Chunks      []ChunkRecord    `json:"chunks"`
	Channels    []ChannelSummary `json:"channels"`
}

// ChannelStats is the per-channel outcome of a reassembly run.
type ChannelStats struct {
	Channel           string `json:"channel"`
	ChunksReceived    int64  `json:"chunks_received"`
	PayloadsCompleted int64  `json:"payloads_completed"`
	BytesEmitted      int64  `json:"bytes_emitted"`
	BytesBuffered     int64  `json:"bytes_buffered"`
}

// RunReport summarizes a completed reassembly run.
type RunReport struct {
	SessionID      string         `json:"session_id"`
	Input          string         `json:"input"`
	FramesRead     int64          `json:"frames_read"`
	ChunksIngested int64          `json:"chunks_ingested"`
	UnknownDrops   int64          `json:"unknown_drops"`
	WaitingDrops   int64          `json:"waiting_drops"`
	Payloads       int64          `json:"payloads"`
	BytesEmitted   int64          `json:"bytes_emitted"`
	SinkErrors     int64          `json:"sink_errors"`
	Channels       []ChannelStats `json:"channels"`
}
