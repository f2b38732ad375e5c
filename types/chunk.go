//nolint:revive // types is a common Go package naming convention
package types

// Marker encodes a chunk's position within its channel's payload stream.
// The numeric convention is fixed by the sender protocol: 0 marks the first
// chunk, -1 marks the last, and any other value is a continuation.
type Marker int64

// Marker values per the sender protocol.
const (
	// MarkerStart is the first chunk of a payload.
	MarkerStart Marker = 0
	// MarkerEnd is the end-of-payload marker.
	MarkerEnd Marker = -1
)

// IsStart returns true if this marker opens a new payload.
func (m Marker) IsStart() bool {
	return m == MarkerStart
}

// IsEnd returns true if this marker closes the current payload.
func (m Marker) IsEnd() bool {
	return m == MarkerEnd
}

// IsMiddle returns true for continuation markers (anything not start or end).
func (m Marker) IsMiddle() bool {
	return m != MarkerStart && m != MarkerEnd
}

// String returns the marker kind for logging and rendering.
func (m Marker) String() string {
	switch {
	case m.IsStart():
		return "start"
	case m.IsEnd():
		return "end"
	default:
		return "middle"
	}
}

// ChunkFrame is the wire representation of a chunk frame.
// Discriminated from control frames by Type == "chunk".
type ChunkFrame struct {
	// Type is always "chunk" for chunk frames.
	Type string `msgpack:"type"`
	// Channel selects the logical payload stream (e.g. "image", "audio").
	Channel string `msgpack:"channel"`
	// Marker is the raw numeric position marker (0 start, -1 end).
	Marker int64 `msgpack:"marker"`
	// Fragment is the payload fragment to append. A missing fragment
	// decodes to the empty string and is appended as such.
	Fragment string `msgpack:"fragment"`
}

// ReadyFrame is the control frame signaling that the downstream consumer
// is ready to accept payloads. Carries no payload beyond its discriminant.
type ReadyFrame struct {
	// Type is always "ready" for ready frames.
	Type string `msgpack:"type"`
}

// Chunk is the internal representation of a chunk (after decoding).
type Chunk struct {
	Channel  string
	Marker   Marker
	Fragment string
}
