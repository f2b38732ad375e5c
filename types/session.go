package types

// SessionMeta identifies a single bridge session.
// All log entries and metrics carry these fields.
type SessionMeta struct {
	// SessionID is the caller-assigned session identifier.
	SessionID string
	// Input names the frame source ("-" for stdin, otherwise a path).
	Input string
}
