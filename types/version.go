package types

// Version is the canonical project version.
// The CLI and the frame protocol share this version; protocol docs must
// reference this constant.
const Version = "0.2.0"
