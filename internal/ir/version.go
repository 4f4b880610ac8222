package ir

// Version constants reported by the CLI and stamped into the store.
const (
	// ValueVersion is the version of the value encoding stored in components.
	ValueVersion = "1"

	// ClientVersion is the rlchess client version.
	ClientVersion = "0.1.0"
)
