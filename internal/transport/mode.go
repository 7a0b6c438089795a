// Package transport holds the client side of the assistant chat protocol: the ordered endpoint
// candidates, the platform capability profile, the frame codec and the three ways of reaching the
// assistant (server-push stream, chunked POST stream and single-shot request).
package transport

// Mode identifies how an attempt talks to the assistant. Exactly one is active per attempt.
type Mode int

const (
	// ModeServerPush is a GET-initiated event stream with automatic reconnection disabled.
	ModeServerPush Mode = iota + 1
	// ModeChunkedPost is a POST whose response body is read incrementally.
	ModeChunkedPost
	// ModeSingleShot is a buffered POST that answers with one JSON object.
	ModeSingleShot
)

func (m Mode) String() string {
	switch m {
	case ModeServerPush:
		return "server_push"
	case ModeChunkedPost:
		return "chunked_post"
	case ModeSingleShot:
		return "single_shot"
	default:
		return "unknown"
	}
}

// Streaming reports whether the mode delivers content incrementally.
func (m Mode) Streaming() bool {
	return m == ModeServerPush || m == ModeChunkedPost
}
