package livesync

// ChannelState is the lifecycle state of one stream channel.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateOpen
	StateDegraded
	StateReconnecting
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Streaming reports whether streamed messages are currently authoritative.
// Degraded keeps the socket open but the supervisor prefers the pull channel.
func (s ChannelState) Streaming() bool {
	return s == StateOpen
}
