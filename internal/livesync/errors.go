package livesync

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError means the connection was never established or dropped
// unexpectedly, or a pull request got no response at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means a payload was received but is not well-formed.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProtocolError means a well-formed response carried application-level errors.
type ProtocolError struct {
	Messages []string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + strings.Join(e.Messages, "; ")
}

// ErrStaleData marks a response that is older than already-applied data.
// It is dropped silently, never surfaced to consumers.
var ErrStaleData = errors.New("stale data discarded")

var errNoData = errors.New("response carried no data")
