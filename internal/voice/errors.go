package voice

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaAccess means the local audio input could not be acquired
	// (missing device/file or permission). Session start aborts; the
	// process keeps running.
	ErrMediaAccess = errors.New("local audio unavailable")

	// ErrNegotiation means a description exchange step failed. The affected
	// link is marked Failed; the rest of the mesh is untouched.
	ErrNegotiation = errors.New("negotiation failed")

	// ErrSignalingSend means a signaling emit failed. Logged, no retry.
	ErrSignalingSend = errors.New("signaling send failed")

	// ErrSessionInactive means an operation needed an active voice session.
	ErrSessionInactive = errors.New("voice session not active")
)

// OpError wraps a failure in a per-link or per-session operation with the
// operation name and, when relevant, the remote participant.
type OpError struct {
	Op   string
	Peer string
	Err  error
}

func (e *OpError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func peerErr(op, peer string, err error) *OpError {
	return &OpError{Op: op, Peer: peer, Err: err}
}
