package domain

import "errors"

// SessionState is the negotiation state of one session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingTransport
	StateNegotiating
	StateConnected
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTransport:
		return "awaiting-transport"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionState is the connectivity of the underlying media transport as
// reported by the peer connection.
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// TrackKind distinguishes local capture tracks.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

var (
	// ErrMediaUnavailable means local capture could not be acquired.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrTransportClosed means the signaling socket is gone.
	ErrTransportClosed = errors.New("signaling transport closed")
	// ErrMalformedMessage marks an unparseable or unknown signaling frame.
	ErrMalformedMessage = errors.New("malformed signaling message")
	// ErrStaleCandidate means a remote ICE candidate could not be added.
	ErrStaleCandidate = errors.New("stale ice candidate")
	// ErrRecognitionFailure means the speech recognizer could not run.
	ErrRecognitionFailure = errors.New("recognition failure")
	// ErrRenegotiationUnsupported is returned for a second offer on a
	// connected session.
	ErrRenegotiationUnsupported = errors.New("renegotiation not supported")
	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("session closed")
)
