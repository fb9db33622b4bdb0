package domain

import "context"

// ICEServerFetcher retrieves ICE server configuration before any
// negotiation begins.
type ICEServerFetcher interface {
	FetchICEServers(ctx context.Context) ([]ICEServer, error)
}

// Transport is the signaling channel of exactly one room. Messages sent
// before the channel opens are queued, never dropped.
type Transport interface {
	Connect(ctx context.Context)
	Send(msg Message) error
	OnMessage(handler func(Message))
	OnOpen(handler func())
	OnClose(handler func(error))
	Close()
}

// Peer manages the WebRTC peer connection.
type Peer interface {
	AddTracks(tracks []LocalTrack) error
	SetOnICECandidate(send func(candidate ICECandidatePayload))
	SetOnConnectionState(observe func(state ConnectionState))
	CreateOffer() (string, error)
	CreateAnswer() (string, error)
	SetRemoteDescription(sdp SDPPayload) error
	Rollback() error
	AddRemoteICECandidate(candidate ICECandidatePayload) error
	Close()
}

// LocalTrack is one local capture track.
type LocalTrack interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// MediaSource opens local audio and video capture.
type MediaSource interface {
	Open(ctx context.Context) ([]LocalTrack, error)
}

// Recognizer runs continuous speech recognition. Each Start begins one
// run whose events arrive on the returned channel; the channel is closed
// when the run ends, either because ctx was cancelled or on its own.
type Recognizer interface {
	Start(ctx context.Context) (<-chan RecognitionEvent, error)
}

// CaptionRenderer displays caption lines.
type CaptionRenderer interface {
	Render(line CaptionLine)
}
