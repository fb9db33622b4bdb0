package session

import (
	"context"
	"errors"
	"sync"

	"interview_room/native/internal/domain"
)

// callLog records the order of teardown calls across mocks.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// mockPeer records calls for verification.
type mockPeer struct {
	mu sync.Mutex

	offerSDP  string
	answerSDP string

	setRemoteErr    error
	addCandidateErr error
	addTracksErr    error

	remote     []domain.SDPPayload
	candidates []string
	tracks     int
	rollbacks  int
	closed     int

	onICE   func(domain.ICECandidatePayload)
	onState func(domain.ConnectionState)

	log *callLog
}

func (m *mockPeer) AddTracks(tracks []domain.LocalTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks += len(tracks)
	return m.addTracksErr
}

func (m *mockPeer) SetOnICECandidate(send func(domain.ICECandidatePayload)) {
	m.mu.Lock()
	m.onICE = send
	m.mu.Unlock()
}

func (m *mockPeer) SetOnConnectionState(observe func(domain.ConnectionState)) {
	m.mu.Lock()
	m.onState = observe
	m.mu.Unlock()
}

func (m *mockPeer) CreateOffer() (string, error)  { return m.offerSDP, nil }
func (m *mockPeer) CreateAnswer() (string, error) { return m.answerSDP, nil }

func (m *mockPeer) SetRemoteDescription(sdp domain.SDPPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setRemoteErr != nil {
		return m.setRemoteErr
	}
	m.remote = append(m.remote, sdp)
	return nil
}

func (m *mockPeer) Rollback() error {
	m.mu.Lock()
	m.rollbacks++
	m.mu.Unlock()
	return nil
}

func (m *mockPeer) AddRemoteICECandidate(c domain.ICECandidatePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addCandidateErr != nil {
		return m.addCandidateErr
	}
	m.candidates = append(m.candidates, c.Candidate)
	return nil
}

func (m *mockPeer) Close() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	m.log.add("peer")
}

func (m *mockPeer) emitCandidate(c string) {
	m.mu.Lock()
	send := m.onICE
	m.mu.Unlock()
	send(domain.ICECandidatePayload{Candidate: c})
}

func (m *mockPeer) emitState(state domain.ConnectionState) {
	m.mu.Lock()
	observe := m.onState
	m.mu.Unlock()
	observe(state)
}

func (m *mockPeer) remoteDescriptions() []domain.SDPPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SDPPayload(nil), m.remote...)
}

func (m *mockPeer) addedCandidates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.candidates...)
}

func (m *mockPeer) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockTransport records sends and lets the test drive lifecycle events.
type mockTransport struct {
	mu        sync.Mutex
	sent      []domain.Message
	onMessage func(domain.Message)
	onOpen    []func()
	onClose   []func(error)
	connected bool
	closed    int

	log *callLog
}

func (m *mockTransport) Connect(ctx context.Context) {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
}

func (m *mockTransport) Send(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed > 0 {
		return domain.ErrTransportClosed
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockTransport) OnMessage(handler func(domain.Message)) {
	m.mu.Lock()
	m.onMessage = handler
	m.mu.Unlock()
}

func (m *mockTransport) OnOpen(handler func()) {
	m.mu.Lock()
	m.onOpen = append(m.onOpen, handler)
	m.mu.Unlock()
}

func (m *mockTransport) OnClose(handler func(error)) {
	m.mu.Lock()
	m.onClose = append(m.onClose, handler)
	m.mu.Unlock()
}

func (m *mockTransport) Close() {
	m.mu.Lock()
	m.closed++
	first := m.closed == 1
	handlers := m.onClose
	m.mu.Unlock()

	m.log.add("transport")
	if first {
		for _, h := range handlers {
			h(nil)
		}
	}
}

func (m *mockTransport) open() {
	m.mu.Lock()
	handlers := m.onOpen
	m.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (m *mockTransport) deliver(msg domain.Message) {
	m.mu.Lock()
	handler := m.onMessage
	m.mu.Unlock()
	handler(msg)
}

func (m *mockTransport) hangup() {
	m.mu.Lock()
	handlers := m.onClose
	m.mu.Unlock()
	for _, h := range handlers {
		h(domain.ErrTransportClosed)
	}
}

func (m *mockTransport) messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.sent...)
}

func (m *mockTransport) sentOfType(t domain.MessageType) []domain.Message {
	var out []domain.Message
	for _, msg := range m.messages() {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// mockTrack is a no-op local track.
type mockTrack struct {
	kind    domain.TrackKind
	enabled bool
}

func (m *mockTrack) ID() string              { return string(m.kind) }
func (m *mockTrack) Kind() domain.TrackKind  { return m.kind }
func (m *mockTrack) Enabled() bool           { return m.enabled }
func (m *mockTrack) SetEnabled(enabled bool) { m.enabled = enabled }
func (m *mockTrack) Stop()                   {}

// mockMedia refuses a second Acquire while tracks are held.
type mockMedia struct {
	mu         sync.Mutex
	acquireErr error
	held       bool
	acquires   int
	releases   int
	toggled    []domain.TrackKind

	log *callLog
}

func (m *mockMedia) Acquire(ctx context.Context) ([]domain.LocalTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if m.held {
		return nil, errors.New("tracks already in use")
	}
	m.held = true
	m.acquires++
	return []domain.LocalTrack{
		&mockTrack{kind: domain.TrackAudio, enabled: true},
		&mockTrack{kind: domain.TrackVideo, enabled: true},
	}, nil
}

func (m *mockMedia) SetTrackEnabled(kind domain.TrackKind, enabled bool) error {
	m.mu.Lock()
	m.toggled = append(m.toggled, kind)
	m.mu.Unlock()
	return nil
}

func (m *mockMedia) ToggleTrack(kind domain.TrackKind) (bool, error) {
	return false, m.SetTrackEnabled(kind, false)
}

func (m *mockMedia) Release() {
	m.mu.Lock()
	m.held = false
	m.releases++
	m.mu.Unlock()
	m.log.add("media")
}

// mockRecognizer runs until its context ends.
type mockRecognizer struct {
	mu     sync.Mutex
	starts int
}

func (m *mockRecognizer) Start(ctx context.Context) (<-chan domain.RecognitionEvent, error) {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()
	events := make(chan domain.RecognitionEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events, nil
}

func (m *mockRecognizer) startCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// mockICE returns fixed servers or an error.
type mockICE struct {
	servers []domain.ICEServer
	err     error
}

func (m *mockICE) FetchICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	return m.servers, m.err
}
