package webrtc

import (
	"fmt"
	"log"
	"strings"

	"interview_room/native/internal/domain"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"
)

// Compile-time interface check.
var _ domain.Peer = (*Peer)(nil)

// pionTrack is implemented by local tracks that can be attached to a
// PeerConnection.
type pionTrack interface {
	TrackLocal() pion.TrackLocal
}

// Options tunes the PeerConnection.
type Options struct {
	// LogLevel is the pion internal log level: disabled, error, warn,
	// info, debug or trace. Empty means warn.
	LogLevel string
	// IncludeLoopback keeps loopback candidates, which are otherwise
	// filtered before being signaled.
	IncludeLoopback bool
}

// Peer wraps a Pion PeerConnection carrying one audio and one video track
// in each direction.
type Peer struct {
	pc              *pion.PeerConnection
	includeLoopback bool
}

// NewPeer creates a PeerConnection with Opus and H264 registered and the
// NACK and RTCP report interceptors installed.
func NewPeer(iceServers []domain.ICEServer, opts Options) (*Peer, error) {
	api, err := newAPI(opts)
	if err != nil {
		return nil, err
	}

	var servers []pion.ICEServer
	for _, s := range iceServers {
		urls := s.AllURLs()
		if len(urls) == 0 {
			continue
		}
		servers = append(servers, pion.ICEServer{
			URLs:       urls,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[webrtc] ICE connection state: %s", state.String())
	})

	return &Peer{pc: pc, includeLoopback: opts.IncludeLoopback}, nil
}

func newAPI(opts Options) (*pion.API, error) {
	m := &pion.MediaEngine{}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register Opus: %w", err)
	}

	videoFeedback := []pion.RTCPFeedback{
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
		{Type: "goog-remb"},
	}
	h264Codec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:     pion.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: videoFeedback,
		},
		PayloadType: 102,
	}
	if err := m.RegisterCodec(h264Codec, pion.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register H264: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)

	generatorFactory, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	i.Add(generatorFactory)

	receiverReports, err := report.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create receiver reports: %w", err)
	}
	i.Add(receiverReports)

	senderReports, err := report.NewSenderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create sender reports: %w", err)
	}
	i.Add(senderReports)

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = parseLogLevel(opts.LogLevel)

	se := pion.SettingEngine{LoggerFactory: lf}
	se.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(se),
	), nil
}

func parseLogLevel(level string) logging.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "info":
		return logging.LogLevelInfo
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelWarn
	}
}

// AddTracks attaches local capture tracks to the connection.
func (p *Peer) AddTracks(tracks []domain.LocalTrack) error {
	for _, t := range tracks {
		pt, ok := t.(pionTrack)
		if !ok {
			return fmt.Errorf("add track %s: not a pion track", t.ID())
		}

		sender, err := p.pc.AddTrack(pt.TrackLocal())
		if err != nil {
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}

		// RTCP must be read for the interceptors to process it.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
		log.Printf("[webrtc] attached local %s track %s", t.Kind(), t.ID())
	}
	return nil
}

// SetOnTrack routes remote media to rec. A nil recorder drains the tracks.
func (p *Peer) SetOnTrack(rec *Recorder) {
	p.pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		log.Printf("[webrtc] got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

		if rec != nil {
			go rec.consume(track)
			return
		}
		go drain(track)
	})
}

// SetOnICECandidate registers the callback for locally discovered ICE candidates.
func (p *Peer) SetOnICECandidate(send func(candidate domain.ICECandidatePayload)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			log.Printf("[webrtc] ICE gathering complete")
			return
		}

		init := c.ToJSON()
		if !p.includeLoopback && isLoopback(init.Candidate) {
			log.Printf("[webrtc] filtering loopback ICE candidate")
			return
		}

		log.Printf("[webrtc] local ICE candidate: %s", init.Candidate)
		send(candidateFromPion(init))
	})
}

// SetOnConnectionState reports peer connection state changes.
func (p *Peer) SetOnConnectionState(observe func(state domain.ConnectionState)) {
	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[webrtc] peer connection state: %s", state.String())
		observe(connectionStateFromPion(state))
	})
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	log.Printf("[webrtc] local SDP offer set")
	return offer.SDP, nil
}

// CreateAnswer creates an SDP answer and sets it as the local description.
func (p *Peer) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	log.Printf("[webrtc] local SDP answer set")
	return answer.SDP, nil
}

// SetRemoteDescription applies a remote offer or answer.
func (p *Peer) SetRemoteDescription(sdp domain.SDPPayload) error {
	var t pion.SDPType
	switch sdp.Type {
	case "offer":
		t = pion.SDPTypeOffer
	case "answer":
		t = pion.SDPTypeAnswer
	default:
		return fmt.Errorf("unsupported sdp type %q", sdp.Type)
	}

	if err := p.pc.SetRemoteDescription(pion.SessionDescription{Type: t, SDP: sdp.SDP}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	log.Printf("[webrtc] remote SDP %s set", sdp.Type)
	return nil
}

// Rollback discards an outstanding local offer.
func (p *Peer) Rollback() error {
	if err := p.pc.SetLocalDescription(pion.SessionDescription{Type: pion.SDPTypeRollback}); err != nil {
		return fmt.Errorf("rollback local description: %w", err)
	}
	log.Printf("[webrtc] local offer rolled back")
	return nil
}

// AddRemoteICECandidate adds a candidate signaled by the remote peer.
func (p *Peer) AddRemoteICECandidate(candidate domain.ICECandidatePayload) error {
	if err := p.pc.AddICECandidate(candidateToPion(candidate)); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	log.Printf("[webrtc] added remote ICE candidate")
	return nil
}

// Close shuts down the PeerConnection.
func (p *Peer) Close() {
	if p.pc != nil {
		if err := p.pc.Close(); err != nil {
			log.Printf("[webrtc] close: %v", err)
		}
	}
}

func candidateFromPion(init pion.ICECandidateInit) domain.ICECandidatePayload {
	return domain.ICECandidatePayload{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func candidateToPion(c domain.ICECandidatePayload) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func connectionStateFromPion(state pion.PeerConnectionState) domain.ConnectionState {
	switch state {
	case pion.PeerConnectionStateConnecting:
		return domain.ConnectionConnecting
	case pion.PeerConnectionStateConnected:
		return domain.ConnectionConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.ConnectionDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.ConnectionFailed
	case pion.PeerConnectionStateClosed:
		return domain.ConnectionClosed
	default:
		return domain.ConnectionNew
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
