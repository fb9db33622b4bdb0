// Package session ties the negotiator, signaling transport, local media and
// caption supervisor of one interview into a single owned lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"interview_room/native/internal/caption"
	"interview_room/native/internal/domain"

	"github.com/google/uuid"
)

// MediaManager owns the local capture tracks.
type MediaManager interface {
	Acquire(ctx context.Context) ([]domain.LocalTrack, error)
	SetTrackEnabled(kind domain.TrackKind, enabled bool) error
	ToggleTrack(kind domain.TrackKind) (bool, error)
	Release()
}

// ResumeAnalyzer is the document analysis collaborator.
type ResumeAnalyzer interface {
	MaybeAnalyze(ctx context.Context, filePath, jobRole, room string) (string, error)
	EnsureReport(ctx context.Context, filePath, jobRole, room string) (string, error)
}

// PeerFactory builds the peer connection once ICE servers are known.
type PeerFactory func(servers []domain.ICEServer) (domain.Peer, error)

// Config describes one session.
type Config struct {
	Room string
	Role domain.Role
	// Initiate sends an offer as soon as the transport opens.
	Initiate bool

	CaptionRestartDelay     time.Duration
	CaptionMaxStartFailures int
}

// Deps are the collaborators of one session. Transport must be fresh: it
// is bound to this session's room and closed at teardown. ICE, Recognizer,
// Renderer, Analyzer and Observer are optional.
type Deps struct {
	Media      MediaManager
	NewPeer    PeerFactory
	Transport  domain.Transport
	ICE        domain.ICEServerFetcher
	Recognizer domain.Recognizer
	Renderer   domain.CaptionRenderer
	Analyzer   ResumeAnalyzer
	Observer   StateObserver
}

type phase int

const (
	phaseCreated phase = iota
	phaseActive
	phaseTornDown
)

// SessionContext is everything that belongs to one interview session. It
// is created, started once and torn down once.
type SessionContext struct {
	ID   string
	Room string
	Role domain.Role

	cfg        Config
	deps       Deps
	transcript *domain.Transcript
	supervisor *caption.Supervisor
	negotiator *Negotiator
	handlers   map[domain.MessageType]func(domain.Message) error

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	phase   phase
	err     error
	done    chan struct{}
	endOnce sync.Once
}

// New creates a session in the created phase.
func New(cfg Config, deps Deps) (*SessionContext, error) {
	if deps.Media == nil || deps.NewPeer == nil || deps.Transport == nil {
		return nil, errors.New("session needs media, peer factory and transport")
	}
	cfg.Room = domain.NormalizeRoom(cfg.Room)

	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionContext{
		ID:         uuid.NewString(),
		Room:       cfg.Room,
		Role:       cfg.Role,
		cfg:        cfg,
		deps:       deps,
		transcript: &domain.Transcript{},
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.supervisor = caption.NewSupervisor(deps.Recognizer, deps.Transport, deps.Renderer, s.transcript, caption.Config{
		Role:             cfg.Role,
		RestartDelay:     cfg.CaptionRestartDelay,
		MaxStartFailures: cfg.CaptionMaxStartFailures,
	})
	s.handlers = map[domain.MessageType]func(domain.Message) error{
		domain.MsgTypeOffer: func(m domain.Message) error {
			return s.negotiator.HandleOffer(m.SDP)
		},
		domain.MsgTypeAnswer: func(m domain.Message) error {
			return s.negotiator.HandleAnswer(m.SDP)
		},
		domain.MsgTypeCandidate: func(m domain.Message) error {
			s.negotiator.HandleCandidate(m.Candidate)
			return nil
		},
		domain.MsgTypeCaption: func(m domain.Message) error {
			s.supervisor.HandleRemote(m)
			return nil
		},
	}
	return s, nil
}

// Start acquires media, builds the peer and connects the transport. It
// returns once the transport is connecting; negotiation continues in the
// background. ctx only bounds the setup steps.
func (s *SessionContext) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != phaseCreated {
		s.mu.Unlock()
		return fmt.Errorf("start session %s: %w", s.ID, domain.ErrSessionClosed)
	}
	s.phase = phaseActive
	s.mu.Unlock()

	setupCtx, stop := context.WithCancel(ctx)
	defer stop()
	context.AfterFunc(s.ctx, stop)

	log.Printf("[session] %s starting in room %q as %s", s.ID, s.Room, s.Role)

	tracks, err := s.deps.Media.Acquire(setupCtx)
	if err != nil {
		s.end(err)
		return err
	}
	if s.ctx.Err() != nil {
		s.deps.Media.Release()
		return domain.ErrSessionClosed
	}

	var servers []domain.ICEServer
	if s.deps.ICE != nil {
		servers, err = s.deps.ICE.FetchICEServers(setupCtx)
		if err != nil {
			log.Printf("[session] fetch ICE servers: %v, continuing without", err)
			servers = nil
		}
	}
	if s.ctx.Err() != nil {
		s.deps.Media.Release()
		return domain.ErrSessionClosed
	}

	peer, err := s.deps.NewPeer(servers)
	if err != nil {
		err = fmt.Errorf("create peer: %w", err)
		s.end(err)
		return err
	}
	if err := peer.AddTracks(tracks); err != nil {
		peer.Close()
		err = fmt.Errorf("attach tracks: %w", err)
		s.end(err)
		return err
	}

	n := NewNegotiator(peer, s.deps.Transport, s.Role, s.cfg.Initiate)
	n.OnStateChange(s.onStateChange)
	if s.deps.Observer != nil {
		n.OnStateChange(s.deps.Observer)
	}

	s.mu.Lock()
	if s.phase == phaseTornDown {
		s.mu.Unlock()
		peer.Close()
		return domain.ErrSessionClosed
	}
	s.negotiator = n
	s.mu.Unlock()

	if err := n.Start(); err != nil {
		s.end(err)
		return err
	}

	t := s.deps.Transport
	t.OnMessage(s.Dispatch)
	t.OnOpen(n.TransportOpened)
	t.OnClose(n.TransportClosed)
	t.Connect(s.ctx)
	return nil
}

// Dispatch routes one inbound signaling message by its type. Errors are
// logged; they never end the session by themselves.
func (s *SessionContext) Dispatch(msg domain.Message) {
	s.mu.Lock()
	active := s.phase == phaseActive && s.negotiator != nil
	s.mu.Unlock()
	if !active {
		return
	}

	handle, ok := s.handlers[msg.Type]
	if !ok {
		log.Printf("[session] %v: %q", domain.ErrMalformedMessage, msg.Type)
		return
	}
	if err := handle(msg); err != nil {
		log.Printf("[session] %s: %v", msg.Type, err)
	}
}

func (s *SessionContext) onStateChange(from, to domain.SessionState, err error) {
	switch to {
	case domain.StateConnected:
		log.Printf("[session] %s connected", s.ID)
		if s.deps.Recognizer != nil {
			s.supervisor.Start(s.ctx)
		}
	case domain.StateClosed:
		// Observers can run inside transport callbacks; tear down outside them.
		go s.end(err)
	}
}

// State returns the negotiation state.
func (s *SessionContext) State() domain.SessionState {
	s.mu.Lock()
	n := s.negotiator
	p := s.phase
	s.mu.Unlock()

	if n != nil {
		return n.State()
	}
	if p == phaseTornDown {
		return domain.StateClosed
	}
	return domain.StateIdle
}

// Transcript returns the session's caption log.
func (s *SessionContext) Transcript() *domain.Transcript {
	return s.transcript
}

// Captions returns the caption supervisor.
func (s *SessionContext) Captions() *caption.Supervisor {
	return s.supervisor
}

// SetTrackEnabled mutes or unmutes local media without renegotiation.
func (s *SessionContext) SetTrackEnabled(kind domain.TrackKind, enabled bool) error {
	return s.deps.Media.SetTrackEnabled(kind, enabled)
}

// ToggleTrack flips local audio or video.
func (s *SessionContext) ToggleTrack(kind domain.TrackKind) (bool, error) {
	return s.deps.Media.ToggleTrack(kind)
}

// Analyze submits a resume for this room. The request is cancelled when
// the session ends.
func (s *SessionContext) Analyze(filePath, jobRole string) (string, error) {
	if s.deps.Analyzer == nil {
		return "", errors.New("no analyzer configured")
	}
	return s.deps.Analyzer.MaybeAnalyze(s.ctx, filePath, jobRole, s.Room)
}

// Report makes sure the latest analysis is done and returns the report URL.
func (s *SessionContext) Report(filePath, jobRole string) (string, error) {
	if s.deps.Analyzer == nil {
		return "", errors.New("no analyzer configured")
	}
	return s.deps.Analyzer.EnsureReport(s.ctx, filePath, jobRole, s.Room)
}

// End tears the session down: captions, negotiation, transport, then
// media. Safe to call any number of times.
func (s *SessionContext) End() {
	s.end(nil)
}

func (s *SessionContext) end(cause error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.phase = phaseTornDown
		s.err = cause
		n := s.negotiator
		s.mu.Unlock()

		s.supervisor.Stop()
		if n != nil {
			n.Close()
		}
		s.deps.Transport.Close()
		s.deps.Media.Release()
		s.cancel()

		if cause != nil {
			log.Printf("[session] %s ended: %v", s.ID, cause)
		} else {
			log.Printf("[session] %s ended", s.ID)
		}
		close(s.done)
	})
}

// Done is closed once the session has been torn down.
func (s *SessionContext) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that ended the session, or nil.
func (s *SessionContext) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
