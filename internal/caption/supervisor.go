// Package caption runs continuous speech recognition for the local
// participant and multiplexes finalized utterances onto the signaling
// channel.
package caption

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"interview_room/native/internal/domain"
)

// State is the supervisor's run flag.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

const (
	DefaultRestartDelay     = 100 * time.Millisecond
	DefaultMaxStartFailures = 5
)

// Sender is the outbound half of the signaling transport.
type Sender interface {
	Send(msg domain.Message) error
}

// Config configures a Supervisor.
type Config struct {
	Role domain.Role
	// RestartDelay is the pause before a recognition run is restarted.
	RestartDelay time.Duration
	// MaxStartFailures is the number of consecutive failed starts after
	// which captioning stays off.
	MaxStartFailures int
}

// Supervisor keeps a recognizer running while in the Running state.
type Supervisor struct {
	recognizer domain.Recognizer
	sender     Sender
	renderer   domain.CaptionRenderer
	transcript *domain.Transcript
	cfg        Config

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
	restarts int
	failures int
}

// NewSupervisor creates a stopped supervisor. renderer may be nil.
func NewSupervisor(rec domain.Recognizer, sender Sender, renderer domain.CaptionRenderer, transcript *domain.Transcript, cfg Config) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxStartFailures <= 0 {
		cfg.MaxStartFailures = DefaultMaxStartFailures
	}
	if transcript == nil {
		transcript = &domain.Transcript{}
	}
	return &Supervisor{
		recognizer: rec,
		sender:     sender,
		renderer:   renderer,
		transcript: transcript,
		cfg:        cfg,
	}
}

// Start enters the Running state and begins the first recognition run.
// Calling Start while running is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.state = Running
	s.cancel = cancel
	s.failures = 0
	s.done = make(chan struct{})

	log.Printf("[caption] started as %s", s.cfg.Role)
	go s.loop(runCtx, s.done)
}

// Stop enters the Stopped state and ends the current run. No restart
// happens after Stop returns.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	log.Printf("[caption] stopped")
}

// State reports whether the supervisor is running.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restarts returns how many times a run was restarted after ending on its
// own.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Done is closed when the current loop has exited. It is nil before the
// first Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Transcript returns the caption log shared by local and remote lines.
func (s *Supervisor) Transcript() *domain.Transcript {
	return s.transcript
}

// HandleRemote renders a caption received from the other participant.
func (s *Supervisor) HandleRemote(msg domain.Message) {
	s.append(domain.CaptionLine{Sender: msg.Sender, Text: msg.Text})
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		events, err := s.recognizer.Start(ctx)
		if err != nil {
			if !s.startFailed(ctx, err) {
				return
			}
		} else {
			s.resetFailures()
			s.consume(ctx, events)
			if !s.shouldRestart(ctx) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

func (s *Supervisor) consume(ctx context.Context, events <-chan domain.RecognitionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if text := finalized(ev); text != "" {
				s.emit(ctx, text)
			}
		}
	}
}

// finalized joins the final results of an event, ignoring interim ones.
func finalized(ev domain.RecognitionEvent) string {
	var parts []string
	for _, r := range ev.Results {
		if !r.Final {
			continue
		}
		if t := strings.TrimSpace(r.Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (s *Supervisor) emit(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	s.append(domain.CaptionLine{Sender: s.cfg.Role, Text: text})
	if err := s.sender.Send(domain.CaptionMessage(text, s.cfg.Role)); err != nil {
		log.Printf("[caption] send: %v", err)
	}
}

func (s *Supervisor) append(line domain.CaptionLine) {
	s.transcript.Append(line)
	if s.renderer != nil {
		s.renderer.Render(line)
	}
}

// shouldRestart is the single check between a run ending and the next
// one starting. It must run under the same lock Stop takes.
func (s *Supervisor) shouldRestart(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running || ctx.Err() != nil {
		return false
	}
	s.restarts++
	log.Printf("[caption] recognition ended, restarting (%d)", s.restarts)
	return true
}

func (s *Supervisor) startFailed(ctx context.Context, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running || ctx.Err() != nil {
		return false
	}
	s.failures++
	log.Printf("[caption] start recognition: %v (%d/%d)", err, s.failures, s.cfg.MaxStartFailures)
	if s.failures >= s.cfg.MaxStartFailures {
		log.Printf("[caption] captions disabled after %d failed starts", s.failures)
		s.state = Stopped
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return false
	}
	return true
}

func (s *Supervisor) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}
