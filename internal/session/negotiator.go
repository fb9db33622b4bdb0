package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"interview_room/native/internal/domain"
)

// Sender is the outbound half of the signaling transport.
type Sender interface {
	Send(msg domain.Message) error
}

// StateObserver is notified of every session state transition. err is set
// when the transition into Closed was caused by a failure.
type StateObserver func(from, to domain.SessionState, err error)

type stateChange struct {
	from, to domain.SessionState
	err      error
}

// Negotiator drives one offer/answer exchange over a peer connection.
// Inbound messages must be delivered one at a time; peer callbacks may
// arrive from any goroutine.
type Negotiator struct {
	peer      domain.Peer
	sender    Sender
	role      domain.Role
	initiator bool

	mu         sync.Mutex
	state      domain.SessionState
	err        error
	offering   bool
	localOffer string
	remoteSet  bool
	pending    []domain.ICECandidatePayload
	observers  []StateObserver
	changes    []stateChange
	closePeer  bool
	peerClosed bool
}

// NewNegotiator creates an Idle negotiator. An initiator sends an offer as
// soon as the transport opens; otherwise it waits for the remote offer.
func NewNegotiator(peer domain.Peer, sender Sender, role domain.Role, initiator bool) *Negotiator {
	return &Negotiator{
		peer:      peer,
		sender:    sender,
		role:      role,
		initiator: initiator,
	}
}

// OnStateChange registers an observer. Observers run outside the lock.
func (n *Negotiator) OnStateChange(observer StateObserver) {
	n.mu.Lock()
	n.observers = append(n.observers, observer)
	n.mu.Unlock()
}

// State returns the current session state.
func (n *Negotiator) State() domain.SessionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Err returns the failure that closed the session, if any.
func (n *Negotiator) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// PendingCandidates returns the number of queued remote candidates.
func (n *Negotiator) PendingCandidates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Start moves Idle to AwaitingTransport and hooks the peer callbacks. The
// local tracks must already be attached to the peer.
func (n *Negotiator) Start() error {
	n.mu.Lock()
	if n.state != domain.StateIdle {
		state := n.state
		n.mu.Unlock()
		return fmt.Errorf("start negotiator: already %s", state)
	}
	n.peer.SetOnICECandidate(n.sendCandidate)
	n.peer.SetOnConnectionState(n.ConnectionStateChanged)
	n.setState(domain.StateAwaitingTransport, nil)
	n.unlock()
	return nil
}

// TransportOpened is called once the signaling transport is open.
func (n *Negotiator) TransportOpened() {
	n.mu.Lock()
	defer n.unlock()

	if n.state != domain.StateAwaitingTransport {
		return
	}
	if !n.initiator {
		log.Printf("[negotiator] transport open, waiting for offer")
		return
	}

	sdp, err := n.peer.CreateOffer()
	if err != nil {
		n.fail(fmt.Errorf("create offer: %w", err))
		return
	}
	n.offering = true
	n.localOffer = sdp
	n.setState(domain.StateNegotiating, nil)
	n.send(domain.OfferMessage(sdp))
}

// HandleOffer applies a remote offer and answers it. When both sides have
// an offer outstanding the polite peer rolls back and answers. The
// impolite peer keeps its offer and sends it again: the relay does not
// store frames, so a peer that joined after our offer never received it.
func (n *Negotiator) HandleOffer(offer domain.SDPPayload) error {
	n.mu.Lock()
	defer n.unlock()

	switch n.state {
	case domain.StateIdle:
		log.Printf("[negotiator] offer before start, dropping")
		return nil
	case domain.StateClosed:
		return domain.ErrSessionClosed
	case domain.StateConnected:
		log.Printf("[negotiator] offer while connected, ignoring")
		return domain.ErrRenegotiationUnsupported
	}
	if n.remoteSet {
		log.Printf("[negotiator] second offer in one session, ignoring")
		return domain.ErrRenegotiationUnsupported
	}

	if n.offering {
		if !n.role.Polite() {
			log.Printf("[negotiator] offer collision, keeping local offer and resending it")
			n.send(domain.OfferMessage(n.localOffer))
			return nil
		}
		log.Printf("[negotiator] offer collision, rolling back local offer")
		if err := n.peer.Rollback(); err != nil {
			n.fail(err)
			return err
		}
		n.offering = false
		n.localOffer = ""
	}

	if err := n.peer.SetRemoteDescription(offer); err != nil {
		n.fail(err)
		return err
	}
	n.remoteSet = true
	n.drainPending()

	sdp, err := n.peer.CreateAnswer()
	if err != nil {
		err = fmt.Errorf("create answer: %w", err)
		n.fail(err)
		return err
	}
	n.setState(domain.StateNegotiating, nil)
	n.send(domain.AnswerMessage(sdp))
	return nil
}

// HandleAnswer applies the remote answer to our outstanding offer.
func (n *Negotiator) HandleAnswer(answer domain.SDPPayload) error {
	n.mu.Lock()
	defer n.unlock()

	if n.state == domain.StateClosed {
		return domain.ErrSessionClosed
	}
	if n.state != domain.StateNegotiating || !n.offering {
		log.Printf("[negotiator] answer without outstanding offer, dropping")
		return nil
	}

	if err := n.peer.SetRemoteDescription(answer); err != nil {
		n.fail(err)
		return err
	}
	n.offering = false
	n.localOffer = ""
	n.remoteSet = true
	n.drainPending()
	return nil
}

// HandleCandidate adds a remote candidate, or queues it until the remote
// description is applied. Failures are logged only.
func (n *Negotiator) HandleCandidate(c domain.ICECandidatePayload) {
	n.mu.Lock()
	defer n.unlock()

	switch {
	case n.state == domain.StateIdle || n.state == domain.StateClosed:
		log.Printf("[negotiator] candidate while %s, dropping", n.state)
	case n.remoteSet:
		n.addCandidate(c)
	default:
		n.pending = append(n.pending, c)
		log.Printf("[negotiator] queued remote candidate (%d pending)", len(n.pending))
	}
}

// ConnectionStateChanged feeds connectivity reported by the peer connection.
func (n *Negotiator) ConnectionStateChanged(state domain.ConnectionState) {
	n.mu.Lock()
	defer n.unlock()

	switch state {
	case domain.ConnectionConnected:
		if n.state == domain.StateNegotiating && n.remoteSet {
			n.setState(domain.StateConnected, nil)
		}
	case domain.ConnectionFailed:
		n.fail(errors.New("peer connection failed"))
	case domain.ConnectionClosed:
		if n.state != domain.StateClosed {
			n.peerClosed = true
			n.setState(domain.StateClosed, nil)
		}
	case domain.ConnectionDisconnected:
		log.Printf("[negotiator] peer connection disconnected")
	}
}

// TransportClosed is called when the signaling transport goes away. A
// connected session keeps its media; anything earlier fails.
func (n *Negotiator) TransportClosed(cause error) {
	n.mu.Lock()
	defer n.unlock()

	switch n.state {
	case domain.StateClosed:
	case domain.StateConnected:
		log.Printf("[negotiator] signaling lost, media continues without captions or candidates")
	default:
		if cause == nil {
			cause = domain.ErrTransportClosed
		} else if !errors.Is(cause, domain.ErrTransportClosed) {
			cause = fmt.Errorf("%w: %v", domain.ErrTransportClosed, cause)
		}
		n.fail(cause)
	}
}

// Close ends the session and closes the peer. Closed is terminal.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.unlock()

	if n.state == domain.StateClosed {
		return
	}
	n.closePeer = true
	n.setState(domain.StateClosed, nil)
}

func (n *Negotiator) sendCandidate(c domain.ICECandidatePayload) {
	n.mu.Lock()
	closed := n.state == domain.StateClosed
	n.mu.Unlock()
	if closed {
		return
	}
	n.send(domain.CandidateMessage(c))
}

func (n *Negotiator) send(msg domain.Message) {
	if err := n.sender.Send(msg); err != nil {
		log.Printf("[negotiator] send %s: %v", msg.Type, err)
	}
}

// addCandidate must be called with n.mu held.
func (n *Negotiator) addCandidate(c domain.ICECandidatePayload) {
	if err := n.peer.AddRemoteICECandidate(c); err != nil {
		log.Printf("[negotiator] %v: %v", domain.ErrStaleCandidate, err)
	}
}

// drainPending must be called with n.mu held, right after the remote
// description is applied.
func (n *Negotiator) drainPending() {
	if len(n.pending) == 0 {
		return
	}
	log.Printf("[negotiator] applying %d queued candidates", len(n.pending))
	for _, c := range n.pending {
		n.addCandidate(c)
	}
	n.pending = nil
}

// fail must be called with n.mu held.
func (n *Negotiator) fail(err error) {
	if n.state == domain.StateClosed {
		return
	}
	log.Printf("[negotiator] %v", err)
	n.closePeer = true
	n.setState(domain.StateClosed, err)
}

// setState must be called with n.mu held.
func (n *Negotiator) setState(to domain.SessionState, err error) {
	if n.state == to {
		return
	}
	from := n.state
	n.state = to
	if to == domain.StateClosed {
		n.pending = nil
		n.offering = false
		if err != nil && n.err == nil {
			n.err = err
		}
	}
	log.Printf("[negotiator] %s -> %s", from, to)
	n.changes = append(n.changes, stateChange{from: from, to: to, err: err})
}

// unlock releases n.mu, then closes the peer and notifies observers.
func (n *Negotiator) unlock() {
	changes := n.changes
	n.changes = nil
	observers := n.observers
	closePeer := n.closePeer && !n.peerClosed
	if closePeer {
		n.peerClosed = true
	}
	n.closePeer = false
	n.mu.Unlock()

	if closePeer {
		n.peer.Close()
	}
	for _, c := range changes {
		for _, o := range observers {
			o(c.from, c.to, c.err)
		}
	}
}
