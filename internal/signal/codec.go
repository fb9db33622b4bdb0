package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"interview_room/native/internal/domain"
)

// wireMessage is the JSON envelope exchanged over the room socket.
// sdp and candidate stay raw so both the browser object shapes and the
// bare-string shapes some clients send are accepted.
type wireMessage struct {
	Type      domain.MessageType `json:"type"`
	SDP       json.RawMessage    `json:"sdp,omitempty"`
	Candidate json.RawMessage    `json:"candidate,omitempty"`
	Text      *string            `json:"text,omitempty"`
	Sender    *string            `json:"sender,omitempty"`
}

// Encode serializes a message, writing only the active variant's fields.
func Encode(msg domain.Message) ([]byte, error) {
	w := wireMessage{Type: msg.Type}

	switch msg.Type {
	case domain.MsgTypeOffer, domain.MsgTypeAnswer:
		sdp := msg.SDP
		if sdp.Type == "" {
			sdp.Type = string(msg.Type)
		}
		raw, err := json.Marshal(sdp)
		if err != nil {
			return nil, fmt.Errorf("marshal sdp: %w", err)
		}
		w.SDP = raw

	case domain.MsgTypeCandidate:
		raw, err := json.Marshal(msg.Candidate)
		if err != nil {
			return nil, fmt.Errorf("marshal candidate: %w", err)
		}
		w.Candidate = raw

	case domain.MsgTypeCaption:
		text := msg.Text
		sender := string(msg.Sender)
		w.Text = &text
		w.Sender = &sender

	default:
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedMessage, msg.Type)
	}

	return json.Marshal(w)
}

// Decode parses one frame. Any failure wraps domain.ErrMalformedMessage.
func Decode(data []byte) (domain.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	msg := domain.Message{Type: w.Type}

	switch w.Type {
	case domain.MsgTypeOffer, domain.MsgTypeAnswer:
		sdp, err := decodeSDP(w.SDP, w.Type)
		if err != nil {
			return domain.Message{}, err
		}
		msg.SDP = sdp

	case domain.MsgTypeCandidate:
		c, err := decodeCandidate(w.Candidate)
		if err != nil {
			return domain.Message{}, err
		}
		msg.Candidate = c

	case domain.MsgTypeCaption:
		if w.Text == nil {
			return domain.Message{}, fmt.Errorf("%w: caption without text", domain.ErrMalformedMessage)
		}
		msg.Text = *w.Text
		if w.Sender != nil {
			msg.Sender = domain.Role(*w.Sender)
		}

	default:
		return domain.Message{}, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedMessage, w.Type)
	}

	return msg, nil
}

func decodeSDP(raw json.RawMessage, t domain.MessageType) (domain.SDPPayload, error) {
	if isNull(raw) {
		return domain.SDPPayload{}, fmt.Errorf("%w: %s without sdp", domain.ErrMalformedMessage, t)
	}

	var sdp domain.SDPPayload
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		sdp = domain.SDPPayload{Type: string(t), SDP: bare}
	} else if err := json.Unmarshal(raw, &sdp); err != nil {
		return domain.SDPPayload{}, fmt.Errorf("%w: %s sdp: %v", domain.ErrMalformedMessage, t, err)
	}

	if sdp.Type == "" {
		sdp.Type = string(t)
	}
	if sdp.Type != string(t) {
		return domain.SDPPayload{}, fmt.Errorf("%w: %s carries sdp.type=%q", domain.ErrMalformedMessage, t, sdp.Type)
	}
	if strings.TrimSpace(sdp.SDP) == "" {
		return domain.SDPPayload{}, fmt.Errorf("%w: empty %s sdp", domain.ErrMalformedMessage, t)
	}
	return sdp, nil
}

func decodeCandidate(raw json.RawMessage) (domain.ICECandidatePayload, error) {
	if isNull(raw) {
		return domain.ICECandidatePayload{}, fmt.Errorf("%w: candidate missing", domain.ErrMalformedMessage)
	}

	var line string
	if err := json.Unmarshal(raw, &line); err == nil {
		return domain.ICECandidatePayload{Candidate: line}, nil
	}

	var c domain.ICECandidatePayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.ICECandidatePayload{}, fmt.Errorf("%w: candidate: %v", domain.ErrMalformedMessage, err)
	}
	return c, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
