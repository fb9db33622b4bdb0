package domain

// MessageType is the discriminant carried in the "type" field of every
// signaling frame.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeCaption   MessageType = "caption"
)

// SDPPayload is the JSON structure for SDP offer/answer messages.
// It mirrors the browser's RTCSessionDescriptionInit.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
// It mirrors the browser's RTCIceCandidateInit, where every field except
// the candidate line may be null.
type ICECandidatePayload struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Message is one signaling frame. Exactly one variant is populated,
// selected by Type:
//
//	offer, answer -> SDP
//	candidate     -> Candidate
//	caption       -> Text, Sender
type Message struct {
	Type      MessageType
	SDP       SDPPayload
	Candidate ICECandidatePayload
	Text      string
	Sender    Role
}

// OfferMessage builds an offer frame.
func OfferMessage(sdp string) Message {
	return Message{Type: MsgTypeOffer, SDP: SDPPayload{Type: string(MsgTypeOffer), SDP: sdp}}
}

// AnswerMessage builds an answer frame.
func AnswerMessage(sdp string) Message {
	return Message{Type: MsgTypeAnswer, SDP: SDPPayload{Type: string(MsgTypeAnswer), SDP: sdp}}
}

// CandidateMessage builds a trickle ICE frame.
func CandidateMessage(c ICECandidatePayload) Message {
	return Message{Type: MsgTypeCandidate, Candidate: c}
}

// CaptionMessage builds a caption frame for a finalized utterance.
func CaptionMessage(text string, sender Role) Message {
	return Message{Type: MsgTypeCaption, Text: text, Sender: sender}
}
