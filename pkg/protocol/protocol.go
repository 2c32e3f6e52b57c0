// Package protocol defines the signalling protocol message types exchanged
// between peerlink clients and relayed by the rendezvous hub.
//
// All messages are JSON-encoded with a "type" discriminator field. Call
// messages additionally carry a routing envelope (from, to, call_id,
// party_id) so the hub can forward them without understanding the payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the signalling protocol version carried in every call message.
const Version = 1

// CallTimeoutMS is the default invite lifetime in milliseconds: how long an
// outbound call stays in InviteSent, and how long an inbound call rings,
// before it is abandoned.
const CallTimeoutMS = 60_000

// FallbackICEServer is the STUN server used when the environment supplies
// no ICE servers at all.
const FallbackICEServer = "stun:turn.matrix.org"

// Message is the interface implemented by all signalling protocol messages.
// Each message type corresponds to a JSON object with a "type" discriminator field.
type Message interface {
	// MessageType returns the wire-format type string (e.g. "invite", "candidates").
	MessageType() string
}

// SessionDescription is an SDP description attached to an Invite, Answer,
// or Negotiate message.
type SessionDescription struct {
	// Type is the SDP type: "offer" or "answer".
	Type string `json:"type"`

	// SDP is the raw session description.
	SDP string `json:"sdp"`
}

// StreamPurpose classifies a media stream advertised in stream metadata.
type StreamPurpose string

const (
	// PurposeUsermedia marks a stream carrying microphone and/or camera tracks.
	PurposeUsermedia StreamPurpose = "m.usermedia"

	// PurposeScreenshare marks a stream carrying a screen capture track.
	PurposeScreenshare StreamPurpose = "m.screenshare"
)

// StreamMetadata describes one media stream: what it is for and which of its
// tracks are muted. Keyed by stream id in the metadata maps below.
type StreamMetadata struct {
	Purpose    StreamPurpose `json:"purpose"`
	AudioMuted bool          `json:"audio_muted"`
	VideoMuted bool          `json:"video_muted"`
}

// Candidate is a single trickled ICE candidate. An empty Candidate string is
// the end-of-candidates marker and is valid on the wire.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`

	// UsernameFragment disambiguates candidates across ICE restarts.
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Envelope carries the routing fields shared by every call message. The hub
// forwards on To; receivers dispatch on CallID and commit to PartyID.
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	CallID  string `json:"call_id"`
	PartyID string `json:"party_id"`
}

// InviteMessage starts a call: it carries the SDP offer and the caller's
// stream metadata. Lifetime bounds how long the invite may ring, in
// milliseconds; zero means the receiver applies its own call timeout
// (CallTimeoutMS unless configured otherwise).
type InviteMessage struct {
	Envelope
	Version        int                       `json:"version"`
	Lifetime       int64                     `json:"lifetime"`
	Offer          SessionDescription        `json:"offer"`
	StreamMetadata map[string]StreamMetadata `json:"sdp_stream_metadata,omitempty"`
}

func (InviteMessage) MessageType() string { return "invite" }

// AnswerMessage accepts a call with the SDP answer and the callee's stream
// metadata.
type AnswerMessage struct {
	Envelope
	Version        int                       `json:"version"`
	Answer         SessionDescription        `json:"answer"`
	StreamMetadata map[string]StreamMetadata `json:"sdp_stream_metadata,omitempty"`
}

func (AnswerMessage) MessageType() string { return "answer" }

// CandidatesMessage carries a batch of trickled ICE candidates, in the order
// they were gathered.
type CandidatesMessage struct {
	Envelope
	Version    int         `json:"version"`
	Candidates []Candidate `json:"candidates"`
}

func (CandidatesMessage) MessageType() string { return "candidates" }

// NegotiateMessage renegotiates an established call. When Description is nil
// the message only refreshes stream metadata (e.g. a mute state change).
type NegotiateMessage struct {
	Envelope
	Version        int                       `json:"version"`
	Description    *SessionDescription       `json:"description,omitempty"`
	StreamMetadata map[string]StreamMetadata `json:"sdp_stream_metadata,omitempty"`
}

func (NegotiateMessage) MessageType() string { return "negotiate" }

// HangupMessage ends a call. Reason is one of the wire-level hangup reason
// codes; an empty reason is read as a plain user hangup.
type HangupMessage struct {
	Envelope
	Version int    `json:"version"`
	Reason  string `json:"reason,omitempty"`
}

func (HangupMessage) MessageType() string { return "hangup" }

// PeerInfo describes a connected peer, used in the PeersMessage.
type PeerInfo struct {
	PeerID string `json:"peerId"`
}

// JoinMessage is sent by a client to announce itself to the signalling hub.
type JoinMessage struct {
	PeerID string `json:"peerId"`
}

func (JoinMessage) MessageType() string { return "join" }

// PeersMessage is sent by the server to a newly connected peer,
// listing all other peers currently registered.
type PeersMessage struct {
	Peers []PeerInfo `json:"peers"`
}

func (PeersMessage) MessageType() string { return "peers" }

// PeerLeftMessage is broadcast by the server when a peer disconnects.
type PeerLeftMessage struct {
	PeerID string `json:"peerId"`
}

func (PeerLeftMessage) MessageType() string { return "peer-left" }

// newMessage returns a zero value of the concrete type for a wire kind, or
// nil for kinds this package does not know.
func newMessage(kind string) Message {
	switch kind {
	case "invite":
		return &InviteMessage{}
	case "answer":
		return &AnswerMessage{}
	case "candidates":
		return &CandidatesMessage{}
	case "negotiate":
		return &NegotiateMessage{}
	case "hangup":
		return &HangupMessage{}
	case "join":
		return &JoinMessage{}
	case "peers":
		return &PeersMessage{}
	case "peer-left":
		return &PeerLeftMessage{}
	default:
		return nil
	}
}

// Marshal encodes a message with its "type" discriminator spliced into the
// object, so the wire form is a flat JSON object.
func Marshal(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", msg.MessageType(), err)
	}

	tagged, err := json.Marshal(struct {
		Type string `json:"type"`
	}{msg.MessageType()})
	if err != nil {
		return nil, fmt.Errorf("encoding message kind: %w", err)
	}

	if len(body) <= 2 {
		// The message has no fields of its own.
		return tagged, nil
	}

	out := make([]byte, 0, len(tagged)+len(body))
	out = append(out, tagged[:len(tagged)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// Unmarshal decodes a wire message by its "type" discriminator into the
// matching concrete type.
func Unmarshal(data []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}

	msg := newMessage(probe.Type)
	if msg == nil {
		return nil, fmt.Errorf("unrecognized message kind %q", probe.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", probe.Type, err)
	}
	return msg, nil
}
