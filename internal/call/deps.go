package call

import (
	"context"
	"time"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// TrackKind identifies the role of a local or remote media track.
type TrackKind string

const (
	// TrackMicrophone is an audio capture track.
	TrackMicrophone TrackKind = "microphone"
	// TrackCamera is a camera video track.
	TrackCamera TrackKind = "camera"
	// TrackScreenShare is a screen capture video track.
	TrackScreenShare TrackKind = "screenshare"
)

// Track is a local media track owned by a LocalMedia handle.
type Track interface {
	Kind() TrackKind
	StreamID() string
	Muted() bool
	SetMuted(muted bool)

	// Stop releases the underlying capture resource. Called by the engine
	// when the call terminates or the track is swapped out.
	Stop()
}

// RemoteTrack is a track received from the remote party. Its Kind is derived
// by the peer connection from the stream metadata registry (via
// Observer.GetPurposeForStreamID) and re-evaluated when the connection is
// told the metadata changed.
type RemoteTrack interface {
	Kind() TrackKind
	StreamID() string
	SetMuted(muted bool)
}

// LocalMedia owns the set of local tracks for one call. Any subset of the
// three roles may be present; absent roles return nil.
type LocalMedia interface {
	Tracks() []Track
	MicrophoneTrack() Track
	CameraTrack() Track
	ScreenShareTrack() Track

	// SDPMetadata returns the outbound stream-metadata map describing the
	// local streams, keyed by stream id.
	SDPMetadata() map[string]protocol.StreamMetadata
}

// MediaPromise resolves a LocalMedia handle, typically by acquiring capture
// devices. It may block; cancellation follows the context.
type MediaPromise func(ctx context.Context) (LocalMedia, error)

// ICEConnectionState mirrors the connection state of the underlying ICE
// transport.
type ICEConnectionState string

const (
	ICEConnectionNew          ICEConnectionState = "new"
	ICEConnectionChecking     ICEConnectionState = "checking"
	ICEConnectionConnected    ICEConnectionState = "connected"
	ICEConnectionDisconnected ICEConnectionState = "disconnected"
	ICEConnectionFailed       ICEConnectionState = "failed"
	ICEConnectionClosed       ICEConnectionState = "closed"
)

// ICEGatheringState mirrors the candidate gathering state of the underlying
// ICE agent.
type ICEGatheringState string

const (
	ICEGatheringNew       ICEGatheringState = "new"
	ICEGatheringGathering ICEGatheringState = "gathering"
	ICEGatheringComplete  ICEGatheringState = "complete"
)

// PeerConnection abstracts the media transport (ICE/DTLS/SRTP stack). The
// engine owns the connection exclusively and drives it; the connection calls
// back into the engine through the Observer registered at construction.
type PeerConnection interface {
	CreateOffer(ctx context.Context) (protocol.SessionDescription, error)
	CreateAnswer(ctx context.Context) (protocol.SessionDescription, error)

	// SetLocalDescription applies desc as the local description. A nil desc
	// asks the connection to generate the description implied by its
	// signalling state (an offer when stable, an answer when a remote offer
	// is pending) and apply it.
	SetLocalDescription(ctx context.Context, desc *protocol.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc protocol.SessionDescription) error
	LocalDescription() *protocol.SessionDescription

	AddICECandidate(c protocol.Candidate) error

	AddTrack(t Track) error
	RemoveTrack(t Track) (bool, error)

	// ReplaceTrack swaps oldTrack for newTrack on the live sender without
	// renegotiating when the codecs are compatible. Returns false when no
	// sender carries oldTrack.
	ReplaceTrack(oldTrack, newTrack Track) (bool, error)

	CreateDataChannel() error

	RemoteTracks() []RemoteTrack
	ICEGatheringState() ICEGatheringState

	// NotifyStreamPurposeChanged tells the connection that the stream
	// metadata registry changed, so every remote track re-derives its kind
	// via Observer.GetPurposeForStreamID.
	NotifyStreamPurposeChanged()

	Close() error
}

// Observer is the callback surface the peer connection delivers events to.
// The PeerCall implements it; the connection holds it as a non-owning
// back-reference registered at construction.
type Observer interface {
	OnICEConnectionStateChange(state ICEConnectionState)
	OnLocalICECandidate(c protocol.Candidate)
	OnICEGatheringStateChange(state ICEGatheringState)
	OnRemoteTracksChanged()
	OnDataChannelChanged()
	OnNegotiationNeeded()

	// GetPurposeForStreamID returns the purpose recorded for a remote stream,
	// defaulting to usermedia when the registry has no entry.
	GetPurposeForStreamID(streamID string) protocol.StreamPurpose
}

// PeerConnectionFactory creates the peer connection for a call, registering
// the engine's observer at construction.
type PeerConnectionFactory func(obs Observer) (PeerConnection, error)

// Timeout is a cancellable delay handle.
type Timeout interface {
	// Elapsed is closed when the delay runs out. It never fires after Abort.
	Elapsed() <-chan struct{}

	// Abort cancels the delay. Idempotent.
	Abort()
}

// TimeoutCreator creates cancellable delays. Tests inject a virtual-clock
// implementation; production uses the wall clock.
type TimeoutCreator interface {
	CreateTimeout(d time.Duration) Timeout
}

// Delegate is the outbound hook to the host: it observes state changes and
// hands signalling messages to the transport.
type Delegate interface {
	// EmitUpdate is called on every state change.
	EmitUpdate(pc *PeerCall)

	// SendSignallingMessage hands a message to the transport. It returns
	// once the hand-off succeeded; an error is treated as a send failure.
	SendSignallingMessage(ctx context.Context, msg protocol.Message) error
}
