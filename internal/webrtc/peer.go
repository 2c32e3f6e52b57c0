// Package webrtc adapts a pion RTCPeerConnection to the abstract peer
// connection the call engine drives. The engine's observer is registered at
// construction; the adapter holds it only as a non-owning back-reference.
package webrtc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// Config holds configuration for creating a PeerConnection.
type Config struct {
	// ICE contains the STUN/TURN server configuration.
	ICE ICEConfig

	// API is an optional custom webrtc.API instance (e.g. with a tuned
	// SettingEngine). If nil, the default pion API is used.
	API *webrtc.API

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Factory returns a call.PeerConnectionFactory for the given config.
func Factory(cfg Config) call.PeerConnectionFactory {
	return func(obs call.Observer) (call.PeerConnection, error) {
		return New(cfg, obs)
	}
}

// PeerConnection wraps a pion RTCPeerConnection behind the engine's abstract
// interface: description work, candidate plumbing (with pre-remote-description
// buffering), track management, and the control data channel.
type PeerConnection struct {
	cfg Config
	log *slog.Logger
	pc  *webrtc.PeerConnection
	obs call.Observer

	mu            sync.Mutex
	senders       map[call.Track]*webrtc.RTPSender
	remote        []*remoteTrack
	dataChannel   *webrtc.DataChannel
	hasRemoteDesc bool

	// pending buffers remote candidates that arrive before the remote
	// description is applied — pion rejects AddICECandidate before
	// SetRemoteDescription.
	pending []webrtc.ICECandidateInit
}

// New creates a PeerConnection and registers the observer's callbacks.
func New(cfg Config, obs call.Observer) (*PeerConnection, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "webrtc")

	rtcConfig := webrtc.Configuration{
		ICEServers: cfg.ICE.pionICEServers(),
	}
	if cfg.ICE.ForceRelay {
		rtcConfig.ICETransportPolicy = webrtc.ICETransportPolicyRelay
		log.Info("ICE transport policy set to relay-only")
	}

	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if cfg.API != nil {
		pc, err = cfg.API.NewPeerConnection(rtcConfig)
	} else {
		pc, err = webrtc.NewPeerConnection(rtcConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	p := &PeerConnection{
		cfg:     cfg,
		log:     log,
		pc:      pc,
		obs:     obs,
		senders: make(map[call.Track]*webrtc.RTPSender),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// Gathering complete: emit the end-of-candidates marker.
			p.log.Debug("ICE gathering complete")
			obs.OnLocalICECandidate(protocol.Candidate{})
			return
		}
		init := c.ToJSON()
		p.log.Debug("ICE candidate gathered", "candidate", init.Candidate)
		obs.OnLocalICECandidate(protocol.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Info("ICE connection state changed", "state", state.String())
		obs.OnICEConnectionStateChange(mapICEConnectionState(state))
	})

	pc.OnICEGatheringStateChange(func(state webrtc.ICEGathererState) {
		obs.OnICEGatheringStateChange(call.ICEGatheringState(state.String()))
	})

	pc.OnNegotiationNeeded(func() {
		p.log.Debug("negotiation needed")
		obs.OnNegotiationNeeded()
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info("remote track received",
			"stream_id", track.StreamID(), "kind", track.Kind().String())
		rt := &remoteTrack{pc: p, track: track}
		rt.deriveKind()
		p.mu.Lock()
		p.remote = append(p.remote, rt)
		p.mu.Unlock()
		obs.OnRemoteTracksChanged()
	})

	// For the answerer: the control channel created by the offerer.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.log.Info("remote data channel received", "label", dc.Label())
		p.setDataChannel(dc)
	})

	return p, nil
}

// CreateOffer implements call.PeerConnection.
func (p *PeerConnection) CreateOffer(_ context.Context) (protocol.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("creating SDP offer: %w", err)
	}
	return fromPionDescription(offer), nil
}

// CreateAnswer implements call.PeerConnection.
func (p *PeerConnection) CreateAnswer(_ context.Context) (protocol.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, fmt.Errorf("creating SDP answer: %w", err)
	}
	return fromPionDescription(answer), nil
}

// SetLocalDescription implements call.PeerConnection. A nil desc generates
// the description implied by the signalling state: an answer when a remote
// offer is pending, an offer otherwise.
func (p *PeerConnection) SetLocalDescription(ctx context.Context, desc *protocol.SessionDescription) error {
	if desc == nil {
		var (
			generated protocol.SessionDescription
			err       error
		)
		if p.pc.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
			generated, err = p.CreateAnswer(ctx)
		} else {
			generated, err = p.CreateOffer(ctx)
		}
		if err != nil {
			return err
		}
		desc = &generated
	}

	pionDesc, err := toPionDescription(*desc)
	if err != nil {
		return err
	}
	if err := p.pc.SetLocalDescription(pionDesc); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	return nil
}

// SetRemoteDescription implements call.PeerConnection. Candidates buffered
// before the description arrived are flushed afterwards.
func (p *PeerConnection) SetRemoteDescription(_ context.Context, desc protocol.SessionDescription) error {
	pionDesc, err := toPionDescription(desc)
	if err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(pionDesc); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	p.mu.Lock()
	p.hasRemoteDesc = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, init := range pending {
		if err := p.pc.AddICECandidate(init); err != nil {
			p.log.Warn("adding buffered ICE candidate", "error", err)
		}
	}
	return nil
}

// LocalDescription implements call.PeerConnection.
func (p *PeerConnection) LocalDescription() *protocol.SessionDescription {
	pionDesc := p.pc.LocalDescription()
	if pionDesc == nil {
		return nil
	}
	desc := fromPionDescription(*pionDesc)
	return &desc
}

// AddICECandidate implements call.PeerConnection.
func (p *PeerConnection) AddICECandidate(c protocol.Candidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}

	p.mu.Lock()
	if !p.hasRemoteDesc {
		p.pending = append(p.pending, init)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("adding ICE candidate: %w", err)
	}
	return nil
}

// AddTrack implements call.PeerConnection.
func (p *PeerConnection) AddTrack(t call.Track) error {
	lt, ok := t.(*LocalTrack)
	if !ok {
		return fmt.Errorf("adding track: unsupported track type %T", t)
	}

	sender, err := p.pc.AddTrack(lt.rtpTrack)
	if err != nil {
		return fmt.Errorf("adding track: %w", err)
	}

	p.mu.Lock()
	p.senders[t] = sender
	p.mu.Unlock()
	return nil
}

// RemoveTrack implements call.PeerConnection.
func (p *PeerConnection) RemoveTrack(t call.Track) (bool, error) {
	p.mu.Lock()
	sender, ok := p.senders[t]
	delete(p.senders, t)
	p.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := p.pc.RemoveTrack(sender); err != nil {
		return false, fmt.Errorf("removing track: %w", err)
	}
	return true, nil
}

// ReplaceTrack implements call.PeerConnection. A compatible replacement
// reuses the live sender without renegotiating.
func (p *PeerConnection) ReplaceTrack(oldTrack, newTrack call.Track) (bool, error) {
	nt, ok := newTrack.(*LocalTrack)
	if !ok {
		return false, fmt.Errorf("replacing track: unsupported track type %T", newTrack)
	}

	p.mu.Lock()
	sender, ok := p.senders[oldTrack]
	p.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := sender.ReplaceTrack(nt.rtpTrack); err != nil {
		return false, fmt.Errorf("replacing track: %w", err)
	}

	p.mu.Lock()
	delete(p.senders, oldTrack)
	p.senders[newTrack] = sender
	p.mu.Unlock()
	return true, nil
}

// CreateDataChannel implements call.PeerConnection: it creates the control
// channel (offerer side).
func (p *PeerConnection) CreateDataChannel() error {
	dc, err := p.pc.CreateDataChannel(DataChannelLabel, dataChannelConfig())
	if err != nil {
		return fmt.Errorf("creating data channel: %w", err)
	}
	p.setDataChannel(dc)
	return nil
}

// DataChannel returns the control data channel, or nil if not yet established.
func (p *PeerConnection) DataChannel() *webrtc.DataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dataChannel
}

// RemoteTracks implements call.PeerConnection.
func (p *PeerConnection) RemoteTracks() []call.RemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	tracks := make([]call.RemoteTrack, len(p.remote))
	for i, rt := range p.remote {
		tracks[i] = rt
	}
	return tracks
}

// ICEGatheringState implements call.PeerConnection.
func (p *PeerConnection) ICEGatheringState() call.ICEGatheringState {
	return call.ICEGatheringState(p.pc.ICEGatheringState().String())
}

// NotifyStreamPurposeChanged implements call.PeerConnection: every remote
// track re-derives its kind from the engine's metadata registry.
func (p *PeerConnection) NotifyStreamPurposeChanged() {
	p.mu.Lock()
	remote := append([]*remoteTrack(nil), p.remote...)
	p.mu.Unlock()

	for _, rt := range remote {
		rt.deriveKind()
	}
}

// Close implements call.PeerConnection.
func (p *PeerConnection) Close() error {
	p.mu.Lock()
	dc := p.dataChannel
	p.mu.Unlock()

	if dc != nil {
		if err := dc.Close(); err != nil {
			p.log.Warn("closing data channel", "error", err)
		}
	}

	if err := p.pc.Close(); err != nil {
		return fmt.Errorf("closing peer connection: %w", err)
	}

	p.log.Info("peer connection closed")
	return nil
}

// setDataChannel registers callbacks on the control channel and stores it.
func (p *PeerConnection) setDataChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dataChannel = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.log.Info("data channel open", "label", dc.Label())
		p.obs.OnDataChannelChanged()
	})

	dc.OnClose(func() {
		p.log.Info("data channel closed", "label", dc.Label())
	})

	dc.OnError(func(err error) {
		p.log.Error("data channel error", "label", dc.Label(), "error", err)
	})
}

// mapICEConnectionState folds pion's ICE connection states onto the
// engine's. "completed" is a stronger "connected".
func mapICEConnectionState(state webrtc.ICEConnectionState) call.ICEConnectionState {
	if state == webrtc.ICEConnectionStateCompleted {
		return call.ICEConnectionConnected
	}
	return call.ICEConnectionState(state.String())
}

// fromPionDescription converts a pion session description to the wire form.
func fromPionDescription(desc webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

// toPionDescription converts a wire session description to pion's.
func toPionDescription(desc protocol.SessionDescription) (webrtc.SessionDescription, error) {
	switch desc.Type {
	case "offer", "pranswer", "answer", "rollback":
		return webrtc.SessionDescription{Type: webrtc.NewSDPType(desc.Type), SDP: desc.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unknown SDP type %q", desc.Type)
	}
}
