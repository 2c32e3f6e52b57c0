package webrtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// LocalTrack wraps a pion TrackLocal with the role and mute bookkeeping the
// call engine works with.
type LocalTrack struct {
	kind     call.TrackKind
	streamID string
	rtpTrack webrtc.TrackLocal

	// stop releases the capture source feeding the track; optional.
	stop func()

	mu    sync.Mutex
	muted bool
}

// NewLocalTrack wraps a pion track. stop may be nil when the track has no
// capture source to release.
func NewLocalTrack(kind call.TrackKind, rtpTrack webrtc.TrackLocal, stop func()) *LocalTrack {
	return &LocalTrack{
		kind:     kind,
		streamID: rtpTrack.StreamID(),
		rtpTrack: rtpTrack,
		stop:     stop,
	}
}

// Kind implements call.Track.
func (t *LocalTrack) Kind() call.TrackKind { return t.kind }

// StreamID implements call.Track.
func (t *LocalTrack) StreamID() string { return t.streamID }

// Muted implements call.Track.
func (t *LocalTrack) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// SetMuted implements call.Track.
func (t *LocalTrack) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

// Stop implements call.Track.
func (t *LocalTrack) Stop() {
	if t.stop != nil {
		t.stop()
	}
}

// Media is a LocalMedia handle over pion tracks: any subset of microphone,
// camera, and screen share.
type Media struct {
	mic    *LocalTrack
	cam    *LocalTrack
	screen *LocalTrack
}

// NewMedia builds a media handle from the given tracks; any may be nil.
func NewMedia(mic, cam, screen *LocalTrack) *Media {
	return &Media{mic: mic, cam: cam, screen: screen}
}

// Promise wraps the handle as an already-resolved media promise.
func (m *Media) Promise() call.MediaPromise {
	return func(context.Context) (call.LocalMedia, error) {
		return m, nil
	}
}

// Tracks implements call.LocalMedia.
func (m *Media) Tracks() []call.Track {
	var tracks []call.Track
	for _, t := range []*LocalTrack{m.mic, m.cam, m.screen} {
		if t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// MicrophoneTrack implements call.LocalMedia.
func (m *Media) MicrophoneTrack() call.Track {
	if m.mic == nil {
		return nil
	}
	return m.mic
}

// CameraTrack implements call.LocalMedia.
func (m *Media) CameraTrack() call.Track {
	if m.cam == nil {
		return nil
	}
	return m.cam
}

// ScreenShareTrack implements call.LocalMedia.
func (m *Media) ScreenShareTrack() call.Track {
	if m.screen == nil {
		return nil
	}
	return m.screen
}

// SDPMetadata implements call.LocalMedia: one usermedia entry for the
// mic/camera stream and one screenshare entry, keyed by stream id. A missing
// track reads as muted.
func (m *Media) SDPMetadata() map[string]protocol.StreamMetadata {
	md := make(map[string]protocol.StreamMetadata)

	if m.mic != nil || m.cam != nil {
		var streamID string
		meta := protocol.StreamMetadata{
			Purpose:    protocol.PurposeUsermedia,
			AudioMuted: true,
			VideoMuted: true,
		}
		if m.mic != nil {
			streamID = m.mic.StreamID()
			meta.AudioMuted = m.mic.Muted()
		}
		if m.cam != nil {
			streamID = m.cam.StreamID()
			meta.VideoMuted = m.cam.Muted()
		}
		md[streamID] = meta
	}

	if m.screen != nil {
		md[m.screen.StreamID()] = protocol.StreamMetadata{
			Purpose:    protocol.PurposeScreenshare,
			AudioMuted: true,
			VideoMuted: m.screen.Muted(),
		}
	}

	return md
}

// remoteTrack adapts a pion TrackRemote for the engine. Its kind is derived
// from the engine's stream metadata registry and re-derived whenever the
// registry changes.
type remoteTrack struct {
	pc    *PeerConnection
	track *webrtc.TrackRemote

	mu    sync.Mutex
	kind  call.TrackKind
	muted bool
}

// Kind implements call.RemoteTrack.
func (r *remoteTrack) Kind() call.TrackKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kind
}

// StreamID implements call.RemoteTrack.
func (r *remoteTrack) StreamID() string { return r.track.StreamID() }

// SetMuted implements call.RemoteTrack. The flag is advisory for consumers
// rendering the track.
func (r *remoteTrack) SetMuted(muted bool) {
	r.mu.Lock()
	changed := r.muted != muted
	r.muted = muted
	r.mu.Unlock()
	if changed {
		r.pc.log.Debug("remote track mute changed",
			"stream_id", r.track.StreamID(), "muted", muted)
	}
}

// Muted reports the advisory mute flag.
func (r *remoteTrack) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

// Track exposes the underlying pion track for media consumers.
func (r *remoteTrack) Track() *webrtc.TrackRemote { return r.track }

// deriveKind recomputes the role from the pion track kind and the stream's
// recorded purpose.
func (r *remoteTrack) deriveKind() {
	var kind call.TrackKind
	if r.track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = call.TrackMicrophone
	} else {
		switch r.pc.obs.GetPurposeForStreamID(r.track.StreamID()) {
		case protocol.PurposeScreenshare:
			kind = call.TrackScreenShare
		default:
			kind = call.TrackCamera
		}
	}

	r.mu.Lock()
	r.kind = kind
	r.mu.Unlock()
}
