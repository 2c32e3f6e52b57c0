package webrtc

import (
	"context"
	"sync"
	"testing"
	"time"

	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// stubObserver implements call.Observer with channels for the signals the
// tests wait on.
type stubObserver struct {
	mu         sync.Mutex
	purposes   map[string]protocol.StreamPurpose
	candidates chan protocol.Candidate
	states     chan call.ICEConnectionState
}

func newStubObserver() *stubObserver {
	return &stubObserver{
		purposes:   make(map[string]protocol.StreamPurpose),
		candidates: make(chan protocol.Candidate, 64),
		states:     make(chan call.ICEConnectionState, 16),
	}
}

func (s *stubObserver) OnICEConnectionStateChange(state call.ICEConnectionState) {
	select {
	case s.states <- state:
	default:
	}
}

func (s *stubObserver) OnLocalICECandidate(c protocol.Candidate) {
	select {
	case s.candidates <- c:
	default:
	}
}

func (s *stubObserver) OnICEGatheringStateChange(call.ICEGatheringState) {}

func (s *stubObserver) OnRemoteTracksChanged() {}

func (s *stubObserver) OnDataChannelChanged() {}

func (s *stubObserver) OnNegotiationNeeded() {}

func (s *stubObserver) GetPurposeForStreamID(streamID string) protocol.StreamPurpose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.purposes[streamID]; ok {
		return p
	}
	return protocol.PurposeUsermedia
}

func audioTrack(t *testing.T, trackID, streamID string) *LocalTrack {
	t.Helper()
	rtpTrack, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeOpus},
		trackID, streamID,
	)
	if err != nil {
		t.Fatalf("creating audio track: %v", err)
	}
	return NewLocalTrack(call.TrackMicrophone, rtpTrack, nil)
}

func videoTrack(t *testing.T, kind call.TrackKind, trackID, streamID string) *LocalTrack {
	t.Helper()
	rtpTrack, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeVP8},
		trackID, streamID,
	)
	if err != nil {
		t.Fatalf("creating video track: %v", err)
	}
	return NewLocalTrack(kind, rtpTrack, nil)
}

// TestPeerConnection_OfferAnswer completes the description exchange and
// candidate trickle between two adapters and waits for ICE connectivity.
func TestPeerConnection_OfferAnswer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	obsA := newStubObserver()
	obsB := newStubObserver()

	a, err := New(Config{}, obsA)
	if err != nil {
		t.Fatalf("New(A) error: %v", err)
	}
	defer a.Close()

	b, err := New(Config{}, obsB)
	if err != nil {
		t.Fatalf("New(B) error: %v", err)
	}
	defer b.Close()

	if err := a.CreateDataChannel(); err != nil {
		t.Fatalf("CreateDataChannel() error: %v", err)
	}

	// A: implicit offer.
	if err := a.SetLocalDescription(ctx, nil); err != nil {
		t.Fatalf("A.SetLocalDescription() error: %v", err)
	}
	offer := a.LocalDescription()
	if offer == nil || offer.Type != "offer" {
		t.Fatalf("A local description = %+v, want an offer", offer)
	}

	// B: apply offer, implicit answer.
	if err := b.SetRemoteDescription(ctx, *offer); err != nil {
		t.Fatalf("B.SetRemoteDescription() error: %v", err)
	}
	if err := b.SetLocalDescription(ctx, nil); err != nil {
		t.Fatalf("B.SetLocalDescription() error: %v", err)
	}
	answer := b.LocalDescription()
	if answer == nil || answer.Type != "answer" {
		t.Fatalf("B local description = %+v, want an answer", answer)
	}

	if err := a.SetRemoteDescription(ctx, *answer); err != nil {
		t.Fatalf("A.SetRemoteDescription() error: %v", err)
	}

	// Relay trickled candidates both ways. Empty candidates are the
	// end-of-candidates marker and are not relayed.
	done := make(chan struct{})
	defer close(done)
	relay := func(from *stubObserver, to *PeerConnection) {
		for {
			select {
			case c := <-from.candidates:
				if c.Candidate == "" {
					continue
				}
				if err := to.AddICECandidate(c); err != nil {
					t.Errorf("AddICECandidate() error: %v", err)
				}
			case <-done:
				return
			}
		}
	}
	go relay(obsA, b)
	go relay(obsB, a)

	waitConnected := func(name string, obs *stubObserver) {
		timeout := time.After(10 * time.Second)
		for {
			select {
			case state := <-obs.states:
				if state == call.ICEConnectionConnected {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s to connect", name)
			}
		}
	}
	waitConnected("A", obsA)
	waitConnected("B", obsB)
}

// TestPeerConnection_TrackManagement adds, replaces, and removes local
// tracks through the adapter.
func TestPeerConnection_TrackManagement(t *testing.T) {
	t.Parallel()

	obs := newStubObserver()
	pc, err := New(Config{}, obs)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer pc.Close()

	mic := audioTrack(t, "audio-1", "stream-1")
	if err := pc.AddTrack(mic); err != nil {
		t.Fatalf("AddTrack() error: %v", err)
	}

	// Compatible replacement reuses the sender.
	mic2 := audioTrack(t, "audio-2", "stream-1")
	replaced, err := pc.ReplaceTrack(mic, mic2)
	if err != nil {
		t.Fatalf("ReplaceTrack() error: %v", err)
	}
	if !replaced {
		t.Fatal("ReplaceTrack() = false, want true")
	}

	// The old track no longer maps to a sender.
	replaced, err = pc.ReplaceTrack(mic, mic2)
	if err != nil {
		t.Fatalf("ReplaceTrack() second call error: %v", err)
	}
	if replaced {
		t.Error("ReplaceTrack() on displaced track = true, want false")
	}

	removed, err := pc.RemoveTrack(mic2)
	if err != nil {
		t.Fatalf("RemoveTrack() error: %v", err)
	}
	if !removed {
		t.Error("RemoveTrack() = false, want true")
	}

	removed, err = pc.RemoveTrack(mic2)
	if err != nil {
		t.Fatalf("RemoveTrack() second call error: %v", err)
	}
	if removed {
		t.Error("RemoveTrack() on removed track = true, want false")
	}
}

// TestDescriptionConversion rejects unknown SDP types.
func TestDescriptionConversion(t *testing.T) {
	t.Parallel()

	if _, err := toPionDescription(protocol.SessionDescription{Type: "bogus", SDP: "v=0"}); err == nil {
		t.Error("toPionDescription() accepted an unknown type")
	}

	desc, err := toPionDescription(protocol.SessionDescription{Type: "offer", SDP: "v=0"})
	if err != nil {
		t.Fatalf("toPionDescription() error: %v", err)
	}
	back := fromPionDescription(desc)
	if back.Type != "offer" || back.SDP != "v=0" {
		t.Errorf("round-trip = %+v", back)
	}
}
