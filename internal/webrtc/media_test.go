package webrtc

import (
	"testing"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

func TestMedia_SDPMetadata(t *testing.T) {
	t.Parallel()

	mic := audioTrack(t, "audio-1", "stream-user")
	cam := videoTrack(t, call.TrackCamera, "video-1", "stream-user")
	screen := videoTrack(t, call.TrackScreenShare, "video-2", "stream-screen")
	mic.SetMuted(true)

	media := NewMedia(mic, cam, screen)

	md := media.SDPMetadata()
	if len(md) != 2 {
		t.Fatalf("metadata entries = %d, want 2", len(md))
	}

	user, ok := md["stream-user"]
	if !ok {
		t.Fatalf("missing usermedia entry: %v", md)
	}
	if user.Purpose != protocol.PurposeUsermedia {
		t.Errorf("usermedia purpose = %q", user.Purpose)
	}
	if !user.AudioMuted {
		t.Error("audio_muted = false, want true (mic muted)")
	}
	if user.VideoMuted {
		t.Error("video_muted = true, want false")
	}

	share, ok := md["stream-screen"]
	if !ok {
		t.Fatalf("missing screenshare entry: %v", md)
	}
	if share.Purpose != protocol.PurposeScreenshare {
		t.Errorf("screenshare purpose = %q", share.Purpose)
	}
	if share.VideoMuted {
		t.Error("screenshare video_muted = true, want false")
	}
}

func TestMedia_MissingTracksReadAsMuted(t *testing.T) {
	t.Parallel()

	cam := videoTrack(t, call.TrackCamera, "video-1", "stream-user")
	media := NewMedia(nil, cam, nil)

	if media.MicrophoneTrack() != nil {
		t.Error("MicrophoneTrack() != nil for mic-less media")
	}
	if got := len(media.Tracks()); got != 1 {
		t.Fatalf("tracks = %d, want 1", got)
	}

	md := media.SDPMetadata()
	user := md["stream-user"]
	if !user.AudioMuted {
		t.Error("audio_muted = false, want true when no microphone track")
	}
	if user.VideoMuted {
		t.Error("video_muted = true, want false")
	}
}

func TestMedia_Trackless(t *testing.T) {
	t.Parallel()

	media := NewMedia(nil, nil, nil)
	if got := len(media.Tracks()); got != 0 {
		t.Errorf("tracks = %d, want 0", got)
	}
	if got := len(media.SDPMetadata()); got != 0 {
		t.Errorf("metadata entries = %d, want 0", got)
	}
}

func TestLocalTrack_StopCallback(t *testing.T) {
	t.Parallel()

	stopped := false
	track := audioTrack(t, "audio-1", "stream-user")
	track.stop = func() { stopped = true }

	track.Stop()
	if !stopped {
		t.Error("stop callback not invoked")
	}

	// A track without a stop callback is safe to stop.
	NewLocalTrack(call.TrackMicrophone, track.rtpTrack, nil).Stop()
}
