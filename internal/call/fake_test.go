package call_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// --- Fake timeout service ---

// fakeTimeouts is a virtual-clock timeout service: timeouts fire only when
// the test advances the clock. Thread-safe.
type fakeTimeouts struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*fakeTimeout
}

func newFakeTimeouts() *fakeTimeouts {
	return &fakeTimeouts{}
}

func (f *fakeTimeouts) CreateTimeout(d time.Duration) call.Timeout {
	f.mu.Lock()
	defer f.mu.Unlock()
	to := &fakeTimeout{
		dur:      d,
		deadline: f.now + d,
		elapsed:  make(chan struct{}),
	}
	f.pending = append(f.pending, to)
	return to
}

// advance moves the virtual clock forward, firing every timeout whose
// deadline has been reached.
func (f *fakeTimeouts) advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	var due []*fakeTimeout
	for _, to := range f.pending {
		if to.deadline <= f.now {
			due = append(due, to)
		}
	}
	f.mu.Unlock()

	for _, to := range due {
		to.fire()
	}
}

// pendingCount returns how many live (unfired, unaborted) timeouts of the
// given duration exist.
func (f *fakeTimeouts) pendingCount(d time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, to := range f.pending {
		if to.dur == d && !to.isDone() {
			n++
		}
	}
	return n
}

type fakeTimeout struct {
	dur      time.Duration
	deadline time.Duration
	elapsed  chan struct{}

	mu   sync.Mutex
	done bool
}

func (t *fakeTimeout) Elapsed() <-chan struct{} { return t.elapsed }

func (t *fakeTimeout) Abort() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *fakeTimeout) fire() {
	t.mu.Lock()
	if !t.done {
		t.done = true
		close(t.elapsed)
	}
	t.mu.Unlock()
}

func (t *fakeTimeout) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// --- Fake peer connection ---

// fakeConn implements call.PeerConnection with in-memory recording. Tests
// drive the engine's observer callbacks directly through the PeerCall.
type fakeConn struct {
	mu  sync.Mutex
	obs call.Observer

	localDesc          *protocol.SessionDescription
	remoteDescs        []protocol.SessionDescription
	pendingRemoteOffer bool
	gathering          call.ICEGatheringState
	sldSeq             int
	sldCalls           int

	added        []call.Track
	removed      []call.Track
	replaced     [][2]call.Track
	candidates   []protocol.Candidate
	remoteTracks []*fakeRemoteTrack
	dataChannels int
	closed       bool
	purposeRuns  int

	// remoteTracksOnOffer are attached when a remote offer is applied,
	// mimicking the track set carried by the offer's SDP.
	remoteTracksOnOffer []*fakeRemoteTrack

	// autoNegotiate fires one coalesced OnNegotiationNeeded when the control
	// channel is created, unless a remote offer is pending — matching how
	// the platform raises the event for the initial offer.
	autoNegotiate    bool
	negotiationArmed bool

	// When sldStarted is non-nil, SetLocalDescription announces itself on it
	// and blocks until sldRelease delivers.
	sldStarted chan struct{}
	sldRelease chan struct{}

	createOfferErr  error
	createAnswerErr error
	setLocalErr     error
	setRemoteErr    error
	addCandErr      error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		gathering:     call.ICEGatheringComplete,
		autoNegotiate: true,
	}
}

// factory returns a connection factory that captures the engine's observer.
func (f *fakeConn) factory() call.PeerConnectionFactory {
	return func(obs call.Observer) (call.PeerConnection, error) {
		f.mu.Lock()
		f.obs = obs
		f.mu.Unlock()
		return f, nil
	}
}

func (f *fakeConn) CreateOffer(context.Context) (protocol.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOfferErr != nil {
		return protocol.SessionDescription{}, f.createOfferErr
	}
	f.sldSeq++
	return protocol.SessionDescription{Type: "offer", SDP: fmt.Sprintf("v=0 sdp-%d", f.sldSeq)}, nil
}

func (f *fakeConn) CreateAnswer(context.Context) (protocol.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createAnswerErr != nil {
		return protocol.SessionDescription{}, f.createAnswerErr
	}
	f.sldSeq++
	return protocol.SessionDescription{Type: "answer", SDP: fmt.Sprintf("v=0 sdp-%d", f.sldSeq)}, nil
}

func (f *fakeConn) SetLocalDescription(ctx context.Context, desc *protocol.SessionDescription) error {
	f.mu.Lock()
	started, release := f.sldStarted, f.sldRelease
	f.sldCalls++
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setLocalErr != nil {
		return f.setLocalErr
	}
	if desc == nil {
		typ := "offer"
		if f.pendingRemoteOffer {
			typ = "answer"
		}
		f.sldSeq++
		desc = &protocol.SessionDescription{Type: typ, SDP: fmt.Sprintf("v=0 sdp-%d", f.sldSeq)}
	}
	if desc.Type == "answer" {
		f.pendingRemoteOffer = false
	}
	f.localDesc = desc
	f.negotiationArmed = false
	return nil
}

// maybeNegotiate raises one coalesced negotiation-needed event.
func (f *fakeConn) maybeNegotiate() {
	f.mu.Lock()
	if !f.autoNegotiate || f.pendingRemoteOffer || f.negotiationArmed {
		f.mu.Unlock()
		return
	}
	f.negotiationArmed = true
	obs := f.obs
	f.mu.Unlock()
	if obs != nil {
		obs.OnNegotiationNeeded()
	}
}

func (f *fakeConn) SetRemoteDescription(ctx context.Context, desc protocol.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setRemoteErr != nil {
		return f.setRemoteErr
	}
	f.remoteDescs = append(f.remoteDescs, desc)
	if desc.Type == "offer" {
		f.pendingRemoteOffer = true
		f.remoteTracks = append(f.remoteTracks, f.remoteTracksOnOffer...)
		f.remoteTracksOnOffer = nil
	}
	return nil
}

func (f *fakeConn) LocalDescription() *protocol.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.localDesc == nil {
		return nil
	}
	desc := *f.localDesc
	return &desc
}

func (f *fakeConn) AddICECandidate(c protocol.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addCandErr != nil {
		return f.addCandErr
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeConn) AddTrack(t call.Track) error {
	f.mu.Lock()
	f.added = append(f.added, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) RemoveTrack(t call.Track) (bool, error) {
	f.mu.Lock()
	f.removed = append(f.removed, t)
	f.mu.Unlock()
	return true, nil
}

func (f *fakeConn) ReplaceTrack(oldTrack, newTrack call.Track) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, [2]call.Track{oldTrack, newTrack})
	return true, nil
}

func (f *fakeConn) CreateDataChannel() error {
	f.mu.Lock()
	f.dataChannels++
	f.mu.Unlock()
	f.maybeNegotiate()
	return nil
}

func (f *fakeConn) RemoteTracks() []call.RemoteTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	tracks := make([]call.RemoteTrack, len(f.remoteTracks))
	for i, rt := range f.remoteTracks {
		tracks[i] = rt
	}
	return tracks
}

func (f *fakeConn) ICEGatheringState() call.ICEGatheringState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gathering
}

func (f *fakeConn) NotifyStreamPurposeChanged() {
	f.mu.Lock()
	f.purposeRuns++
	obs := f.obs
	remote := append([]*fakeRemoteTrack(nil), f.remoteTracks...)
	f.mu.Unlock()

	for _, rt := range remote {
		rt.deriveKind(obs)
	}
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) addedCandidates() []protocol.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Candidate(nil), f.candidates...)
}

func (f *fakeConn) remoteDescCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.remoteDescs)
}

func (f *fakeConn) sldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sldCalls
}

// --- Fake remote track ---

type fakeRemoteTrack struct {
	streamID string
	audio    bool

	mu    sync.Mutex
	kind  call.TrackKind
	mutes []bool
}

func newFakeRemoteTrack(streamID string, audio bool) *fakeRemoteTrack {
	kind := call.TrackCamera
	if audio {
		kind = call.TrackMicrophone
	}
	return &fakeRemoteTrack{streamID: streamID, audio: audio, kind: kind}
}

func (r *fakeRemoteTrack) Kind() call.TrackKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kind
}

func (r *fakeRemoteTrack) StreamID() string { return r.streamID }

func (r *fakeRemoteTrack) SetMuted(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutes = append(r.mutes, muted)
}

func (r *fakeRemoteTrack) deriveKind(obs call.Observer) {
	kind := call.TrackCamera
	if r.audio {
		kind = call.TrackMicrophone
	} else if obs != nil && obs.GetPurposeForStreamID(r.streamID) == protocol.PurposeScreenshare {
		kind = call.TrackScreenShare
	}
	r.mu.Lock()
	r.kind = kind
	r.mu.Unlock()
}

func (r *fakeRemoteTrack) muteHistory() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.mutes...)
}

// --- Fake local media ---

type fakeTrack struct {
	kind     call.TrackKind
	streamID string

	mu      sync.Mutex
	muted   bool
	stopped bool
}

func newFakeTrack(kind call.TrackKind, streamID string) *fakeTrack {
	return &fakeTrack{kind: kind, streamID: streamID}
}

func (t *fakeTrack) Kind() call.TrackKind { return t.kind }
func (t *fakeTrack) StreamID() string     { return t.streamID }

func (t *fakeTrack) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

func (t *fakeTrack) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeMedia struct {
	mic    *fakeTrack
	cam    *fakeTrack
	screen *fakeTrack
}

func (m *fakeMedia) Tracks() []call.Track {
	var tracks []call.Track
	for _, t := range []*fakeTrack{m.mic, m.cam, m.screen} {
		if t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func (m *fakeMedia) MicrophoneTrack() call.Track {
	if m.mic == nil {
		return nil
	}
	return m.mic
}

func (m *fakeMedia) CameraTrack() call.Track {
	if m.cam == nil {
		return nil
	}
	return m.cam
}

func (m *fakeMedia) ScreenShareTrack() call.Track {
	if m.screen == nil {
		return nil
	}
	return m.screen
}

func (m *fakeMedia) SDPMetadata() map[string]protocol.StreamMetadata {
	md := make(map[string]protocol.StreamMetadata)
	if m.mic != nil || m.cam != nil {
		var streamID string
		meta := protocol.StreamMetadata{
			Purpose:    protocol.PurposeUsermedia,
			AudioMuted: true,
			VideoMuted: true,
		}
		if m.mic != nil {
			streamID = m.mic.streamID
			meta.AudioMuted = m.mic.Muted()
		}
		if m.cam != nil {
			streamID = m.cam.streamID
			meta.VideoMuted = m.cam.Muted()
		}
		md[streamID] = meta
	}
	if m.screen != nil {
		md[m.screen.streamID] = protocol.StreamMetadata{
			Purpose:    protocol.PurposeScreenshare,
			AudioMuted: true,
			VideoMuted: m.screen.Muted(),
		}
	}
	return md
}

func (m *fakeMedia) promise() call.MediaPromise {
	return func(context.Context) (call.LocalMedia, error) {
		return m, nil
	}
}

func failingMedia(err error) call.MediaPromise {
	return func(context.Context) (call.LocalMedia, error) {
		return nil, err
	}
}

// --- Fake delegate ---

type fakeDelegate struct {
	mu     sync.Mutex
	states []call.State
	sent   []protocol.Message

	// sendErr, when set, is consulted per message; a non-nil result fails
	// the send.
	sendErr func(protocol.Message) error
}

func (f *fakeDelegate) EmitUpdate(pc *call.PeerCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, pc.State())
}

func (f *fakeDelegate) SendSignallingMessage(_ context.Context, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		if err := f.sendErr(msg); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeDelegate) sentMessages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent...)
}

func (f *fakeDelegate) sentOfType(typ string) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.sent {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeDelegate) stateHistory() []call.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call.State(nil), f.states...)
}

// --- Test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCall wires a PeerCall to fakes. The returned call is disposed on
// test cleanup.
func newTestCall(t *testing.T) (*call.PeerCall, *fakeConn, *fakeDelegate, *fakeTimeouts) {
	t.Helper()

	conn := newFakeConn()
	del := &fakeDelegate{}
	timeouts := newFakeTimeouts()

	pc, err := call.New(call.Config{
		CallID:        "test-call",
		Logger:        testLogger(),
		Delegate:      del,
		Timeouts:      timeouts,
		NewConnection: conn.factory(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(pc.Dispose)

	return pc, conn, del, timeouts
}

// waitFor waits for a condition function to return true within the timeout.
func waitFor(t *testing.T, timeout time.Duration, desc string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", desc)
}

func strPtr(s string) *string { return &s }

func u16Ptr(v uint16) *uint16 { return &v }

func candidate(s string) protocol.Candidate {
	return protocol.Candidate{
		Candidate:     s,
		SDPMid:        strPtr("0"),
		SDPMLineIndex: u16Ptr(0),
	}
}
