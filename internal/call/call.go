// Package call implements the 1:1 peer call signalling engine: a state
// machine that drives a single peer-to-peer media session through its
// lifecycle (offer/answer exchange, ICE candidate trickling, renegotiation,
// hangup) over an abstract messaging transport.
//
// The engine owns an abstract PeerConnection and reacts to its callbacks;
// outbound signalling and state updates flow through the Delegate supplied
// by the host. All media transport (ICE/DTLS/SRTP) and message delivery are
// external collaborators.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

const (
	// iceGatheringGrace is how long a freshly set local description waits
	// for initial candidate gathering before the description is sent.
	iceGatheringGrace = 200 * time.Millisecond

	// candidateSendDelayInbound batches outbound trickle candidates on the
	// answering side. The answerer's SDP round-trip is already done, so it
	// can trickle quickly.
	candidateSendDelayInbound = 500 * time.Millisecond

	// candidateSendDelayOutbound batches outbound trickle candidates on the
	// calling side. A longer window lets most candidates ride in one message
	// while the invite is still in flight.
	candidateSendDelayOutbound = 2 * time.Second
)

// Config configures a PeerCall. Delegate, Timeouts, and NewConnection are
// required; the rest defaults.
type Config struct {
	// CallID identifies the call in signalling envelopes. Generated when empty.
	CallID string

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Delegate receives state updates and outbound signalling messages.
	Delegate Delegate

	// Timeouts creates the cancellable delays used for trickle batching,
	// gathering grace, and invite expiry.
	Timeouts TimeoutCreator

	// NewConnection creates the peer connection, registering the engine's
	// observer at construction.
	NewConnection PeerConnectionFactory

	// CallTimeout bounds how long an invite may stay unanswered (sent or
	// ringing). Zero means protocol.CallTimeoutMS.
	CallTimeout time.Duration
}

// PeerCall is the unit of state for one 1:1 call. It is created by the host,
// driven by Call or by inbound signalling messages, and lives until Dispose.
//
// A PeerCall may be touched from multiple goroutines (host operations, peer
// connection callbacks, timer expiries); one mutex guards all fields, and
// every operation that blocks releases it and re-reads state afterwards.
type PeerCall struct {
	callID   string
	log      *slog.Logger
	delegate Delegate
	timeouts TimeoutCreator

	// ctx is cancelled on termination to wake every in-flight delay and send.
	ctx    context.Context
	cancel context.CancelFunc

	callTimeout time.Duration

	mu           sync.Mutex
	state        State
	direction    Direction
	conn         PeerConnection
	localMedia   LocalMedia
	opponentID   string
	hangupParty  Party
	hangupReason ErrorCode

	// polite is the perfect-negotiation role: the inbound side yields on
	// glare, the outbound side ignores colliding remote offers.
	polite      bool
	makingOffer bool
	ignoreOffer bool

	candidateSendQueue     []protocol.Candidate
	candidateSendScheduled bool

	// remoteCandidateBuffer holds candidates that arrived before an opponent
	// party was committed, keyed by sender party id. Nil once drained.
	remoteCandidateBuffer map[string][]protocol.Candidate

	remoteStreamMetadata map[string]protocol.StreamMetadata

	negotiationQueue   []func()
	negotiationRunning bool

	stateWaiters map[State]chan struct{}
	visited      map[State]bool
	disposables  map[Timeout]struct{}

	inviteSent bool
	answerSent bool
}

// New creates a PeerCall in the Fledgling state and constructs its peer
// connection via cfg.NewConnection.
func New(cfg Config) (*PeerCall, error) {
	if cfg.Delegate == nil {
		return nil, fmt.Errorf("creating peer call: delegate is required")
	}
	if cfg.Timeouts == nil {
		return nil, fmt.Errorf("creating peer call: timeout creator is required")
	}
	if cfg.NewConnection == nil {
		return nil, fmt.Errorf("creating peer call: connection factory is required")
	}

	callID := cfg.CallID
	if callID == "" {
		callID = uuid.NewString()
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "call", "call_id", callID)

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = protocol.CallTimeoutMS * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &PeerCall{
		callID:                callID,
		log:                   log,
		delegate:              cfg.Delegate,
		timeouts:              cfg.Timeouts,
		ctx:                   ctx,
		cancel:                cancel,
		callTimeout:           callTimeout,
		state:                 StateFledgling,
		remoteCandidateBuffer: make(map[string][]protocol.Candidate),
		remoteStreamMetadata:  make(map[string]protocol.StreamMetadata),
		stateWaiters:          make(map[State]chan struct{}),
		visited:               map[State]bool{StateFledgling: true},
		disposables:           make(map[Timeout]struct{}),
	}

	conn, err := cfg.NewConnection(c)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c, nil
}

// CallID returns the call's identifier.
func (c *PeerCall) CallID() string { return c.callID }

// State returns the current lifecycle state.
func (c *PeerCall) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Direction returns which side initiated the call.
func (c *PeerCall) Direction() Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// OpponentPartyID returns the committed remote party id, or "" while unset.
func (c *PeerCall) OpponentPartyID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opponentID
}

// HangupParty reports which side ended the call. PartyNone until Ended.
func (c *PeerCall) HangupParty() Party {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangupParty
}

// HangupReason reports why the call ended. Empty until Ended.
func (c *PeerCall) HangupReason() ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangupReason
}

// Call starts an outbound call. Valid only in Fledgling. It awaits local
// media, adds the local tracks (which triggers negotiation and drives the
// Invite), and returns once the call reaches InviteSent or ends.
func (c *PeerCall) Call(ctx context.Context, media MediaPromise) error {
	c.mu.Lock()
	if c.state != StateFledgling {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("starting call: invalid state %s", state)
	}
	c.direction = DirectionOutbound
	c.polite = false
	c.setStateLocked(StateWaitLocalMedia)
	conn := c.conn
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	lm, err := media(ctx)

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		if lm != nil {
			stopTracks(lm)
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.terminate(PartyLocal, ErrCodeNoUserMedia, true)
		return fmt.Errorf("acquiring local media: %w", err)
	}
	c.localMedia = lm
	c.setStateLocked(StateCreateOffer)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	// A data channel guarantees at least one m-line, so negotiation fires
	// even for a call without capture tracks.
	if err := conn.CreateDataChannel(); err != nil {
		c.log.Warn("creating data channel", "error", err)
	}

	for _, t := range lm.Tracks() {
		if err := conn.AddTrack(t); err != nil {
			c.log.Error("adding local track", "kind", t.Kind(), "error", err)
			c.terminate(PartyLocal, ErrCodeLocalOfferFailed, true)
			return fmt.Errorf("adding local track: %w", err)
		}
	}

	return c.waitForState(ctx, StateInviteSent)
}

// Answer accepts an inbound call. Valid only in Ringing. It awaits local
// media, adds the local tracks, generates and applies the answer, and emits
// the Answer message after a short candidate-gathering grace.
func (c *PeerCall) Answer(ctx context.Context, media MediaPromise) error {
	c.mu.Lock()
	if c.state != StateRinging {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("answering call: invalid state %s", state)
	}
	c.setStateLocked(StateWaitLocalMedia)
	conn := c.conn
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	lm, err := media(ctx)

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		if lm != nil {
			stopTracks(lm)
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.terminate(PartyLocal, ErrCodeNoUserMedia, true)
		return fmt.Errorf("acquiring local media: %w", err)
	}
	c.localMedia = lm
	c.setStateLocked(StateCreateAnswer)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	for _, t := range lm.Tracks() {
		if err := conn.AddTrack(t); err != nil {
			c.log.Error("adding local track", "kind", t.Kind(), "error", err)
			c.terminate(PartyLocal, ErrCodeCreateAnswer, true)
			return fmt.Errorf("adding local track: %w", err)
		}
	}

	answer, err := conn.CreateAnswer(ctx)
	if c.endedAfterSuspension() {
		return nil
	}
	if err != nil {
		c.terminate(PartyLocal, ErrCodeCreateAnswer, true)
		return fmt.Errorf("creating answer: %w", err)
	}

	if err := conn.SetLocalDescription(ctx, &answer); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSetLocalDescription, true)
		return fmt.Errorf("setting local description: %w", err)
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	// Give the ICE agent a moment so the answer SDP carries the first
	// candidates.
	if !c.delay(iceGatheringGrace) {
		return nil
	}

	return c.sendAnswer(ctx)
}

// sendAnswer emits the Answer message with the current local description and
// stream metadata, then flushes any candidates that trickled in during the send.
func (c *PeerCall) sendAnswer(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateEnded || c.answerSent {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	lm := c.localMedia
	c.mu.Unlock()

	desc := conn.LocalDescription()
	if desc == nil {
		c.terminate(PartyLocal, ErrCodeSetLocalDescription, true)
		return fmt.Errorf("sending answer: no local description")
	}

	msg := &protocol.AnswerMessage{
		Version: protocol.Version,
		Answer:  *desc,
	}
	if lm != nil {
		msg.StreamMetadata = lm.SDPMetadata()
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	// Candidates gathered before the description was snapshotted are
	// contained in the SDP.
	c.candidateSendQueue = nil
	c.answerSent = true
	c.mu.Unlock()

	if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSendAnswer, true)
		return fmt.Errorf("sending answer: %w", err)
	}

	c.sendCandidateQueue(ctx)
	return nil
}

// Hangup ends the call locally: it sends a Hangup message (best effort) and
// terminates with the given reason.
func (c *PeerCall) Hangup(ctx context.Context, reason ErrorCode) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	msg := &protocol.HangupMessage{
		Version: protocol.Version,
		Reason:  string(reason),
	}
	if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
		c.log.Warn("sending hangup", "error", err)
	}

	c.terminate(PartyLocal, reason, true)
}

// Dispose releases the call's resources: timers, the peer connection, and
// local tracks. A live call is terminated without emitting an update or
// sending a Hangup.
func (c *PeerCall) Dispose() {
	c.terminate(PartyLocal, ErrCodeUserHangup, false)
}

// HandleIncomingSignallingMessage dispatches an inbound signalling message
// from the given remote party. Unknown kinds are ignored.
func (c *PeerCall) HandleIncomingSignallingMessage(ctx context.Context, msg protocol.Message, partyID string) error {
	switch m := msg.(type) {
	case *protocol.InviteMessage:
		return c.handleInvite(ctx, m, partyID)
	case *protocol.AnswerMessage:
		return c.handleAnswer(ctx, m, partyID)
	case *protocol.CandidatesMessage:
		c.handleRemoteIceCandidates(m, partyID)
		return nil
	case *protocol.NegotiateMessage:
		return c.handleNegotiateMessage(ctx, m, partyID)
	case *protocol.HangupMessage:
		c.terminate(PartyRemote, remoteErrorCode(m.Reason), false)
		return nil
	default:
		c.log.Debug("ignoring unknown signalling message", "type", msg.MessageType())
		return nil
	}
}

// handleInvite processes an inbound Invite: it commits the opponent party,
// applies the offer, drains buffered candidates, and starts ringing.
func (c *PeerCall) handleInvite(ctx context.Context, msg *protocol.InviteMessage, partyID string) error {
	c.mu.Lock()
	if c.state != StateFledgling || c.opponentID != "" {
		c.log.Debug("ignoring invite", "state", c.state.String(), "party_id", partyID)
		c.mu.Unlock()
		return nil
	}
	c.direction = DirectionInbound
	c.polite = true
	// Commit the opponent before the first suspension point so a competing
	// device cannot be accepted concurrently.
	c.opponentID = partyID
	if msg.StreamMetadata != nil {
		c.mergeRemoteStreamMetadataLocked(msg.StreamMetadata)
	}
	conn := c.conn
	c.mu.Unlock()

	lifetime := time.Duration(msg.Lifetime) * time.Millisecond
	if lifetime <= 0 {
		lifetime = c.callTimeout
	}

	if err := conn.SetRemoteDescription(ctx, msg.Offer); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSetRemoteDescription, true)
		return fmt.Errorf("setting remote offer: %w", err)
	}

	c.drainRemoteCandidateBuffer(partyID)

	if len(conn.RemoteTracks()) == 0 {
		c.log.Error("remote offer yielded no tracks")
		c.terminate(PartyLocal, ErrCodeSetRemoteDescription, true)
		return fmt.Errorf("setting remote offer: no remote tracks")
	}

	c.refreshRemoteTracks()

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateRinging)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	// Expire the invite: if nobody answers within its lifetime, the remote
	// party has effectively rescinded it.
	c.afterDelay(lifetime, func() {
		c.mu.Lock()
		stillRinging := c.state == StateRinging
		c.mu.Unlock()
		if stillRinging {
			c.log.Info("invite expired while ringing")
			c.terminate(PartyRemote, ErrCodeInviteTimeout, true)
		}
	})

	return nil
}

// handleAnswer processes an inbound Answer: it commits the opponent party,
// drains buffered candidates, and applies the answer description.
func (c *PeerCall) handleAnswer(ctx context.Context, msg *protocol.AnswerMessage, partyID string) error {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	if c.opponentID != "" && c.opponentID != partyID {
		// A different remote device already answered; "answered elsewhere"
		// arrives as a separate Hangup.
		c.log.Debug("ignoring answer from non-opponent party", "party_id", partyID)
		c.mu.Unlock()
		return nil
	}
	if c.opponentID == partyID {
		// Duplicate answer from the committed opponent.
		c.log.Debug("ignoring duplicate answer", "party_id", partyID)
		c.mu.Unlock()
		return nil
	}
	c.opponentID = partyID
	conn := c.conn
	c.mu.Unlock()

	c.drainRemoteCandidateBuffer(partyID)

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	if msg.StreamMetadata != nil {
		c.updateRemoteStreamMetadata(msg.StreamMetadata)
	}

	if err := conn.SetRemoteDescription(ctx, msg.Answer); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSetRemoteDescription, true)
		return fmt.Errorf("setting remote answer: %w", err)
	}

	c.refreshRemoteTracks()
	return nil
}

// handleNegotiateMessage processes a mid-call renegotiation: metadata
// refresh, glare resolution, and remote description application. A remote
// offer is answered through the negotiation queue so it cannot overtake a
// renegotiation already in flight.
func (c *PeerCall) handleNegotiateMessage(ctx context.Context, msg *protocol.NegotiateMessage, partyID string) error {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	if c.opponentID == "" || c.opponentID != partyID {
		c.log.Debug("ignoring negotiate from non-opponent party", "party_id", partyID)
		c.mu.Unlock()
		return nil
	}
	if msg.StreamMetadata != nil {
		c.mergeRemoteStreamMetadataLocked(msg.StreamMetadata)
	}
	if msg.Description == nil {
		c.mu.Unlock()
		c.refreshRemoteTracks()
		return nil
	}
	desc := *msg.Description

	offerCollision := desc.Type == "offer" && c.makingOffer
	c.ignoreOffer = !c.polite && offerCollision
	if c.ignoreOffer {
		c.log.Debug("glare: ignoring colliding remote offer")
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.refreshRemoteTracks()

	if err := conn.SetRemoteDescription(ctx, desc); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSetRemoteDescription, true)
		return fmt.Errorf("setting remote description: %w", err)
	}

	c.mu.Lock()
	c.ignoreOffer = false
	c.mu.Unlock()

	if desc.Type == "offer" {
		// Answer through the serializer so it lines up behind any
		// renegotiation already running.
		c.enqueueNegotiation(c.handleNegotiation)
	}
	return nil
}

// SetMuted flips the muted flag on the local track of the given kind and,
// when the call is connected, pushes the refreshed stream metadata to the
// remote party.
func (c *PeerCall) SetMuted(ctx context.Context, kind TrackKind, muted bool) error {
	c.mu.Lock()
	if c.state == StateEnded || c.localMedia == nil {
		c.mu.Unlock()
		return nil
	}
	track := trackForKind(c.localMedia, kind)
	if track == nil {
		c.mu.Unlock()
		return fmt.Errorf("setting mute: no %s track", kind)
	}
	track.SetMuted(muted)
	connected := c.state == StateConnected
	var md map[string]protocol.StreamMetadata
	if connected {
		md = c.localMedia.SDPMetadata()
	}
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	if !connected {
		return nil
	}

	msg := &protocol.NegotiateMessage{
		Version:        protocol.Version,
		StreamMetadata: md,
	}
	if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
		if c.endedAfterSuspension() {
			return nil
		}
		c.terminate(PartyLocal, ErrCodeSignallingFailed, true)
		return fmt.Errorf("sending mute update: %w", err)
	}
	return nil
}

// WaitForState blocks until the call reaches the given state, ends, or the
// context is cancelled.
func (c *PeerCall) WaitForState(ctx context.Context, s State) error {
	return c.waitForState(ctx, s)
}

func (c *PeerCall) waitForState(ctx context.Context, s State) error {
	c.mu.Lock()
	target := c.waiterLocked(s)
	ended := c.waiterLocked(StateEnded)
	c.mu.Unlock()

	select {
	case <-target:
		return nil
	case <-ended:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waiterLocked returns the one-shot channel closed when the call enters s.
// A state the call has already passed through counts as reached.
func (c *PeerCall) waiterLocked(s State) chan struct{} {
	if c.visited[s] || (s != StateEnded && c.state == StateEnded) {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	ch, ok := c.stateWaiters[s]
	if !ok {
		ch = make(chan struct{})
		c.stateWaiters[s] = ch
	}
	return ch
}

// setStateLocked transitions to s and wakes waiters. Callers hold c.mu and
// are responsible for calling EmitUpdate after releasing it.
func (c *PeerCall) setStateLocked(s State) {
	if c.state == StateEnded {
		return
	}
	c.state = s
	c.visited[s] = true
	c.log.Debug("state changed", "state", s.String())
	if ch, ok := c.stateWaiters[s]; ok {
		close(ch)
		delete(c.stateWaiters, s)
	}
}

// endedAfterSuspension re-reads state after a suspension point; a true
// result means the resumption must become a no-op.
func (c *PeerCall) endedAfterSuspension() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateEnded
}

// terminate is the only entry point into Ended. It records the hangup
// attribution, then tears down in order: local tracks, peer connection,
// outstanding delays, delegate notification, awaiters.
func (c *PeerCall) terminate(party Party, reason ErrorCode, emit bool) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.hangupParty = party
	c.hangupReason = reason
	c.state = StateEnded
	c.visited[StateEnded] = true
	c.log.Info("call ended", "party", party.String(), "reason", string(reason))

	c.negotiationQueue = nil
	c.remoteCandidateBuffer = nil
	c.candidateSendQueue = nil

	media := c.localMedia
	conn := c.conn
	timeouts := make([]Timeout, 0, len(c.disposables))
	for to := range c.disposables {
		timeouts = append(timeouts, to)
	}
	c.disposables = nil
	c.mu.Unlock()

	// Wake every in-flight delay and send before releasing resources.
	c.cancel()

	if media != nil {
		stopTracks(media)
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Warn("closing peer connection", "error", err)
		}
	}
	for _, to := range timeouts {
		to.Abort()
	}

	if emit {
		c.delegate.EmitUpdate(c)
	}

	// Resolve awaiters blocked on Ended last, once teardown is complete.
	c.mu.Lock()
	if ch, ok := c.stateWaiters[StateEnded]; ok {
		close(ch)
		delete(c.stateWaiters, StateEnded)
	}
	c.mu.Unlock()
}

// delay waits d using the timeout service. It returns false when the call
// ended before the delay elapsed.
func (c *PeerCall) delay(d time.Duration) bool {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return false
	}
	to := c.timeouts.CreateTimeout(d)
	c.disposables[to] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.disposables != nil {
			delete(c.disposables, to)
		}
		c.mu.Unlock()
	}()

	select {
	case <-to.Elapsed():
		return true
	case <-c.ctx.Done():
		to.Abort()
		return false
	}
}

// afterDelay runs fn after d unless the call ends first.
func (c *PeerCall) afterDelay(d time.Duration, fn func()) {
	go func() {
		if c.delay(d) {
			fn()
		}
	}()
}

// stopTracks stops every track owned by a media handle.
func stopTracks(lm LocalMedia) {
	for _, t := range lm.Tracks() {
		t.Stop()
	}
}

// trackForKind returns the local track filling the given role, or nil.
func trackForKind(lm LocalMedia, kind TrackKind) Track {
	switch kind {
	case TrackMicrophone:
		return lm.MicrophoneTrack()
	case TrackCamera:
		return lm.CameraTrack()
	case TrackScreenShare:
		return lm.ScreenShareTrack()
	default:
		return nil
	}
}
