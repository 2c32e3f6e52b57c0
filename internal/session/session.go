// Package session is the host layer that binds the signalling transport to
// the call engine: it routes inbound messages to the active call, stamps the
// routing envelope onto outbound messages, and surfaces state updates.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/internal/config"
	"github.com/utc-chat/peerlink/internal/signaling"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// Update is a snapshot of the active call published on every state change.
type Update struct {
	CallID       string
	State        call.State
	HangupParty  call.Party
	HangupReason call.ErrorCode
}

// Session owns the signalling connection and at most one peer call. It
// implements the engine's Delegate.
type Session struct {
	cfg  *config.Config
	log  *slog.Logger
	deps Deps

	autoAnswer bool
	updates    chan Update
	ready      chan struct{}

	sigClient SignalingClient

	mu         sync.Mutex
	activeCall *call.PeerCall
	remotePeer string // hub peer id of the active call's remote device
}

// Option customizes a Session.
type Option func(*Session)

// WithDeps overrides the production dependencies, used by tests.
func WithDeps(deps Deps) Option {
	return func(s *Session) { s.deps = deps }
}

// WithAutoAnswer makes the session answer inbound calls as soon as they ring.
func WithAutoAnswer() Option {
	return func(s *Session) { s.autoAnswer = true }
}

// New creates a new Session with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		cfg:     cfg,
		log:     logger.With("component", "session"),
		updates: make(chan Update, 16),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Signaling == nil {
		s.deps = DefaultDeps(cfg, logger)
	}

	s.sigClient = s.deps.Signaling(signaling.ClientConfig{
		ServerURL: cfg.Network.ServerURL,
		PeerID:    cfg.Device.Name,
		TokenProvider: func() string {
			return cfg.Network.AccessToken
		},
		Logger: s.log,
		Reconnect: signaling.ReconnectConfig{
			Enabled: true,
		},
	})

	return s
}

// WaitReady blocks until the session is connected to the hub.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates returns the channel of call state snapshots.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Run connects to the signalling hub and processes messages until the
// context is cancelled or the connection is lost for good.
func (s *Session) Run(ctx context.Context) error {
	if err := s.sigClient.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to signaling hub: %w", err)
	}
	close(s.ready)

	s.log.Info("session started",
		"device", s.cfg.Device.Name,
		"party_id", s.cfg.Device.PartyID,
		"server", s.cfg.Network.ServerURL,
	)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case msg, ok := <-s.sigClient.Messages():
			if !ok {
				s.shutdown()
				return fmt.Errorf("signaling connection closed")
			}
			if err := s.handleMessage(ctx, msg); err != nil {
				s.log.Error("handling signaling message", "error", err)
			}
		}
	}
}

// Dial starts an outbound call to the given hub peer and returns once the
// invite is out (or the call failed).
func (s *Session) Dial(ctx context.Context, peerID string) (*call.PeerCall, error) {
	s.mu.Lock()
	if s.activeCall != nil && !s.activeCall.State().IsTerminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("dialing %s: a call is already active", peerID)
	}
	s.remotePeer = peerID
	s.mu.Unlock()

	pc, err := call.New(call.Config{
		Logger:        s.log,
		Delegate:      s,
		Timeouts:      s.deps.Timeouts,
		NewConnection: s.deps.NewConnection,
		CallTimeout:   time.Duration(s.cfg.Call.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", peerID, err)
	}

	s.mu.Lock()
	s.activeCall = pc
	s.mu.Unlock()

	if err := pc.Call(ctx, s.deps.Media); err != nil {
		return nil, fmt.Errorf("dialing %s: %w", peerID, err)
	}
	return pc, nil
}

// ActiveCall returns the current call, or nil.
func (s *Session) ActiveCall() *call.PeerCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCall
}

// Hangup ends the active call, if any.
func (s *Session) Hangup(ctx context.Context) {
	if pc := s.ActiveCall(); pc != nil {
		pc.Hangup(ctx, call.ErrCodeUserHangup)
	}
}

// handleMessage routes one inbound signalling message.
func (s *Session) handleMessage(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.InviteMessage:
		return s.handleInvite(ctx, m)
	case *protocol.AnswerMessage:
		return s.routeToCall(ctx, m, m.CallID, m.PartyID)
	case *protocol.CandidatesMessage:
		return s.routeToCall(ctx, m, m.CallID, m.PartyID)
	case *protocol.NegotiateMessage:
		return s.routeToCall(ctx, m, m.CallID, m.PartyID)
	case *protocol.HangupMessage:
		return s.routeToCall(ctx, m, m.CallID, m.PartyID)
	case *protocol.PeersMessage:
		for _, p := range m.Peers {
			s.log.Info("peer available", "peer_id", p.PeerID)
		}
		return nil
	case *protocol.PeerLeftMessage:
		s.log.Info("peer left", "peer_id", m.PeerID)
		return nil
	default:
		s.log.Debug("ignoring unknown message type", "type", msg.MessageType())
		return nil
	}
}

// handleInvite accepts an invite into a fresh call, or rejects it busy when
// a call is already active.
func (s *Session) handleInvite(ctx context.Context, m *protocol.InviteMessage) error {
	s.mu.Lock()
	if s.activeCall != nil && !s.activeCall.State().IsTerminal() {
		busy := s.activeCall.CallID() != m.CallID
		s.mu.Unlock()
		if busy {
			s.log.Info("rejecting invite while busy", "from", m.From, "call_id", m.CallID)
			return s.sigClient.Send(ctx, &protocol.HangupMessage{
				Envelope: protocol.Envelope{
					From:    s.cfg.Device.Name,
					To:      m.From,
					CallID:  m.CallID,
					PartyID: s.cfg.Device.PartyID,
				},
				Version: protocol.Version,
				Reason:  string(call.ErrCodeUserBusy),
			})
		}
		return nil
	}
	s.remotePeer = m.From
	s.mu.Unlock()

	pc, err := call.New(call.Config{
		CallID:        m.CallID,
		Logger:        s.log,
		Delegate:      s,
		Timeouts:      s.deps.Timeouts,
		NewConnection: s.deps.NewConnection,
		CallTimeout:   time.Duration(s.cfg.Call.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("accepting invite: %w", err)
	}

	s.mu.Lock()
	s.activeCall = pc
	s.mu.Unlock()

	if err := pc.HandleIncomingSignallingMessage(ctx, m, m.PartyID); err != nil {
		return err
	}

	if s.autoAnswer && pc.State() == call.StateRinging {
		go func() {
			if err := pc.Answer(ctx, s.deps.Media); err != nil {
				s.log.Error("answering call", "error", err)
			}
		}()
	}
	return nil
}

// routeToCall hands a message to the active call when the call id matches.
func (s *Session) routeToCall(ctx context.Context, msg protocol.Message, callID, partyID string) error {
	s.mu.Lock()
	pc := s.activeCall
	s.mu.Unlock()

	if pc == nil || pc.CallID() != callID {
		s.log.Debug("ignoring message for unknown call",
			"type", msg.MessageType(), "call_id", callID)
		return nil
	}
	return pc.HandleIncomingSignallingMessage(ctx, msg, partyID)
}

// EmitUpdate implements call.Delegate.
func (s *Session) EmitUpdate(pc *call.PeerCall) {
	u := Update{
		CallID:       pc.CallID(),
		State:        pc.State(),
		HangupParty:  pc.HangupParty(),
		HangupReason: pc.HangupReason(),
	}
	s.log.Info("call update", "call_id", u.CallID, "state", u.State.String())

	select {
	case s.updates <- u:
	default:
		// Slow consumer; drop rather than stall the engine.
	}
}

// SendSignallingMessage implements call.Delegate: it stamps the routing
// envelope and hands the message to the transport.
func (s *Session) SendSignallingMessage(ctx context.Context, msg protocol.Message) error {
	s.mu.Lock()
	pc := s.activeCall
	to := s.remotePeer
	s.mu.Unlock()

	if pc == nil {
		return fmt.Errorf("sending %s: no active call", msg.MessageType())
	}

	env := protocol.Envelope{
		From:    s.cfg.Device.Name,
		To:      to,
		CallID:  pc.CallID(),
		PartyID: s.cfg.Device.PartyID,
	}
	stampEnvelope(msg, env)

	return s.sigClient.Send(ctx, msg)
}

// stampEnvelope fills the routing fields of a call message in place.
func stampEnvelope(msg protocol.Message, env protocol.Envelope) {
	switch m := msg.(type) {
	case *protocol.InviteMessage:
		m.Envelope = env
	case *protocol.AnswerMessage:
		m.Envelope = env
	case *protocol.CandidatesMessage:
		m.Envelope = env
	case *protocol.NegotiateMessage:
		m.Envelope = env
	case *protocol.HangupMessage:
		m.Envelope = env
	}
}

// shutdown tears down the active call and the signalling client.
func (s *Session) shutdown() {
	s.log.Info("shutting down session")

	s.mu.Lock()
	pc := s.activeCall
	s.activeCall = nil
	s.mu.Unlock()

	if pc != nil {
		pc.Dispose()
	}

	if s.sigClient != nil {
		if err := s.sigClient.Close(); err != nil {
			s.log.Error("closing signaling client", "error", err)
		}
	}
}
