package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/utc-chat/peerlink/internal/call"
	"github.com/utc-chat/peerlink/internal/config"
	"github.com/utc-chat/peerlink/internal/signaling"
	"github.com/utc-chat/peerlink/internal/timer"
	"github.com/utc-chat/peerlink/internal/turn"
	rtcpkg "github.com/utc-chat/peerlink/internal/webrtc"
	"github.com/utc-chat/peerlink/pkg/protocol"
)

// SignalingClient abstracts the signaling WebSocket connection for testability.
type SignalingClient interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg protocol.Message) error
	Messages() <-chan protocol.Message
	ForceReconnect()
	Close() error
}

// Deps holds all external dependencies the Session needs. This allows tests
// to inject fakes for the transport, the peer connection, the clock, and
// media acquisition. Production code uses DefaultDeps().
type Deps struct {
	Signaling     func(cfg signaling.ClientConfig) SignalingClient
	NewConnection call.PeerConnectionFactory
	Timeouts      call.TimeoutCreator
	Media         call.MediaPromise
}

// DefaultDeps returns the production implementations: the websocket
// signaling client, a pion-backed peer connection with the configured ICE
// servers (TURN credentials derived from the shared secret), the wall-clock
// timeout service, and a trackless media handle (no capture devices wired in
// the CLI).
func DefaultDeps(cfg *config.Config, logger *slog.Logger) Deps {
	ice := rtcpkg.ICEConfig{
		STUNServers: cfg.STUN.Servers,
		ForceRelay:  cfg.Device.ForceRelay,
	}
	if cfg.TURN.Server != "" && cfg.TURN.Secret != "" {
		ttl := time.Duration(cfg.TURN.CredentialTTLHours) * time.Hour
		creds := turn.New(cfg.TURN.Secret, cfg.Device.Name, ttl)
		ice.TURNServer = cfg.TURN.Server
		ice.TURNUsername = creds.Username
		ice.TURNPassword = creds.Password
	}

	media := rtcpkg.NewMedia(nil, nil, nil)

	return Deps{
		Signaling: func(clientCfg signaling.ClientConfig) SignalingClient {
			return signaling.NewClient(clientCfg)
		},
		NewConnection: rtcpkg.Factory(rtcpkg.Config{ICE: ice, Logger: logger}),
		Timeouts:      timer.New(nil),
		Media:         media.Promise(),
	}
}
