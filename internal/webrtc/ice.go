package webrtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// ICEConfig holds the STUN/TURN server configuration for a peer connection.
type ICEConfig struct {
	// STUNServers is a list of STUN server URIs. When empty, the fallback
	// STUN server is used.
	STUNServers []string

	// TURNServer is an optional TURN server URI with its credentials.
	TURNServer   string
	TURNUsername string
	TURNPassword string

	// ForceRelay forces all connections through the TURN relay, bypassing
	// direct (host/srflx) connectivity.
	ForceRelay bool
}

// pionICEServers converts the config to pion's ICE server list.
func (c ICEConfig) pionICEServers() []webrtc.ICEServer {
	stun := c.STUNServers
	if len(stun) == 0 {
		stun = []string{protocol.FallbackICEServer}
	}

	servers := []webrtc.ICEServer{{URLs: stun}}
	if c.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUsername,
			Credential: c.TURNPassword,
		})
	}
	return servers
}
