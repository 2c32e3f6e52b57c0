package webrtc

import (
	"github.com/pion/webrtc/v4"
)

const (
	// DataChannelLabel is the label used for the call control data channel.
	DataChannelLabel = "peerlink"
)

// dataChannelConfig returns the pion DataChannelInit for the control
// channel. Control messages are small and order-sensitive, so the channel is
// reliable and ordered.
func dataChannelConfig() *webrtc.DataChannelInit {
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered: &ordered,
	}
}
