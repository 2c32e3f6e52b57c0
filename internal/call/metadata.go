package call

import "github.com/utc-chat/peerlink/pkg/protocol"

// mergeRemoteStreamMetadataLocked merges incoming metadata into the
// registry, later values overwriting earlier ones per stream id. Callers
// hold c.mu.
func (c *PeerCall) mergeRemoteStreamMetadataLocked(md map[string]protocol.StreamMetadata) {
	for streamID, meta := range md {
		c.remoteStreamMetadata[streamID] = meta
	}
}

// updateRemoteStreamMetadata merges incoming metadata and re-evaluates every
// remote track against the registry.
func (c *PeerCall) updateRemoteStreamMetadata(md map[string]protocol.StreamMetadata) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.mergeRemoteStreamMetadataLocked(md)
	c.mu.Unlock()

	c.refreshRemoteTracks()
}

// refreshRemoteTracks tells the connection the stream purposes may have
// changed (so each remote track re-derives its kind) and reapplies the
// registry's mute flags: audio mute for microphone tracks, video mute for
// everything else.
func (c *PeerCall) refreshRemoteTracks() {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	conn.NotifyStreamPurposeChanged()

	for _, track := range conn.RemoteTracks() {
		c.mu.Lock()
		meta, ok := c.remoteStreamMetadata[track.StreamID()]
		c.mu.Unlock()
		if !ok {
			continue
		}
		if track.Kind() == TrackMicrophone {
			track.SetMuted(meta.AudioMuted)
		} else {
			track.SetMuted(meta.VideoMuted)
		}
	}
}

// GetPurposeForStreamID implements Observer: it returns the purpose recorded
// for a remote stream, defaulting to usermedia when the registry has no
// entry for it.
func (c *PeerCall) GetPurposeForStreamID(streamID string) protocol.StreamPurpose {
	c.mu.Lock()
	defer c.mu.Unlock()
	if meta, ok := c.remoteStreamMetadata[streamID]; ok && meta.Purpose != "" {
		return meta.Purpose
	}
	return protocol.PurposeUsermedia
}

// OnICEConnectionStateChange implements Observer. The connected signal moves
// the call from Connecting to Connected; a failed ICE transport ends it.
func (c *PeerCall) OnICEConnectionStateChange(state ICEConnectionState) {
	switch state {
	case ICEConnectionConnected:
		c.mu.Lock()
		if c.state != StateConnecting {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnected)
		c.mu.Unlock()
		c.delegate.EmitUpdate(c)
	case ICEConnectionFailed:
		c.log.Warn("ICE connection failed")
		c.Hangup(c.ctx, ErrCodeIceFailed)
	case ICEConnectionDisconnected:
		c.log.Warn("ICE connection interrupted")
	}
}

// OnICEGatheringStateChange implements Observer.
func (c *PeerCall) OnICEGatheringStateChange(state ICEGatheringState) {
	c.log.Debug("ICE gathering state changed", "state", string(state))
}

// OnRemoteTracksChanged implements Observer: new or removed remote tracks
// re-evaluate their purpose and mute state against the registry.
func (c *PeerCall) OnRemoteTracksChanged() {
	c.refreshRemoteTracks()
	c.delegate.EmitUpdate(c)
}

// OnDataChannelChanged implements Observer.
func (c *PeerCall) OnDataChannelChanged() {
	c.log.Debug("data channel changed")
	c.delegate.EmitUpdate(c)
}

// OnNegotiationNeeded implements Observer: every request is chained behind
// any negotiation already in flight.
func (c *PeerCall) OnNegotiationNeeded() {
	c.enqueueNegotiation(c.handleNegotiation)
}
