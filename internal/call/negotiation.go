package call

import (
	"context"
	"fmt"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// enqueueNegotiation appends a task to the negotiation chain. Tasks run
// strictly in FIFO order on a single worker; a task arriving while another
// runs is chained behind it. Termination empties the chain without running
// pending tasks.
func (c *PeerCall) enqueueNegotiation(task func()) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.negotiationQueue = append(c.negotiationQueue, task)
	if c.negotiationRunning {
		c.mu.Unlock()
		return
	}
	c.negotiationRunning = true
	c.mu.Unlock()

	go c.runNegotiationQueue()
}

// runNegotiationQueue drains the chain one task at a time.
func (c *PeerCall) runNegotiationQueue() {
	for {
		c.mu.Lock()
		if c.state == StateEnded || len(c.negotiationQueue) == 0 {
			c.negotiationRunning = false
			c.mu.Unlock()
			return
		}
		task := c.negotiationQueue[0]
		c.negotiationQueue = c.negotiationQueue[1:]
		c.mu.Unlock()

		task()
	}
}

// handleNegotiation is one unit of the negotiation chain. It sets the local
// description, waits out the initial gathering burst, discards queued
// candidates (they are contained in the SDP), and emits the Invite (first
// offer) or a Negotiate message (renegotiation).
func (c *PeerCall) handleNegotiation() {
	ctx := c.ctx

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.makingOffer = true
	conn := c.conn
	c.mu.Unlock()

	err := conn.SetLocalDescription(ctx, nil)

	c.mu.Lock()
	c.makingOffer = false
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Error("setting local description", "error", err)
		c.terminate(PartyLocal, ErrCodeSetLocalDescription, true)
		return
	}
	c.mu.Unlock()

	if conn.ICEGatheringState() == ICEGatheringGathering {
		if !c.delay(iceGatheringGrace) {
			return
		}
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	// Candidates gathered up to this point are in the local description.
	c.candidateSendQueue = nil
	sendInvite := c.state == StateCreateOffer && !c.inviteSent
	sendNegotiate := !sendInvite && (c.state == StateConnecting || c.state == StateConnected)
	lm := c.localMedia
	c.mu.Unlock()

	desc := conn.LocalDescription()
	if desc == nil {
		c.log.Error("no local description after negotiation")
		c.terminate(PartyLocal, ErrCodeSetLocalDescription, true)
		return
	}

	var md map[string]protocol.StreamMetadata
	if lm != nil {
		md = lm.SDPMetadata()
	}

	switch {
	case sendInvite:
		if err := c.sendInvite(ctx, *desc, md); err != nil {
			return
		}
	case sendNegotiate:
		msg := &protocol.NegotiateMessage{
			Version:        protocol.Version,
			Description:    desc,
			StreamMetadata: md,
		}
		if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
			if c.endedAfterSuspension() {
				return
			}
			c.log.Error("sending negotiate", "error", err)
			c.terminate(PartyLocal, ErrCodeSignallingFailed, true)
			return
		}
	}

	c.sendCandidateQueue(ctx)
}

// sendInvite emits the one Invite of the call, moves to InviteSent, and arms
// the invite expiry.
func (c *PeerCall) sendInvite(ctx context.Context, offer protocol.SessionDescription, md map[string]protocol.StreamMetadata) error {
	msg := &protocol.InviteMessage{
		Version:        protocol.Version,
		Lifetime:       c.callTimeout.Milliseconds(),
		Offer:          offer,
		StreamMetadata: md,
	}

	if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
		if c.endedAfterSuspension() {
			return err
		}
		c.log.Error("sending invite", "error", err)
		c.terminate(PartyLocal, ErrCodeSendInvite, true)
		return fmt.Errorf("sending invite: %w", err)
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	c.inviteSent = true
	c.setStateLocked(StateInviteSent)
	c.mu.Unlock()
	c.delegate.EmitUpdate(c)

	// Abandon the invite if no answer arrives within its lifetime.
	c.afterDelay(c.callTimeout, func() {
		c.mu.Lock()
		stillWaiting := c.state == StateInviteSent
		c.mu.Unlock()
		if stillWaiting {
			c.log.Info("invite timed out")
			c.Hangup(c.ctx, ErrCodeInviteTimeout)
		}
	})

	return nil
}
