package call

import (
	"context"

	"github.com/utc-chat/peerlink/pkg/protocol"
)

// OnLocalICECandidate queues a locally gathered candidate for a batched
// trickle send. While the call is Ringing, sending is suppressed: the answer
// flow discards what was queued (it is contained in the answer SDP) and sends
// only the candidates that arrive after the Answer is snapshotted. Empty
// candidates (end-of-candidates markers) are queued like any other.
func (c *PeerCall) OnLocalICECandidate(cand protocol.Candidate) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.candidateSendQueue = append(c.candidateSendQueue, cand)

	if c.state == StateRinging || c.candidateSendScheduled {
		c.mu.Unlock()
		return
	}
	c.candidateSendScheduled = true
	delay := candidateSendDelayOutbound
	if c.direction == DirectionInbound {
		delay = candidateSendDelayInbound
	}
	c.mu.Unlock()

	c.afterDelay(delay, func() {
		c.mu.Lock()
		c.candidateSendScheduled = false
		c.mu.Unlock()
		c.sendCandidateQueue(c.ctx)
	})
}

// sendCandidateQueue drains the queued candidates into one Candidates
// message. After a successful send it re-checks the queue to catch
// candidates that arrived during the send. A failed send is fatal for the
// call (no requeue).
func (c *PeerCall) sendCandidateQueue(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateEnded || c.state == StateRinging || len(c.candidateSendQueue) == 0 {
		c.mu.Unlock()
		return
	}
	cands := c.candidateSendQueue
	c.candidateSendQueue = nil
	c.mu.Unlock()

	msg := &protocol.CandidatesMessage{
		Version:    protocol.Version,
		Candidates: cands,
	}

	c.log.Debug("sending candidates", "count", len(cands))
	if err := c.delegate.SendSignallingMessage(ctx, msg); err != nil {
		if c.endedAfterSuspension() {
			return
		}
		c.log.Error("sending candidates", "error", err)
		c.terminate(PartyLocal, ErrCodeSignallingFailed, true)
		return
	}

	c.mu.Lock()
	more := c.state != StateEnded && len(c.candidateSendQueue) > 0
	c.mu.Unlock()
	if more {
		c.sendCandidateQueue(ctx)
	}
}

// handleRemoteIceCandidates files or applies candidates from a Candidates
// message. Before an opponent party is committed, candidates are buffered by
// sender party id; afterwards only the opponent's candidates are accepted.
func (c *PeerCall) handleRemoteIceCandidates(msg *protocol.CandidatesMessage, partyID string) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	if c.opponentID == "" {
		c.remoteCandidateBuffer[partyID] = append(c.remoteCandidateBuffer[partyID], msg.Candidates...)
		c.log.Debug("buffered remote candidates",
			"party_id", partyID, "count", len(msg.Candidates))
		c.mu.Unlock()
		return
	}
	if partyID != c.opponentID {
		c.log.Debug("ignoring candidates from non-opponent party", "party_id", partyID)
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	c.addRemoteCandidates(conn, msg.Candidates)
}

// drainRemoteCandidateBuffer applies the candidates buffered for the
// committed party, in arrival order, and destroys the buffer. Candidates
// buffered under other party ids are discarded.
func (c *PeerCall) drainRemoteCandidateBuffer(partyID string) {
	c.mu.Lock()
	if c.remoteCandidateBuffer == nil {
		c.mu.Unlock()
		return
	}
	buffered := c.remoteCandidateBuffer[partyID]
	for other := range c.remoteCandidateBuffer {
		if other != partyID {
			c.log.Debug("discarding buffered candidates",
				"party_id", other, "count", len(c.remoteCandidateBuffer[other]))
		}
	}
	c.remoteCandidateBuffer = nil
	conn := c.conn
	c.mu.Unlock()

	c.addRemoteCandidates(conn, buffered)
}

// addRemoteCandidates feeds candidates to the peer connection. A candidate
// with neither an sdpMid nor an sdpMLineIndex is skipped. Rejected
// candidates are logged and swallowed; when a colliding offer is being
// ignored the rejection is expected and only traced.
func (c *PeerCall) addRemoteCandidates(conn PeerConnection, cands []protocol.Candidate) {
	for _, cand := range cands {
		if cand.SDPMid == nil && cand.SDPMLineIndex == nil {
			c.log.Debug("skipping candidate without sdpMid or sdpMLineIndex")
			continue
		}
		if err := conn.AddICECandidate(cand); err != nil {
			c.mu.Lock()
			ignoring := c.ignoreOffer
			c.mu.Unlock()
			if ignoring {
				c.log.Debug("candidate rejected while ignoring offer", "error", err)
			} else {
				c.log.Warn("adding remote candidate", "error", err)
			}
		}
	}
}
