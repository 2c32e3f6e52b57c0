package call

import (
	"context"
	"fmt"
)

// trackRoles is the fixed set of roles the reconciler diffs.
var trackRoles = [...]TrackKind{TrackMicrophone, TrackCamera, TrackScreenShare}

// SetMedia atomically swaps the local media handle and reconciles the peer
// connection: for each track role it applies exactly one of add, remove, or
// replace. A codec-incompatible replacement surfaces as a negotiation-needed
// callback from the connection and is handled by the negotiation chain.
func (c *PeerCall) SetMedia(ctx context.Context, media MediaPromise) error {
	lm, err := media(ctx)
	if err != nil {
		return fmt.Errorf("acquiring local media: %w", err)
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		stopTracks(lm)
		return nil
	}
	old := c.localMedia
	c.localMedia = lm
	conn := c.conn
	c.mu.Unlock()

	for _, role := range trackRoles {
		var oldTrack, newTrack Track
		if old != nil {
			oldTrack = trackForKind(old, role)
		}
		newTrack = trackForKind(lm, role)

		if err := c.reconcileTrack(conn, role, oldTrack, newTrack); err != nil {
			return err
		}
		if c.endedAfterSuspension() {
			return nil
		}
	}

	c.delegate.EmitUpdate(c)
	return nil
}

// reconcileTrack applies the add/remove/replace decision for one role.
func (c *PeerCall) reconcileTrack(conn PeerConnection, role TrackKind, oldTrack, newTrack Track) error {
	switch {
	case oldTrack == nil && newTrack == nil:
		return nil

	case oldTrack == nil:
		c.log.Debug("adding track", "kind", role)
		if err := conn.AddTrack(newTrack); err != nil {
			return fmt.Errorf("adding %s track: %w", role, err)
		}
		return nil

	case newTrack == nil:
		c.log.Debug("removing track", "kind", role)
		removed, err := conn.RemoveTrack(oldTrack)
		if err != nil {
			return fmt.Errorf("removing %s track: %w", role, err)
		}
		if !removed {
			c.log.Warn("track not found on connection", "kind", role)
		}
		oldTrack.Stop()
		return nil

	default:
		if oldTrack == newTrack {
			return nil
		}
		c.log.Debug("replacing track", "kind", role)
		replaced, err := conn.ReplaceTrack(oldTrack, newTrack)
		if err != nil {
			return fmt.Errorf("replacing %s track: %w", role, err)
		}
		if !replaced {
			// No live sender carried the old track; fall back to add.
			if err := conn.AddTrack(newTrack); err != nil {
				return fmt.Errorf("adding %s track: %w", role, err)
			}
		}
		oldTrack.Stop()
		return nil
	}
}
