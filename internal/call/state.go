package call

import "fmt"

// State is the lifecycle state of a PeerCall. Ended is terminal: once a call
// reaches it, no transition leaves it.
type State int

const (
	// StateFledgling is the initial state of a freshly constructed call,
	// before it has committed to a direction.
	StateFledgling State = iota
	// StateWaitLocalMedia is entered while local media acquisition is pending.
	StateWaitLocalMedia
	// StateCreateOffer is entered once an outbound call has media and is
	// generating its offer.
	StateCreateOffer
	// StateCreateAnswer is entered once an inbound call has media and is
	// generating its answer.
	StateCreateAnswer
	// StateInviteSent is entered after the Invite has been handed to the
	// transport; the call waits here for an Answer.
	StateInviteSent
	// StateRinging is entered on the inbound side once the remote offer has
	// been applied and remote tracks observed.
	StateRinging
	// StateConnecting is entered once an Answer is accepted (outbound, before
	// the answer description is applied) or the local answer is applied
	// (inbound); ICE is establishing.
	StateConnecting
	// StateConnected is entered when the ICE connection reports connected.
	StateConnected
	// StateEnded is the absorbing terminal state.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateFledgling:
		return "Fledgling"
	case StateWaitLocalMedia:
		return "WaitLocalMedia"
	case StateCreateOffer:
		return "CreateOffer"
	case StateCreateAnswer:
		return "CreateAnswer"
	case StateInviteSent:
		return "InviteSent"
	case StateRinging:
		return "Ringing"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IsTerminal returns true if this is the terminal state.
func (s State) IsTerminal() bool {
	return s == StateEnded
}

// Direction records which side initiated the call.
type Direction int

const (
	// DirectionNone means the call has not committed to a direction yet.
	DirectionNone Direction = iota
	// DirectionInbound means the remote party invited us.
	DirectionInbound
	// DirectionOutbound means we invited the remote party.
	DirectionOutbound
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "none"
	}
}

// Party identifies which side of the call performed an action, in particular
// which side hung up.
type Party int

const (
	// PartyNone is the zero value, used before hangup.
	PartyNone Party = iota
	// PartyLocal is this device.
	PartyLocal
	// PartyRemote is the remote device.
	PartyRemote
)

// String returns the string representation of the party.
func (p Party) String() string {
	switch p {
	case PartyLocal:
		return "local"
	case PartyRemote:
		return "remote"
	default:
		return "none"
	}
}

// ErrorCode classifies why a call ended. The codes double as the wire-level
// reason strings carried in Hangup messages.
type ErrorCode string

const (
	// ErrCodeUserHangup: the local user ended the call.
	ErrCodeUserHangup ErrorCode = "user_hangup"
	// ErrCodeLocalOfferFailed: creating the SDP offer failed.
	ErrCodeLocalOfferFailed ErrorCode = "local_offer_failed"
	// ErrCodeNoUserMedia: local media acquisition failed.
	ErrCodeNoUserMedia ErrorCode = "no_user_media"
	// ErrCodeCreateAnswer: creating the SDP answer failed.
	ErrCodeCreateAnswer ErrorCode = "create_answer"
	// ErrCodeSendInvite: the Invite message could not be sent.
	ErrCodeSendInvite ErrorCode = "send_invite"
	// ErrCodeSendAnswer: the Answer message could not be sent.
	ErrCodeSendAnswer ErrorCode = "send_answer"
	// ErrCodeSetLocalDescription: applying the local description failed.
	ErrCodeSetLocalDescription ErrorCode = "set_local_description"
	// ErrCodeSetRemoteDescription: applying the remote description failed,
	// or it yielded no remote tracks.
	ErrCodeSetRemoteDescription ErrorCode = "set_remote_description"
	// ErrCodeIceFailed: the ICE connection reached the failed state.
	ErrCodeIceFailed ErrorCode = "ice_failed"
	// ErrCodeInviteTimeout: still InviteSent or Ringing after the lifetime ran out.
	ErrCodeInviteTimeout ErrorCode = "invite_timeout"
	// ErrCodeSignallingFailed: a non-initial signalling send failed.
	ErrCodeSignallingFailed ErrorCode = "signalling_failed"
	// ErrCodeAnsweredElsewhere: another of our devices answered the call.
	ErrCodeAnsweredElsewhere ErrorCode = "answered_elsewhere"
	// ErrCodeReplaced: the call was replaced by another call.
	ErrCodeReplaced ErrorCode = "replaced"
	// ErrCodeTransferred: the call was transferred.
	ErrCodeTransferred ErrorCode = "transferred"
	// ErrCodeUserBusy: the remote user was busy.
	ErrCodeUserBusy ErrorCode = "user_busy"
	// ErrCodeUnknownDevices: the remote rejected because of unknown devices.
	ErrCodeUnknownDevices ErrorCode = "unknown_devices"
	// ErrCodeNewSession: a new session displaced this call.
	ErrCodeNewSession ErrorCode = "new_session"
)

// remoteErrorCode maps a Hangup reason string received from the remote party
// to an ErrorCode. Unknown and empty reasons are read as a plain user hangup.
func remoteErrorCode(reason string) ErrorCode {
	switch code := ErrorCode(reason); code {
	case ErrCodeAnsweredElsewhere, ErrCodeReplaced, ErrCodeTransferred,
		ErrCodeUserBusy, ErrCodeUnknownDevices, ErrCodeNewSession,
		ErrCodeIceFailed, ErrCodeInviteTimeout, ErrCodeUserHangup:
		return code
	default:
		return ErrCodeUserHangup
	}
}
