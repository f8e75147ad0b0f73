package session

// Session is the pure state of one Member's Client Session: its lifecycle
// state, heartbeat bookkeeping, and the monotonic counters the wire
// contract requires (spec §4.4, §8 "event sequence numbers are strictly
// monotonic and dense").
type Session struct {
	State        State
	PingNonce    uint64
	MissedPongs  uint64
	LastAppliedCmdSeq uint64
	nextEventSeq uint64
}

// NewSession returns a freshly connected Session awaiting authorization.
func NewSession() Session {
	return Session{State: New}
}

// NextEventSeq allocates and returns the next outbound event sequence
// number; sequence numbers are strictly monotonic and dense per Session.
func (s *Session) NextEventSeq() uint64 {
	s.nextEventSeq++
	return s.nextEventSeq
}

// SessionEventKind discriminates the internal transitions driving a
// Session's lifecycle state.
type SessionEventKind string

const (
	SEAuthSucceeded    SessionEventKind = "AuthSucceeded"
	SEAuthFailed       SessionEventKind = "AuthFailed"
	SEPong             SessionEventKind = "Pong"
	SEHeartbeatTimeout SessionEventKind = "HeartbeatTimeout" // ping_interval elapsed with no pong reply pending check
	SEIdleTimeout      SessionEventKind = "IdleTimeout"
	SEReconnect        SessionEventKind = "Reconnect"
	SEGracefulClose    SessionEventKind = "GracefulClose"
	SEShutdown         SessionEventKind = "Shutdown"
)

// SessionEvent is the input to Transition.
type SessionEvent struct {
	Kind        SessionEventKind
	PongNonce   uint64
	CloseReason CloseReason
}

// SessionOutboundKind discriminates what the caller must do as a result of
// a Transition call: send a frame, start/cancel a timer, fire a callback.
type SessionOutboundKind string

const (
	SOSendRpcSettings SessionOutboundKind = "SendRpcSettings"
	SOResync          SessionOutboundKind = "Resync"
	SOSendPing        SessionOutboundKind = "SendPing"
	SOCloseTransport  SessionOutboundKind = "CloseTransport"
	SOLeave           SessionOutboundKind = "Leave"
)

// SessionOutbound is one side effect a Transition call requires of the
// caller; Transition itself performs no I/O.
type SessionOutbound struct {
	Kind   SessionOutboundKind
	Reason LeaveReason
	Close  CloseReason
}

const maxMissedPongs = 3

// Transition is the pure (state, event) -> (new state, outbound[]) function
// driving one Session's lifecycle. Heartbeat timers, transport I/O, and
// OnJoin/OnLeave callback delivery are the caller's responsibility
// (internal/room).
func Transition(s Session, ev SessionEvent) (Session, []SessionOutbound) {
	switch ev.Kind {
	case SEAuthSucceeded:
		if s.State != New && s.State != Authorizing {
			return s, nil
		}
		s.State = Open
		s.MissedPongs = 0
		return s, []SessionOutbound{{Kind: SOSendRpcSettings}, {Kind: SOResync}}

	case SEAuthFailed:
		s.State = Closed
		return s, []SessionOutbound{{Kind: SOCloseTransport, Close: Rejected}}

	case SEPong:
		if s.State != Open && s.State != Idle {
			return s, nil
		}
		s.MissedPongs = 0
		if s.State == Idle {
			s.State = Open
		}
		return s, nil

	case SEHeartbeatTimeout:
		if s.State != Open && s.State != Idle {
			return s, nil
		}
		s.MissedPongs++
		if s.MissedPongs < maxMissedPongs {
			s.PingNonce++
			return s, []SessionOutbound{{Kind: SOSendPing}}
		}
		s.State = Idle
		return s, nil

	case SEIdleTimeout:
		if s.State != Idle {
			return s, nil
		}
		s.State = Closed
		return s, []SessionOutbound{{Kind: SOLeave, Reason: LeaveLost}}

	case SEReconnect:
		if s.State != Idle {
			return s, nil
		}
		s.State = Reconnecting
		s.MissedPongs = 0
		return s, nil

	case SEGracefulClose:
		s.State = Closed
		return s, []SessionOutbound{
			{Kind: SOLeave, Reason: LeaveDisconnected},
			{Kind: SOCloseTransport, Close: ev.CloseReason},
		}

	case SEShutdown:
		s.State = Closed
		return s, []SessionOutbound{{Kind: SOLeave, Reason: LeaveShutdown}}

	default:
		return s, nil
	}
}

// FinishReconnect completes the Reconnecting -> Open transition and returns
// the SOResync outbound that asks the orchestrator to run the resync.
func FinishReconnect(s Session) (Session, []SessionOutbound) {
	if s.State != Reconnecting {
		return s, nil
	}
	s.State = Open
	return s, []SessionOutbound{{Kind: SOResync}}
}
