package session

import "testing"

func TestAuthSucceededOpensAndResyncs(t *testing.T) {
	s := NewSession()
	s, out := Transition(s, SessionEvent{Kind: SEAuthSucceeded})
	if s.State != Open {
		t.Fatalf("state = %v, want Open", s.State)
	}
	if len(out) != 2 || out[0].Kind != SOSendRpcSettings || out[1].Kind != SOResync {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestAuthFailedRejectsAndCloses(t *testing.T) {
	s := NewSession()
	s, out := Transition(s, SessionEvent{Kind: SEAuthFailed})
	if s.State != Closed {
		t.Fatalf("state = %v, want Closed", s.State)
	}
	if len(out) != 1 || out[0].Close != Rejected {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestThreeMissedPongsGoIdle(t *testing.T) {
	s := Session{State: Open}
	for i := 0; i < 2; i++ {
		var out []SessionOutbound
		s, out = Transition(s, SessionEvent{Kind: SEHeartbeatTimeout})
		if s.State != Open {
			t.Fatalf("after %d missed pongs, state = %v, want Open", i+1, s.State)
		}
		if len(out) != 1 || out[0].Kind != SOSendPing {
			t.Fatalf("expected a fresh Ping, got %+v", out)
		}
	}
	s, out := Transition(s, SessionEvent{Kind: SEHeartbeatTimeout})
	if s.State != Idle {
		t.Fatalf("state = %v, want Idle after 3rd missed pong", s.State)
	}
	if len(out) != 0 {
		t.Fatalf("expected no outbound on the idle-triggering timeout, got %+v", out)
	}
}

func TestPongResetsMissedCount(t *testing.T) {
	s := Session{State: Open, MissedPongs: 2}
	s, _ = Transition(s, SessionEvent{Kind: SEPong, PongNonce: 7})
	if s.MissedPongs != 0 {
		t.Fatalf("MissedPongs = %d, want 0", s.MissedPongs)
	}
}

func TestIdleTimeoutClosesAndReportsLost(t *testing.T) {
	s := Session{State: Idle}
	s, out := Transition(s, SessionEvent{Kind: SEIdleTimeout})
	if s.State != Closed {
		t.Fatalf("state = %v, want Closed", s.State)
	}
	if len(out) != 1 || out[0].Kind != SOLeave || out[0].Reason != LeaveLost {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestReconnectFromIdleThenFinish(t *testing.T) {
	s := Session{State: Idle, MissedPongs: 3}
	s, out := Transition(s, SessionEvent{Kind: SEReconnect})
	if s.State != Reconnecting || len(out) != 0 {
		t.Fatalf("state = %v out=%+v, want Reconnecting/nil", s.State, out)
	}
	s, out = FinishReconnect(s)
	if s.State != Open {
		t.Fatalf("state = %v, want Open", s.State)
	}
	if len(out) != 1 || out[0].Kind != SOResync {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestGracefulCloseEmitsDisconnectedLeave(t *testing.T) {
	s := Session{State: Open}
	s, out := Transition(s, SessionEvent{Kind: SEGracefulClose, CloseReason: Finished})
	if s.State != Closed {
		t.Fatalf("state = %v, want Closed", s.State)
	}
	if len(out) != 2 || out[0].Reason != LeaveDisconnected || out[1].Close != Finished {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestEventSeqIsMonotonicAndDense(t *testing.T) {
	s := NewSession()
	for i := uint64(1); i <= 5; i++ {
		if got := s.NextEventSeq(); got != i {
			t.Fatalf("NextEventSeq() = %d, want %d", got, i)
		}
	}
}
