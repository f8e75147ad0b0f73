package negotiation

import "testing"

func TestHappyPathOffererReachesStable(t *testing.T) {
	pn := NewPeerNegotiation()

	pn, out := Transition(pn, Event{Kind: EvStartNegotiation, Role: Role{Kind: RoleOfferer}})
	if pn.State != WaitLocalSdp {
		t.Fatalf("state = %v, want WaitLocalSdp", pn.State)
	}
	if len(out) != 1 || out[0].Kind != OutPeerUpdated || out[0].Role.Kind != RoleOfferer {
		t.Fatalf("unexpected outbound: %+v", out)
	}

	pn, out = Transition(pn, Event{Kind: EvMakeSdpOffer, Sdp: "offer-sdp", Seq: 1})
	if pn.State != WaitRemoteSdp {
		t.Fatalf("state = %v, want WaitRemoteSdp", pn.State)
	}
	if len(out) != 1 || out[0].Kind != OutSdpOfferMade || out[0].Sdp != "offer-sdp" {
		t.Fatalf("unexpected outbound: %+v", out)
	}

	pn, _ = Transition(pn, Event{Kind: EvMakeSdpAnswer, Seq: 2})
	if pn.State != Stable {
		t.Fatalf("state = %v, want Stable", pn.State)
	}
	// Stable is only reported once the partner acknowledges the same version.
	if pn.Reported() == Stable {
		t.Fatal("should not report Stable before partner ack")
	}
	pn = pn.AckPartnerVersion(pn.PeerVersion)
	if pn.Reported() != Stable {
		t.Fatal("should report Stable once partner acked matching version")
	}
}

func TestAnswererPath(t *testing.T) {
	pn := NewPeerNegotiation()
	pn, out := Transition(pn, Event{Kind: EvRemoteSdpOffer})
	if pn.State != WaitLocalHaveRemote {
		t.Fatalf("state = %v, want WaitLocalHaveRemote", pn.State)
	}
	if len(out) != 0 {
		t.Fatalf("expected no pending patches, got %+v", out)
	}
	pn, _ = Transition(pn, Event{Kind: EvMakeSdpAnswer, Seq: 1})
	if pn.State != Stable {
		t.Fatalf("state = %v, want Stable", pn.State)
	}
}

func TestPatchesBatchWhileNonStable(t *testing.T) {
	pn := NewPeerNegotiation()
	pn.State = WaitRemoteSdp
	pn = pn.EnqueuePatch(PeerUpdate{Kind: UpdateUpdated})
	pn = pn.EnqueuePatch(PeerUpdate{Kind: UpdateUpdated})

	pn.State = Stable // simulate returning to Stable via MakeSdpAnswer
	pn, out := Transition(pn, Event{Kind: EvStartNegotiation, Role: Role{Kind: RoleOfferer}})
	if pn.State != WaitLocalSdp {
		t.Fatalf("state = %v, want WaitLocalSdp", pn.State)
	}
	if len(out) != 1 || len(out[0].Updates) != 2 {
		t.Fatalf("expected 2 batched updates flushed, got %+v", out)
	}
	if len(pn.Pending) != 0 {
		t.Fatal("pending should be drained after flush")
	}
}

func TestTracksApplyFailedTriggersRecreate(t *testing.T) {
	pn := NewPeerNegotiation()
	pn.State = WaitLocalHaveRemote
	pn, out := Transition(pn, Event{Kind: EvTracksApplyFailed})
	if pn.State != Failed {
		t.Fatalf("state = %v, want Failed", pn.State)
	}
	if len(out) != 2 || out[0].Kind != OutTracksRemoved || out[1].Kind != OutPeerCreatedRecreate {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}

func TestTimeoutInNonStableFails(t *testing.T) {
	pn := NewPeerNegotiation()
	pn.State = WaitRemoteSdp
	pn, out := Transition(pn, Event{Kind: EvTimeout})
	if pn.State != Failed {
		t.Fatalf("state = %v, want Failed", pn.State)
	}
	if len(out) != 2 {
		t.Fatalf("expected recreate outbound, got %+v", out)
	}

	// Timeout in Stable is a no-op.
	pn2 := NewPeerNegotiation()
	pn2, out2 := Transition(pn2, Event{Kind: EvTimeout})
	if pn2.State != Stable || len(out2) != 0 {
		t.Fatalf("timeout in Stable should be a no-op, got state=%v out=%+v", pn2.State, out2)
	}
}

func TestIdempotentSeqIgnored(t *testing.T) {
	pn := NewPeerNegotiation()
	pn.LastAppliedSeq = 5
	pn.State = WaitLocalSdp
	next, out := Transition(pn, Event{Kind: EvMakeSdpOffer, Sdp: "x", Seq: 5})
	if next.State != WaitLocalSdp || len(out) != 0 {
		t.Fatalf("stale seq should be ignored, got state=%v out=%+v", next.State, out)
	}
}

func TestIceRestartFromAnyState(t *testing.T) {
	for _, s := range []State{Stable, WaitLocalSdp, WaitRemoteSdp, WaitLocalHaveRemote} {
		pn := NewPeerNegotiation()
		pn.State = s
		next, _ := Transition(pn, Event{Kind: EvIceRestart})
		if next.State != WaitLocalSdp {
			t.Fatalf("from %v: ice_restart state = %v, want WaitLocalSdp", s, next.State)
		}
		found := false
		for _, u := range next.Pending {
			if u.Kind == UpdateIceRestart {
				found = true
			}
		}
		if !found {
			t.Fatalf("from %v: expected IceRestart patch pending", s)
		}
	}
}

func TestPartnerClosedIsTerminal(t *testing.T) {
	pn := NewPeerNegotiation()
	pn.State = WaitLocalSdp
	next, _ := Transition(pn, Event{Kind: EvPartnerClosed})
	if next.State != Closed {
		t.Fatalf("state = %v, want Closed", next.State)
	}
}
