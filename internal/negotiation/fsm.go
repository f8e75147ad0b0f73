package negotiation

// PeerNegotiation is the pure state of one Peer's negotiation machine:
// current State, the monotonic peer_version (incremented on every accepted
// mutation), the last peer_version the partner is known to have
// acknowledged, the last applied client event_seq (for idempotence), and
// any patches accumulated while non-Stable.
type PeerNegotiation struct {
	State               State
	PeerVersion         uint64
	PartnerAckedVersion uint64
	LastAppliedSeq      uint64
	Pending             []PeerUpdate
	Offerer             bool // this Peer's role in the current/last round
}

// NewPeerNegotiation returns a fresh Peer negotiation machine in Stable.
func NewPeerNegotiation() PeerNegotiation {
	return PeerNegotiation{State: Stable}
}

// Reported is the state the orchestrator should report to observers: Stable
// is only ever reported once the partner has acknowledged the same
// peer_version (spec §4.3, and the "round-trip" invariant of spec §8).
func (pn PeerNegotiation) Reported() State {
	if pn.State == Stable && pn.PartnerAckedVersion != pn.PeerVersion {
		return WaitRemoteSdp
	}
	return pn.State
}

// AckPartnerVersion records that the partner Peer has converged to the
// given peer_version. Call this when the partner's own negotiation reaches
// Stable at that version.
func (pn PeerNegotiation) AckPartnerVersion(version uint64) PeerNegotiation {
	if version > pn.PartnerAckedVersion {
		pn.PartnerAckedVersion = version
	}
	return pn
}

// EnqueuePatch appends a patch to the pending batch. While the Peer is
// non-Stable, patches accumulate and are flushed with the next negotiation
// role assignment (spec §4.3 "Track patches").
func (pn PeerNegotiation) EnqueuePatch(u PeerUpdate) PeerNegotiation {
	pn.Pending = append(pn.Pending, u)
	return pn
}

// Transition is the pure (state, event) -> (new state, outbound[]) function
// driving one Peer's negotiation. It never performs I/O; timers and
// delivery are the caller's responsibility (internal/room, internal/session).
func Transition(pn PeerNegotiation, ev Event) (PeerNegotiation, []Outbound) {
	// Idempotence: drop client commands whose event_seq has already been
	// applied (spec §4.3 "Ordering and idempotence").
	if ev.Seq != 0 && ev.Seq <= pn.LastAppliedSeq {
		return pn, nil
	}

	switch ev.Kind {
	case EvStartNegotiation:
		return startNegotiation(pn, ev)

	case EvMakeSdpOffer:
		if pn.State != WaitLocalSdp {
			return pn, nil
		}
		pn.State = WaitRemoteSdp
		pn = bumpVersion(pn, ev)
		return pn, []Outbound{{Kind: OutSdpOfferMade, Sdp: ev.Sdp}}

	case EvRemoteSdpOffer:
		if pn.State != Stable {
			return pn, nil
		}
		pn.State = WaitLocalHaveRemote
		var out []Outbound
		if len(pn.Pending) > 0 {
			out = append(out, Outbound{Kind: OutPeerUpdated, Updates: pn.Pending})
			pn.Pending = nil
		}
		return pn, out

	case EvMakeSdpAnswer:
		switch pn.State {
		case WaitLocalHaveRemote:
			pn.State = Stable
			pn = bumpVersion(pn, ev)
			return pn, []Outbound{{Kind: OutSdpAnswerMade, Sdp: ev.Sdp}}
		case WaitRemoteSdp:
			// The partner's answer arrived: this is the offerer's own Peer
			// completing the round it opened with MakeSdpOffer.
			pn.State = Stable
			pn = bumpVersion(pn, ev)
			return pn, nil
		default:
			return pn, nil
		}

	case EvSetIceCandidate:
		// ICE trickle is orthogonal to the SDP state and never changes State.
		return pn, nil

	case EvIceRestart:
		pn.State = WaitLocalSdp
		pn.Pending = append(pn.Pending, PeerUpdate{Kind: UpdateIceRestart})
		pn = bumpVersion(pn, ev)
		return pn, nil

	case EvTracksApplyFailed:
		pn.State = Failed
		pn = bumpVersion(pn, ev)
		return pn, []Outbound{{Kind: OutTracksRemoved}, {Kind: OutPeerCreatedRecreate}}

	case EvPartnerClosed:
		pn.State = Closed
		return pn, nil

	case EvTimeout:
		if pn.State == WaitLocalSdp || pn.State == WaitRemoteSdp || pn.State == WaitLocalHaveRemote {
			pn.State = Failed
			return pn, []Outbound{{Kind: OutTracksRemoved}, {Kind: OutPeerCreatedRecreate}}
		}
		return pn, nil

	default:
		return pn, nil
	}
}

func startNegotiation(pn PeerNegotiation, ev Event) (PeerNegotiation, []Outbound) {
	if pn.State != Stable {
		return pn, nil
	}
	pn.State = WaitLocalSdp
	pn.Offerer = ev.Role.Kind == RoleOfferer
	role := ev.Role
	var updates []PeerUpdate
	if len(pn.Pending) > 0 {
		updates = pn.Pending
		pn.Pending = nil
	}
	return pn, []Outbound{{Kind: OutPeerUpdated, Updates: updates, Role: &role}}
}

func bumpVersion(pn PeerNegotiation, ev Event) PeerNegotiation {
	pn.PeerVersion++
	if ev.Seq != 0 {
		pn.LastAppliedSeq = ev.Seq
	}
	return pn
}
