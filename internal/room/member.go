package room

import (
	"context"
	"time"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/medeaerr"
	"github.com/medea-project/medea/internal/negotiation"
	"github.com/medea-project/medea/internal/peer"
	"github.com/medea-project/medea/internal/session"
	"github.com/medea-project/medea/internal/spec"
)

// OnSessionOpen implements on_session_open (spec §4.5): authorizes a new or
// reconnecting transport against the Member's stored credential, then
// either opens a fresh Session or resumes one sitting in Idle.
func (r *Room) OnSessionOpen(ctx context.Context, mid id.MemberId, transport session.Transport, cred string, snapshot *session.ClientSnapshot) error {
	memberSpec, known := r.spec.Pipeline[mid]
	if !known {
		return medeaerr.NotFoundf(id.MemberFid{Room: r.ID, Member: mid}.String(), "unknown member")
	}
	if !spec.VerifyCredential(memberSpec.Credential, cred) {
		_ = transport.Close(session.Rejected, "invalid credential")
		return medeaerr.New(medeaerr.AuthFailed, "bad_credential", "credential verification failed", id.MemberFid{Room: r.ID, Member: mid}.String())
	}

	rt, existing := r.members[mid]
	if !existing {
		rt = &memberRuntime{Spec: memberSpec, Session: session.NewSession(), PeerIDs: map[id.PeerId]struct{}{}}
		r.members[mid] = rt
	}
	rt.Transport = transport

	var sessionEv session.SessionEventKind
	if existing && rt.Session.State == session.Idle {
		sessionEv = session.SEReconnect
	} else {
		sessionEv = session.SEAuthSucceeded
	}

	newState, out := session.Transition(rt.Session, session.SessionEvent{Kind: sessionEv})
	rt.Session = newState
	r.runSessionOutbound(ctx, mid, out, snapshot)

	if sessionEv == session.SEReconnect {
		finalState, finishOut := session.FinishReconnect(rt.Session)
		rt.Session = finalState
		r.runSessionOutbound(ctx, mid, finishOut, snapshot)
	}

	if r.callback != nil {
		r.callback.OnJoin(ctx, id.MemberFid{Room: r.ID, Member: mid})
	}

	r.reconcileLinks(ctx)
	return nil
}

// OnSessionClose implements on_session_close (spec §4.5): tears down the
// Member's owned Peers and fires OnLeave with the given reason.
func (r *Room) OnSessionClose(ctx context.Context, mid id.MemberId, reason session.LeaveReason) {
	r.removeMemberInternal(ctx, mid, reason)
}

func (r *Room) removeMemberInternal(ctx context.Context, mid id.MemberId, reason session.LeaveReason) {
	rt, ok := r.members[mid]
	if !ok {
		return
	}
	result := r.graph.RemoveMember(mid)
	r.notifyPeersClosed(ctx, result.ClosedPeers)

	wasConnected := rt.Session.State != session.Closed && rt.Session.State != session.New
	delete(r.members, mid)

	if r.turn != nil {
		r.turn.ReleaseMember(ctx, r.ID, mid)
	}
	if wasConnected && r.callback != nil {
		r.callback.OnLeave(ctx, id.MemberFid{Room: r.ID, Member: mid}, reason)
	}
}

// OnCommand implements on_command (spec §4.5): routes a client Command to
// the relevant Peer's negotiation SM or, for AddPeerConnectionMetrics and
// UpdateTracks, to the Liveness Monitor / track-patch path.
func (r *Room) OnCommand(ctx context.Context, mid id.MemberId, cmd session.Command) {
	if _, ok := r.members[mid]; !ok {
		return
	}
	p, ok := r.graph.Peer(cmd.PeerId)
	if !ok || p.Member != mid {
		return
	}

	switch cmd.Kind {
	case session.CmdAddPeerConnectionStats:
		if r.liveness != nil {
			r.liveness.Observe(ctx, cmd.PeerId, cmd.Metrics, time.Now())
		}
		return
	case session.CmdUpdateTracks:
		r.applyTrackPatches(ctx, p, cmd.TrackPatches)
		return
	}

	var ev negotiation.Event
	switch cmd.Kind {
	case session.CmdMakeSdpOffer:
		if err := negotiation.ValidateSdp(cmd.SdpOffer); err != nil {
			return
		}
		ev = negotiation.Event{Kind: negotiation.EvMakeSdpOffer, Sdp: cmd.SdpOffer, Seq: cmd.Seq}
	case session.CmdMakeSdpAnswer:
		if err := negotiation.ValidateSdp(cmd.SdpAnswer); err != nil {
			return
		}
		ev = negotiation.Event{Kind: negotiation.EvMakeSdpAnswer, Sdp: cmd.SdpAnswer, Seq: cmd.Seq}
	case session.CmdSetIceCandidate:
		ev = negotiation.Event{Kind: negotiation.EvSetIceCandidate, Seq: cmd.Seq}
	default:
		return
	}

	next, out := negotiation.Transition(p.Negotiation, ev)
	p.Negotiation = next
	r.deliverNegotiationOutbound(ctx, p, out)

	if next.Reported() == negotiation.Stable {
		if partner, ok := r.graph.Peer(p.Partner); ok {
			partner.Negotiation = partner.Negotiation.AckPartnerVersion(next.PeerVersion)
		}
	}
}

// applyTrackPatches implements the UpdateTracks command (spec §4.3 "Track
// patches"): mutates p's own Track state and delivers the effect to p's
// partner, batching it into the partner's Pending set while that Peer is
// non-Stable or delivering it immediately as a PeerUpdated when Stable.
func (r *Room) applyTrackPatches(ctx context.Context, p *peer.Peer, patches []negotiation.TrackPatch) {
	partner, ok := r.graph.Peer(p.Partner)
	if !ok {
		return
	}
	var delivered []negotiation.PeerUpdate
	for _, patch := range patches {
		t, known := p.Tracks[patch.TrackID]
		if !known {
			continue
		}
		if patch.EnabledIndividual != nil {
			t.EnabledIndividual = *patch.EnabledIndividual
		}
		if patch.Muted != nil {
			t.Mute.MutedSend = *patch.Muted
		}
		if patch.Required != nil {
			t.Mute.Required = *patch.Required
		}
		update := negotiation.PeerUpdate{Kind: negotiation.UpdateUpdated, Patch: patch}
		if partner.Negotiation.Reported() == negotiation.Stable {
			delivered = append(delivered, update)
		} else {
			partner.Negotiation = partner.Negotiation.EnqueuePatch(update)
		}
	}
	if len(delivered) > 0 {
		r.sendEvent(ctx, partner.Member, session.Event{Kind: session.EvPeerUpdated, PeerId: partner.ID, Updates: delivered})
	}
}

// deliverNegotiationOutbound translates a Transition call's Outbound batch
// into wire events sent to p's owner and/or its partner (spec §6.1).
func (r *Room) deliverNegotiationOutbound(ctx context.Context, p *peer.Peer, out []negotiation.Outbound) {
	for _, o := range out {
		switch o.Kind {
		case negotiation.OutSdpOfferMade:
			if partner, ok := r.graph.Peer(p.Partner); ok {
				r.sendEvent(ctx, partner.Member, session.Event{Kind: session.EvSdpOfferMade, PeerId: partner.ID, Sdp: o.Sdp})
				partnerNext, partnerOut := negotiation.Transition(partner.Negotiation, negotiation.Event{Kind: negotiation.EvRemoteSdpOffer, Sdp: o.Sdp})
				partner.Negotiation = partnerNext
				r.deliverNegotiationOutbound(ctx, partner, partnerOut)
			}
		case negotiation.OutSdpAnswerMade:
			if partner, ok := r.graph.Peer(p.Partner); ok {
				r.sendEvent(ctx, partner.Member, session.Event{Kind: session.EvSdpAnswerMade, PeerId: partner.ID, Sdp: o.Sdp})
				partnerNext, partnerOut := negotiation.Transition(partner.Negotiation, negotiation.Event{Kind: negotiation.EvMakeSdpAnswer, Sdp: o.Sdp})
				partner.Negotiation = partnerNext
				r.deliverNegotiationOutbound(ctx, partner, partnerOut)
			}
		case negotiation.OutPeerUpdated:
			r.sendEvent(ctx, p.Member, session.Event{Kind: session.EvPeerUpdated, PeerId: p.ID, Updates: o.Updates, NegotiationRole: o.Role})
		case negotiation.OutTracksRemoved:
			r.sendEvent(ctx, p.Member, session.Event{Kind: session.EvPeersRemoved, PeerIds: []id.PeerId{p.ID}})
		case negotiation.OutPeerCreatedRecreate:
			r.sendPeerCreated(ctx, p, negotiation.RoleOfferer)
		}
	}
}

// runSessionOutbound executes the side effects a session.Transition call
// requested: sending frames, invoking callbacks. Timer scheduling is the
// caller's responsibility (the websocket handler owns real-time timers).
// snapshot is only consulted for SOResync, and may be nil (treated as "the
// client knows nothing").
func (r *Room) runSessionOutbound(ctx context.Context, mid id.MemberId, out []session.SessionOutbound, snapshot *session.ClientSnapshot) {
	for _, o := range out {
		switch o.Kind {
		case session.SOSendRpcSettings:
			rt := r.members[mid]
			effective := rt.Spec.Rpc.Merge(r.spec.RpcSettings)
			r.sendEvent(ctx, mid, session.Event{
				Kind:             session.EvRpcSettingsUpdated,
				IdleTimeout:      effective.IdleTimeout,
				PingInterval:     effective.PingInterval,
				ReconnectTimeout: effective.ReconnectTimeout,
			})
		case session.SOResync:
			r.performResync(ctx, mid, snapshot)
		case session.SOCloseTransport:
			if rt, ok := r.members[mid]; ok && rt.Transport != nil {
				_ = rt.Transport.Close(o.Close, string(o.Close))
			}
		case session.SOLeave:
			if r.callback != nil {
				r.callback.OnLeave(ctx, id.MemberFid{Room: r.ID, Member: mid}, o.Reason)
			}
		}
	}
}

// performResync implements the state resync protocol (spec §4.4): builds
// the authoritative snapshot of every Peer mid owns and emits the minimal
// ordered event sequence to converge the client to it.
func (r *Room) performResync(ctx context.Context, mid id.MemberId, claimed *session.ClientSnapshot) {
	rt, ok := r.members[mid]
	if !ok {
		return
	}
	authoritative := make(map[id.PeerId]session.PeerSnapshot, len(rt.PeerIDs))
	for pid := range rt.PeerIDs {
		p, ok := r.graph.Peer(pid)
		if !ok {
			continue
		}
		tracks := make([]negotiation.Track, 0, len(p.Tracks))
		for _, t := range p.Tracks {
			tracks = append(tracks, *t)
		}
		authoritative[pid] = session.PeerSnapshot{
			ID:         pid,
			Version:    p.Negotiation.PeerVersion,
			Tracks:     tracks,
			ForceRelay: p.IsForcedRelay,
		}
	}
	if claimed == nil {
		claimed = &session.ClientSnapshot{}
	}
	for _, ev := range session.ComputeResync(*claimed, authoritative) {
		r.sendEvent(ctx, mid, ev)
	}
}
