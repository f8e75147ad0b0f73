package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/negotiation"
	"github.com/medea-project/medea/internal/peer"
	"github.com/medea-project/medea/internal/session"
	"github.com/medea-project/medea/internal/spec"
)

// ApplySpec implements apply_spec (spec §4.5): validates, diffs against the
// authoritative spec, applies structural changes to the Peer Graph, and
// dispatches the resulting wire events. removeMissing selects between the
// Control API's apply (true) and append (false) policies (spec §6.2).
//
// Either every contained change applies or none does (spec §4.5
// "Atomicity"); a failure surfaced by a client after PeerCreated is
// delivered is isolated to that Peer by the negotiation SM's recreate path,
// not rolled back here.
func (r *Room) ApplySpec(ctx context.Context, newSpec spec.RoomSpec, removeMissing bool) error {
	if err := spec.ValidateRoom(r.ID, newSpec); err != nil {
		return err
	}
	for mid, newMemberSpec := range newSpec.Pipeline {
		if oldMemberSpec, existed := r.spec.Pipeline[mid]; existed {
			memberFid := id.MemberFid{Room: r.ID, Member: mid}
			if _, _, err := spec.DiffPipeline(memberFid, oldMemberSpec.Pipeline, newMemberSpec.Pipeline); err != nil {
				return err
			}
		}
	}

	merged := r.spec.Clone()
	if merged.Pipeline == nil {
		merged.Pipeline = map[id.MemberId]spec.MemberSpec{}
	}
	merged.RpcSettings = newSpec.RpcSettings

	if removeMissing {
		for mid := range merged.Pipeline {
			if _, still := newSpec.Pipeline[mid]; !still {
				r.removeMemberInternal(ctx, mid, session.LeaveKicked)
				delete(merged.Pipeline, mid)
			}
		}
	}

	for mid, newMemberSpec := range newSpec.Pipeline {
		oldMemberSpec, existed := merged.Pipeline[mid]
		if !existed {
			merged.Pipeline[mid] = newMemberSpec
			if rt, ok := r.members[mid]; ok {
				rt.Spec = newMemberSpec
			}
			continue
		}

		memberFid := id.MemberFid{Room: r.ID, Member: mid}
		diff, _, err := spec.DiffPipeline(memberFid, oldMemberSpec.Pipeline, newMemberSpec.Pipeline)
		if err != nil {
			return err
		}

		effective := oldMemberSpec
		if effective.Pipeline == nil {
			effective.Pipeline = map[id.EndpointId]spec.EndpointSpec{}
		} else {
			clone := make(map[id.EndpointId]spec.EndpointSpec, len(effective.Pipeline))
			for eid, ep := range effective.Pipeline {
				clone[eid] = ep
			}
			effective.Pipeline = clone
		}
		for eid, ep := range diff.Added {
			effective.Pipeline[eid] = ep
		}
		for eid, ep := range diff.Updated {
			effective.Pipeline[eid] = ep
		}
		if removeMissing {
			// apply policy: endpoints missing from the new body are removed
			// (spec §6.2 PUT policy=apply).
			for eid, ep := range diff.Removed {
				r.detachEndpoint(ctx, id.Fid{Room: r.ID, Member: mid, Endpoint: eid}, ep)
				delete(effective.Pipeline, eid)
			}
		}
		effective.Credential = newMemberSpec.Credential
		effective.Rpc = newMemberSpec.Rpc
		effective.OnJoin = newMemberSpec.OnJoin
		effective.OnLeave = newMemberSpec.OnLeave

		merged.Pipeline[mid] = effective
		if rt, ok := r.members[mid]; ok {
			rt.Spec = effective
		}
	}

	r.spec = merged
	r.reconcileLinks(ctx)
	return nil
}

// detachEndpoint cascades the removal of one endpoint from the Peer Graph
// and notifies affected sessions (spec §4.2 remove_endpoint).
func (r *Room) detachEndpoint(ctx context.Context, fid id.Fid, ep spec.EndpointSpec) {
	var result peer.RemoveResult
	switch ep.Kind {
	case spec.KindWebRtcPublish:
		result = r.graph.RemovePublishEndpoint(fid)
	case spec.KindWebRtcPlay:
		result = r.graph.RemovePlayEndpoint(fid)
	}
	r.notifyPeersClosed(ctx, result.ClosedPeers)
}

// reconcileLinks scans the authoritative spec and ensures every WebRtcPlay
// whose src resolves to a live WebRtcPublish, with both Members connected,
// has a materialized Peer pair. ensure_pair is idempotent (spec §4.2) so a
// full rescan after every mutation is safe, trading some redundant work for
// not having to track link dependency order across Apply calls.
func (r *Room) reconcileLinks(ctx context.Context) {
	for mid, m := range r.spec.Pipeline {
		if _, connected := r.members[mid]; !connected {
			continue
		}
		for eid, ep := range m.Pipeline {
			if ep.Kind != spec.KindWebRtcPlay {
				continue
			}
			srcFid, err := id.ParseFid(ep.Play.Src)
			if err != nil {
				continue
			}
			if _, connected := r.members[srcFid.Member]; !connected {
				continue
			}
			pubSpec, ok := r.spec.Pipeline[srcFid.Member].Pipeline[srcFid.Endpoint]
			if !ok || pubSpec.Kind != spec.KindWebRtcPublish {
				continue
			}
			link := peer.Link{
				PublishFid:   srcFid,
				SubscribeFid: id.Fid{Room: r.ID, Member: mid, Endpoint: eid},
				Publish:      *pubSpec.Publish,
				Play:         *ep.Play,
			}
			peerA, peerB, created := r.graph.EnsureLink(link)
			if created {
				r.startPeerPair(ctx, peerA, peerB)
			}
		}
	}
}

// startPeerPair assigns the offerer per the tie-break rule and delivers
// PeerCreated to both owning sessions (spec §4.2, §6.1).
func (r *Room) startPeerPair(ctx context.Context, a, b id.PeerId) {
	pa, _ := r.graph.Peer(a)
	pb, _ := r.graph.Peer(b)
	offererID := peer.Offerer(r.graph, a, b)

	for _, p := range []*peer.Peer{pa, pb} {
		role := negotiation.RoleAnswerer
		if p.ID == offererID {
			role = negotiation.RoleOfferer
			// Only the offerer leaves Stable here; the answerer stays
			// Stable until EvRemoteSdpOffer arrives with the offer.
			p.Negotiation, _ = negotiation.Transition(p.Negotiation, negotiation.Event{
				Kind: negotiation.EvStartNegotiation,
				Role: negotiation.Role{Kind: role},
			})
		}
		r.sendPeerCreated(ctx, p, role)
		if rt, ok := r.members[p.Member]; ok {
			rt.PeerIDs[p.ID] = struct{}{}
		}
		if r.liveness != nil {
			r.liveness.RegisterPeer(p.ID, recvTrackIDs(p), time.Now())
		}
	}
}

// recvTrackIDs lists the Recv-direction tracks a Peer receives on, the set
// the Liveness Monitor watches for byte-growth stalls (spec §4.7).
func recvTrackIDs(p *peer.Peer) []id.TrackId {
	ids := make([]id.TrackId, 0, len(p.Tracks))
	for tid, t := range p.Tracks {
		if !t.Direction.IsSend {
			ids = append(ids, tid)
		}
	}
	return ids
}

func (r *Room) sendPeerCreated(ctx context.Context, p *peer.Peer, role negotiation.RoleKind) {
	rt, ok := r.members[p.Member]
	if !ok || rt.Transport == nil {
		return
	}
	tracks := make([]negotiation.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		tracks = append(tracks, *t)
	}
	var iceServers []session.IceServer
	if r.turn != nil {
		var err error
		iceServers, err = r.turn.IceServersFor(ctx, r.ID, p.Member)
		if err != nil {
			slog.ErrorContext(ctx, "room: ice servers unavailable", slog.String("member", string(p.Member)), slog.String("error", err.Error()))
		}
	}
	r.sendEvent(ctx, p.Member, session.Event{
		Kind:            session.EvPeerCreated,
		PeerId:          p.ID,
		Tracks:          tracks,
		IceServers:      iceServers,
		ForceRelay:      p.IsForcedRelay,
		NegotiationRole: &negotiation.Role{Kind: role},
	})
}

// notifyPeersClosed sends PeersRemoved to every affected Member for a batch
// of closed PeerIds, deduplicated and grouped per owner.
func (r *Room) notifyPeersClosed(ctx context.Context, closed []id.PeerId) {
	if len(closed) == 0 {
		return
	}
	byMember := map[id.MemberId][]id.PeerId{}
	for _, pid := range closed {
		if r.liveness != nil {
			r.liveness.RemovePeer(pid)
		}
		for mid, rt := range r.members {
			if _, owned := rt.PeerIDs[pid]; owned {
				byMember[mid] = append(byMember[mid], pid)
				delete(rt.PeerIDs, pid)
			}
		}
	}
	for mid, pids := range byMember {
		r.sendEvent(ctx, mid, session.Event{Kind: session.EvPeersRemoved, PeerIds: pids})
	}
}

// sendEvent allocates the next event_seq for mid's session and delivers the
// frame, logging (not panicking) on transport failure (spec §7 "Core never
// panics on client input").
func (r *Room) sendEvent(ctx context.Context, mid id.MemberId, ev session.Event) {
	rt, ok := r.members[mid]
	if !ok || rt.Transport == nil {
		return
	}
	ev.Seq = rt.Session.NextEventSeq()
	if err := rt.Transport.Send(ctx, session.Frame{Msg: session.FrameEvent, Event: &ev}); err != nil {
		slog.WarnContext(ctx, "room: event delivery failed", slog.String("member", string(mid)), slog.String("kind", string(ev.Kind)), slog.String("error", err.Error()))
	}
}
