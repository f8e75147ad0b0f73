package room

import (
	"context"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/liveness"
	"github.com/medea-project/medea/internal/negotiation"
	"github.com/medea-project/medea/internal/session"
)

// Room implements liveness.Sink. Its methods are called from the Monitor's
// own ticker goroutine (tick) or from Monitor.Observe, so each one
// re-enters the Room strictly through Dispatch rather than touching
// Graph/member state directly (spec §5 single-writer rule: the Liveness
// Monitor is an independent actor).

func (r *Room) OnTrackFlowChanged(ctx context.Context, peerID id.PeerId, trackID id.TrackId, state liveness.FlowState) {
	_ = r.Dispatch(ctx, func() { r.handleTrackFlowChanged(peerID, trackID, state) })
}

func (r *Room) OnQualityChanged(ctx context.Context, peerID id.PeerId, score liveness.Quality) {
	_ = r.Dispatch(ctx, func() { r.handleQualityChanged(ctx, peerID, score) })
}

func (r *Room) OnIceRestartNeeded(ctx context.Context, peerID id.PeerId) {
	_ = r.Dispatch(ctx, func() { r.handleIceRestart(ctx, peerID) })
}

// handleTrackFlowChanged updates the aggregate effective flow state carried
// on the Track (spec §3 "enabled_general"). It does not push a dedicated
// wire event: clients observe the change through the next PeerUpdated or
// resync, matching how enabled_general already flows elsewhere.
func (r *Room) handleTrackFlowChanged(peerID id.PeerId, trackID id.TrackId, state liveness.FlowState) {
	p, ok := r.graph.Peer(peerID)
	if !ok {
		return
	}
	if t, ok := p.Tracks[trackID]; ok {
		t.EnabledGeneral = state == liveness.Flowing
	}
}

// handleQualityChanged pushes ConnectionQualityUpdated to both sides of the
// connection peerID belongs to (spec §4.7).
func (r *Room) handleQualityChanged(ctx context.Context, peerID id.PeerId, score liveness.Quality) {
	p, ok := r.graph.Peer(peerID)
	if !ok {
		return
	}
	partner, ok := r.graph.Peer(p.Partner)
	if !ok {
		return
	}
	r.sendEvent(ctx, p.Member, session.Event{Kind: session.EvConnectionQuality, PartnerMemberId: partner.Member, Score: int(score)})
	r.sendEvent(ctx, partner.Member, session.Event{Kind: session.EvConnectionQuality, PartnerMemberId: p.Member, Score: int(score)})
}

// handleIceRestart drives the EvIceRestart transition and, since that
// transition only accumulates a Pending patch without emitting an Outbound
// of its own (the restart is meant to flush "with the next negotiation
// role assignment"), immediately assigns peerID the Offerer role to carry
// it (spec §4.3, §4.7).
func (r *Room) handleIceRestart(ctx context.Context, peerID id.PeerId) {
	p, ok := r.graph.Peer(peerID)
	if !ok {
		return
	}
	next, _ := negotiation.Transition(p.Negotiation, negotiation.Event{Kind: negotiation.EvIceRestart})
	updates := next.Pending
	next.Pending = nil
	next.Offerer = true
	p.Negotiation = next
	role := negotiation.Role{Kind: negotiation.RoleOfferer}
	r.sendEvent(ctx, p.Member, session.Event{Kind: session.EvPeerUpdated, PeerId: p.ID, Updates: updates, NegotiationRole: &role})
}
