package session

import (
	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/negotiation"
)

// PeerSnapshot is the authoritative, server-side view of one Peer used to
// diff against a reconnecting client's claimed state.
type PeerSnapshot struct {
	ID              id.PeerId
	Version         uint64
	Tracks          []negotiation.Track
	SdpOffer        string
	IceServers      []IceServer
	ForceRelay      bool
	NegotiationRole *negotiation.Role
}

// ComputeResync builds the minimal ordered Event sequence that converges a
// reconnecting client's claimed state to the authoritative snapshot (spec
// §4.4 "State resync protocol"). Peers the client doesn't know about yet
// are sent as PeerCreated; Peers the client has that no longer exist are
// sent as PeersRemoved; Peers whose version differs get a PeerUpdated
// carrying the full current track set.
func ComputeResync(claimed ClientSnapshot, authoritative map[id.PeerId]PeerSnapshot) []Event {
	var events []Event

	var removed []id.PeerId
	for pid := range claimed.PeerVersions {
		if _, ok := authoritative[pid]; !ok {
			removed = append(removed, pid)
		}
	}
	if len(removed) > 0 {
		events = append(events, Event{Kind: EvPeersRemoved, PeerIds: removed})
	}

	for pid, snap := range authoritative {
		clientVersion, known := claimed.PeerVersions[pid]
		switch {
		case !known:
			events = append(events, Event{
				Kind:            EvPeerCreated,
				PeerId:          pid,
				SdpOffer:        snap.SdpOffer,
				Tracks:          snap.Tracks,
				IceServers:      snap.IceServers,
				ForceRelay:      snap.ForceRelay,
				NegotiationRole: snap.NegotiationRole,
			})
		case clientVersion != snap.Version:
			events = append(events, Event{
				Kind:   EvPeerUpdated,
				PeerId: pid,
				Updates: tracksToAddedUpdates(snap.Tracks),
			})
		}
	}

	events = append(events, Event{Kind: EvStateSynchronized})
	return events
}

func tracksToAddedUpdates(tracks []negotiation.Track) []negotiation.PeerUpdate {
	updates := make([]negotiation.PeerUpdate, 0, len(tracks))
	for _, t := range tracks {
		updates = append(updates, negotiation.PeerUpdate{Kind: negotiation.UpdateAdded, Added: t})
	}
	return updates
}
