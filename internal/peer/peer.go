// Package peer implements the Peer Graph (spec §4.2): the Peer<->Peer graph
// with Track edges, created and linked dynamically as endpoints appear, and
// torn down when the relations or the owning Member disappear.
//
// The Graph is exclusively driven by the Room Orchestrator's single-writer
// actor loop (spec §5), so nothing here takes a lock: there is never more
// than one goroutine mutating a given Room's Graph at a time.
package peer

import (
	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/negotiation"
	"github.com/medea-project/medea/internal/spec"
)

// Peer is a half of a WebRTC connection, owned by exactly one Member and
// paired to exactly one partner Peer (spec §3 Peer).
type Peer struct {
	ID            id.PeerId
	Member        id.MemberId
	Partner       id.PeerId
	IsForcedRelay bool
	Negotiation   negotiation.PeerNegotiation
	Tracks        map[id.TrackId]*negotiation.Track
	LastLocalSdp  string
	LastRemoteSdp string

	nextTrackID id.TrackId
}

func newPeer(pid id.PeerId, member id.MemberId, forceRelay bool) *Peer {
	return &Peer{
		ID:            pid,
		Member:        member,
		IsForcedRelay: forceRelay,
		Negotiation:   negotiation.NewPeerNegotiation(),
		Tracks:        make(map[id.TrackId]*negotiation.Track),
	}
}

func (p *Peer) allocTrackID() id.TrackId {
	p.nextTrackID++
	return p.nextTrackID
}

// addSendTrack adds a Send-direction track to p, receiving at partnerPeer.
func (p *Peer) addSendTrack(kind negotiation.MediaKind, src negotiation.MediaSourceKind, partnerPeer id.PeerId, required bool) *negotiation.Track {
	t := &negotiation.Track{
		ID:              p.allocTrackID(),
		MediaKind:       kind,
		MediaSourceKind: src,
		Direction: negotiation.Direction{
			IsSend:    true,
			Receivers: map[id.PeerId]struct{}{partnerPeer: {}},
		},
		EnabledIndividual: true,
		EnabledGeneral:    true,
		Mute:              negotiation.MuteState{Required: required},
	}
	p.Tracks[t.ID] = t
	return t
}

// addRecvTrack adds a Recv-direction track to p, matching a Send track on
// sender, with the same TrackId to keep the pair linked across Peers.
func (p *Peer) addRecvTrack(trackID id.TrackId, kind negotiation.MediaKind, src negotiation.MediaSourceKind, sender id.PeerId, required bool) *negotiation.Track {
	t := &negotiation.Track{
		ID:              trackID,
		MediaKind:       kind,
		MediaSourceKind: src,
		Direction: negotiation.Direction{
			IsSend: false,
			Sender: sender,
		},
		EnabledIndividual: true,
		EnabledGeneral:    true,
		Mute:              negotiation.MuteState{Required: required},
	}
	p.Tracks[t.ID] = t
	return t
}

// spec.PublishPolicy required flag helper.
func requiredFromPolicy(pp spec.PublishPolicy) bool {
	return pp == spec.PolicyRequired
}
