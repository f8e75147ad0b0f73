package peer

import (
	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/negotiation"
	"github.com/medea-project/medea/internal/spec"
)

// pairKey identifies one ordered (publisher Member, subscriber Member) Peer
// pair. Under p2p IfPossible/Always this pair is shared (mesh-collapsed)
// across every publish endpoint the publisher offers that subscriber.
type pairKey struct {
	Publisher  id.MemberId
	Subscriber id.MemberId
}

// tripleKey identifies one (publisher, publish endpoint, subscriber)
// relation: the unit spec §8's uniqueness invariant is stated over.
type tripleKey struct {
	Publisher  id.MemberId
	PublishEp  id.EndpointId
	Subscriber id.MemberId
}

type pairRecord struct {
	PeerA, PeerB id.PeerId // PeerA owned by Publisher, PeerB owned by Subscriber
	ServerSide   bool      // true under p2p=Never: no direct mesh is implied
}

// link is one play endpoint's claim on a triple's track pair; refcounted
// because multiple play endpoints of the same subscriber may resolve to
// the same publish endpoint.
type link struct {
	triple tripleKey
}

// Graph is the Peer<->Peer graph with Track edges for one Room. It is
// mutated exclusively by the Room Orchestrator's single-writer actor loop;
// no internal synchronization is needed (spec §5).
type Graph struct {
	peers      map[id.PeerId]*Peer
	pairs      map[pairKey]*pairRecord
	tripleRefs map[tripleKey]int
	links      map[id.Fid]link
	nextPeerID id.PeerId
}

// NewGraph creates an empty Peer Graph.
func NewGraph() *Graph {
	return &Graph{
		peers:      make(map[id.PeerId]*Peer),
		pairs:      make(map[pairKey]*pairRecord),
		tripleRefs: make(map[tripleKey]int),
		links:      make(map[id.Fid]link),
	}
}

// Peer returns a Peer by id.
func (g *Graph) Peer(pid id.PeerId) (*Peer, bool) {
	p, ok := g.peers[pid]
	return p, ok
}

// Peers returns every Peer belonging to the given Member.
func (g *Graph) Peers(member id.MemberId) []*Peer {
	var out []*Peer
	for _, p := range g.peers {
		if p.Member == member {
			out = append(out, p)
		}
	}
	return out
}

func (g *Graph) allocPeerID() id.PeerId {
	g.nextPeerID++
	return g.nextPeerID
}

// Link describes one publish/play relation to materialize in the graph.
type Link struct {
	PublishFid   id.Fid
	SubscribeFid id.Fid
	Publish      spec.PublishSpec
	Play         spec.PlaySpec
}

// EnsureLink implements ensure_pair from spec §4.2: idempotent creation (or
// track-addition to an existing pair) of the Peer pair serving this
// publish/play relation. Returns the publisher-side and subscriber-side
// PeerId, and whether a new pair was created (so the caller knows to emit
// PeerCreated rather than PeerUpdated).
func (g *Graph) EnsureLink(l Link) (peerA, peerB id.PeerId, created bool) {
	publisher := l.PublishFid.Member
	subscriber := l.SubscribeFid.Member
	triple := tripleKey{Publisher: publisher, PublishEp: l.PublishFid.Endpoint, Subscriber: subscriber}

	if _, already := g.links[l.SubscribeFid]; already {
		rec := g.pairs[pairKey{Publisher: publisher, Subscriber: subscriber}]
		return rec.PeerA, rec.PeerB, false
	}

	pk := pairKey{Publisher: publisher, Subscriber: subscriber}
	rec, exists := g.pairs[pk]
	if !exists {
		serverSide := l.Publish.P2p == spec.P2pNever
		forceRelay := l.Publish.ForceRelay || l.Play.ForceRelay
		a := newPeer(g.allocPeerID(), publisher, forceRelay)
		b := newPeer(g.allocPeerID(), subscriber, forceRelay)
		a.Partner = b.ID
		b.Partner = a.ID
		g.peers[a.ID] = a
		g.peers[b.ID] = b
		rec = &pairRecord{PeerA: a.ID, PeerB: b.ID, ServerSide: serverSide}
		g.pairs[pk] = rec
		created = true
	}

	pa := g.peers[rec.PeerA]
	pb := g.peers[rec.PeerB]

	if l.Publish.Audio.PublishPolicy != spec.PolicyDisabled {
		g.addTrackPair(pa, pb, negotiation.Audio, negotiation.Device, requiredFromPolicy(l.Publish.Audio.PublishPolicy))
	}
	if l.Publish.Video.PublishPolicy != spec.PolicyDisabled {
		g.addTrackPair(pa, pb, negotiation.Video, negotiation.Device, requiredFromPolicy(l.Publish.Video.PublishPolicy))
	}

	g.tripleRefs[triple]++
	// The link records only its triple, not track ids: removal walks the
	// triple's pair rather than individual tracks.
	g.links[l.SubscribeFid] = link{triple: triple}

	return rec.PeerA, rec.PeerB, created
}

func (g *Graph) addTrackPair(publisherPeer, subscriberPeer *Peer, kind negotiation.MediaKind, src negotiation.MediaSourceKind, required bool) {
	for _, t := range publisherPeer.Tracks {
		if t.MediaKind == kind && t.Direction.IsSend {
			if _, already := t.Direction.Receivers[subscriberPeer.ID]; already {
				return
			}
			t.Direction.Receivers[subscriberPeer.ID] = struct{}{}
			subscriberPeer.addRecvTrack(t.ID, kind, src, publisherPeer.ID, required)
			return
		}
	}
	sendTrack := publisherPeer.addSendTrack(kind, src, subscriberPeer.ID, required)
	subscriberPeer.addRecvTrack(sendTrack.ID, kind, src, publisherPeer.ID, required)
}

// RemoveResult reports what a removal operation did, so the caller (Room
// Orchestrator) can emit the right events.
type RemoveResult struct {
	ClosedPeers []id.PeerId
}

// RemovePublishEndpoint cascades the removal of a publish endpoint: every
// triple keyed on it loses its tracks; any pair left with zero tracks is
// closed (spec §3 Peer lifecycle, §4.2 remove_endpoint).
func (g *Graph) RemovePublishEndpoint(fid id.Fid) RemoveResult {
	var result RemoveResult
	for pk, rec := range g.pairs {
		if pk.Publisher != fid.Member {
			continue
		}
		triple := tripleKey{Publisher: fid.Member, PublishEp: fid.Endpoint, Subscriber: pk.Subscriber}
		if _, ok := g.tripleRefs[triple]; !ok {
			continue
		}
		delete(g.tripleRefs, triple)
		for lfid, l := range g.links {
			if l.triple == triple {
				delete(g.links, lfid)
			}
		}
		g.removeTracksForTriple(rec, fid.Endpoint)
		if g.peerIsEmpty(rec.PeerA) && g.peerIsEmpty(rec.PeerB) {
			result.ClosedPeers = append(result.ClosedPeers, rec.PeerA, rec.PeerB)
			delete(g.peers, rec.PeerA)
			delete(g.peers, rec.PeerB)
			delete(g.pairs, pk)
		}
	}
	return result
}

// RemovePlayEndpoint detaches a single play endpoint's claim on its triple,
// closing the underlying Peer pair only if no other play endpoint of the
// same subscriber still references it.
func (g *Graph) RemovePlayEndpoint(fid id.Fid) RemoveResult {
	var result RemoveResult
	l, ok := g.links[fid]
	if !ok {
		return result
	}
	delete(g.links, fid)
	g.tripleRefs[l.triple]--
	if g.tripleRefs[l.triple] > 0 {
		return result
	}
	delete(g.tripleRefs, l.triple)

	pk := pairKey{Publisher: l.triple.Publisher, Subscriber: l.triple.Subscriber}
	rec, exists := g.pairs[pk]
	if !exists {
		return result
	}
	g.removeTracksForTriple(rec, l.triple.PublishEp)
	if g.peerIsEmpty(rec.PeerA) && g.peerIsEmpty(rec.PeerB) {
		result.ClosedPeers = append(result.ClosedPeers, rec.PeerA, rec.PeerB)
		delete(g.peers, rec.PeerA)
		delete(g.peers, rec.PeerB)
		delete(g.pairs, pk)
	}
	return result
}

// RemoveMember closes every Peer the Member owns, notifying their partners
// via the returned ClosedPeers (spec §4.2 remove_member).
func (g *Graph) RemoveMember(member id.MemberId) RemoveResult {
	var result RemoveResult
	for pk, rec := range g.pairs {
		if pk.Publisher != member && pk.Subscriber != member {
			continue
		}
		result.ClosedPeers = append(result.ClosedPeers, rec.PeerA, rec.PeerB)
		delete(g.peers, rec.PeerA)
		delete(g.peers, rec.PeerB)
		delete(g.pairs, pk)
		for tk := range g.tripleRefs {
			if tk.Publisher == member || tk.Subscriber == member {
				delete(g.tripleRefs, tk)
			}
		}
		for lfid, l := range g.links {
			if l.triple.Publisher == member || l.triple.Subscriber == member {
				delete(g.links, lfid)
			}
		}
	}
	return result
}

func (g *Graph) removeTracksForTriple(rec *pairRecord, publishEp id.EndpointId) {
	pa := g.peers[rec.PeerA]
	pb := g.peers[rec.PeerB]
	if pa == nil || pb == nil {
		return
	}
	for tid, t := range pa.Tracks {
		if t.Direction.IsSend {
			delete(t.Direction.Receivers, pb.ID)
			if len(t.Direction.Receivers) == 0 {
				delete(pa.Tracks, tid)
				delete(pb.Tracks, tid)
			}
		}
	}
}

func (g *Graph) peerIsEmpty(pid id.PeerId) bool {
	p, ok := g.peers[pid]
	return !ok || len(p.Tracks) == 0
}

// Offerer implements the tie-break rule of spec §4.2: in a direct mesh pair
// the Member with the lexicographically smaller MemberId offers; for
// server-side halves (p2p=Never) the subscriber's Peer always offers,
// standing in for "the server is always the offerer" in the absence of an
// actual server-owned third Peer.
func Offerer(g *Graph, a, b id.PeerId) id.PeerId {
	pa, pb := g.peers[a], g.peers[b]
	pk := pairKey{Publisher: pa.Member, Subscriber: pb.Member}
	if rec, ok := g.pairs[pk]; ok && rec.ServerSide {
		return rec.PeerB
	}
	if pa.Member < pb.Member {
		return pa.ID
	}
	return pb.ID
}
