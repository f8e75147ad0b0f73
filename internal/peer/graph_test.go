package peer

import (
	"testing"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/spec"
)

func publishLink(pub, sub id.MemberId, pubEp, playEp id.EndpointId, p2p spec.P2pPolicy) Link {
	return Link{
		PublishFid:   id.Fid{Room: "r1", Member: pub, Endpoint: pubEp},
		SubscribeFid: id.Fid{Room: "r1", Member: sub, Endpoint: playEp},
		Publish: spec.PublishSpec{
			P2p:   p2p,
			Audio: spec.AudioSettings{PublishPolicy: spec.PolicyOptional},
			Video: spec.VideoSettings{PublishPolicy: spec.PolicyOptional},
		},
	}
}

func TestEnsureLinkCreatesPairOnce(t *testing.T) {
	g := NewGraph()
	l := publishLink("alice", "bob", "publish", "play", spec.P2pAlways)

	a1, b1, created1 := g.EnsureLink(l)
	if !created1 {
		t.Fatal("expected first EnsureLink to create a pair")
	}
	a2, b2, created2 := g.EnsureLink(l)
	if created2 {
		t.Fatal("expected repeat EnsureLink for the same link to be idempotent")
	}
	if a1 != a2 || b1 != b2 {
		t.Fatalf("repeat EnsureLink returned different peers: (%v,%v) vs (%v,%v)", a1, b1, a2, b2)
	}
	if len(g.peers) != 2 {
		t.Fatalf("expected exactly 2 Peers, got %d", len(g.peers))
	}
}

func TestEnsureLinkCollapsesMeshForSameMemberPair(t *testing.T) {
	g := NewGraph()
	l1 := publishLink("alice", "bob", "cam", "play-cam", spec.P2pIfPossible)
	l2 := publishLink("alice", "bob", "screen", "play-screen", spec.P2pIfPossible)

	a1, b1, _ := g.EnsureLink(l1)
	a2, b2, created2 := g.EnsureLink(l2)

	if created2 {
		t.Fatal("a second publish endpoint between the same Members should reuse the mesh pair")
	}
	if a1 != a2 || b1 != b2 {
		t.Fatal("mesh-collapsed pair should keep the same PeerIds across publish endpoints")
	}
	if len(g.peers) != 2 {
		t.Fatalf("expected exactly 2 Peers after collapse, got %d", len(g.peers))
	}

	pa, _ := g.Peer(a1)
	if len(pa.Tracks) != 2 {
		t.Fatalf("expected 2 Send tracks (audio+video) on the publisher Peer, got %d", len(pa.Tracks))
	}
}

func TestEnsureLinkDistinctSubscribersGetDistinctPairs(t *testing.T) {
	g := NewGraph()
	g.EnsureLink(publishLink("alice", "bob", "cam", "play1", spec.P2pAlways))
	g.EnsureLink(publishLink("alice", "carol", "cam", "play2", spec.P2pAlways))

	if len(g.pairs) != 2 {
		t.Fatalf("expected 2 distinct pairs for 2 distinct subscribers, got %d", len(g.pairs))
	}
	if len(g.peers) != 4 {
		t.Fatalf("expected 4 Peers, got %d", len(g.peers))
	}
}

func TestRemovePublishEndpointClosesEmptyPair(t *testing.T) {
	g := NewGraph()
	l := publishLink("alice", "bob", "cam", "play", spec.P2pAlways)
	g.EnsureLink(l)

	result := g.RemovePublishEndpoint(l.PublishFid)
	if len(result.ClosedPeers) != 2 {
		t.Fatalf("expected both Peers closed, got %+v", result.ClosedPeers)
	}
	if len(g.peers) != 0 || len(g.pairs) != 0 {
		t.Fatal("graph should be empty after removing the only publish endpoint")
	}
}

func TestRemovePlayEndpointKeepsPairAliveForOtherSubscriber(t *testing.T) {
	g := NewGraph()
	g.EnsureLink(publishLink("alice", "bob", "cam", "play-bob", spec.P2pAlways))
	l2 := publishLink("alice", "carol", "cam", "play-carol", spec.P2pAlways)
	g.EnsureLink(l2)

	result := g.RemovePlayEndpoint(l2.SubscribeFid)
	if len(result.ClosedPeers) != 2 {
		t.Fatalf("expected carol's pair closed, got %+v", result.ClosedPeers)
	}
	if len(g.pairs) != 1 {
		t.Fatalf("expected bob's pair to remain, got %d pairs", len(g.pairs))
	}
}

func TestRemoveMemberClosesAllOwnedPeers(t *testing.T) {
	g := NewGraph()
	g.EnsureLink(publishLink("alice", "bob", "cam", "play1", spec.P2pAlways))
	g.EnsureLink(publishLink("bob", "carol", "cam", "play2", spec.P2pAlways))

	result := g.RemoveMember("bob")
	if len(result.ClosedPeers) != 4 {
		t.Fatalf("expected bob's 2 pairs (4 peers) closed, got %+v", result.ClosedPeers)
	}
	if len(g.pairs) != 0 {
		t.Fatal("removing a Member present in every pair should empty the graph")
	}
}

func TestOffererTieBreakIsLexicographic(t *testing.T) {
	g := NewGraph()
	a, b, _ := g.EnsureLink(publishLink("zeta", "alpha", "cam", "play", spec.P2pAlways))

	offerer := Offerer(g, a, b)
	pb, _ := g.Peer(b)
	if offerer != pb.ID {
		t.Fatal("expected the Member with the lexicographically smaller MemberId (alpha) to offer")
	}
}

func TestOffererIsSubscriberForServerSideHalf(t *testing.T) {
	g := NewGraph()
	a, b, _ := g.EnsureLink(publishLink("alpha", "zeta", "cam", "play", spec.P2pNever))

	offerer := Offerer(g, a, b)
	pb, _ := g.Peer(b)
	if offerer != pb.ID {
		t.Fatal("expected the subscriber Peer to offer on a server-side half")
	}
}
