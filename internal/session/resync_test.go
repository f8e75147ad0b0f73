package session

import (
	"testing"

	"github.com/medea-project/medea/internal/id"
)

func TestComputeResyncNoOpWhenInSync(t *testing.T) {
	auth := map[id.PeerId]PeerSnapshot{1: {ID: 1, Version: 3}}
	events := ComputeResync(ClientSnapshot{PeerVersions: map[id.PeerId]uint64{1: 3}}, auth)
	if len(events) != 1 || events[0].Kind != EvStateSynchronized {
		t.Fatalf("expected only StateSynchronized, got %+v", events)
	}
}

func TestComputeResyncCreatesUnknownPeer(t *testing.T) {
	auth := map[id.PeerId]PeerSnapshot{1: {ID: 1, Version: 1}}
	events := ComputeResync(ClientSnapshot{PeerVersions: map[id.PeerId]uint64{}}, auth)
	if len(events) != 2 || events[0].Kind != EvPeerCreated || events[0].PeerId != 1 {
		t.Fatalf("expected PeerCreated for peer 1, got %+v", events)
	}
}

func TestComputeResyncRemovesMissingPeer(t *testing.T) {
	auth := map[id.PeerId]PeerSnapshot{}
	events := ComputeResync(ClientSnapshot{PeerVersions: map[id.PeerId]uint64{9: 1}}, auth)
	if len(events) != 2 || events[0].Kind != EvPeersRemoved || events[0].PeerIds[0] != 9 {
		t.Fatalf("expected PeersRemoved for peer 9, got %+v", events)
	}
}

func TestComputeResyncUpdatesStalePeer(t *testing.T) {
	auth := map[id.PeerId]PeerSnapshot{1: {ID: 1, Version: 5}}
	events := ComputeResync(ClientSnapshot{PeerVersions: map[id.PeerId]uint64{1: 2}}, auth)
	if len(events) != 2 || events[0].Kind != EvPeerUpdated || events[0].PeerId != 1 {
		t.Fatalf("expected PeerUpdated for peer 1, got %+v", events)
	}
}
