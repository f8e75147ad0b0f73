package spec

import (
	"testing"

	"github.com/medea-project/medea/internal/id"
)

func TestDiffPipelineAddedUpdatedRemoved(t *testing.T) {
	mf := id.MemberFid{Room: "room1", Member: "alice"}
	old := map[id.EndpointId]EndpointSpec{
		"pub":  {Kind: KindWebRtcPublish, Publish: &PublishSpec{P2p: P2pIfPossible}},
		"play": {Kind: KindWebRtcPlay, Play: &PlaySpec{Src: "room1/bob/pub"}},
	}
	next := map[id.EndpointId]EndpointSpec{
		"pub":  {Kind: KindWebRtcPublish, Publish: &PublishSpec{P2p: P2pAlways}},
		"play2": {Kind: KindWebRtcPlay, Play: &PlaySpec{Src: "room1/bob/pub"}},
	}
	diff, changed, err := DiffPipeline(mf, old, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Fatalf("unexpected kind changes: %v", changed)
	}
	if _, ok := diff.Added["play2"]; !ok {
		t.Fatal("expected play2 added")
	}
	if _, ok := diff.Updated["pub"]; !ok {
		t.Fatal("expected pub updated")
	}
	if _, ok := diff.Removed["play"]; !ok {
		t.Fatal("expected play removed")
	}
}

func TestDiffPipelineRejectsKindChange(t *testing.T) {
	mf := id.MemberFid{Room: "room1", Member: "alice"}
	old := map[id.EndpointId]EndpointSpec{
		"x": {Kind: KindWebRtcPublish, Publish: &PublishSpec{}},
	}
	next := map[id.EndpointId]EndpointSpec{
		"x": {Kind: KindWebRtcPlay, Play: &PlaySpec{Src: "room1/bob/pub"}},
	}
	_, changed, err := DiffPipeline(mf, old, next)
	if err == nil {
		t.Fatal("expected error on kind change")
	}
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed endpoint, got %d", len(changed))
	}
}

func TestValidateRoomDanglingSrc(t *testing.T) {
	r := RoomSpec{Pipeline: map[id.MemberId]MemberSpec{
		"alice": {Pipeline: map[id.EndpointId]EndpointSpec{
			"play": {Kind: KindWebRtcPlay, Play: &PlaySpec{Src: "room1/bob/pub"}},
		}},
	}}
	if err := ValidateRoom("room1", r); err == nil {
		t.Fatal("expected dangling src error")
	}
}

func TestValidateRoomOK(t *testing.T) {
	r := RoomSpec{Pipeline: map[id.MemberId]MemberSpec{
		"bob": {Pipeline: map[id.EndpointId]EndpointSpec{
			"pub": {Kind: KindWebRtcPublish, Publish: &PublishSpec{}},
		}},
		"alice": {Pipeline: map[id.EndpointId]EndpointSpec{
			"play": {Kind: KindWebRtcPlay, Play: &PlaySpec{Src: "room1/bob/pub"}},
		}},
	}}
	if err := ValidateRoom("room1", r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyCredential(t *testing.T) {
	if !VerifyCredential(Credential{Plain: "secret"}, "secret") {
		t.Fatal("plain credential should match")
	}
	if VerifyCredential(Credential{Plain: "secret"}, "wrong") {
		t.Fatal("plain credential should not match")
	}
	hash := HashArgon2("secret", []byte("0123456789abcdef"))
	if !VerifyCredential(Credential{ArgonHash: hash}, "secret") {
		t.Fatal("argon2 credential should match")
	}
	if VerifyCredential(Credential{ArgonHash: hash}, "wrong") {
		t.Fatal("argon2 credential should not match")
	}
}
