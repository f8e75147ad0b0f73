package spec

import (
	"strings"
	"testing"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/medeaerr"
)

func TestRoomSpecYAMLRoundTrip(t *testing.T) {
	rs := RoomSpec{
		RpcSettings: RpcSettings{IdleTimeout: 30},
		Pipeline: map[id.MemberId]MemberSpec{
			"alice": {
				Credential: Credential{Plain: "secret"},
				OnJoin:     "http://callbacks.local/join",
				Pipeline:   map[id.EndpointId]EndpointSpec{},
			},
		},
	}

	out, err := MarshalRoomSpecYAML(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := ParseRoomSpecYAML(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	alice, ok := got.Pipeline["alice"]
	if !ok {
		t.Fatal("expected member alice to survive round trip")
	}
	if alice.Credential.Plain != "secret" || alice.OnJoin != "http://callbacks.local/join" {
		t.Errorf("round trip mismatch: %+v", alice)
	}
}

func TestParseRoomSpecYAMLRejectsDuplicateMemberID(t *testing.T) {
	raw := `
pipeline:
  alice:
    pipeline: {}
  alice:
    pipeline: {}
`
	_, err := ParseRoomSpecYAML([]byte(raw))
	if err == nil {
		t.Fatal("expected duplicate member id to be rejected")
	}
	var me *medeaerr.Error
	if !asMedeaErr(err, &me) || me.Code != "duplicate_id" {
		t.Fatalf("expected duplicate_id SpecValidation, got %v", err)
	}
	if !strings.Contains(me.Text, "alice") {
		t.Fatalf("expected error to name the duplicate id, got %q", me.Text)
	}
}

func TestParseRoomSpecYAMLRejectsDuplicateEndpointID(t *testing.T) {
	raw := `
pipeline:
  alice:
    pipeline:
      cam:
        kind: WebRtcPublish
        publish: {p2p: Never}
      cam:
        kind: WebRtcPublish
        publish: {p2p: Never}
`
	_, err := ParseRoomSpecYAML([]byte(raw))
	if err == nil {
		t.Fatal("expected duplicate endpoint id to be rejected")
	}
	var me *medeaerr.Error
	if !asMedeaErr(err, &me) || me.Code != "duplicate_id" {
		t.Fatalf("expected duplicate_id SpecValidation, got %v", err)
	}
}

func asMedeaErr(err error, target **medeaerr.Error) bool {
	me, ok := err.(*medeaerr.Error)
	if ok {
		*target = me
	}
	return ok
}
