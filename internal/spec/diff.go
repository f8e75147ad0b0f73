package spec

import (
	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/medeaerr"
)

// PipelineDiff is the result of diffing an old and a new endpoint pipeline
// for a single Member, used by Apply (spec §4.1).
type PipelineDiff struct {
	Added   map[id.EndpointId]EndpointSpec
	Updated map[id.EndpointId]EndpointSpec
	Removed map[id.EndpointId]EndpointSpec
}

// DiffPipeline computes the {added, updated, removed} partition between two
// endpoint pipelines belonging to the same Member. An endpoint whose Kind
// changed between old and new is reported via changedKind so the caller can
// reject the whole Apply with SpecValidation rather than silently treating
// it as remove+add (spec §9 Open Question).
func DiffPipeline(memberFid id.MemberFid, old, next map[id.EndpointId]EndpointSpec) (PipelineDiff, []id.EndpointId, error) {
	diff := PipelineDiff{
		Added:   map[id.EndpointId]EndpointSpec{},
		Updated: map[id.EndpointId]EndpointSpec{},
		Removed: map[id.EndpointId]EndpointSpec{},
	}
	var changedKind []id.EndpointId

	for eid, newSpec := range next {
		oldSpec, existed := old[eid]
		if !existed {
			diff.Added[eid] = newSpec
			continue
		}
		if !oldSpec.SameKindAs(newSpec) {
			changedKind = append(changedKind, eid)
			continue
		}
		diff.Updated[eid] = newSpec
	}
	for eid, oldSpec := range old {
		if _, still := next[eid]; !still {
			diff.Removed[eid] = oldSpec
		}
	}

	if len(changedKind) > 0 {
		fid := id.Fid{Room: memberFid.Room, Member: memberFid.Member, Endpoint: changedKind[0]}
		return diff, changedKind, medeaerr.Validationf("kind_changed", fid.String(),
			"endpoint kind is immutable via Apply; remove and recreate instead")
	}
	return diff, nil, nil
}

// ValidateEndpoint checks a single endpoint spec for structural validity: a
// WebRtcPlay's src must parse as a Fid; unknown kinds are rejected.
func ValidateEndpoint(fid id.Fid, e EndpointSpec) error {
	switch e.Kind {
	case KindWebRtcPublish:
		if e.Publish == nil {
			return medeaerr.Validationf("unknown_kind", fid.String(), "WebRtcPublish endpoint missing publish body")
		}
		return nil
	case KindWebRtcPlay:
		if e.Play == nil {
			return medeaerr.Validationf("unknown_kind", fid.String(), "WebRtcPlay endpoint missing play body")
		}
		if _, err := id.ParseFid(e.Play.Src); err != nil {
			return medeaerr.Validationf("invalid_fid", fid.String(), "play src %q is not a valid fid", e.Play.Src)
		}
		return nil
	default:
		return medeaerr.Validationf("unknown_kind", fid.String(), "unknown endpoint kind %q", e.Kind)
	}
}

// ValidateRoom validates an entire RoomSpec: every endpoint is structurally
// valid, every Member id is unique (guaranteed by the map type itself), and
// every WebRtcPlay.src resolves to some WebRtcPublish endpoint declared
// somewhere in the same spec (DanglingSrc).
func ValidateRoom(roomId id.RoomId, r RoomSpec) error {
	publishers := map[string]bool{}
	for mid, m := range r.Pipeline {
		for eid, e := range m.Pipeline {
			fid := id.Fid{Room: roomId, Member: mid, Endpoint: eid}
			if err := ValidateEndpoint(fid, e); err != nil {
				return err
			}
			if e.Kind == KindWebRtcPublish {
				publishers[fid.String()] = true
			}
		}
	}
	for mid, m := range r.Pipeline {
		for eid, e := range m.Pipeline {
			if e.Kind != KindWebRtcPlay {
				continue
			}
			fid := id.Fid{Room: roomId, Member: mid, Endpoint: eid}
			if !publishers[e.Play.Src] {
				return medeaerr.Validationf("dangling_src", fid.String(),
					"play src %q does not resolve to a live publish endpoint", e.Play.Src)
			}
		}
	}
	return nil
}
