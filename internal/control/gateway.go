package control

import (
	"context"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/medeaerr"
	"github.com/medea-project/medea/internal/spec"
)

// Level is the granularity a Target addresses, mirroring the REST surface
// `/{roomId}[/{memberId}[/{endpointId}]]` (spec §6.2).
type Level int

const (
	RoomLevel Level = iota
	MemberLevel
	EndpointLevel
)

// Target is a Control API address at one of the three granularities. Only
// the fields up to Level are meaningful.
type Target struct {
	Room     id.RoomId
	Member   id.MemberId
	Endpoint id.EndpointId
}

// Level reports which granularity t addresses.
func (t Target) Level() Level {
	switch {
	case t.Endpoint != "":
		return EndpointLevel
	case t.Member != "":
		return MemberLevel
	default:
		return RoomLevel
	}
}

func (t Target) fid() id.Fid {
	return id.Fid{Room: t.Room, Member: t.Member, Endpoint: t.Endpoint}
}

func (t Target) memberFid() id.MemberFid {
	return id.MemberFid{Room: t.Room, Member: t.Member}
}

// Create implements Create(Fid, Spec) (spec §4.6): errors with AlreadyExists
// if the addressed element is already present. body must be a
// spec.RoomSpec, spec.MemberSpec, or spec.EndpointSpec matching t.Level().
// The returned map holds the plaintext credential of every Member created
// by this call, which the caller composes into a session URL per spec
// §6.3 — host/scheme composition is the wire front door's job, not the
// Control Gateway's.
func (g *Registry) Create(ctx context.Context, t Target, body any) (map[id.MemberId]string, error) {
	switch t.Level() {
	case RoomLevel:
		return g.createRoom(ctx, t, body)
	case MemberLevel:
		return g.createMember(ctx, t, body)
	default:
		return nil, g.createEndpoint(ctx, t, body)
	}
}

func (g *Registry) createRoom(ctx context.Context, t Target, body any) (map[id.MemberId]string, error) {
	roomSpec, ok := body.(spec.RoomSpec)
	if !ok {
		return nil, medeaerr.Validationf("bad_body", t.fid().String(), "Create at room level requires a RoomSpec")
	}
	if _, exists := g.lookup(t.Room); exists {
		return nil, medeaerr.AlreadyExistsf(string(t.Room), "room %q already exists", t.Room)
	}
	r := g.getOrCreate(ctx, t.Room)
	sids := make(map[id.MemberId]string, len(roomSpec.Pipeline))
	for mid, m := range roomSpec.Pipeline {
		sids[mid] = m.Credential.Plain
	}
	var applyErr error
	err := dispatchSync(ctx, r, func() {
		applyErr = r.ApplySpec(ctx, roomSpec, true)
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		g.drop(t.Room)
		return nil, err
	}
	return sids, nil
}

func (g *Registry) createMember(ctx context.Context, t Target, body any) (map[id.MemberId]string, error) {
	memberSpec, ok := body.(spec.MemberSpec)
	if !ok {
		return nil, medeaerr.Validationf("bad_body", t.fid().String(), "Create at member level requires a MemberSpec")
	}
	r, exists := g.lookup(t.Room)
	if !exists {
		return nil, roomNotFound(t.Room)
	}

	var applyErr error
	err := dispatchSync(ctx, r, func() {
		current := r.Spec()
		if _, already := current.Pipeline[t.Member]; already {
			applyErr = medeaerr.AlreadyExistsf(t.memberFid().String(), "member %q already exists", t.Member)
			return
		}
		current.Pipeline[t.Member] = memberSpec
		applyErr = r.ApplySpec(ctx, current, true)
	})
	if err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return map[id.MemberId]string{t.Member: memberSpec.Credential.Plain}, nil
}

func (g *Registry) createEndpoint(ctx context.Context, t Target, body any) error {
	endpointSpec, ok := body.(spec.EndpointSpec)
	if !ok {
		return medeaerr.Validationf("bad_body", t.fid().String(), "Create at endpoint level requires an EndpointSpec")
	}
	r, exists := g.lookup(t.Room)
	if !exists {
		return roomNotFound(t.Room)
	}

	var applyErr error
	err := dispatchSync(ctx, r, func() {
		current := r.Spec()
		memberSpec, known := current.Pipeline[t.Member]
		if !known {
			applyErr = medeaerr.NotFoundf(t.memberFid().String(), "member %q does not exist", t.Member)
			return
		}
		if _, already := memberSpec.Pipeline[t.Endpoint]; already {
			applyErr = medeaerr.AlreadyExistsf(t.fid().String(), "endpoint %q already exists", t.Endpoint)
			return
		}
		if memberSpec.Pipeline == nil {
			memberSpec.Pipeline = map[id.EndpointId]spec.EndpointSpec{}
		}
		memberSpec.Pipeline[t.Endpoint] = endpointSpec
		current.Pipeline[t.Member] = memberSpec
		applyErr = r.ApplySpec(ctx, current, true)
	})
	if err != nil {
		return err
	}
	return applyErr
}

// Apply implements Apply(Fid, Spec) (spec §4.6): an idempotent upsert. At
// room level, a missing Room is created (Apply's upsert semantics). policy
// selects the apply (removeMissing=true) vs. append (removeMissing=false)
// variant (spec §6.2).
func (g *Registry) Apply(ctx context.Context, t Target, body any, removeMissing bool) error {
	switch t.Level() {
	case RoomLevel:
		roomSpec, ok := body.(spec.RoomSpec)
		if !ok {
			return medeaerr.Validationf("bad_body", t.fid().String(), "Apply at room level requires a RoomSpec")
		}
		r := g.getOrCreate(ctx, t.Room)
		var applyErr error
		err := dispatchSync(ctx, r, func() {
			applyErr = r.ApplySpec(ctx, roomSpec, removeMissing)
		})
		if err != nil {
			return err
		}
		return applyErr

	case MemberLevel:
		memberSpec, ok := body.(spec.MemberSpec)
		if !ok {
			return medeaerr.Validationf("bad_body", t.fid().String(), "Apply at member level requires a MemberSpec")
		}
		r, exists := g.lookup(t.Room)
		if !exists {
			return roomNotFound(t.Room)
		}
		var applyErr error
		err := dispatchSync(ctx, r, func() {
			current := r.Spec()
			current.Pipeline[t.Member] = memberSpec
			applyErr = r.ApplySpec(ctx, current, removeMissing)
		})
		if err != nil {
			return err
		}
		return applyErr

	default:
		endpointSpec, ok := body.(spec.EndpointSpec)
		if !ok {
			return medeaerr.Validationf("bad_body", t.fid().String(), "Apply at endpoint level requires an EndpointSpec")
		}
		r, exists := g.lookup(t.Room)
		if !exists {
			return roomNotFound(t.Room)
		}
		var applyErr error
		err := dispatchSync(ctx, r, func() {
			current := r.Spec()
			memberSpec := current.Pipeline[t.Member]
			if memberSpec.Pipeline == nil {
				memberSpec.Pipeline = map[id.EndpointId]spec.EndpointSpec{}
			}
			memberSpec.Pipeline[t.Endpoint] = endpointSpec
			current.Pipeline[t.Member] = memberSpec
			applyErr = r.ApplySpec(ctx, current, removeMissing)
		})
		if err != nil {
			return err
		}
		return applyErr
	}
}

// Delete implements Delete(Fid) (spec §4.6): idempotent, cascades. Deleting
// a Room tears down its orchestrator entirely; deleting a Member or
// Endpoint is expressed as an Apply with removeMissing=true against a spec
// body that omits it, reusing apply_spec's cascade logic.
func (g *Registry) Delete(ctx context.Context, t Target) error {
	r, exists := g.lookup(t.Room)
	if !exists {
		if t.Level() == RoomLevel {
			return nil
		}
		return roomNotFound(t.Room)
	}

	if t.Level() == RoomLevel {
		err := dispatchSync(ctx, r, func() {
			_ = r.ApplySpec(ctx, spec.RoomSpec{Pipeline: map[id.MemberId]spec.MemberSpec{}}, true)
		})
		g.drop(t.Room)
		return err
	}

	var applyErr error
	err := dispatchSync(ctx, r, func() {
		current := r.Spec()
		if t.Level() == MemberLevel {
			delete(current.Pipeline, t.Member)
		} else {
			memberSpec, known := current.Pipeline[t.Member]
			if !known {
				return
			}
			delete(memberSpec.Pipeline, t.Endpoint)
			current.Pipeline[t.Member] = memberSpec
		}
		applyErr = r.ApplySpec(ctx, current, true)
	})
	if err != nil {
		return err
	}
	return applyErr
}

// Get implements Get(Fid) (spec §4.6): a read-only snapshot. The return
// value is a spec.RoomSpec, spec.MemberSpec, or spec.EndpointSpec matching
// t.Level().
func (g *Registry) Get(ctx context.Context, t Target) (any, error) {
	r, exists := g.lookup(t.Room)
	if !exists {
		return nil, roomNotFound(t.Room)
	}
	var roomSpec spec.RoomSpec
	if err := dispatchSync(ctx, r, func() { roomSpec = r.Spec() }); err != nil {
		return nil, err
	}
	if t.Level() == RoomLevel {
		return roomSpec, nil
	}
	memberSpec, known := roomSpec.Pipeline[t.Member]
	if !known {
		return nil, medeaerr.NotFoundf(t.memberFid().String(), "member %q does not exist", t.Member)
	}
	if t.Level() == MemberLevel {
		return memberSpec, nil
	}
	endpointSpec, known := memberSpec.Pipeline[t.Endpoint]
	if !known {
		return nil, medeaerr.NotFoundf(t.fid().String(), "endpoint %q does not exist", t.Endpoint)
	}
	return endpointSpec, nil
}
