// Package room implements the Room Orchestrator (spec §4.5): the
// single-writer actor owning one Room's topology, Peer Graph, and Client
// Sessions, serializing every mutation onto its mailbox and running that
// mailbox loop on a shared worker pool.
package room

import (
	"context"
	"fmt"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/liveness"
	"github.com/medea-project/medea/internal/peer"
	"github.com/medea-project/medea/internal/session"
	"github.com/medea-project/medea/internal/spec"
	"github.com/medea-project/medea/pkg/events"
)

// IceServersProvider is the Turn Coordinator capability a Room consumes to
// populate PeerCreated.ice_servers (spec §4.8).
type IceServersProvider interface {
	IceServersFor(ctx context.Context, room id.RoomId, member id.MemberId) ([]session.IceServer, error)
	ReleaseMember(ctx context.Context, room id.RoomId, member id.MemberId)
}

// CallbackSink is the outbound Control-callback capability (spec §4.6, §9
// "Callbacks are abstracted by a CallbackSink capability").
type CallbackSink interface {
	OnJoin(ctx context.Context, fid id.MemberFid)
	OnLeave(ctx context.Context, fid id.MemberFid, reason session.LeaveReason)
}

// Room is the single-writer actor owning one Room's authoritative spec,
// Peer Graph, and Member sessions. Every exported method other than
// Dispatch and Close must only be called from within the mailbox loop.
type Room struct {
	ID       id.RoomId
	spec     spec.RoomSpec
	graph    *peer.Graph
	members  map[id.MemberId]*memberRuntime
	mailbox  chan func()
	pool     workerpool.WorkerPool
	events   *events.Publisher
	turn     IceServersProvider
	callback CallbackSink
	liveness *liveness.Monitor

	cancel context.CancelFunc
}

// memberRuntime is the orchestrator's live bookkeeping for one Member,
// distinct from its declarative spec.MemberSpec.
type memberRuntime struct {
	Spec      spec.MemberSpec
	Session   session.Session
	Transport session.Transport
	PeerIDs   map[id.PeerId]struct{}
}

// NewRoom creates an empty Room and submits its mailbox loop onto pool.
// livenessCfg is this Room's own Liveness Monitor configuration: the
// Monitor is per-Room, not shared, since PeerId is only unique within a
// Room (spec §3).
func NewRoom(ctx context.Context, roomID id.RoomId, pool workerpool.WorkerPool, pub *events.Publisher, turn IceServersProvider, cb CallbackSink, livenessCfg liveness.Config) *Room {
	ctx, cancel := context.WithCancel(ctx)
	r := &Room{
		ID:       roomID,
		graph:    peer.NewGraph(),
		members:  make(map[id.MemberId]*memberRuntime),
		mailbox:  make(chan func(), 256),
		pool:     pool,
		events:   pub,
		turn:     turn,
		callback: cb,
		cancel:   cancel,
	}
	r.liveness = liveness.NewMonitor(r, pool, livenessCfg)
	r.liveness.Start(ctx)
	run := func() { r.run(ctx) }
	if pool != nil {
		if err := pool.Submit(ctx, run); err != nil {
			util.Log(ctx).WithError(err).Error(fmt.Sprintf("room %s: submit mailbox loop failed", roomID))
			go run()
		}
	} else {
		go run()
	}
	return r
}

// LookupMemberSpec returns the declarative spec for member, as registered
// by the most recent Create/Apply. Like every exported method but Dispatch
// and Close, it must only be called from within the mailbox loop.
func (r *Room) LookupMemberSpec(member id.MemberId) (spec.MemberSpec, bool) {
	ms, ok := r.spec.Pipeline[member]
	return ms, ok
}

func (r *Room) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn, ok := <-r.mailbox:
			if !ok {
				return
			}
			fn()
		}
	}
}

// Dispatch enqueues fn to run on the Room's single-writer mailbox. It never
// blocks the caller past the mailbox being full (spec §5: no lock held
// across a suspension point; here the suspension point is the channel send
// itself, bounded by ctx).
func (r *Room) Dispatch(ctx context.Context, fn func()) error {
	select {
	case r.mailbox <- fn:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("room %s: dispatch: %w", r.ID, ctx.Err())
	}
}

// Close cancels the mailbox loop and every in-flight timer it owns (spec §5
// "Deleting a Room cancels all of its timers").
func (r *Room) Close() {
	r.liveness.Stop()
	r.cancel()
}

// Spec returns a defensive copy of the Room's authoritative spec (spec §4.6
// Get, §8 "Apply(spec); Get == spec").
func (r *Room) Spec() spec.RoomSpec {
	return r.spec.Clone()
}
