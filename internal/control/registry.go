// Package control implements the Control Gateway (spec §4.6): the
// Create/Apply/Delete/Get surface that mutates Room Orchestrators, owning
// weak-by-id references to each Room the way the Room owns weak references
// to its Peers.
package control

import (
	"context"
	"sync"

	"github.com/pitabwire/frame/workerpool"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/liveness"
	"github.com/medea-project/medea/internal/medeaerr"
	"github.com/medea-project/medea/internal/room"
	"github.com/medea-project/medea/pkg/callback"
	"github.com/medea-project/medea/pkg/events"
)

// Registry owns the set of live Rooms, creating them lazily and tearing
// them down on Delete. It holds no per-Room mutable state of its own;
// every mutation is dispatched onto the target Room's mailbox.
type Registry struct {
	mu    sync.Mutex
	rooms map[id.RoomId]*room.Room

	pool        workerpool.WorkerPool
	events      *events.Publisher
	turn        room.IceServersProvider
	callback    room.CallbackSink
	livenessCfg liveness.Config
}

// NewRegistry builds a Registry whose Rooms all share the given worker
// pool, event publisher, Turn Coordinator, and callback sink. Each Room
// gets its own Liveness Monitor built from livenessCfg (zero value takes
// the documented defaults).
func NewRegistry(pool workerpool.WorkerPool, pub *events.Publisher, turn room.IceServersProvider, cb room.CallbackSink, livenessCfg liveness.Config) *Registry {
	return &Registry{
		rooms:       make(map[id.RoomId]*room.Room),
		pool:        pool,
		events:      pub,
		turn:        turn,
		callback:    cb,
		livenessCfg: livenessCfg,
	}
}

func (g *Registry) lookup(roomID id.RoomId) (*room.Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

func (g *Registry) getOrCreate(ctx context.Context, roomID id.RoomId) *room.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	r := room.NewRoom(ctx, roomID, g.pool, g.events, g.turn, g.callback, g.livenessCfg)
	g.rooms[roomID] = r
	return r
}

func (g *Registry) drop(roomID id.RoomId) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[roomID]; ok {
		r.Close()
		delete(g.rooms, roomID)
	}
}

// dispatchSync runs fn on r's mailbox and waits for it to finish. Per spec
// §5, a Control RPC is cancellable only until its mutation is enqueued;
// once Dispatch has accepted fn, ctx cancellation stops the caller from
// waiting but does not abort fn itself, keeping topology consistent.
func dispatchSync(ctx context.Context, r *room.Room, fn func()) error {
	done := make(chan struct{})
	if err := r.Dispatch(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// roomNotFound builds the NotFound error for an address whose Room does
// not exist.
func roomNotFound(roomID id.RoomId) error {
	return medeaerr.NotFoundf(string(roomID), "room %q does not exist", roomID)
}

// CallbackURL implements callback.URLResolver, looking up a Member's
// configured on_join/on_leave URL from the live Room's spec (spec §4.6).
// Returns "" with no error if the Room or Member no longer exists, so a
// racing leave after Delete doesn't surface as a delivery failure.
func (g *Registry) CallbackURL(ctx context.Context, fid id.MemberFid, kind callback.Kind) (string, error) {
	r, ok := g.lookup(fid.Room)
	if !ok {
		return "", nil
	}
	var url string
	err := dispatchSync(ctx, r, func() {
		ms, known := r.LookupMemberSpec(fid.Member)
		if !known {
			return
		}
		if kind == callback.KindJoin {
			url = ms.OnJoin
		} else {
			url = ms.OnLeave
		}
	})
	return url, err
}
