package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/room"
	"github.com/medea-project/medea/internal/session"
)

var _ room.IceServersProvider = (*Coordinator)(nil)

// Coordinator implements room.IceServersProvider (spec §4.8). It holds no
// per-Room state: managed credentials are keyed by room/member fid and
// shared across every Room, serialized by a pool (spec §5's shared-resource
// policy).
type Coordinator struct {
	cfg    Config
	store  *Store
	killer CoturnSessionKiller

	mu     sync.Mutex
	active map[string]Credential
}

// NewCoordinator builds a Coordinator. store and killer are only consulted
// in Managed mode; both may be nil in Static mode.
func NewCoordinator(cfg Config, store *Store, killer CoturnSessionKiller) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		store:  store,
		killer: killer,
		active: make(map[string]Credential),
	}
}

// IceServersFor mints (Managed) or returns (Static) the ICE server list for
// a newly created Peer's PeerCreated event (spec §4.8).
func (c *Coordinator) IceServersFor(ctx context.Context, room id.RoomId, member id.MemberId) ([]session.IceServer, error) {
	if c.cfg.Mode == Static {
		out := make([]session.IceServer, 0, len(c.cfg.StaticServers))
		for _, s := range c.cfg.StaticServers {
			out = append(out, toWireServer(webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			}))
		}
		return out, nil
	}

	username := uuid.NewString()
	password := uuid.NewString()
	ttl := c.cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	cred := Credential{
		RoomID:    string(room),
		MemberID:  string(member),
		Username:  username,
		Password:  password,
		ExpiresAt: time.Now().Add(ttl),
	}
	if c.store != nil {
		if err := c.store.Put(ctx, &cred); err != nil {
			return nil, fmt.Errorf("turn: persist credential: %w", err)
		}
	}

	c.mu.Lock()
	c.active[fidKey(room, member)] = cred
	c.mu.Unlock()

	ice := webrtc.ICEServer{URLs: c.cfg.TurnURLs, Username: username, Credential: password}
	return []session.IceServer{toWireServer(ice)}, nil
}

// ReleaseMember destroys a Managed-mode Member's credential and forcibly
// terminates any live coturn session using it, so a still-connected client
// cannot keep relaying through a revoked credential (spec §4.8).
func (c *Coordinator) ReleaseMember(ctx context.Context, room id.RoomId, member id.MemberId) {
	if c.cfg.Mode != Managed {
		return
	}
	key := fidKey(room, member)
	c.mu.Lock()
	cred, ok := c.active[key]
	delete(c.active, key)
	c.mu.Unlock()
	if !ok {
		return
	}

	if c.store != nil {
		if err := c.store.DeleteByUsername(ctx, cred.Username); err != nil {
			slog.ErrorContext(ctx, "turn: delete credential failed", slog.String("username", cred.Username), slog.String("error", err.Error()))
		}
	}
	if c.killer != nil {
		if err := c.killer.KillSession(ctx, cred.Username); err != nil {
			slog.ErrorContext(ctx, "turn: kill session failed", slog.String("username", cred.Username), slog.String("error", err.Error()))
		}
	}
}

func toWireServer(s webrtc.ICEServer) session.IceServer {
	cred, _ := s.Credential.(string)
	return session.IceServer{URLs: s.URLs, Username: s.Username, Credential: cred}
}
