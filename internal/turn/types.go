// Package turn implements the Turn Coordinator (spec §4.8): ICE server
// provisioning for PeerCreated, in either managed-coturn or static mode,
// with session teardown on Member disconnect.
package turn

import (
	"context"
	"time"

	"github.com/pitabwire/frame/data"

	"github.com/medea-project/medea/internal/id"
)

// Mode selects how a Coordinator sources ICE servers.
type Mode string

const (
	// Managed mints a per-Member coturn username/password with a TTL tied
	// to the session and writes it to the credential store.
	Managed Mode = "managed"
	// Static serves an operator-supplied server list verbatim.
	Static Mode = "static"
)

// Config bundles a Coordinator's mode and the knobs that mode needs.
type Config struct {
	Mode Mode

	// Managed mode.
	TurnURLs []string
	Realm    string
	TTL      time.Duration

	// Static mode.
	StaticServers []StaticServer
}

// StaticServer is one operator-supplied ICE server (spec §4.8 static mode).
type StaticServer struct {
	URLs       []string
	Username   string
	Credential string
}

// CoturnSessionKiller is the admin-channel capability that forcibly
// terminates a live coturn session for a username, so a still-connected
// client cannot keep relaying media after its Member leaves (spec §4.8).
type CoturnSessionKiller interface {
	KillSession(ctx context.Context, username string) error
}

// Credential is one managed-mode coturn credential, persisted so the
// credential store survives process restarts within a session's TTL.
type Credential struct {
	data.BaseModel

	RoomID    string `gorm:"type:varchar(255);not null;index:idx_turn_room_member"`
	MemberID  string `gorm:"type:varchar(255);not null;index:idx_turn_room_member"`
	Username  string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Password  string `gorm:"type:varchar(255);not null"`
	ExpiresAt time.Time
}

func (Credential) TableName() string { return "turn_credentials" }

func fidKey(room id.RoomId, member id.MemberId) string {
	return string(room) + "/" + string(member)
}
