// Package events is the internal event bus fanning emitted events out to
// local subscribers registered with Subscribe and onto the shared queue.
// The callback deliverers are the only emitters in this repository.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the bus.
type EventType string

const (
	MemberJoined       EventType = "member.joined"
	MemberLeft         EventType = "member.left"
	PeerCreated        EventType = "peer.created"
	PeerClosed         EventType = "peer.closed"
	PeerStable         EventType = "peer.stable"
	TrackFlowStarted   EventType = "track.flow_started"
	TrackFlowStopped   EventType = "track.flow_stopped"
	QualityChanged     EventType = "quality.changed"
	IceRestartTriggered EventType = "ice.restart_triggered"
	CallbackDelivered  EventType = "callback.delivered"
	CallbackFailed     EventType = "callback.failed"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	RoomID    string          `json:"room_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MemberJoinedData is the payload for member.joined events.
type MemberJoinedData struct {
	MemberID string `json:"member_id"`
}

// MemberLeftData is the payload for member.left events.
type MemberLeftData struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// PeerLifecycleData is the payload for peer.created / peer.closed / peer.stable.
type PeerLifecycleData struct {
	PeerID     uint32 `json:"peer_id"`
	MemberID   string `json:"member_id"`
	PartnerID  uint32 `json:"partner_id"`
}

// TrackFlowData is the payload for track.flow_started / track.flow_stopped.
type TrackFlowData struct {
	PeerID  uint32 `json:"peer_id"`
	TrackID uint32 `json:"track_id"`
}

// QualityChangedData is the payload for quality.changed events.
type QualityChangedData struct {
	PeerID uint32 `json:"peer_id"`
	Score  int    `json:"score"`
}

// CallbackOutcomeData is the payload for callback.delivered / callback.failed.
type CallbackOutcomeData struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}
