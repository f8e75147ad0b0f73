// Package session implements the Client Session (spec §4.4): the per-Member
// RPC session carrying Commands and Events over a duplex ordered transport,
// with heartbeat, idle/reconnect timeouts, and state resync.
package session

import (
	"time"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/negotiation"
)

// State is one of the six states a Session moves through.
type State string

const (
	New           State = "New"
	Authorizing   State = "Authorizing"
	Open          State = "Open"
	Idle          State = "Idle"
	Reconnecting  State = "Reconnecting"
	Closed        State = "Closed"
)

// CloseReason is the structured reason carried on a server-initiated close
// frame (spec §6.1).
type CloseReason string

const (
	Finished     CloseReason = "Finished"
	Rejected     CloseReason = "Rejected"
	InternalErr  CloseReason = "InternalError"
	Evicted      CloseReason = "Evicted"
)

// LeaveReason is reported on the Control Gateway's OnLeave callback
// (spec §4.6).
type LeaveReason string

const (
	LeaveLost         LeaveReason = "Lost"
	LeaveDisconnected LeaveReason = "Disconnected"
	LeaveKicked       LeaveReason = "Kicked"
	LeaveShutdown     LeaveReason = "Shutdown"
)

// FrameKind discriminates the wire envelope (spec §6.1).
type FrameKind string

const (
	FrameEvent   FrameKind = "Event"
	FrameCommand FrameKind = "Command"
	FramePing    FrameKind = "Ping"
	FramePong    FrameKind = "Pong"
)

// Frame is the outer envelope every wire message is carried in. Exactly one
// of Event/Command/Nonce is meaningful, selected by Msg.
type Frame struct {
	Msg     FrameKind `json:"msg"`
	Nonce   uint64    `json:"nonce,omitempty"`
	Event   *Event    `json:"event,omitempty"`
	Command *Command  `json:"command,omitempty"`
}

// EventKind discriminates the server->client Event union.
type EventKind string

const (
	EvRpcSettingsUpdated     EventKind = "RpcSettingsUpdated"
	EvPeerCreated            EventKind = "PeerCreated"
	EvSdpAnswerMade          EventKind = "SdpAnswerMade"
	EvSdpOfferMade           EventKind = "SdpOfferMade"
	EvLocalDescApplied       EventKind = "LocalDescriptionApplied"
	EvIceCandidateDiscovered EventKind = "IceCandidateDiscovered"
	EvPeersRemoved           EventKind = "PeersRemoved"
	EvPeerUpdated            EventKind = "PeerUpdated"
	EvTracksApplied          EventKind = "TracksApplied"
	EvConnectionQuality      EventKind = "ConnectionQualityUpdated"
	EvStateSynchronized      EventKind = "StateSynchronized"
)

// IceServer mirrors pion's ICE server descriptor, carried verbatim on
// PeerCreated so the client can construct its RTCPeerConnection.
type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Event is one server->client message; Kind selects which fields apply.
type Event struct {
	Kind               EventKind                  `json:"kind"`
	Seq                uint64                     `json:"seq"`
	IdleTimeout        time.Duration              `json:"idle_timeout,omitempty"`
	PingInterval       time.Duration              `json:"ping_interval,omitempty"`
	ReconnectTimeout   time.Duration              `json:"reconnect_timeout,omitempty"`
	PeerId             id.PeerId                  `json:"peer_id,omitempty"`
	PeerIds            []id.PeerId                `json:"peer_ids,omitempty"`
	SdpOffer           string                     `json:"sdp_offer,omitempty"`
	Sdp                string                     `json:"sdp,omitempty"`
	Tracks             []negotiation.Track        `json:"tracks,omitempty"`
	IceServers         []IceServer                `json:"ice_servers,omitempty"`
	ForceRelay         bool                       `json:"force_relay,omitempty"`
	NegotiationRole    *negotiation.Role          `json:"negotiation_role,omitempty"`
	Candidate          string                     `json:"candidate,omitempty"`
	SdpMLineIndex      uint16                     `json:"sdp_m_line_index,omitempty"`
	SdpMid             string                     `json:"sdp_mid,omitempty"`
	Updates            []negotiation.PeerUpdate   `json:"updates,omitempty"`
	PartnerMemberId    id.MemberId                `json:"partner_member_id,omitempty"`
	Score              int                        `json:"score,omitempty"`
}

// CommandKind discriminates the client->server Command union.
type CommandKind string

const (
	CmdMakeSdpOffer           CommandKind = "MakeSdpOffer"
	CmdMakeSdpAnswer          CommandKind = "MakeSdpAnswer"
	CmdSetIceCandidate        CommandKind = "SetIceCandidate"
	CmdAddPeerConnectionStats CommandKind = "AddPeerConnectionMetrics"
	CmdUpdateTracks           CommandKind = "UpdateTracks"
	CmdSynchronizeMe          CommandKind = "SynchronizeMe"
)

// TransceiverStatus is the client-reported m-line status accompanying an
// offer/answer, used by the orchestrator to validate applied SDP.
type TransceiverStatus struct {
	Mid    string `json:"mid"`
	Status string `json:"status"`
}

// PeerConnectionMetrics is the incremental RTC stats payload consumed by
// the Liveness Monitor (spec §4.7).
type PeerConnectionMetrics struct {
	IceConnectionState string             `json:"ice_connection_state"`
	PeerConnectionState string            `json:"peer_connection_state"`
	Stats              []TrackStatsDelta   `json:"stats"`
}

// TrackStatsDelta is one Track's incremental byte/packet counters.
type TrackStatsDelta struct {
	TrackId      id.TrackId `json:"track_id"`
	BytesDelta   uint64     `json:"bytes_delta"`
	PacketsLost  uint64     `json:"packets_lost"`
	JitterMillis float64    `json:"jitter_millis"`
}

// ClientSnapshot is what the client claims about its own state on
// reconnect, used to compute the minimal resync delta (spec §4.4).
type ClientSnapshot struct {
	LastSeenEventSeq uint64                        `json:"last_seen_event_seq"`
	PeerVersions     map[id.PeerId]uint64          `json:"peer_versions"`
}

// Command is one client->server message; Kind selects which fields apply.
type Command struct {
	Kind               CommandKind               `json:"kind"`
	Seq                uint64                    `json:"seq"`
	PeerId             id.PeerId                 `json:"peer_id,omitempty"`
	SdpOffer           string                    `json:"sdp_offer,omitempty"`
	SdpAnswer          string                    `json:"sdp_answer,omitempty"`
	Mids               map[id.TrackId]string     `json:"mids,omitempty"`
	TransceiverStatuses []TransceiverStatus      `json:"transceivers_statuses,omitempty"`
	Candidate          string                    `json:"candidate,omitempty"`
	SdpMLineIndex      uint16                    `json:"sdp_m_line_index,omitempty"`
	SdpMid             string                    `json:"sdp_mid,omitempty"`
	Metrics            PeerConnectionMetrics     `json:"metrics,omitempty"`
	TrackPatches       []negotiation.TrackPatch  `json:"track_patches,omitempty"`
	Snapshot           ClientSnapshot            `json:"state,omitempty"`
}
