// Package negotiation implements the per-Peer SDP offer/answer state
// machine (spec §4.3) as a pure function so it can be tested without I/O;
// timers and the transport live at the edges, in internal/room and
// internal/session.
package negotiation

import "github.com/medea-project/medea/internal/id"

// State is one of the six states a Peer's negotiation can be in.
type State string

const (
	Stable              State = "Stable"
	WaitLocalSdp         State = "WaitLocalSdp"
	WaitLocalHaveRemote  State = "WaitLocalHaveRemote"
	WaitRemoteSdp        State = "WaitRemoteSdp"
	Failed               State = "Failed"
	Closed               State = "Closed"
)

// MediaKind distinguishes audio and video tracks.
type MediaKind string

const (
	Audio MediaKind = "Audio"
	Video MediaKind = "Video"
)

// MediaSourceKind distinguishes camera/mic capture from screen share.
type MediaSourceKind string

const (
	Device  MediaSourceKind = "Device"
	Display MediaSourceKind = "Display"
)

// Direction is the Send or Recv half of a Track (spec §3 Track).
type Direction struct {
	IsSend    bool
	Receivers map[id.PeerId]struct{} // populated when IsSend
	Sender    id.PeerId              // populated when !IsSend
	Mid       string
}

// MuteState is the {muted_send, muted_recv_by_us, required} triple carried
// by every Track.
type MuteState struct {
	MutedSend     bool
	MutedRecvByUs bool
	Required      bool
}

// Track is a unidirectional media edge inside one Peer.
type Track struct {
	ID               id.TrackId
	MediaKind        MediaKind
	MediaSourceKind  MediaSourceKind
	Direction        Direction
	EnabledIndividual bool
	EnabledGeneral    bool
	Mute             MuteState
}

// TrackPatch is a partial update to an existing Track's client-visible
// state. Nil fields are left unchanged.
type TrackPatch struct {
	TrackID           id.TrackId
	EnabledIndividual *bool
	Muted             *bool
	Required          *bool
}

// PeerUpdateKind discriminates the PeerUpdate union.
type PeerUpdateKind string

const (
	UpdateAdded      PeerUpdateKind = "Added"
	UpdateUpdated    PeerUpdateKind = "Updated"
	UpdateIceRestart PeerUpdateKind = "IceRestart"
)

// PeerUpdate is one entry of a batched patch set accumulated while a Peer
// is non-Stable and flushed with the next negotiation role assignment.
type PeerUpdate struct {
	Kind  PeerUpdateKind
	Added Track
	Patch TrackPatch
}

// RoleKind discriminates the negotiation Role union.
type RoleKind string

const (
	RoleOfferer  RoleKind = "Offerer"
	RoleAnswerer RoleKind = "Answerer"
)

// Role is assigned deterministically by the tie-break rule in spec §4.2 and
// carried on the PeerUpdated/PeerCreated event that flushes pending patches.
type Role struct {
	Kind RoleKind
	Sdp  string // populated when Kind == RoleAnswerer
}

// EventKind discriminates the Event union driving transitions.
type EventKind string

const (
	EvStartNegotiation EventKind = "StartNegotiation"
	EvMakeSdpOffer      EventKind = "MakeSdpOffer"
	EvMakeSdpAnswer     EventKind = "MakeSdpAnswer"
	EvRemoteSdpOffer    EventKind = "RemoteSdpOffer" // partner's SdpOfferMade arrives
	EvSetIceCandidate   EventKind = "SetIceCandidate"
	EvIceRestart        EventKind = "IceRestart"
	EvTracksApplyFailed EventKind = "TracksApplyFailed"
	EvPartnerClosed     EventKind = "PartnerClosed"
	EvTimeout           EventKind = "Timeout"
)

// Event is the input to Transition: a trigger plus whatever payload it
// carries (an SDP string, an ICE candidate, a set of pending patches).
type Event struct {
	Kind      EventKind
	Sdp       string
	Role      Role // for EvStartNegotiation: who must offer
	PendingUp []PeerUpdate
	Seq       uint64 // client-reported event_seq, for idempotence (spec §4.3)
}

// OutboundKind discriminates the Outbound union a transition emits.
type OutboundKind string

const (
	OutSdpOfferMade      OutboundKind = "SdpOfferMade"
	OutSdpAnswerMade      OutboundKind = "SdpAnswerMade"
	OutPeerUpdated        OutboundKind = "PeerUpdated"
	OutTracksRemoved      OutboundKind = "TracksRemoved"
	OutPeerCreatedRecreate OutboundKind = "PeerCreatedRecreate"
)

// Outbound is one message the orchestrator must deliver as a result of a
// Transition call; Transition itself performs no I/O.
type Outbound struct {
	Kind    OutboundKind
	Sdp     string
	Updates []PeerUpdate
	Role    *Role
}

// Result is the pure output of Transition: a new state, the emitted
// Outbound batch, and the resulting peer_version (incremented on every
// accepted mutation per spec §4.3).
type Result struct {
	State      State
	Outbound   []Outbound
	PeerVersion uint64
}
