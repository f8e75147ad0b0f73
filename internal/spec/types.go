// Package spec holds the pure value types for Control API specs (Room,
// Member, Endpoint), their validation, diffing, and credential handling.
// Nothing here touches the Peer Graph or any running state; it is the
// declarative half of the topology (spec §4.1).
package spec

import (
	"time"

	"github.com/medea-project/medea/internal/id"
)

// P2pPolicy controls whether a publish endpoint prefers a direct mesh Peer
// pair or always routes through the server-side half.
type P2pPolicy string

const (
	P2pNever      P2pPolicy = "Never"
	P2pIfPossible P2pPolicy = "IfPossible"
	P2pAlways     P2pPolicy = "Always"
)

// PublishPolicy controls whether a media kind is required, optional, or
// disabled on a publish endpoint.
type PublishPolicy string

const (
	PolicyOptional PublishPolicy = "Optional"
	PolicyDisabled PublishPolicy = "Disabled"
	PolicyRequired PublishPolicy = "Required"
)

// AudioSettings configures the audio half of a WebRtcPublishEndpoint.
type AudioSettings struct {
	PublishPolicy PublishPolicy `yaml:"publish_policy" json:"publish_policy"`
}

// VideoSettings configures the video half of a WebRtcPublishEndpoint.
type VideoSettings struct {
	PublishPolicy PublishPolicy `yaml:"publish_policy" json:"publish_policy"`
}

// EndpointKind distinguishes the two endpoint variants. It is immutable
// once an endpoint has been created: an Apply that changes it is rejected
// with SpecValidation (spec §9 Open Question, resolved: reject).
type EndpointKind string

const (
	KindWebRtcPublish EndpointKind = "WebRtcPublish"
	KindWebRtcPlay    EndpointKind = "WebRtcPlay"
)

// EndpointSpec is the declarative description of one of a Member's
// endpoints. Exactly one of Publish/Play is populated, selected by Kind.
type EndpointSpec struct {
	Kind    EndpointKind    `yaml:"kind"    json:"kind"`
	Publish *PublishSpec    `yaml:"publish,omitempty" json:"publish,omitempty"`
	Play    *PlaySpec       `yaml:"play,omitempty"    json:"play,omitempty"`
}

// PublishSpec is the WebRtcPublishEndpoint variant.
type PublishSpec struct {
	P2p         P2pPolicy     `yaml:"p2p"          json:"p2p"`
	ForceRelay  bool          `yaml:"force_relay"  json:"force_relay"`
	Audio       AudioSettings `yaml:"audio_settings" json:"audio_settings"`
	Video       VideoSettings `yaml:"video_settings" json:"video_settings"`
}

// PlaySpec is the WebRtcPlayEndpoint variant.
type PlaySpec struct {
	Src        string `yaml:"src"         json:"src"`
	ForceRelay bool   `yaml:"force_relay" json:"force_relay"`
}

// SameKindAs reports whether two endpoint specs share the same Kind, which
// is the only thing Apply may not change when replacing a spec body in
// place.
func (e EndpointSpec) SameKindAs(other EndpointSpec) bool {
	return e.Kind == other.Kind
}

// RpcSettings are the per-Member RPC timing knobs; zero values mean
// "inherit the Room default" (spec §3 Member).
type RpcSettings struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"      json:"idle_timeout"`
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout" json:"reconnect_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"     json:"ping_interval"`
}

// Merge returns settings with zero fields of r replaced by the
// corresponding field of defaults.
func (r RpcSettings) Merge(defaults RpcSettings) RpcSettings {
	out := r
	if out.IdleTimeout == 0 {
		out.IdleTimeout = defaults.IdleTimeout
	}
	if out.ReconnectTimeout == 0 {
		out.ReconnectTimeout = defaults.ReconnectTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = defaults.PingInterval
	}
	return out
}

// Credential is a Member's authentication secret, either a plaintext value
// or an Argon2id hash (spec §6.3).
type Credential struct {
	Plain      string `yaml:"plain,omitempty" json:"plain,omitempty"`
	ArgonHash  string `yaml:"hash,omitempty"  json:"hash,omitempty"`
}

// MemberSpec is the declarative description of a Member and its pipeline.
type MemberSpec struct {
	Credential Credential               `yaml:"credentials" json:"credentials"`
	Rpc        RpcSettings              `yaml:"rpc_settings" json:"rpc_settings"`
	OnJoin     string                   `yaml:"on_join,omitempty" json:"on_join,omitempty"`
	OnLeave    string                   `yaml:"on_leave,omitempty" json:"on_leave,omitempty"`
	Pipeline   map[id.EndpointId]EndpointSpec `yaml:"pipeline" json:"pipeline"`
}

// RoomSpec is the root Control API spec: a Room's default RPC settings and
// the map of its Members.
type RoomSpec struct {
	RpcSettings RpcSettings                  `yaml:"rpc_settings" json:"rpc_settings"`
	Pipeline    map[id.MemberId]MemberSpec `yaml:"pipeline" json:"pipeline"`
}

// Clone returns a deep copy of the RoomSpec so callers may mutate it
// without aliasing the orchestrator's authoritative copy.
func (r RoomSpec) Clone() RoomSpec {
	out := RoomSpec{RpcSettings: r.RpcSettings, Pipeline: make(map[id.MemberId]MemberSpec, len(r.Pipeline))}
	for mid, m := range r.Pipeline {
		pipeline := make(map[id.EndpointId]EndpointSpec, len(m.Pipeline))
		for eid, e := range m.Pipeline {
			pipeline[eid] = e
		}
		m.Pipeline = pipeline
		out.Pipeline[mid] = m
	}
	return out
}
