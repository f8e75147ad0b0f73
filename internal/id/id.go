// Package id provides the hierarchical identifiers used throughout the
// signalling core: string-typed RoomId/MemberId/EndpointId, the Fid
// (fully-qualified endpoint address) and the numeric PeerId/TrackId pair
// that are unique within a Room and a Peer respectively.
package id

import (
	"fmt"
	"strings"
)

// RoomId identifies a Room uniquely across the server.
type RoomId string

// MemberId identifies a Member uniquely within its Room.
type MemberId string

// EndpointId identifies an Endpoint uniquely within its Member.
type EndpointId string

// PeerId is a numeric identifier unique within a Room.
type PeerId uint32

// TrackId is a numeric identifier unique within a Peer.
type TrackId uint32

// Fid is a fully-qualified endpoint address: RoomId/MemberId/EndpointId.
type Fid struct {
	Room     RoomId
	Member   MemberId
	Endpoint EndpointId
}

// String renders the Fid in its canonical "room/member/endpoint" form.
func (f Fid) String() string {
	return fmt.Sprintf("%s/%s/%s", f.Room, f.Member, f.Endpoint)
}

// MemberFid is a fully-qualified member address: RoomId/MemberId.
type MemberFid struct {
	Room   RoomId
	Member MemberId
}

func (f MemberFid) String() string {
	return fmt.Sprintf("%s/%s", f.Room, f.Member)
}

// ParseFid parses a "room/member/endpoint" address. Returns a non-nil error
// (wrapping InvalidFid semantics) if the string doesn't have exactly three
// non-empty components.
func ParseFid(s string) (Fid, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Fid{}, fmt.Errorf("invalid fid %q: want room/member/endpoint", s)
	}
	return Fid{Room: RoomId(parts[0]), Member: MemberId(parts[1]), Endpoint: EndpointId(parts[2])}, nil
}

// ParseMemberFid parses a "room/member" address.
func ParseMemberFid(s string) (MemberFid, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return MemberFid{}, fmt.Errorf("invalid member fid %q: want room/member", s)
	}
	return MemberFid{Room: RoomId(parts[0]), Member: MemberId(parts[1])}, nil
}

// MemberFid projects a Fid down to its owning member address.
func (f Fid) MemberFid() MemberFid {
	return MemberFid{Room: f.Room, Member: f.Member}
}
