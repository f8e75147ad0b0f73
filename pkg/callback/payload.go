package callback

import "time"

// Kind distinguishes a join callback from a leave callback.
type Kind string

const (
	KindJoin  Kind = "join"
	KindLeave Kind = "leave"
)

// Payload is the body delivered to a Member's on_join/on_leave endpoint
// (spec §4.6: "fires the Member's configured on_join/on_leave callback").
type Payload struct {
	Kind      Kind      `json:"kind"`
	RoomID    string    `json:"room_id"`
	MemberID  string    `json:"member_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
