package callback

import (
	"database/sql"

	"github.com/pitabwire/frame/data"
)

// DeliveryAttempt records one attempt to deliver an on_join/on_leave
// callback to a Member's configured endpoint.
type DeliveryAttempt struct {
	data.BaseModel

	RoomID        string       `gorm:"type:varchar(255);not null;index:idx_ca_room" json:"room_id"`
	MemberID      string       `gorm:"type:varchar(255);not null"                    json:"member_id"`
	URL           string       `gorm:"type:varchar(2048);not null"                   json:"url"`
	Kind          string       `gorm:"type:varchar(20);not null"                     json:"kind"`
	RequestBody   string       `gorm:"type:text"                                     json:"-"`
	ResponseCode  int          `gorm:"default:0"                                     json:"response_code"`
	ResponseBody  string       `gorm:"type:text"                                     json:"-"`
	AttemptNumber int          `gorm:"default:1"                                     json:"attempt_number"`
	Status        string       `gorm:"type:varchar(20);not null;index:idx_ca_status" json:"status"`
	Error         string       `gorm:"type:text"                                     json:"error,omitempty"`
	DurationMs    int64        `gorm:"default:0"                                     json:"duration_ms"`
	NextRetryAt   sql.NullTime `json:"next_retry_at,omitempty"`
}

func (DeliveryAttempt) TableName() string { return "callback_delivery_attempts" }

// DeadLetter holds callbacks that exhausted all delivery retries.
type DeadLetter struct {
	data.BaseModel

	RoomID     string `gorm:"type:varchar(255);not null;index:idx_cdl_room" json:"room_id"`
	MemberID   string `gorm:"type:varchar(255);not null"                     json:"member_id"`
	URL        string `gorm:"type:varchar(2048);not null"                    json:"url"`
	Kind       string `gorm:"type:varchar(20);not null"                      json:"kind"`
	Payload    string `gorm:"type:text;not null"                             json:"payload"`
	LastError  string `gorm:"type:text"                                      json:"last_error"`
	Attempts   int    `gorm:"default:0"                                      json:"attempts"`
	Replayable bool   `gorm:"default:true"                                   json:"replayable"`
}

func (DeadLetter) TableName() string { return "callback_dead_letters" }
