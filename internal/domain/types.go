package domain

import (
	"time"

	"github.com/google/uuid"
)

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableInactive  TableStatus = "inactive"
)

type VisitStatus string

const (
	VisitPending   VisitStatus = "pending"
	VisitOnline    VisitStatus = "online"
	VisitCompleted VisitStatus = "completed"
	VisitCancelled VisitStatus = "cancelled"
)

type SongStatus string

const (
	SongPending   SongStatus = "pending"
	SongSinging   SongStatus = "singing"
	SongCompleted SongStatus = "completed"
	SongCancelled SongStatus = "cancelled"
)

type GuestStatus string

const (
	GuestPending GuestStatus = "pending"
	GuestOnline  GuestStatus = "online"
)

// Table is a physical table in the venue. SongLimit bounds how many songs
// one visit may queue per round. WelcomeExempt tables never get a welcome
// video when playback switches to them (staff/demo stations).
type Table struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Abbreviation  string      `json:"abbreviation"`
	SongLimit     int         `json:"song_limit"`
	Status        TableStatus `json:"status"`
	WelcomeVideo  string      `json:"welcome_video"`
	WelcomeExempt bool        `json:"welcome_exempt"`
}

// Visit is one seating session at a table, from reservation until it is
// completed or cancelled. At most one pending/online visit may exist per
// table; that invariant is kept by transactions, not by this type.
type Visit struct {
	ID               uuid.UUID      `json:"id"`
	HostID           int64          `json:"host_id"`
	HostName         string         `json:"host_name"`
	TableID          int64          `json:"table_id"`
	TableName        string         `json:"table_name"`
	Status           VisitStatus    `json:"status"`
	CallWaiter       bool           `json:"call_waiter"`
	Points           int            `json:"points"`
	ConsumptionCents int            `json:"consumption_cents"`
	CreatedAt        time.Time      `json:"created_at"`
	Participants     []int64        `json:"participants,omitempty"`
	GuestRequests    []GuestRequest `json:"guest_requests,omitempty"`
	Songs            []Song         `json:"songs,omitempty"`
}

// GuestRequest is a join request against a visit, accepted or rejected by
// staff.
type GuestRequest struct {
	ID       uuid.UUID   `json:"id"`
	VisitID  uuid.UUID   `json:"visit_id"`
	UserID   int64       `json:"user_id"`
	UserName string      `json:"user_name"`
	Status   GuestStatus `json:"status"`
	Created  time.Time   `json:"created_at"`
}

// Song is one queue entry inside a visit. SeqNum is monotonic within the
// visit and is the tie-break key when request timestamps collide; Round is
// non-decreasing as SeqNum grows.
type Song struct {
	ID          uuid.UUID  `json:"id"`
	VisitID     uuid.UUID  `json:"visit_id"`
	TrackID     string     `json:"track_id"`
	Title       string     `json:"title"`
	DurationSec int        `json:"duration_sec"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Greeting    string     `json:"greeting,omitempty"`
	Round       int        `json:"round"`
	SeqNum      int        `json:"seq_num"`
	Likes       int        `json:"likes"`
	Status      SongStatus `json:"status"`
	RequestedBy int64      `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
}

// QueueEntry is a song flattened into the cross-table queue: the song plus
// the visit/table it belongs to. The queue is derived from a snapshot on
// every change, never mutated in place.
type QueueEntry struct {
	Song
	TableID       int64  `json:"table_id"`
	TableName     string `json:"table_name"`
	WelcomeVideo  string `json:"welcome_video"`
	WelcomeExempt bool   `json:"welcome_exempt"`
	HostName      string `json:"host_name"`
}

// User carries the per-user counters bumped when a visit completes.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Online     bool   `json:"online"`
	VisitCount int    `json:"visit_count"`
	Points     int    `json:"points"`
}
