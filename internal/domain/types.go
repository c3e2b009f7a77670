package domain

import (
	"encoding/json"
	"time"
)

// TaskKind identifies which worker queue a task's items are routed to.
type TaskKind string

const (
	TaskCreateChannel  TaskKind = "create_channel"
	TaskSetUsername    TaskKind = "set_username"
	TaskSetPhoto       TaskKind = "set_photo"
	TaskSetDescription TaskKind = "set_description"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

type ScheduleKind string

const (
	SchedulePublishMessage ScheduleKind = "publish_message"
	ScheduleSyncChannels   ScheduleKind = "sync_channels"
)

type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "pending"
	ScheduleRunning ScheduleStatus = "running"
)

type MediaKind string

const (
	MediaAvatar MediaKind = "avatar"
	MediaImage  MediaKind = "image"
	MediaVideo  MediaKind = "video"
)

// AccountRole is the account's role inside a bound channel.
type AccountRole int

const (
	RoleOwner AccountRole = iota + 1
	RoleAdmin
	RoleMember
)

// Account is a Telegram account owned by a user. SessionName keys the
// live session in the registry; Online mirrors registry membership.
type Account struct {
	ID            string
	UserID        string
	TID           int64
	Phone         string
	Username      string
	SessionName   string
	Authenticated bool
	Online        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Channel struct {
	ID           string
	UserID       string
	TID          int64
	Title        string
	Username     string
	Description  string
	Photo        string
	Lang         string
	PrimaryLinks []string
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChannelBinding joins a channel to the account that administers it,
// carrying the access hash needed for remote mutations.
type ChannelBinding struct {
	ID         int64
	AccountID  string
	ChannelID  string
	AccessHash int64
	Role       AccountRole
}

// Task is a persisted batch job. Workers mutate only the counters and the
// append-only log; status flips to completed exactly when
// success+failure == total.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Kind      TaskKind
	Args      json.RawMessage
	Status    TaskStatus
	Total     int
	Success   int
	Failure   int
	Logs      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schedule is a persisted recurrence definition. Hour/Minute/Second define
// the daily firing time of its top-level scheduler job.
type Schedule struct {
	ID        string
	UserID    string
	Title     string
	Kind      ScheduleKind
	Hour      int
	Minute    int
	Second    int
	Args      json.RawMessage
	Status    ScheduleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Media struct {
	ID        string
	UserID    string
	Kind      MediaKind
	Path      string
	CreatedAt time.Time
}

// CreateChannelArgs is the payload of a create-channel task: one queue item
// per title, all executed by the same session.
type CreateChannelArgs struct {
	SessionName string   `json:"session_name"`
	Titles      []string `json:"titles"`
	About       string   `json:"about,omitempty"`
}

// ChannelTargetArgs is the payload of set-username / set-photo /
// set-description tasks. Payload is the photo path or description text;
// usernames are generated per channel at start time.
type ChannelTargetArgs struct {
	ChannelIDs []string `json:"channel_ids"`
	Payload    string   `json:"payload,omitempty"`
}

// PublishMessageArgs is the payload of a publish-message schedule.
type PublishMessageArgs struct {
	ChannelIDs          []string `json:"channel_ids"`
	MinWordCount        int      `json:"min_word_count"`
	MaxWordCount        int      `json:"max_word_count"`
	IncludeImages       bool     `json:"include_images"`
	IncludeVideos       bool     `json:"include_videos"`
	IncludePrimaryLinks bool     `json:"include_primary_links"`
	Prompt              string   `json:"prompt"`
}
