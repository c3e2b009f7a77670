// Package jobs defines the closed set of scheduler job variants and the
// dispatcher that executes them.
package jobs

import (
	"github.com/UoduodihsLab/Tennel/internal/domain"
)

// DailyPublishJob is a schedule's top-level job: fired once a day by its
// cron trigger, it expands into randomized one-shot PublishMessageJobs.
type DailyPublishJob struct {
	ScheduleID string
	UserID     string
	Args       domain.PublishMessageArgs
}

func (DailyPublishJob) JobKind() string { return "daily_publish" }

// PublishMessageJob publishes one generated message to one channel. It
// carries everything it needs so it stays valid even if its parent schedule
// row is deleted before it fires.
type PublishMessageJob struct {
	ScheduleID   string
	UserID       string
	ChannelTID   int64
	ChannelLang  string
	SessionName  string
	PrimaryLinks []string
	Args         domain.PublishMessageArgs
}

func (PublishMessageJob) JobKind() string { return "publish_message" }

// SyncChannelsJob refreshes persisted channels from every online session.
type SyncChannelsJob struct{}

func (SyncChannelsJob) JobKind() string { return "sync_channels" }

// SyncOnlineStatusJob reconciles account online flags with the registry.
type SyncOnlineStatusJob struct{}

func (SyncOnlineStatusJob) JobKind() string { return "sync_online_status" }

// Fixed ids of the process-wide singleton jobs.
const (
	JobIDSyncChannels     = "sync_channels"
	JobIDSyncOnlineStatus = "sync_accounts_online_status"
)
