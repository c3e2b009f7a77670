package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/observability"
	"github.com/UoduodihsLab/Tennel/internal/scheduler"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
)

// Dispatcher executes scheduler jobs by variant. It is the single function
// the scheduler invokes; no callables are handed across that boundary.
type Dispatcher struct {
	registry  *session.Registry
	store     *store.Store
	scheduler *scheduler.Scheduler
	content   ContentProvider
	metrics   *observability.Metrics
	log       zerolog.Logger

	timesPerDay       int
	separationMinutes int
	mediaRoot         string
	loc               *time.Location

	now func() time.Time
}

type Config struct {
	Registry          *session.Registry
	Store             *store.Store
	Scheduler         *scheduler.Scheduler
	Content           ContentProvider
	Metrics           *observability.Metrics
	Logger            zerolog.Logger
	TimesPerDay       int
	SeparationMinutes int
	MediaRoot         string
	Location          *time.Location
}

func NewDispatcher(cfg Config) *Dispatcher {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	content := cfg.Content
	if content == nil {
		content = StaticProvider{}
	}
	return &Dispatcher{
		registry:          cfg.Registry,
		store:             cfg.Store,
		scheduler:         cfg.Scheduler,
		content:           content,
		metrics:           cfg.Metrics,
		log:               cfg.Logger.With().Str("component", "dispatcher").Logger(),
		timesPerDay:       cfg.TimesPerDay,
		separationMinutes: cfg.SeparationMinutes,
		mediaRoot:         cfg.MediaRoot,
		loc:               loc,
		now:               time.Now,
	}
}

// Dispatch routes a fired job to its executor.
func (d *Dispatcher) Dispatch(ctx context.Context, job scheduler.Job) {
	d.metrics.JobFired(job.JobKind())
	switch j := job.(type) {
	case DailyPublishJob:
		d.expandDailyPublish(ctx, j)
	case PublishMessageJob:
		d.publishMessage(ctx, j)
	case SyncChannelsJob:
		d.syncChannels(ctx)
	case SyncOnlineStatusJob:
		d.syncOnlineStatus(ctx)
	default:
		d.log.Error().Str("kind", job.JobKind()).Msg("unknown job variant")
	}
}

// expandDailyPublish materializes one day of publishing for a schedule:
// per channel, a fresh set of randomized timestamps, each registered as a
// one-shot job carrying its own arguments. Child jobs are grouped under the
// schedule id so deleting the schedule cancels them.
func (d *Dispatcher) expandDailyPublish(ctx context.Context, job DailyPublishJob) {
	now := d.now().In(d.loc)

	for _, channelID := range job.Args.ChannelIDs {
		target, err := d.store.GetChannelBinding(ctx, channelID)
		if err != nil {
			d.log.Error().Err(err).
				Str("schedule_id", job.ScheduleID).
				Str("channel_id", channelID).
				Msg("publish expansion: channel binding lookup failed")
			continue
		}

		times, err := RandomTimes(d.timesPerDay, d.separationMinutes, now)
		if err != nil {
			d.log.Error().Err(err).Str("schedule_id", job.ScheduleID).Msg("publish expansion: time generation failed")
			return
		}

		registered := 0
		for _, at := range times {
			if !at.After(now) {
				// The expansion covers the whole day; slots already in the
				// past are dropped rather than fired late.
				continue
			}
			child := PublishMessageJob{
				ScheduleID:   job.ScheduleID,
				UserID:       job.UserID,
				ChannelTID:   target.Channel.TID,
				ChannelLang:  target.Channel.Lang,
				SessionName:  target.Account.SessionName,
				PrimaryLinks: target.Channel.PrimaryLinks,
				Args:         job.Args,
			}
			if err := d.scheduler.AddJob(uuid.NewString(), scheduler.At(at), child, scheduler.WithGroup(job.ScheduleID)); err != nil {
				d.log.Error().Err(err).Str("schedule_id", job.ScheduleID).Msg("publish expansion: add one-shot job failed")
				continue
			}
			registered++
		}

		d.log.Info().
			Str("schedule_id", job.ScheduleID).
			Str("channel_id", channelID).
			Int("jobs", registered).
			Msg("daily publish expanded")
	}
}

// publishMessage generates the text, attaches media when requested and
// sends under the session lock.
func (d *Dispatcher) publishMessage(ctx context.Context, job PublishMessageJob) {
	text, err := d.content.Generate(ctx, job.Args.Prompt, job.ChannelLang, job.Args.MinWordCount, job.Args.MaxWordCount)
	if err != nil {
		d.log.Error().Err(err).Str("schedule_id", job.ScheduleID).Msg("publish: content generation failed")
		return
	}

	var media []string
	if job.Args.IncludeImages {
		if path, err := d.store.RandomMediaPath(ctx, job.UserID, domain.MediaImage); err == nil {
			media = append(media, filepath.Join(d.mediaRoot, path))
		} else {
			d.log.Warn().Err(err).Str("user_id", job.UserID).Msg("publish: no image available")
		}
	}
	if job.Args.IncludeVideos {
		if path, err := d.store.RandomMediaPath(ctx, job.UserID, domain.MediaVideo); err == nil {
			media = append(media, filepath.Join(d.mediaRoot, path))
		} else {
			d.log.Warn().Err(err).Str("user_id", job.UserID).Msg("publish: no video available")
		}
	}

	if job.Args.IncludePrimaryLinks && len(job.PrimaryLinks) > 0 {
		text += "\nSubscribe us: " + strings.Join(job.PrimaryLinks, ",")
	}

	chatID := telegram.ChatID(job.ChannelTID)
	err = d.registry.WithSession(ctx, job.SessionName, func(ctx context.Context, c telegram.Client) error {
		if len(media) > 0 {
			return c.SendFile(ctx, chatID, media, text)
		}
		return c.SendMessage(ctx, chatID, text)
	})
	if err != nil {
		d.log.Error().Err(err).
			Str("schedule_id", job.ScheduleID).
			Int64("channel_tid", job.ChannelTID).
			Msg("publish: send failed")
		return
	}

	d.metrics.MessagePublished()
	d.log.Info().
		Str("schedule_id", job.ScheduleID).
		Int64("channel_tid", job.ChannelTID).
		Str("session", job.SessionName).
		Msg("message published")
}

// syncChannels pulls the admin broadcast channels of every online account
// and upserts them with their bindings.
func (d *Dispatcher) syncChannels(ctx context.Context) {
	accounts, err := d.store.ListOnline(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("channel sync: list online accounts failed")
		return
	}

	for _, account := range accounts {
		var remote []telegram.ChannelInfo
		err := d.registry.WithSession(ctx, account.SessionName, func(ctx context.Context, c telegram.Client) error {
			var err error
			remote, err = c.Channels(ctx)
			return err
		})
		if err != nil {
			d.log.Error().Err(err).Str("session", account.SessionName).Msg("channel sync: fetch failed")
			continue
		}

		for _, info := range remote {
			if !info.Broadcast || !info.Admin {
				continue
			}
			channelID, created, err := d.store.UpsertChannelByTID(ctx, domain.Channel{
				UserID:   account.UserID,
				TID:      info.TID,
				Title:    info.Title,
				Username: info.Username,
				Photo:    info.Photo,
			})
			if err != nil {
				d.log.Error().Err(err).Int64("tid", info.TID).Msg("channel sync: upsert failed")
				continue
			}
			if created {
				err = d.store.BindAccountChannel(ctx, domain.ChannelBinding{
					AccountID:  account.ID,
					ChannelID:  channelID,
					AccessHash: info.AccessHash,
					Role:       domain.RoleAdmin,
				})
				if err != nil {
					d.log.Error().Err(err).Str("channel_id", channelID).Msg("channel sync: bind failed")
				}
			}
		}
	}
}

// syncOnlineStatus reconciles the persisted online flag of every
// authenticated account with actual registry membership.
func (d *Dispatcher) syncOnlineStatus(ctx context.Context) {
	accounts, err := d.store.ListAuthenticated(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("online status sync: list accounts failed")
		return
	}

	online := 0
	for _, account := range accounts {
		isOnline := d.registry.IsOnline(account.SessionName)
		if isOnline {
			online++
		}
		if isOnline != account.Online {
			if err := d.store.SetAccountOnline(ctx, account.ID, isOnline); err != nil {
				d.log.Error().Err(err).Str("account_id", account.ID).Msg("online status sync: update failed")
			}
		}
	}
	d.metrics.SetSessionsOnline(online)
}
