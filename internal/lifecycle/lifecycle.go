// Package lifecycle reconciles persisted state with live state at process
// start and shutdown, and owns the registration of the system-wide
// singleton jobs.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/jobs"
	"github.com/UoduodihsLab/Tennel/internal/scheduler"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
)

type Manager struct {
	registry  *session.Registry
	store     *store.Store
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

func NewManager(registry *session.Registry, st *store.Store, sch *scheduler.Scheduler, log zerolog.Logger) *Manager {
	return &Manager{
		registry:  registry,
		store:     st,
		scheduler: sch,
		log:       log.With().Str("component", "lifecycle").Logger(),
	}
}

// OnStartup connects every authenticated account and records the outcome in
// the online flag. Accounts that fail to connect stay usable for retry via
// the periodic status sync; nothing here is fatal.
func (m *Manager) OnStartup(ctx context.Context) error {
	accounts, err := m.store.ListAuthenticated(ctx)
	if err != nil {
		return err
	}

	connected := 0
	for _, account := range accounts {
		online := m.registry.Connect(ctx, account.SessionName)
		if online {
			connected++
		}
		if err := m.store.SetAccountOnline(ctx, account.ID, online); err != nil {
			m.log.Error().Err(err).Str("account_id", account.ID).Msg("startup: persist online flag failed")
		}
	}
	m.log.Info().Int("connected", connected).Int("total", len(accounts)).Msg("startup session sync done")

	// Tasks left running by an unclean stop can never finish: their queue
	// items died with the old process.
	failed, err := m.store.FailRunningTasks(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		m.log.Warn().Int("tasks", failed).Msg("failed orphaned running tasks")
	}
	return nil
}

// RegisterSystemJobs installs the process-wide singleton jobs: periodic
// channel sync and the faster online-status reconciler.
func (m *Manager) RegisterSystemJobs() error {
	if err := m.scheduler.AddJob(jobs.JobIDSyncChannels, scheduler.Every(time.Minute), jobs.SyncChannelsJob{}); err != nil {
		return err
	}
	return m.scheduler.AddJob(jobs.JobIDSyncOnlineStatus, scheduler.Every(2*time.Second), jobs.SyncOnlineStatusJob{})
}

// ResumeSchedules re-registers the daily job of every schedule still marked
// running in the store. A clean shutdown resets them to pending, so this
// only picks up schedules orphaned by a crash.
func (m *Manager) ResumeSchedules(ctx context.Context) error {
	schedules, err := m.store.ListAllSchedules(ctx)
	if err != nil {
		return err
	}
	for _, sc := range schedules {
		if sc.Status != domain.ScheduleRunning {
			continue
		}
		trig, err := scheduler.Daily(sc.Hour, sc.Minute, sc.Second)
		if err != nil {
			m.log.Error().Err(err).Str("schedule_id", sc.ID).Msg("resume: invalid firing time")
			continue
		}
		var payload domain.PublishMessageArgs
		if err := json.Unmarshal(sc.Args, &payload); err != nil {
			m.log.Error().Err(err).Str("schedule_id", sc.ID).Msg("resume: decode args failed")
			continue
		}
		job := jobs.DailyPublishJob{ScheduleID: sc.ID, UserID: sc.UserID, Args: payload}
		if err := m.scheduler.AddJob(sc.ID, trig, job); err != nil {
			m.log.Error().Err(err).Str("schedule_id", sc.ID).Msg("resume: register job failed")
			continue
		}
		m.log.Info().Str("schedule_id", sc.ID).Msg("schedule resumed")
	}
	return nil
}

// OnShutdown tears down in reverse: schedules stop expanding and their rows
// go back to pending, expanded one-shots are dropped, running tasks are
// failed, sessions disconnect and online flags clear. The boot-time resume
// and task-failing passes stay as healing for unclean stops.
func (m *Manager) OnShutdown(ctx context.Context) {
	schedules, err := m.store.ListAllSchedules(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("shutdown: list schedules failed")
	} else {
		for _, sc := range schedules {
			if sc.Status != domain.ScheduleRunning {
				continue
			}
			if m.scheduler.GetJob(sc.ID) {
				if err := m.scheduler.RemoveJob(sc.ID); err != nil {
					m.log.Error().Err(err).Str("schedule_id", sc.ID).Msg("shutdown: remove job failed")
				}
			}
			m.scheduler.RemoveGroup(sc.ID)
			if err := m.store.SetScheduleStatus(ctx, sc.ID, domain.SchedulePending); err != nil {
				m.log.Error().Err(err).Str("schedule_id", sc.ID).Msg("shutdown: reset schedule status failed")
			}
		}
	}

	failed, err := m.store.FailRunningTasks(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("shutdown: fail running tasks failed")
	} else if failed > 0 {
		m.log.Warn().Int("tasks", failed).Msg("failed running tasks at shutdown")
	}

	for _, id := range []string{jobs.JobIDSyncChannels, jobs.JobIDSyncOnlineStatus} {
		if m.scheduler.GetJob(id) {
			_ = m.scheduler.RemoveJob(id)
		}
	}

	accounts, err := m.store.ListOnline(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("shutdown: list online accounts failed")
		accounts = nil
	}
	m.registry.DisconnectAll(ctx)
	for _, account := range accounts {
		if err := m.store.SetAccountOnline(ctx, account.ID, false); err != nil {
			m.log.Error().Err(err).Str("account_id", account.ID).Msg("shutdown: clear online flag failed")
		}
	}
	m.log.Info().Msg("shutdown sync done")
}
