// Package schedule implements the recurring-publication lifecycle. A
// schedule row describes a daily firing time; starting it registers a
// scheduler job under the schedule's own id, so restarts are resumes.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/jobs"
	"github.com/UoduodihsLab/Tennel/internal/scheduler"
	"github.com/UoduodihsLab/Tennel/internal/store"
)

type Service struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

func NewService(st *store.Store, sch *scheduler.Scheduler, log zerolog.Logger) *Service {
	return &Service{
		store:     st,
		scheduler: sch,
		log:       log.With().Str("component", "schedules").Logger(),
	}
}

// Create validates and persists a schedule in pending status. Only the
// publish-message kind is accepted here; channel sync runs as a system job.
func (s *Service) Create(ctx context.Context, userID, title string, kind domain.ScheduleKind, hour, minute, second int, args json.RawMessage) (domain.Schedule, error) {
	if kind != domain.SchedulePublishMessage {
		return domain.Schedule{}, fmt.Errorf("%w: schedule kind %q", domain.ErrUnsupportedKind, kind)
	}
	if _, err := scheduler.Daily(hour, minute, second); err != nil {
		return domain.Schedule{}, err
	}

	var payload domain.PublishMessageArgs
	if err := json.Unmarshal(args, &payload); err != nil {
		return domain.Schedule{}, fmt.Errorf("decode publish-message args: %w", err)
	}
	if len(payload.ChannelIDs) == 0 {
		return domain.Schedule{}, fmt.Errorf("schedule needs at least one channel")
	}
	for _, channelID := range payload.ChannelIDs {
		channel, err := s.store.GetChannel(ctx, channelID)
		if err != nil {
			return domain.Schedule{}, err
		}
		if channel.UserID != userID {
			return domain.Schedule{}, fmt.Errorf("%w: channel %s", domain.ErrPermissionDenied, channelID)
		}
	}

	sc := domain.Schedule{
		ID:     "sch_" + uuid.NewString(),
		UserID: userID,
		Title:  title,
		Kind:   kind,
		Hour:   hour,
		Minute: minute,
		Second: second,
		Args:   args,
		Status: domain.SchedulePending,
	}
	id, err := s.store.CreateSchedule(ctx, sc)
	if err != nil {
		return domain.Schedule{}, err
	}
	s.log.Info().Str("schedule_id", id).Int("hour", hour).Int("minute", minute).Msg("schedule created")
	return s.store.GetScheduleOwned(ctx, id, userID)
}

// Start registers (or resumes) the schedule's daily job and marks the row
// running. The scheduler job id is the schedule id, so a stopped schedule
// resumes the same job instead of accumulating duplicates.
func (s *Service) Start(ctx context.Context, userID, id string) error {
	sc, err := s.store.GetScheduleOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	if s.scheduler.GetJob(sc.ID) {
		if err := s.scheduler.ResumeJob(sc.ID); err != nil {
			return err
		}
	} else {
		var payload domain.PublishMessageArgs
		if err := json.Unmarshal(sc.Args, &payload); err != nil {
			return fmt.Errorf("decode publish-message args: %w", err)
		}
		trig, err := scheduler.Daily(sc.Hour, sc.Minute, sc.Second)
		if err != nil {
			return err
		}
		job := jobs.DailyPublishJob{ScheduleID: sc.ID, UserID: sc.UserID, Args: payload}
		if err := s.scheduler.AddJob(sc.ID, trig, job); err != nil {
			return err
		}
	}

	if err := s.store.SetScheduleStatus(ctx, id, domain.ScheduleRunning); err != nil {
		return err
	}
	s.log.Info().Str("schedule_id", id).Msg("schedule started")
	return nil
}

// Stop pauses the daily job. One-shot jobs already expanded for today keep
// their slots and fire; only future expansions stop.
func (s *Service) Stop(ctx context.Context, userID, id string) error {
	sc, err := s.store.GetScheduleOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if s.scheduler.GetJob(sc.ID) {
		if err := s.scheduler.PauseJob(sc.ID); err != nil {
			return err
		}
	}
	if err := s.store.SetScheduleStatus(ctx, id, domain.SchedulePending); err != nil {
		return err
	}
	s.log.Info().Str("schedule_id", id).Msg("schedule stopped")
	return nil
}

// Delete removes the schedule row, its daily job and any pending one-shot
// jobs expanded from it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	sc, err := s.store.GetScheduleOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if s.scheduler.GetJob(sc.ID) {
		if err := s.scheduler.RemoveJob(sc.ID); err != nil {
			return err
		}
	}
	removed := s.scheduler.RemoveGroup(sc.ID)
	if removed > 0 {
		s.log.Info().Str("schedule_id", id).Int("pending_jobs", removed).Msg("cancelled expanded publish jobs")
	}
	return s.store.DeleteSchedule(ctx, id)
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.Schedule, error) {
	return s.store.GetScheduleOwned(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Schedule, error) {
	return s.store.ListSchedules(ctx, userID)
}
