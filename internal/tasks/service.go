// Package tasks implements the batch-task lifecycle: validated creation,
// start-time fan-out into worker queue items, and owner-scoped reads.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/store"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
	"github.com/UoduodihsLab/Tennel/internal/worker"
)

type Service struct {
	store              *store.Store
	router             *worker.Router
	maxChannelsPerAcct int
	log                zerolog.Logger
}

func NewService(st *store.Store, router *worker.Router, maxChannelsPerAccount int, log zerolog.Logger) *Service {
	return &Service{
		store:              st,
		router:             router,
		maxChannelsPerAcct: maxChannelsPerAccount,
		log:                log.With().Str("component", "tasks").Logger(),
	}
}

// Create validates the task payload against current state and persists the
// task in pending status. Nothing is enqueued until Start.
func (s *Service) Create(ctx context.Context, userID, title string, kind domain.TaskKind, args json.RawMessage) (domain.Task, error) {
	var total int
	switch kind {
	case domain.TaskCreateChannel:
		var payload domain.CreateChannelArgs
		if err := json.Unmarshal(args, &payload); err != nil {
			return domain.Task{}, fmt.Errorf("decode create-channel args: %w", err)
		}
		if len(payload.Titles) == 0 {
			return domain.Task{}, fmt.Errorf("create-channel task needs at least one title")
		}
		account, err := s.resolveAccount(ctx, userID, payload.SessionName)
		if err != nil {
			return domain.Task{}, err
		}
		bound, err := s.store.CountAccountChannels(ctx, account.ID)
		if err != nil {
			return domain.Task{}, err
		}
		if bound+len(payload.Titles) > s.maxChannelsPerAcct {
			return domain.Task{}, fmt.Errorf("%w: account %s holds %d channels, requested %d more, limit %d",
				domain.ErrCapacityExceeded, account.ID, bound, len(payload.Titles), s.maxChannelsPerAcct)
		}
		total = len(payload.Titles)

	case domain.TaskSetUsername, domain.TaskSetPhoto, domain.TaskSetDescription:
		var payload domain.ChannelTargetArgs
		if err := json.Unmarshal(args, &payload); err != nil {
			return domain.Task{}, fmt.Errorf("decode channel-target args: %w", err)
		}
		if len(payload.ChannelIDs) == 0 {
			return domain.Task{}, fmt.Errorf("task needs at least one channel")
		}
		for _, channelID := range payload.ChannelIDs {
			channel, err := s.store.GetChannel(ctx, channelID)
			if err != nil {
				return domain.Task{}, err
			}
			if channel.UserID != userID {
				return domain.Task{}, fmt.Errorf("%w: channel %s", domain.ErrPermissionDenied, channelID)
			}
		}
		total = len(payload.ChannelIDs)

	default:
		return domain.Task{}, fmt.Errorf("%w: task kind %q", domain.ErrUnsupportedKind, kind)
	}

	task := domain.Task{
		ID:     "tsk_" + uuid.NewString(),
		UserID: userID,
		Title:  title,
		Kind:   kind,
		Args:   args,
		Status: domain.TaskPending,
		Total:  total,
	}
	id, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	s.log.Info().Str("task_id", id).Str("kind", string(kind)).Int("total", total).Msg("task created")
	return s.store.GetTask(ctx, id)
}

// Start flips the task to running and fans its items out to the worker
// queues. Only a pending task can start: a running one is already in
// flight, and a finished one has consumed its counters, so re-enqueuing
// its items would push success+failure past total.
//
// The running status is written before anything is enqueued. Workers may
// record the whole batch and complete the task the moment items exist, and
// a status write racing after that would resurrect a completed task.
func (s *Service) Start(ctx context.Context, userID, id string) error {
	task, err := s.store.GetTaskOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	switch task.Status {
	case domain.TaskPending:
	case domain.TaskRunning:
		return fmt.Errorf("%w: task %s", domain.ErrDuplicateRunning, id)
	default:
		return fmt.Errorf("%w: task %s is %s, only pending tasks can start", domain.ErrDuplicateRunning, id, task.Status)
	}

	var enqueue func()
	switch task.Kind {
	case domain.TaskCreateChannel:
		enqueue, err = s.prepareCreateChannel(ctx, task)
	case domain.TaskSetUsername, domain.TaskSetPhoto, domain.TaskSetDescription:
		enqueue, err = s.prepareChannelTarget(ctx, task)
	default:
		return fmt.Errorf("%w: task kind %q", domain.ErrUnsupportedKind, task.Kind)
	}
	if err != nil {
		return err
	}

	if err := s.store.SetTaskStatus(ctx, id, domain.TaskRunning); err != nil {
		return err
	}
	enqueue()
	s.log.Info().Str("task_id", id).Str("kind", string(task.Kind)).Msg("task started")
	return nil
}

// prepareCreateChannel resolves everything the items need and returns the
// deferred enqueue. Nothing is pushed until the caller has committed the
// running status, and a resolution error leaves the task untouched.
func (s *Service) prepareCreateChannel(ctx context.Context, task domain.Task) (func(), error) {
	var payload domain.CreateChannelArgs
	if err := json.Unmarshal(task.Args, &payload); err != nil {
		return nil, fmt.Errorf("decode create-channel args: %w", err)
	}
	account, err := s.resolveAccount(ctx, task.UserID, payload.SessionName)
	if err != nil {
		return nil, err
	}
	items := make([]worker.CreateChannelItem, 0, len(payload.Titles))
	for _, title := range payload.Titles {
		items = append(items, worker.CreateChannelItem{
			TaskID:      task.ID,
			UserID:      task.UserID,
			AccountID:   account.ID,
			SessionName: account.SessionName,
			Title:       title,
			About:       payload.About,
		})
	}
	return func() {
		for _, item := range items {
			s.router.EnqueueCreateChannel(item)
		}
	}, nil
}

func (s *Service) prepareChannelTarget(ctx context.Context, task domain.Task) (func(), error) {
	var payload domain.ChannelTargetArgs
	if err := json.Unmarshal(task.Args, &payload); err != nil {
		return nil, fmt.Errorf("decode channel-target args: %w", err)
	}
	enqueues := make([]func(), 0, len(payload.ChannelIDs))
	for _, channelID := range payload.ChannelIDs {
		target, err := s.store.GetChannelBinding(ctx, channelID)
		if err != nil {
			return nil, err
		}
		switch task.Kind {
		case domain.TaskSetUsername:
			item := worker.SetUsernameItem{
				TaskID:      task.ID,
				SessionName: target.Account.SessionName,
				ChannelID:   channelID,
				ChannelTID:  target.Channel.TID,
				AccessHash:  target.AccessHash,
				Username:    telegram.GenerateUsername(target.Channel.TID),
			}
			enqueues = append(enqueues, func() { s.router.EnqueueSetUsername(item) })
		case domain.TaskSetPhoto:
			item := worker.SetPhotoItem{
				TaskID:      task.ID,
				SessionName: target.Account.SessionName,
				ChannelID:   channelID,
				ChannelTID:  target.Channel.TID,
				AccessHash:  target.AccessHash,
				PhotoPath:   payload.Payload,
			}
			enqueues = append(enqueues, func() { s.router.EnqueueSetPhoto(item) })
		case domain.TaskSetDescription:
			item := worker.SetDescriptionItem{
				TaskID:      task.ID,
				SessionName: target.Account.SessionName,
				ChannelID:   channelID,
				ChannelTID:  target.Channel.TID,
				AccessHash:  target.AccessHash,
				Description: payload.Payload,
			}
			enqueues = append(enqueues, func() { s.router.EnqueueSetDescription(item) })
		}
	}
	return func() {
		for _, fn := range enqueues {
			fn()
		}
	}, nil
}

// Delete removes a task. Running tasks cannot be deleted; their queue items
// are already in flight.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	task, err := s.store.GetTaskOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if task.Status == domain.TaskRunning {
		return fmt.Errorf("%w: task %s", domain.ErrDuplicateRunning, id)
	}
	return s.store.DeleteTask(ctx, id)
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.Task, error) {
	return s.store.GetTaskOwned(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.store.ListTasks(ctx, userID)
}

// resolveAccount looks up the account behind a session key and checks the
// caller owns it and that it has completed authorization.
func (s *Service) resolveAccount(ctx context.Context, userID, sessionName string) (domain.Account, error) {
	account, err := s.store.GetAccountBySession(ctx, sessionName)
	if err != nil {
		return domain.Account{}, err
	}
	if account.UserID != userID {
		return domain.Account{}, fmt.Errorf("%w: session %s", domain.ErrPermissionDenied, sessionName)
	}
	if !account.Authenticated {
		return domain.Account{}, fmt.Errorf("%w: session %s", domain.ErrAuthorizationFailed, sessionName)
	}
	return account, nil
}
