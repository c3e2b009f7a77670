// Package worker drains the per-kind task queues. Each task kind has its
// own queue and its own set of workers, so a slow batch of one kind never
// starves another.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/observability"
	"github.com/UoduodihsLab/Tennel/internal/queue"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
)

// CreateChannelItem creates one channel under one session. A create-channel
// task fans out into one item per requested title.
type CreateChannelItem struct {
	TaskID      string
	UserID      string
	AccountID   string
	SessionName string
	Title       string
	About       string
}

// SetUsernameItem applies a generated public username to one channel.
type SetUsernameItem struct {
	TaskID      string
	SessionName string
	ChannelID   string
	ChannelTID  int64
	AccessHash  int64
	Username    string
}

// SetPhotoItem uploads a profile photo to one channel.
type SetPhotoItem struct {
	TaskID      string
	SessionName string
	ChannelID   string
	ChannelTID  int64
	AccessHash  int64
	PhotoPath   string
}

// SetDescriptionItem writes the about text of one channel.
type SetDescriptionItem struct {
	TaskID      string
	SessionName string
	ChannelID   string
	ChannelTID  int64
	AccessHash  int64
	Description string
}

// Router owns one queue per task kind and routes items pushed by the task
// service to them.
type Router struct {
	createChannel  *queue.Queue[CreateChannelItem]
	setUsername    *queue.Queue[SetUsernameItem]
	setPhoto       *queue.Queue[SetPhotoItem]
	setDescription *queue.Queue[SetDescriptionItem]

	registry *session.Registry
	store    *store.Store
	metrics  *observability.Metrics
	log      zerolog.Logger
	workers  int

	wg sync.WaitGroup
}

func NewRouter(registry *session.Registry, st *store.Store, metrics *observability.Metrics, log zerolog.Logger, workersPerKind int) *Router {
	if workersPerKind <= 0 {
		workersPerKind = 1
	}
	return &Router{
		createChannel:  queue.New[CreateChannelItem](),
		setUsername:    queue.New[SetUsernameItem](),
		setPhoto:       queue.New[SetPhotoItem](),
		setDescription: queue.New[SetDescriptionItem](),
		registry:       registry,
		store:          st,
		metrics:        metrics,
		log:            log.With().Str("component", "worker").Logger(),
		workers:        workersPerKind,
	}
}

func (r *Router) EnqueueCreateChannel(item CreateChannelItem) {
	r.createChannel.Push(item)
	r.metrics.SetQueueDepth(string(domain.TaskCreateChannel), r.createChannel.Len())
}

func (r *Router) EnqueueSetUsername(item SetUsernameItem) {
	r.setUsername.Push(item)
	r.metrics.SetQueueDepth(string(domain.TaskSetUsername), r.setUsername.Len())
}

func (r *Router) EnqueueSetPhoto(item SetPhotoItem) {
	r.setPhoto.Push(item)
	r.metrics.SetQueueDepth(string(domain.TaskSetPhoto), r.setPhoto.Len())
}

func (r *Router) EnqueueSetDescription(item SetDescriptionItem) {
	r.setDescription.Push(item)
	r.metrics.SetQueueDepth(string(domain.TaskSetDescription), r.setDescription.Len())
}

// Run starts the workers. They exit when ctx ends; Wait blocks until then.
func (r *Router) Run(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		spawn(ctx, r, domain.TaskCreateChannel, r.createChannel, r.processCreateChannel)
		spawn(ctx, r, domain.TaskSetUsername, r.setUsername, r.processSetUsername)
		spawn(ctx, r, domain.TaskSetPhoto, r.setPhoto, r.processSetPhoto)
		spawn(ctx, r, domain.TaskSetDescription, r.setDescription, r.processSetDescription)
	}
}

func (r *Router) Wait() {
	r.wg.Wait()
}

type itemRef interface {
	taskID() string
}

func (i CreateChannelItem) taskID() string  { return i.TaskID }
func (i SetUsernameItem) taskID() string    { return i.TaskID }
func (i SetPhotoItem) taskID() string       { return i.TaskID }
func (i SetDescriptionItem) taskID() string { return i.TaskID }

// spawn is a free function because methods cannot carry type parameters.
func spawn[T itemRef](ctx context.Context, r *Router, kind domain.TaskKind, q *queue.Queue[T], process func(context.Context, T) (string, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			item, err := q.Pop(ctx)
			if err != nil {
				return
			}
			r.metrics.SetQueueDepth(string(kind), q.Len())

			logLine, err := process(ctx, item)
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				// Shutdown interrupted the item mid-flight; the reconciler
				// fails the task on restart.
				return
			}
			r.record(ctx, kind, item.taskID(), logLine, err)
		}
	}()
}

// record writes the item outcome to the task row and flips it to completed
// once the counters cover the whole batch.
func (r *Router) record(ctx context.Context, kind domain.TaskKind, taskID, logLine string, itemErr error) {
	var err error
	if itemErr != nil {
		if logLine == "" {
			logLine = itemErr.Error()
		}
		err = r.store.IncrementTaskFailure(ctx, taskID, logLine)
	} else {
		err = r.store.IncrementTaskSuccess(ctx, taskID, logLine)
	}
	if err != nil {
		r.log.Error().Err(err).Str("task_id", taskID).Msg("record item outcome failed")
		return
	}
	r.metrics.ItemProcessed(string(kind), itemErr == nil)

	done, err := r.store.CompleteTaskIfDone(ctx, taskID)
	if err != nil {
		r.log.Error().Err(err).Str("task_id", taskID).Msg("complete check failed")
		return
	}
	if done {
		r.log.Info().Str("task_id", taskID).Str("kind", string(kind)).Msg("task completed")
	}
}
