package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

func createTask(t *testing.T, s *Store, userID string, total int) string {
	t.Helper()
	id, err := s.CreateTask(context.Background(), domain.Task{
		UserID: userID, Title: "batch", Kind: domain.TaskCreateChannel,
		Args: []byte(`{}`), Total: total,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func TestTaskOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTask(t, s, "u1", 3)

	if _, err := s.GetTaskOwned(ctx, id, "u1"); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := s.GetTaskOwned(ctx, id, "u2"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("foreign read err = %v, want ErrPermissionDenied", err)
	}
	if _, err := s.GetTaskOwned(ctx, "tsk_missing", "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing read err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentIncrementsLoseNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTask(t, s, "u1", 40)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%4 == 0 {
				err = s.IncrementTaskFailure(ctx, id, "item failed")
			} else {
				err = s.IncrementTaskSuccess(ctx, id, "item done")
			}
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	task, err := s.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Success != 30 || task.Failure != 10 {
		t.Fatalf("counters = %d/%d, want 30/10", task.Success, task.Failure)
	}
	if lines := strings.Split(task.Logs, "\n"); len(lines) != 40 {
		t.Fatalf("log has %d lines, want 40", len(lines))
	}
}

func TestCompleteTaskIfDoneIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTask(t, s, "u1", 2)

	// Not done yet.
	done, err := s.CompleteTaskIfDone(ctx, id)
	if err != nil {
		t.Fatalf("CompleteTaskIfDone: %v", err)
	}
	if done {
		t.Fatal("task completed with zero progress")
	}

	_ = s.IncrementTaskSuccess(ctx, id, "one")
	_ = s.IncrementTaskFailure(ctx, id, "two")

	done, err = s.CompleteTaskIfDone(ctx, id)
	if err != nil {
		t.Fatalf("CompleteTaskIfDone: %v", err)
	}
	if !done {
		t.Fatal("task not completed after counters reached total")
	}

	// A second call must be a no-op.
	done, err = s.CompleteTaskIfDone(ctx, id)
	if err != nil {
		t.Fatalf("CompleteTaskIfDone: %v", err)
	}
	if done {
		t.Fatal("second completion call flipped the task again")
	}

	task, _ := s.GetTask(ctx, id)
	if task.Status != domain.TaskCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
}

func TestIncrementMissingTask(t *testing.T) {
	s := newTestStore(t)
	err := s.IncrementTaskSuccess(context.Background(), "tsk_missing", "x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFailRunningTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	running := createTask(t, s, "u1", 1)
	pending := createTask(t, s, "u1", 1)
	if err := s.SetTaskStatus(ctx, running, domain.TaskRunning); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	n, err := s.FailRunningTasks(ctx)
	if err != nil {
		t.Fatalf("FailRunningTasks: %v", err)
	}
	if n != 1 {
		t.Fatalf("failed %d tasks, want 1", n)
	}

	tr, _ := s.GetTask(ctx, running)
	tp, _ := s.GetTask(ctx, pending)
	if tr.Status != domain.TaskFailed {
		t.Fatalf("running task status = %s, want failed", tr.Status)
	}
	if tp.Status != domain.TaskPending {
		t.Fatalf("pending task status = %s, want untouched", tp.Status)
	}
}
