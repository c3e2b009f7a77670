package worker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
)

type env struct {
	store    *store.Store
	registry *session.Registry
	router   *Router
	fake     *telegram.Fake
	cancel   context.CancelFunc
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	st := store.New(db)

	e := &env{store: st}
	dial := telegram.FakeDialer(func(name string) *telegram.Fake {
		e.fake = telegram.NewFake(name)
		return e.fake
	})
	e.registry = session.NewRegistry(dial, 5*time.Second, zerolog.Nop())
	if !e.registry.Connect(context.Background(), "alice") {
		t.Fatal("connect fake session")
	}

	e.router = NewRouter(e.registry, st, nil, zerolog.Nop(), 2)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.router.Run(ctx)
	t.Cleanup(func() {
		cancel()
		e.router.Wait()
	})
	return e
}

func waitForTask(t *testing.T, st *store.Store, id string, status domain.TaskStatus) domain.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := st.GetTask(context.Background(), id)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task.Status == status {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, _ := st.GetTask(context.Background(), id)
	t.Fatalf("task %s never reached %s (got %s, %d/%d of %d)", id, status, task.Status, task.Success, task.Failure, task.Total)
	return domain.Task{}
}

func TestMixedBatchCompletesWithCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// The fake knows channels 1 and 2; targeting 3 fails that item.
	e.fake.SeedChannel(telegram.ChannelInfo{TID: 1})
	e.fake.SeedChannel(telegram.ChannelInfo{TID: 2})

	taskID, err := e.store.CreateTask(ctx, domain.Task{
		UserID: "u1", Kind: domain.TaskSetUsername, Args: []byte(`{}`), Total: 3,
		Status: domain.TaskRunning,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	for _, tid := range []int64{1, 2, 3} {
		e.router.EnqueueSetUsername(SetUsernameItem{
			TaskID: taskID, SessionName: "alice", ChannelID: "ch_x",
			ChannelTID: tid, AccessHash: 1, Username: "name",
		})
	}

	task := waitForTask(t, e.store, taskID, domain.TaskCompleted)
	if task.Success != 2 || task.Failure != 1 {
		t.Fatalf("counters = %d/%d, want 2/1", task.Success, task.Failure)
	}
	if lines := strings.Split(task.Logs, "\n"); len(lines) != 3 {
		t.Fatalf("log has %d lines, want 3:\n%s", len(lines), task.Logs)
	}
}

func TestCreateChannelPersistsAndBinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	accID, err := e.store.CreateAccount(ctx, domain.Account{
		UserID: "u1", Phone: "+1", SessionName: "alice", Authenticated: true,
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	taskID, err := e.store.CreateTask(ctx, domain.Task{
		UserID: "u1", Kind: domain.TaskCreateChannel, Args: []byte(`{}`), Total: 1,
		Status: domain.TaskRunning,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	e.router.EnqueueCreateChannel(CreateChannelItem{
		TaskID: taskID, UserID: "u1", AccountID: accID,
		SessionName: "alice", Title: "My Channel", About: "about",
	})

	task := waitForTask(t, e.store, taskID, domain.TaskCompleted)
	if task.Success != 1 || task.Failure != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", task.Success, task.Failure)
	}

	channels, err := e.store.ListChannels(ctx, "u1")
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 1 || channels[0].Title != "My Channel" {
		t.Fatalf("channels = %+v, want the created channel", channels)
	}

	target, err := e.store.GetChannelBinding(ctx, channels[0].ID)
	if err != nil {
		t.Fatalf("GetChannelBinding: %v", err)
	}
	if target.Account.ID != accID {
		t.Fatalf("bound account = %s, want %s", target.Account.ID, accID)
	}

	n, _ := e.store.CountAccountChannels(ctx, accID)
	if n != 1 {
		t.Fatalf("CountAccountChannels = %d, want 1", n)
	}
}

func TestNotConnectedSessionFailsItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	taskID, err := e.store.CreateTask(ctx, domain.Task{
		UserID: "u1", Kind: domain.TaskSetDescription, Args: []byte(`{}`), Total: 1,
		Status: domain.TaskRunning,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	e.router.EnqueueSetDescription(SetDescriptionItem{
		TaskID: taskID, SessionName: "nobody", ChannelID: "ch_x",
		ChannelTID: 1, AccessHash: 1, Description: "d",
	})

	task := waitForTask(t, e.store, taskID, domain.TaskCompleted)
	if task.Failure != 1 {
		t.Fatalf("failure = %d, want 1", task.Failure)
	}
	if !strings.Contains(task.Logs, "not connected") {
		t.Fatalf("log %q does not mention the disconnected session", task.Logs)
	}
}
