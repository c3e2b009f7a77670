package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory Client used by tests and by dry-run mode when no
// gateway is configured. Safe for concurrent use so tests can inspect it
// while workers run.
type Fake struct {
	mu sync.Mutex

	session    string
	authorized bool
	connected  bool

	opDelay time.Duration
	failOps map[string]error

	nextTID  int64
	channels []ChannelInfo
	sent     []SentMessage

	connects    int
	disconnects int
}

// SentMessage records one SendMessage/SendFile call.
type SentMessage struct {
	ChatID  int64
	Text    string
	Paths   []string
	Session string
}

// NewFake returns an authorized fake session.
func NewFake(sessionName string) *Fake {
	return &Fake{
		session:    sessionName,
		authorized: true,
		failOps:    make(map[string]error),
		nextTID:    1000,
	}
}

// FakeDialer returns a Dialer handing out fakes from build, so tests can
// keep references to the clients the registry will own.
func FakeDialer(build func(sessionName string) *Fake) Dialer {
	return func(sessionName string) Client { return build(sessionName) }
}

func (f *Fake) SetAuthorized(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = v
}

// FailOp makes the named operation ("create_channel", "send_message", ...)
// return err.
func (f *Fake) FailOp(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOps[op] = err
}

// SetOpDelay makes every remote operation sleep, for lock-contention tests.
func (f *Fake) SetOpDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opDelay = d
}

func (f *Fake) SeedChannel(info ChannelInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, info)
}

func (f *Fake) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *Fake) begin(ctx context.Context, op string) error {
	f.mu.Lock()
	delay := f.opDelay
	err := f.failOps[op]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *Fake) Connect(ctx context.Context) error {
	if err := f.begin(ctx, "connect"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.connects++
	return nil
}

func (f *Fake) Authorized(ctx context.Context) (bool, error) {
	if err := f.begin(ctx, "authorized"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized, nil
}

func (f *Fake) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	return nil
}

func (f *Fake) CreateChannel(ctx context.Context, title, about string) (ChannelInfo, error) {
	if err := f.begin(ctx, "create_channel"); err != nil {
		return ChannelInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTID++
	info := ChannelInfo{
		TID:        f.nextTID,
		AccessHash: f.nextTID * 7919,
		Title:      title,
		Broadcast:  true,
		Admin:      true,
	}
	f.channels = append(f.channels, info)
	return info, nil
}

func (f *Fake) SetUsername(ctx context.Context, tid, accessHash int64, username string) error {
	if err := f.begin(ctx, "set_username"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].TID == tid {
			f.channels[i].Username = username
			return nil
		}
	}
	return fmt.Errorf("fake: unknown channel %d", tid)
}

func (f *Fake) SetPhoto(ctx context.Context, tid, accessHash int64, photoPath string) error {
	return f.begin(ctx, "set_photo")
}

func (f *Fake) SetDescription(ctx context.Context, tid, accessHash int64, about string) error {
	return f.begin(ctx, "set_description")
}

func (f *Fake) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := f.begin(ctx, "send_message"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{ChatID: chatID, Text: text, Session: f.session})
	return nil
}

func (f *Fake) SendFile(ctx context.Context, chatID int64, paths []string, caption string) error {
	if err := f.begin(ctx, "send_file"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentMessage{ChatID: chatID, Text: caption, Paths: paths, Session: f.session})
	return nil
}

func (f *Fake) Channels(ctx context.Context) ([]ChannelInfo, error) {
	if err := f.begin(ctx, "channels"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChannelInfo, len(f.channels))
	copy(out, f.channels)
	return out, nil
}
