// Package telegram defines the narrow capability boundary to the remote
// messaging protocol. Everything behind Client is an external collaborator;
// the rest of the system only ever reaches it through a session loaned out
// by the session registry.
package telegram

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// ChannelInfo is the remote view of a broadcast channel.
type ChannelInfo struct {
	TID        int64  `json:"tid"`
	AccessHash int64  `json:"access_hash"`
	Title      string `json:"title"`
	Username   string `json:"username,omitempty"`
	Photo      string `json:"photo,omitempty"` // base64 profile photo, if any
	Broadcast  bool   `json:"broadcast"`
	Admin      bool   `json:"admin"`
}

// Client is one live session handle. Implementations need not be safe for
// concurrent use; the registry serializes access per session.
type Client interface {
	Connect(ctx context.Context) error
	Authorized(ctx context.Context) (bool, error)
	Disconnect(ctx context.Context) error

	CreateChannel(ctx context.Context, title, about string) (ChannelInfo, error)
	SetUsername(ctx context.Context, tid, accessHash int64, username string) error
	SetPhoto(ctx context.Context, tid, accessHash int64, photoPath string) error
	SetDescription(ctx context.Context, tid, accessHash int64, about string) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendFile(ctx context.Context, chatID int64, paths []string, caption string) error
	Channels(ctx context.Context) ([]ChannelInfo, error)
}

// Dialer builds an unconnected Client for a session key using process-wide
// credentials and proxy configuration.
type Dialer func(sessionName string) Client

// ChatID maps a channel TID to the chat id used when sending to it
// (broadcast channels carry a -100 prefix).
func ChatID(tid int64) int64 {
	id, _ := strconv.ParseInt(fmt.Sprintf("-100%d", tid), 10, 64)
	return id
}

const (
	usernameHead = "abcdefghijklmnopqrstuvwxyz"
	usernameBody = "abcdefghijklmnopqrstuvwxyz0123456789_"
	usernameTail = "abcdefghijklmnopqrstuvwxyz_"
)

// GenerateUsername produces a random public username for a channel. The TID
// suffix keeps it unique across retries.
func GenerateUsername(tid int64) string {
	var b strings.Builder
	for i := 0; i < 2; i++ {
		b.WriteByte(usernameHead[rand.Intn(len(usernameHead))])
	}
	for i := 0; i < 3; i++ {
		b.WriteByte(usernameBody[rand.Intn(len(usernameBody))])
	}
	b.WriteByte(usernameTail[rand.Intn(len(usernameTail))])
	return fmt.Sprintf("%s%d", b.String(), tid)
}
