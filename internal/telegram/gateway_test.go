package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

func TestGatewayClientRoutesAndPayloads(t *testing.T) {
	var mu sync.Mutex
	calls := make(map[string]json.RawMessage)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{"authorized": true})
		var payload json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		calls[r.URL.Path] = payload
		mu.Unlock()

		switch r.URL.Path {
		case "/sessions/alice/authorized":
			w.Write(body)
		case "/sessions/alice/channels/create":
			json.NewEncoder(w).Encode(ChannelInfo{TID: 77, AccessHash: 99, Title: "ch", Broadcast: true, Admin: true})
		case "/sessions/alice/channels":
			json.NewEncoder(w).Encode(map[string]any{"channels": []ChannelInfo{{TID: 1}}})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := GatewayDialer(srv.URL, nil, 5*time.Second)("alice")
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ok, err := c.Authorized(ctx)
	if err != nil || !ok {
		t.Fatalf("Authorized = %v, %v", ok, err)
	}

	info, err := c.CreateChannel(ctx, "ch", "about")
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if info.TID != 77 || info.AccessHash != 99 {
		t.Fatalf("info = %+v", info)
	}

	if err := c.SendMessage(ctx, -1001, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	channels, err := c.Channels(ctx)
	if err != nil || len(channels) != 1 {
		t.Fatalf("Channels = %v, %v", channels, err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, path := range []string{
		"/sessions/alice/connect",
		"/sessions/alice/authorized",
		"/sessions/alice/channels/create",
		"/sessions/alice/messages/send",
		"/sessions/alice/channels",
	} {
		if _, ok := calls[path]; !ok {
			t.Errorf("gateway never saw %s", path)
		}
	}

	var sent struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(calls["/sessions/alice/messages/send"], &sent); err != nil {
		t.Fatalf("decode send payload: %v", err)
	}
	if sent.ChatID != -1001 || sent.Text != "hi" {
		t.Fatalf("send payload = %+v", sent)
	}
}

func TestGatewayClientUsesProxy(t *testing.T) {
	var gotHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A plain-HTTP proxied request carries the target host.
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	proxyURL, err := url.Parse(proxy.URL)
	if err != nil {
		t.Fatal(err)
	}
	c := GatewayDialer("http://gateway.internal", proxyURL, 5*time.Second)("alice")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect through proxy: %v", err)
	}
	if gotHost != "gateway.internal" {
		t.Fatalf("proxy saw host %q, want gateway.internal", gotHost)
	}
}

func TestGatewayClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session file missing", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := GatewayDialer(srv.URL, nil, 5*time.Second)("alice")
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error from a 502 gateway response")
	}
}
