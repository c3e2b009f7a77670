package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GatewayClient drives one session through an MTProto gateway sidecar over
// JSON/HTTP. The gateway owns the actual protocol state; this adapter only
// names operations and session keys.
type GatewayClient struct {
	base    string
	session string
	http    *http.Client
}

// GatewayDialer returns a Dialer producing GatewayClients against baseURL.
// A non-nil proxy URL routes all gateway traffic through it.
func GatewayDialer(baseURL string, proxy *url.URL, timeout time.Duration) Dialer {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	hc := &http.Client{Timeout: timeout}
	if proxy != nil {
		hc.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
	return func(sessionName string) Client {
		return &GatewayClient{base: base, session: sessionName, http: hc}
	}
}

func (c *GatewayClient) Connect(ctx context.Context) error {
	return c.post(ctx, "connect", nil, nil)
}

func (c *GatewayClient) Authorized(ctx context.Context) (bool, error) {
	var out struct {
		Authorized bool `json:"authorized"`
	}
	if err := c.post(ctx, "authorized", nil, &out); err != nil {
		return false, err
	}
	return out.Authorized, nil
}

func (c *GatewayClient) Disconnect(ctx context.Context) error {
	return c.post(ctx, "disconnect", nil, nil)
}

func (c *GatewayClient) CreateChannel(ctx context.Context, title, about string) (ChannelInfo, error) {
	req := map[string]string{"title": title, "about": about}
	var out ChannelInfo
	if err := c.post(ctx, "channels/create", req, &out); err != nil {
		return ChannelInfo{}, err
	}
	return out, nil
}

func (c *GatewayClient) SetUsername(ctx context.Context, tid, accessHash int64, username string) error {
	return c.post(ctx, "channels/username", map[string]any{
		"tid": tid, "access_hash": accessHash, "username": username,
	}, nil)
}

func (c *GatewayClient) SetPhoto(ctx context.Context, tid, accessHash int64, photoPath string) error {
	return c.post(ctx, "channels/photo", map[string]any{
		"tid": tid, "access_hash": accessHash, "photo_path": photoPath,
	}, nil)
}

func (c *GatewayClient) SetDescription(ctx context.Context, tid, accessHash int64, about string) error {
	return c.post(ctx, "channels/description", map[string]any{
		"tid": tid, "access_hash": accessHash, "about": about,
	}, nil)
}

func (c *GatewayClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.post(ctx, "messages/send", map[string]any{
		"chat_id": chatID, "text": text,
	}, nil)
}

func (c *GatewayClient) SendFile(ctx context.Context, chatID int64, paths []string, caption string) error {
	return c.post(ctx, "messages/send_file", map[string]any{
		"chat_id": chatID, "paths": paths, "caption": caption,
	}, nil)
}

func (c *GatewayClient) Channels(ctx context.Context) ([]ChannelInfo, error) {
	var out struct {
		Channels []ChannelInfo `json:"channels"`
	}
	if err := c.post(ctx, "channels", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func (c *GatewayClient) post(ctx context.Context, op string, in, out any) error {
	endpoint := fmt.Sprintf("%s/sessions/%s/%s", c.base, url.PathEscape(c.session), op)

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("gateway %s status %d: %s", op, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}
