// Package api is a thin client for the appliance's HTTP API. Calls are plain
// request/response exchanges; nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// maxErrorBody caps how much of an error response is kept in Error.Body.
const maxErrorBody = 4 << 10

// Client talks to one appliance.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validator.Validate
	newToken func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource overrides how launch idempotency tokens are generated.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newToken = fn
		}
	}
}

// New returns a client for the API rooted at baseURL, e.g.
// http://192.168.1.108:3001/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		validate: validator.New(),
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListGames returns every installed game.
func (c *Client) ListGames(ctx context.Context) ([]Game, error) {
	var games []Game
	if err := c.getJSON(ctx, "list games", "/games", &games); err != nil {
		return nil, err
	}
	return games, nil
}

// GetGame returns one game.
func (c *Client) GetGame(ctx context.Context, id string) (*Game, error) {
	var game Game
	if err := c.getJSON(ctx, "get game", "/games/"+url.PathEscape(id), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGameCover returns the raw cover image bytes.
func (c *Client) GetGameCover(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, "get game cover", http.MethodGet, "/games/"+url.PathEscape(id)+"/cover", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get game cover: read body: %w", err)
	}
	return data, nil
}

// LaunchGame starts a game. Each call carries a fresh idempotency token; the
// appliance ignores a token it has already seen.
func (c *Client) LaunchGame(ctx context.Context, id string) error {
	return c.LaunchGameWithToken(ctx, id, c.newToken())
}

// LaunchGameWithToken starts a game with a caller-supplied idempotency token,
// so a retried request cannot launch twice.
func (c *Client) LaunchGameWithToken(ctx context.Context, id, token string) error {
	path := "/games/" + url.PathEscape(id) + "/launch?" + url.Values{"idem_token": {token}}.Encode()
	return c.post(ctx, "launch game", path, nil)
}

// GetActiveGame returns the running session, or nil when nothing is running.
func (c *Client) GetActiveGame(ctx context.Context) (*GameSession, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "get active game", "/games/active", &raw); err != nil {
		return nil, err
	}
	if isEmptyObject(raw) {
		return nil, nil
	}
	var session GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("get active game: decode: %w", err)
	}
	return &session, nil
}

// KillActiveGame stops the running game. It succeeds when nothing is running.
func (c *Client) KillActiveGame(ctx context.Context) error {
	return c.post(ctx, "kill active game", "/games/active/kill", nil)
}

// ReloadBackend asks the appliance to reconnect the VR streaming backend of
// the running session.
func (c *Client) ReloadBackend(ctx context.Context) error {
	return c.post(ctx, "reload backend", "/games/reload_backend", nil)
}

// ListAudioDevices returns the input or output endpoints, sorted by name.
func (c *Client) ListAudioDevices(ctx context.Context, kind AudioKind) ([]AudioDevice, error) {
	var devices []AudioDevice
	if err := c.getJSON(ctx, "list audio "+string(kind), "/audio/"+string(kind), &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// ListAudioInputs returns the capture endpoints.
func (c *Client) ListAudioInputs(ctx context.Context) ([]AudioDevice, error) {
	return c.ListAudioDevices(ctx, AudioInputs)
}

// ListAudioOutputs returns the playback endpoints.
func (c *Client) ListAudioOutputs(ctx context.Context) ([]AudioDevice, error) {
	return c.ListAudioDevices(ctx, AudioOutputs)
}

// SetDefaultAudioDevice makes the device the default of its kind.
func (c *Client) SetDefaultAudioDevice(ctx context.Context, kind AudioKind, id uint32) error {
	path := "/audio/" + string(kind) + "/" + strconv.FormatUint(uint64(id), 10) + "/default"
	return c.post(ctx, "set default audio "+string(kind), path, nil)
}

// SetDefaultAudioInput makes the device the default input.
func (c *Client) SetDefaultAudioInput(ctx context.Context, id uint32) error {
	return c.SetDefaultAudioDevice(ctx, AudioInputs, id)
}

// SetDefaultAudioOutput makes the device the default output.
func (c *Client) SetDefaultAudioOutput(ctx context.Context, id uint32) error {
	return c.SetDefaultAudioDevice(ctx, AudioOutputs, id)
}

// SetDeviceVolume sets a device's volume (0-100) and mute flag.
func (c *Client) SetDeviceVolume(ctx context.Context, id uint32, volume int, muted bool) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("set device volume: %w", ErrInvalidVolume)
	}
	req := volumeRequest{Volume: uint8(volume), Muted: muted}
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("set device volume: %w: %v", ErrInvalidVolume, err)
	}
	path := "/audio/device/" + strconv.FormatUint(uint64(id), 10) + "/volume"
	return c.post(ctx, "set device volume", path, req)
}

// GetBatteryInfo returns the headset battery state. It returns ErrNotFound
// when no headset is connected.
func (c *Client) GetBatteryInfo(ctx context.Context) (*AndroidBatteryInfo, error) {
	var info AndroidBatteryInfo
	if err := c.getJSON(ctx, "get battery info", "/device/battery", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) error {
	resp, err := c.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		slog.Debug("Appliance request failed", "op", op, "status", resp.StatusCode)
		return nil, apiErr
	}
	return resp, nil
}

func isEmptyObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return len(obj) == 0
}
