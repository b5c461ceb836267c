package testutils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/vrpanel/internal/api"
)

// Appliance is an in-process stand-in for the VR appliance: the HTTP API
// under /api and the state socket at /api/sock. Mutating API calls push the
// same frames the real appliance does.
type Appliance struct {
	Server *httptest.Server

	mu           sync.Mutex
	games        []api.Game
	covers       map[string][]byte
	active       *api.GameSession
	devices      map[api.AudioKind][]api.AudioDevice
	battery      *api.AndroidBatteryInfo
	launchTokens map[string]bool
	launches     int
	reloads      int
	conns        map[*websocket.Conn]struct{}
	accepted     int
	now          func() time.Time
}

// NewAppliance starts a fake appliance and stops it when the test ends.
func NewAppliance(t *testing.T) *Appliance {
	t.Helper()

	a := &Appliance{
		covers:       make(map[string][]byte),
		devices:      make(map[api.AudioKind][]api.AudioDevice),
		launchTokens: make(map[string]bool),
		conns:        make(map[*websocket.Conn]struct{}),
		now:          time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID())
	e.Use(requestLogger)

	g := e.Group("/api")
	g.GET("/sock", a.handleSock)
	g.GET("/games", a.listGames)
	g.GET("/games/active", a.getActive)
	g.POST("/games/active/kill", a.kill)
	g.POST("/games/reload_backend", a.reloadBackend)
	g.GET("/games/:id", a.getGame)
	g.GET("/games/:id/cover", a.getCover)
	g.POST("/games/:id/launch", a.launch)
	g.GET("/audio/:kind", a.listAudio)
	g.POST("/audio/:kind/:id/default", a.setDefault)
	g.POST("/audio/device/:id/volume", a.setVolume)
	g.GET("/device/battery", a.getBattery)

	a.Server = httptest.NewServer(e)
	t.Cleanup(func() {
		a.DropConnections()
		a.Server.Close()
	})
	return a
}

// APIURL is the base URL for api.New.
func (a *Appliance) APIURL() string { return a.Server.URL + "/api" }

// SocketURL is the state socket URL.
func (a *Appliance) SocketURL() string {
	return "ws" + strings.TrimPrefix(a.Server.URL, "http") + "/api/sock"
}

// AddGame registers a game and optionally its cover.
func (a *Appliance) AddGame(g api.Game, cover []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.games = append(a.games, g)
	if cover != nil {
		a.covers[g.ID] = cover
	}
}

// SetAudioDevices replaces the devices of one kind.
func (a *Appliance) SetAudioDevices(kind api.AudioKind, devices []api.AudioDevice) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.devices[kind] = append([]api.AudioDevice(nil), devices...)
}

// SetBattery replaces the battery state; nil means no headset.
func (a *Appliance) SetBattery(info *api.AndroidBatteryInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.battery = info
}

// SetActive replaces the running session without pushing a frame.
func (a *Appliance) SetActive(s *api.GameSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = s
}

// Launches returns how many launch requests started a game.
func (a *Appliance) Launches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launches
}

// Reloads returns how many backend reloads were requested.
func (a *Appliance) Reloads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloads
}

// Connections returns the number of open socket connections.
func (a *Appliance) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// Accepted returns how many socket connections were ever accepted.
func (a *Appliance) Accepted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accepted
}

// Push writes a text frame to every connected socket.
func (a *Appliance) Push(frame string) {
	a.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Write(ctx, websocket.MessageText, []byte(frame))
		cancel()
	}
}

// PushJSON pushes "<command>:<json(v)>".
func (a *Appliance) PushJSON(command string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	a.Push(command + ":" + string(data))
}

// DropConnections closes every socket from the server side.
func (a *Appliance) DropConnections() {
	a.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "appliance restarting")
	}
}

func (a *Appliance) handleSock(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conns[conn] = struct{}{}
	a.accepted++
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	// The socket is push-only; reading just detects the client going away.
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return nil
		}
	}
}

func (a *Appliance) listGames(c echo.Context) error {
	a.mu.Lock()
	games := append([]api.Game{}, a.games...)
	a.mu.Unlock()
	return c.JSON(http.StatusOK, games)
}

func (a *Appliance) findGame(id string) (api.Game, bool) {
	for _, g := range a.games {
		if g.ID == id {
			return g, true
		}
	}
	return api.Game{}, false
}

func (a *Appliance) getGame(c echo.Context) error {
	a.mu.Lock()
	g, ok := a.findGame(c.Param("id"))
	a.mu.Unlock()
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, g)
}

func (a *Appliance) getCover(c echo.Context) error {
	a.mu.Lock()
	cover, ok := a.covers[c.Param("id")]
	a.mu.Unlock()
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.Blob(http.StatusOK, "image/jpg", cover)
}

func (a *Appliance) launch(c echo.Context) error {
	token := c.QueryParam("idem_token")
	if token == "" {
		return c.String(http.StatusBadRequest, "missing idem_token")
	}

	a.mu.Lock()
	if a.launchTokens[token] {
		a.mu.Unlock()
		return c.NoContent(http.StatusNoContent)
	}
	a.launchTokens[token] = true

	g, ok := a.findGame(c.Param("id"))
	if !ok {
		a.mu.Unlock()
		return c.NoContent(http.StatusNotFound)
	}
	session := &api.GameSession{
		Game:           g,
		StartTimeEpoch: uint64(a.now().Unix()),
		VRDeviceSerial: "1WMHHA67UU2191",
	}
	a.active = session
	a.launches++
	a.mu.Unlock()

	a.PushJSON("active", session)
	return c.NoContent(http.StatusOK)
}

func (a *Appliance) getActive(c echo.Context) error {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()
	if active == nil {
		return c.String(http.StatusOK, "{}")
	}
	return c.JSON(http.StatusOK, active)
}

func (a *Appliance) kill(c echo.Context) error {
	a.mu.Lock()
	wasActive := a.active != nil
	a.active = nil
	a.mu.Unlock()

	if wasActive {
		a.Push("inactive")
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *Appliance) reloadBackend(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return c.String(http.StatusInternalServerError, "No active game session found")
	}
	a.reloads++
	return c.NoContent(http.StatusOK)
}

func (a *Appliance) listAudio(c echo.Context) error {
	kind, ok := api.ParseAudioKind(c.Param("kind"))
	if !ok {
		return c.NoContent(http.StatusBadRequest)
	}
	a.mu.Lock()
	devices := append([]api.AudioDevice{}, a.devices[kind]...)
	a.mu.Unlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return c.JSON(http.StatusOK, devices)
}

func (a *Appliance) setDefault(c echo.Context) error {
	kind, ok := api.ParseAudioKind(c.Param("kind"))
	if !ok {
		return c.NoContent(http.StatusBadRequest)
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	a.mu.Lock()
	devices := a.devices[kind]
	var chosen *api.AudioDevice
	for i := range devices {
		devices[i].IsDefault = devices[i].ID == uint32(id)
		if devices[i].IsDefault {
			chosen = &devices[i]
		}
	}
	var changed api.AudioDevice
	if chosen != nil {
		changed = *chosen
	}
	a.mu.Unlock()

	if chosen == nil {
		return c.NoContent(http.StatusNotFound)
	}
	command := "default_output_changed"
	if kind == api.AudioInputs {
		command = "default_input_changed"
	}
	a.PushJSON(command, changed)
	return c.NoContent(http.StatusNoContent)
}

func (a *Appliance) setVolume(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	var body struct {
		Volume uint8 `json:"volume"`
		Muted  bool  `json:"muted"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.NoContent(http.StatusUnprocessableEntity)
	}

	a.mu.Lock()
	var changed *api.AudioDevice
	for kind, devices := range a.devices {
		for i := range devices {
			if devices[i].ID == uint32(id) {
				devices[i].Volume = body.Volume
				devices[i].IsMuted = body.Muted
				d := devices[i]
				changed = &d
			}
		}
		a.devices[kind] = devices
	}
	a.mu.Unlock()

	if changed != nil {
		a.PushJSON("volume_mute_changed", changed)
	}
	return c.NoContent(http.StatusOK)
}

func (a *Appliance) getBattery(c echo.Context) error {
	a.mu.Lock()
	info := a.battery
	a.mu.Unlock()
	if info == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, info)
}
