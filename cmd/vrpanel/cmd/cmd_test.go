package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/pubsub"
	"github.com/nfrund/vrpanel/internal/testutils"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag variables are package level and survive between executions.
	outputFormat = "table"
	serverFlag, driverFlag = "", ""
	followFlag, muteFlag, coverRefreshFlag = false, false, false
	coverOutputFlag = ""
	watchCommandFlags = nil

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vrpanel v"+version+"\n", out)
}

func TestCommands(t *testing.T) {
	out, err := run(t, "commands")
	require.NoError(t, err)
	assert.Contains(t, out, "vrpanel.socket.battery")
	assert.Contains(t, out, "api.AndroidBatteryInfo")

	out, err = run(t, "commands", "--format", "json")
	require.NoError(t, err)
	var parsed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, 6, parsed.Count)

	_, err = run(t, "commands", "--format", "yaml")
	assert.Error(t, err)
}

func TestGames(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	cfg := testutils.ConfigForAppliance(t, appliance)
	appliance.AddGame(api.Game{ID: "546560", Title: "Half-Life: Alyx", VRBackend: "SteamVR", TotalPlaytimeSec: 90}, []byte("jpeg"))

	out, err := run(t, "games", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Half-Life: Alyx")
	assert.Contains(t, out, "1m30s")

	out, err = run(t, "games", "active")
	require.NoError(t, err)
	assert.Equal(t, "No game running\n", out)

	out, err = run(t, "games", "launch", "546560")
	require.NoError(t, err)
	assert.Equal(t, "Launched 546560\n", out)
	assert.Equal(t, 1, appliance.Launches())

	out, err = run(t, "games", "active")
	require.NoError(t, err)
	assert.Contains(t, out, "Half-Life: Alyx (546560) running for")

	_, err = run(t, "games", "reload-backend")
	require.NoError(t, err)
	assert.Equal(t, 1, appliance.Reloads())

	_, err = run(t, "games", "kill")
	require.NoError(t, err)

	_, err = run(t, "games", "launch", "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	t.Run("cover is cached", func(t *testing.T) {
		out, err := run(t, "games", "cover", "546560")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfg.CoverCacheDir, "546560.jpg")+"\n", out)

		dest := filepath.Join(t.TempDir(), "alyx.jpg")
		out, err = run(t, "games", "cover", "546560", "-o", dest)
		require.NoError(t, err)
		assert.Contains(t, out, "Wrote 4 bytes")
	})
}

func TestAudio(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	testutils.ConfigForAppliance(t, appliance)
	appliance.SetAudioDevices(api.AudioOutputs, []api.AudioDevice{
		{ID: 52, Name: "hdmi", Description: "HDMI", IsDefault: true, Volume: 80},
		{ID: 53, Name: "usb", Description: "Headset", Volume: 60},
	})

	out, err := run(t, "audio", "list", "outputs")
	require.NoError(t, err)
	assert.Contains(t, out, "Headset")

	out, err = run(t, "audio", "default", "output", "53")
	require.NoError(t, err)
	assert.Equal(t, "Device 53 is now the default outputs\n", out)

	_, err = run(t, "audio", "default", "speaker", "53")
	assert.Error(t, err)

	out, err = run(t, "audio", "volume", "53", "40", "--mute")
	require.NoError(t, err)
	assert.Equal(t, "Device 53 volume 40% muted=true\n", out)

	_, err = run(t, "audio", "volume", "53", "140")
	assert.ErrorIs(t, err, api.ErrInvalidVolume)

	out, err = run(t, "audio", "list", "--format", "json")
	require.NoError(t, err)
	var parsed map[string][]api.AudioDevice
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed["outputs"], 2)
	assert.True(t, parsed["outputs"][1].IsDefault, "usb sorts after hdmi")
	assert.Equal(t, uint8(40), parsed["outputs"][1].Volume)
}

func TestBattery(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	testutils.ConfigForAppliance(t, appliance)

	out, err := run(t, "battery")
	require.NoError(t, err)
	assert.Equal(t, "No headset connected\n", out)

	appliance.SetBattery(&api.AndroidBatteryInfo{Stats: api.AndroidBatteryStats{
		Level: 30, Scale: 100, PowerSource: "Battery", IsWeakCharger: true,
	}})
	out, err = run(t, "battery")
	require.NoError(t, err)
	assert.Equal(t, "30% (low) Battery, weak charger\n", out)
}

func TestServerFlagOverridesEnvironment(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	t.Setenv("VRPANEL_SERVER_URL", "http://127.0.0.1:1")
	t.Setenv("VRPANEL_SOCKET_URL", "")
	t.Setenv("VRPANEL_COVER_CACHE_DIR", t.TempDir())

	out, err := run(t, "games", "active", "--server", appliance.Server.URL)
	require.NoError(t, err)
	assert.Equal(t, "No game running\n", out)
	assert.Equal(t, appliance.SocketURL(), appConfig.SocketURL)
}

func TestWatchRejectsUnknownCommand(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	testutils.ConfigForAppliance(t, appliance)

	_, err := run(t, "watch", "--command", "self_destruct")
	assert.Error(t, err)
}

// syncBuffer is a bytes.Buffer safe for bus handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCommands_PrintsDecodedPayloads(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	appConfig = testutils.ConfigForAppliance(t, appliance)
	appliance.AddGame(api.Game{ID: "546560", Title: "Half-Life: Alyx", VRBackend: "SteamVR"}, nil)
	appliance.SetAudioDevices(api.AudioOutputs, []api.AudioDevice{
		{ID: 52, Name: "hdmi", Description: "HDMI", IsDefault: true, Volume: 80},
		{ID: 53, Name: "usb", Description: "Headset", Volume: 60},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore()
	require.NoError(t, err)
	defer store.Close()

	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	var out syncBuffer
	stop, err := watchCommands(ctx, store, bus, []string{"active", "default_output_changed", "inactive"}, &out)
	require.NoError(t, err)
	defer stop()
	require.Eventually(t, func() bool { return appliance.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	client := newClient()
	require.NoError(t, client.LaunchGame(ctx, "546560"))
	require.NoError(t, client.SetDefaultAudioOutput(ctx, 53))
	require.NoError(t, client.KillActiveGame(ctx))

	want := []string{
		"active Half-Life: Alyx (546560) on 1WMHHA67UU2191\n",
		"default_output_changed 53 Headset volume=60% muted=false\n",
		"inactive\n",
	}
	require.Eventually(t, func() bool {
		got := out.String()
		for _, line := range want {
			if !strings.Contains(got, line) {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond, "printed:\n%s", out.String())

	// Commands that were not asked for are not printed.
	appliance.PushJSON("battery", api.AndroidBatteryInfo{Stats: api.AndroidBatteryStats{Level: 42, Scale: 100}})
	require.NoError(t, client.SetDeviceVolume(ctx, 53, 20, false))
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, out.String(), "battery")
	assert.NotContains(t, out.String(), "volume_mute_changed")
}

func TestWatchCommands_BatteryAndVolume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	var out syncBuffer
	require.NoError(t, subscribeCommand(ctx, bus, "battery", &out))
	require.NoError(t, subscribeCommand(ctx, bus, "volume_mute_changed", &out))
	require.NoError(t, subscribeCommand(ctx, bus, "default_input_changed", &out))

	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.BatteryEvent, api.AndroidBatteryInfo{Stats: api.AndroidBatteryStats{
		Level: 30, Scale: 100, PowerSource: "Battery",
	}}))
	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.VolumeMuteChangedEvent, api.AudioDevice{ID: 52, Description: "HDMI", Volume: 40, IsMuted: true}))
	require.NoError(t, pubsub.Publish(ctx, bus, pubsub.DefaultInputEvent, api.AudioDevice{ID: 61, Description: "Headset mic", Volume: 70}))

	require.Eventually(t, func() bool {
		got := out.String()
		return strings.Contains(got, "battery 30% (low) Battery\n") &&
			strings.Contains(got, "volume_mute_changed 52 HDMI volume=40% muted=true\n") &&
			strings.Contains(got, "default_input_changed 61 Headset mic volume=70% muted=false\n")
	}, 2*time.Second, 5*time.Millisecond, "printed:\n%s", out.String())

	assert.Error(t, subscribeCommand(ctx, bus, "self_destruct", &out))
}
