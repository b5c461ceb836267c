package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/testutils"
)

var alyx = api.Game{ID: "546560", Title: "Half-Life: Alyx", VRBackend: "SteamVR", TotalPlaytimeSec: 3600}

func TestClient_Games(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	appliance.AddGame(alyx, []byte("cover-bytes"))
	client := api.New(appliance.APIURL())
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		games, err := client.ListGames(ctx)
		require.NoError(t, err)
		require.Len(t, games, 1)
		assert.Equal(t, alyx, games[0])
	})

	t.Run("get", func(t *testing.T) {
		game, err := client.GetGame(ctx, alyx.ID)
		require.NoError(t, err)
		assert.Equal(t, alyx.Title, game.Title)

		_, err = client.GetGame(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrNotFound)
	})

	t.Run("cover", func(t *testing.T) {
		data, err := client.GetGameCover(ctx, alyx.ID)
		require.NoError(t, err)
		assert.Equal(t, "cover-bytes", string(data))
	})

	t.Run("no active game", func(t *testing.T) {
		session, err := client.GetActiveGame(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("reload backend without session fails", func(t *testing.T) {
		err := client.ReloadBackend(ctx)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "No active game session")
		assert.ErrorIs(t, err, api.ErrRequestFailed)
	})

	t.Run("launch, inspect, reload, kill", func(t *testing.T) {
		require.NoError(t, client.LaunchGame(ctx, alyx.ID))
		assert.Equal(t, 1, appliance.Launches())

		session, err := client.GetActiveGame(ctx)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, alyx.ID, session.Game.ID)
		assert.NotZero(t, session.StartTimeEpoch)

		require.NoError(t, client.ReloadBackend(ctx))
		assert.Equal(t, 1, appliance.Reloads())

		require.NoError(t, client.KillActiveGame(ctx))
		session, err = client.GetActiveGame(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)

		// Killing again is fine.
		require.NoError(t, client.KillActiveGame(ctx))
	})
}

func TestClient_LaunchIsIdempotentPerToken(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	appliance.AddGame(alyx, nil)
	client := api.New(appliance.APIURL(), api.WithTokenSource(func() string { return "fixed-token" }))
	ctx := context.Background()

	require.NoError(t, client.LaunchGame(ctx, alyx.ID))
	require.NoError(t, client.LaunchGame(ctx, alyx.ID))
	assert.Equal(t, 1, appliance.Launches())

	require.NoError(t, client.LaunchGameWithToken(ctx, alyx.ID, "another-token"))
	assert.Equal(t, 2, appliance.Launches())
}

func TestClient_LaunchUsesFreshTokens(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	appliance.AddGame(alyx, nil)
	client := api.New(appliance.APIURL())
	ctx := context.Background()

	require.NoError(t, client.LaunchGame(ctx, alyx.ID))
	require.NoError(t, client.LaunchGame(ctx, alyx.ID))
	assert.Equal(t, 2, appliance.Launches())
}

func TestClient_Audio(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	appliance.SetAudioDevices(api.AudioOutputs, []api.AudioDevice{
		{ID: 53, Name: "b_usb", IsDefault: true, Volume: 60},
		{ID: 52, Name: "a_hdmi", Volume: 80},
	})
	appliance.SetAudioDevices(api.AudioInputs, []api.AudioDevice{
		{ID: 61, Name: "mic", IsDefault: true},
	})
	client := api.New(appliance.APIURL())
	ctx := context.Background()

	outputs, err := client.ListAudioOutputs(ctx)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "a_hdmi", outputs[0].Name, "sorted by name")

	inputs, err := client.ListAudioInputs(ctx)
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	require.NoError(t, client.SetDefaultAudioOutput(ctx, 52))
	outputs, err = client.ListAudioOutputs(ctx)
	require.NoError(t, err)
	def, ok := api.DefaultDevice(outputs)
	require.True(t, ok)
	assert.Equal(t, uint32(52), def.ID)

	require.NoError(t, client.SetDefaultAudioInput(ctx, 61))
	assert.ErrorIs(t, client.SetDefaultAudioInput(ctx, 99), api.ErrNotFound)

	require.NoError(t, client.SetDeviceVolume(ctx, 52, 25, true))
	outputs, err = client.ListAudioOutputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(25), outputs[0].Volume)
	assert.True(t, outputs[0].IsMuted)
}

func TestClient_SetDeviceVolumeRange(t *testing.T) {
	client := api.New("http://127.0.0.1:1/api")
	for _, v := range []int{-1, 101, 300} {
		err := client.SetDeviceVolume(context.Background(), 1, v, false)
		assert.ErrorIs(t, err, api.ErrInvalidVolume, "volume %d", v)
	}
}

func TestClient_Battery(t *testing.T) {
	appliance := testutils.NewAppliance(t)
	client := api.New(appliance.APIURL())
	ctx := context.Background()

	_, err := client.GetBatteryInfo(ctx)
	assert.ErrorIs(t, err, api.ErrNotFound)

	appliance.SetBattery(&api.AndroidBatteryInfo{
		Stats:   api.AndroidBatteryStats{Level: 21, Scale: 50, Status: "Charging", PowerSource: "USB"},
		History: []int{40, 41, 42},
	})
	info, err := client.GetBatteryInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, info.Stats.Percent())
	assert.True(t, info.Stats.Charging())
	assert.Equal(t, []int{40, 41, 42}, info.History)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := api.New(srv.URL+"/api", api.WithTimeout(20*time.Millisecond))
	_, err := client.ListGames(context.Background())
	require.Error(t, err)

	var apiErr *api.Error
	assert.False(t, errors.As(err, &apiErr), "transport errors are not API errors")
}

func TestError(t *testing.T) {
	err := &api.Error{Op: "get game", StatusCode: http.StatusNotFound}
	assert.Equal(t, "get game: 404 Not Found", err.Error())
	assert.ErrorIs(t, err, api.ErrNotFound)

	err = &api.Error{Op: "kill", StatusCode: http.StatusBadGateway, Body: "backend down"}
	assert.Equal(t, "kill: 502 Bad Gateway: backend down", err.Error())
	assert.ErrorIs(t, err, api.ErrRequestFailed)
}

func TestGameSession_Elapsed(t *testing.T) {
	s := api.GameSession{StartTimeEpoch: 1_000}
	assert.Equal(t, time.Unix(1_000, 0), s.StartedAt())
	assert.Equal(t, 90*time.Second, s.Elapsed(time.Unix(1_090, 500)))
	assert.Zero(t, s.Elapsed(time.Unix(10, 0)))
}

func TestParseAudioKind(t *testing.T) {
	kind, ok := api.ParseAudioKind("output")
	assert.True(t, ok)
	assert.Equal(t, api.AudioOutputs, kind)

	kind, ok = api.ParseAudioKind("inputs")
	assert.True(t, ok)
	assert.Equal(t, api.AudioInputs, kind)

	_, ok = api.ParseAudioKind("speakers")
	assert.False(t, ok)
}
