package api

import "time"

// Game is an installed title as listed by the appliance.
type Game struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	VRBackend        string  `json:"vrBackend"`
	SteamAppID       *int64  `json:"steamAppId"`
	ProtonVersion    *string `json:"protonVersion"`
	CommandLine      *string `json:"commandLine"`
	TotalPlaytimeSec int     `json:"totalPlaytimeSec"`
}

// GameSession is the currently running game.
type GameSession struct {
	Game           Game   `json:"game"`
	StartTimeEpoch uint64 `json:"startTimeEpoch"`
	VRDeviceSerial string `json:"vrDeviceSerial"`
}

// StartedAt returns the session start time.
func (s GameSession) StartedAt() time.Time {
	return time.Unix(int64(s.StartTimeEpoch), 0)
}

// Elapsed returns how long the session has been running at now, in whole seconds.
func (s GameSession) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.StartedAt()).Truncate(time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// AudioDevice is a PipeWire input or output endpoint.
type AudioDevice struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	Volume      uint8  `json:"volume"`
	IsMuted     bool   `json:"is_muted"`
}

// AudioKind selects the input or output endpoint list.
type AudioKind string

const (
	AudioInputs  AudioKind = "inputs"
	AudioOutputs AudioKind = "outputs"
)

// ParseAudioKind accepts the singular and plural forms of input/output.
func ParseAudioKind(s string) (AudioKind, bool) {
	switch s {
	case "input", "inputs":
		return AudioInputs, true
	case "output", "outputs":
		return AudioOutputs, true
	}
	return "", false
}

// DefaultDevice returns the device flagged as default, if any.
func DefaultDevice(devices []AudioDevice) (AudioDevice, bool) {
	for _, d := range devices {
		if d.IsDefault {
			return d, true
		}
	}
	return AudioDevice{}, false
}

// AndroidBatteryInfo is the headset's battery state plus recent level history.
type AndroidBatteryInfo struct {
	Stats   AndroidBatteryStats `json:"stats"`
	History []int               `json:"history"`
}

// AndroidBatteryStats mirrors the fields of `dumpsys battery`.
type AndroidBatteryStats struct {
	PowerSource        string `json:"powerSource"`
	IsWeakCharger      bool   `json:"isWeakCharger"`
	MaxChargeCurrentMA uint32 `json:"maxChargeCurrentMa"`
	MaxChargeVoltageMV uint32 `json:"maxChargeVoltageMv"`
	ChargeCounter      uint32 `json:"chargeCounter"`
	Status             string `json:"status"`
	Health             string `json:"health"`
	Present            bool   `json:"present"`
	Level              uint8  `json:"level"`
	Scale              uint8  `json:"scale"`
	Voltage            uint32 `json:"voltage"`
	Temperature        uint32 `json:"temperature"`
	Technology         string `json:"technology"`
}

// Percent returns level as a percentage of scale.
func (s AndroidBatteryStats) Percent() int {
	if s.Scale == 0 {
		return int(s.Level)
	}
	return int(s.Level) * 100 / int(s.Scale)
}

// Charging reports whether the headset is drawing external power.
func (s AndroidBatteryStats) Charging() bool {
	return s.Status == "Charging" || s.PowerSource != "Battery" && s.PowerSource != ""
}

type volumeRequest struct {
	Volume uint8 `json:"volume" validate:"lte=100"`
	Muted  bool  `json:"muted"`
}
