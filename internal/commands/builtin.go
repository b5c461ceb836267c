package commands

import "sync"

// Commands pushed by the appliance.
const (
	Active               = "active"
	Inactive             = "inactive"
	Battery              = "battery"
	DefaultOutputChanged = "default_output_changed"
	DefaultInputChanged  = "default_input_changed"
	VolumeMuteChanged    = "volume_mute_changed"
)

var builtins = []Command{
	{
		Name:        Active,
		Description: "A game session started; the argument is the running session",
		Example:     `active:{"game":{"id":"546560","title":"Half-Life: Alyx"},"startTimeEpoch":1718000000,"vrDeviceSerial":"1WMHHA67UU2191"}`,
		Payload:     "api.GameSession",
	},
	{
		Name:        Inactive,
		Description: "The running game session ended",
		Example:     "inactive",
	},
	{
		Name:        Battery,
		Description: "Headset battery state changed",
		Example:     `battery:{"stats":{"level":42,"scale":100,"status":"Discharging"},"history":[44,43,42]}`,
		Payload:     "api.AndroidBatteryInfo",
	},
	{
		Name:        DefaultOutputChanged,
		Description: "The default audio output changed; the argument is the new default device",
		Example:     `default_output_changed:{"id":52,"name":"alsa_output.usb","is_default":true,"volume":40}`,
		Payload:     "api.AudioDevice",
	},
	{
		Name:        DefaultInputChanged,
		Description: "The default audio input changed; the argument is the new default device",
		Example:     `default_input_changed:{"id":61,"name":"alsa_input.usb","is_default":true,"volume":80}`,
		Payload:     "api.AudioDevice",
	},
	{
		Name:        VolumeMuteChanged,
		Description: "A device's volume or mute flag changed; the argument is the device",
		Example:     `volume_mute_changed:{"id":52,"name":"alsa_output.usb","volume":40,"is_muted":false}`,
		Payload:     "api.AudioDevice",
	},
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the registry of built-in commands.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, cmd := range builtins {
			defaultRegistry.MustRegister(cmd)
		}
	})
	return defaultRegistry
}
