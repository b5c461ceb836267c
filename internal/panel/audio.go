package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/observable"
	"github.com/nfrund/vrpanel/internal/statesync"
)

// AudioAPI is the part of api.Client the audio state uses.
type AudioAPI interface {
	ListAudioDevices(ctx context.Context, kind api.AudioKind) ([]api.AudioDevice, error)
}

// AudioState tracks the default input and output devices and fans out
// per-device volume changes.
//
// A default-device change triggers a refetch of that kind's list rather than
// trusting the frame, so the devices' is_default flags stay consistent. The
// refetch runs on its own goroutine; socket handlers never block on HTTP.
type AudioState struct {
	api    AudioAPI
	logger *slog.Logger

	defaults map[api.AudioKind]*observable.Observable[*api.AudioDevice]
	volume   *observable.Observable[*api.AudioDevice]

	// writeMu serializes writes to defaults.
	writeMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	seq     map[api.AudioKind]uint64
	pending sync.WaitGroup
}

// NewAudioState creates an empty audio state.
func NewAudioState(a AudioAPI) *AudioState {
	return &AudioState{
		api:    a,
		logger: slog.Default().With("component", "audio"),
		defaults: map[api.AudioKind]*observable.Observable[*api.AudioDevice]{
			api.AudioInputs:  observable.New[*api.AudioDevice](nil),
			api.AudioOutputs: observable.New[*api.AudioDevice](nil),
		},
		volume: observable.New[*api.AudioDevice](nil),
		ctx:    context.Background(),
		seq:    make(map[api.AudioKind]uint64),
	}
}

// DefaultOutput exposes the default output device.
func (s *AudioState) DefaultOutput() *observable.Observable[*api.AudioDevice] {
	return s.defaults[api.AudioOutputs]
}

// DefaultInput exposes the default input device.
func (s *AudioState) DefaultInput() *observable.Observable[*api.AudioDevice] {
	return s.defaults[api.AudioInputs]
}

// Volume exposes every volume_mute_changed update.
func (s *AudioState) Volume() *observable.Observable[*api.AudioDevice] {
	return s.volume
}

// WatchDeviceVolume calls fn with the updates for one device only.
func (s *AudioState) WatchDeviceVolume(id uint32, fn func(api.AudioDevice)) observable.Unsubscribe {
	return s.volume.Subscribe(func(d *api.AudioDevice) {
		if d != nil && d.ID == id {
			fn(*d)
		}
	})
}

// Start subscribes to src and loads both device lists.
func (s *AudioState) Start(ctx context.Context, src Source) (statesync.Unsubscribe, error) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubscribe := src.Watch(ctx, s.Handle)
	for _, kind := range []api.AudioKind{api.AudioOutputs, api.AudioInputs} {
		if err := s.Refresh(ctx, kind); err != nil {
			unsubscribe()
			return nil, err
		}
	}
	return unsubscribe, nil
}

// Refresh refetches one device list and publishes its default device. A
// refresh that completes after a newer one has started is dropped.
func (s *AudioState) Refresh(ctx context.Context, kind api.AudioKind) error {
	s.mu.Lock()
	s.seq[kind]++
	seq := s.seq[kind]
	s.mu.Unlock()

	devices, err := s.api.ListAudioDevices(ctx, kind)
	if err != nil {
		return fmt.Errorf("refresh audio %s: %w", kind, err)
	}

	var def *api.AudioDevice
	if d, ok := api.DefaultDevice(devices); ok {
		def = &d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	stale := s.seq[kind] != seq
	s.mu.Unlock()
	if stale {
		return nil
	}
	s.defaults[kind].Set(def)
	return nil
}

// Handle applies one socket message.
func (s *AudioState) Handle(msg statesync.Message) {
	command, argument := msg.Command()
	switch command {
	case commands.DefaultOutputChanged:
		s.refreshAsync(api.AudioOutputs)
	case commands.DefaultInputChanged:
		s.refreshAsync(api.AudioInputs)
	case commands.VolumeMuteChanged:
		var device api.AudioDevice
		if !decodeArgument(s.logger, command, argument, &device) {
			return
		}
		s.applyVolume(device)
		s.volume.Set(&device)
	}
}

// Wait blocks until background refreshes have finished.
func (s *AudioState) Wait() {
	s.pending.Wait()
}

func (s *AudioState) refreshAsync(kind api.AudioKind) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Refresh(ctx, kind); err != nil {
			s.logger.Error("Failed to refresh audio devices", "kind", kind, "error", err)
		}
	}()
}

// applyVolume keeps the default devices' volume in step with volume updates.
func (s *AudioState) applyVolume(device api.AudioDevice) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, obs := range s.defaults {
		current := obs.Get()
		if current == nil || current.ID != device.ID {
			continue
		}
		updated := *current
		updated.Volume = device.Volume
		updated.IsMuted = device.IsMuted
		obs.Set(&updated)
	}
}
