package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/observable"
	"github.com/nfrund/vrpanel/internal/statesync"
)

// BatteryAPI is the part of api.Client the monitor uses.
type BatteryAPI interface {
	GetBatteryInfo(ctx context.Context) (*api.AndroidBatteryInfo, error)
}

// BatteryMonitor follows the headset battery. The observable holds nil while
// no headset has reported.
type BatteryMonitor struct {
	api    BatteryAPI
	info   *observable.Observable[*api.AndroidBatteryInfo]
	logger *slog.Logger

	mu     sync.Mutex
	frames uint64
}

// NewBatteryMonitor creates a monitor with no reading.
func NewBatteryMonitor(a BatteryAPI) *BatteryMonitor {
	return &BatteryMonitor{
		api:    a,
		info:   observable.New[*api.AndroidBatteryInfo](nil),
		logger: slog.Default().With("component", "battery"),
	}
}

// Info exposes the latest battery reading.
func (m *BatteryMonitor) Info() *observable.Observable[*api.AndroidBatteryInfo] {
	return m.info
}

// Start subscribes to src and seeds the reading from the API. A missing
// headset is not an error.
func (m *BatteryMonitor) Start(ctx context.Context, src Source) (statesync.Unsubscribe, error) {
	unsubscribe := src.Watch(ctx, m.Handle)

	m.mu.Lock()
	before := m.frames
	m.mu.Unlock()

	info, err := m.api.GetBatteryInfo(ctx)
	switch {
	case errors.Is(err, api.ErrNotFound):
		m.logger.Info("No headset battery reported yet")
		return unsubscribe, nil
	case err != nil:
		unsubscribe()
		return nil, fmt.Errorf("seed battery info: %w", err)
	}

	m.mu.Lock()
	stale := m.frames != before
	m.mu.Unlock()
	if !stale {
		m.info.Set(info)
	}
	return unsubscribe, nil
}

// Handle applies one socket message.
func (m *BatteryMonitor) Handle(msg statesync.Message) {
	command, argument := msg.Command()
	if command != commands.Battery {
		return
	}
	var info api.AndroidBatteryInfo
	if !decodeArgument(m.logger, command, argument, &info) {
		return
	}
	m.mu.Lock()
	m.frames++
	m.mu.Unlock()
	m.info.Set(&info)
}

// BatteryBand buckets a charge level the way the panel colours its icon.
type BatteryBand string

const (
	BandFull     BatteryBand = "full"
	BandMedium   BatteryBand = "medium"
	BandLow      BatteryBand = "low"
	BandCritical BatteryBand = "critical"
)

// BandFor returns the band of a 0-100 level.
func BandFor(level int) BatteryBand {
	switch {
	case level >= 75:
		return BandFull
	case level >= 45:
		return BandMedium
	case level >= 15:
		return BandLow
	default:
		return BandCritical
	}
}
