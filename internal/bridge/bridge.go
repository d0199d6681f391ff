package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"heatbridge/internal/poller"
	"heatbridge/internal/qvantum"
	"heatbridge/internal/storage"
)

var (
	ErrDeviceNotFound      = errors.New("device not found")
	ErrFastPollingDisabled = errors.New("fast polling is disabled")
)

// CloudAPI is the command-and-elevation slice of the Qvantum client the
// bridge forwards to. Polling goes through the coordinators, not here.
type CloudAPI interface {
	ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error)
	SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error)
	SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error)
	SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error)
}

// deviceEntry groups everything the bridge runs for one heat pump.
type deviceEntry struct {
	device       qvantum.Device
	normal       *poller.Coordinator
	fast         *poller.Coordinator
	normalRunner *poller.Runner
	fastRunner   *poller.Runner
}

// Bridge aggregates the per-device pollers and exposes the control surface
// consumed by the REST layer: snapshots, commands, elevation, the
// auto-elevate flag and immediate-refresh requests.
type Bridge struct {
	api     CloudAPI
	store   storage.Storage
	entries map[string]*deviceEntry
	order   []string
	logger  *slog.Logger
}

// New creates an empty bridge. Devices are registered during startup.
func New(api CloudAPI, store storage.Storage, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		api:     api,
		store:   store,
		entries: make(map[string]*deviceEntry),
		logger:  logger.With("component", "bridge"),
	}
}

// AddDevice registers a device with its two coordinators and runners.
// Called once per device at startup, before the HTTP server starts.
func (b *Bridge) AddDevice(device qvantum.Device, normal, fast *poller.Coordinator, normalRunner, fastRunner *poller.Runner) {
	b.entries[device.ID] = &deviceEntry{
		device:       device,
		normal:       normal,
		fast:         fast,
		normalRunner: normalRunner,
		fastRunner:   fastRunner,
	}
	b.order = append(b.order, device.ID)
}

// Devices returns the devices in registration order.
func (b *Bridge) Devices() []qvantum.Device {
	devices := make([]qvantum.Device, 0, len(b.order))
	for _, id := range b.order {
		devices = append(devices, b.entries[id].device)
	}
	return devices
}

func (b *Bridge) entry(deviceID string) (*deviceEntry, error) {
	entry, ok := b.entries[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return entry, nil
}

func (b *Bridge) coordinator(entry *deviceEntry, kind poller.Kind) (*poller.Coordinator, error) {
	if kind == poller.KindFast {
		if entry.fast == nil {
			return nil, ErrFastPollingDisabled
		}
		return entry.fast, nil
	}
	return entry.normal, nil
}

// Snapshot returns the latest published snapshot for a device and cadence.
// Nil before the first successful cycle.
func (b *Bridge) Snapshot(deviceID string, kind poller.Kind) (*poller.Snapshot, error) {
	entry, err := b.entry(deviceID)
	if err != nil {
		return nil, err
	}
	coordinator, err := b.coordinator(entry, kind)
	if err != nil {
		return nil, err
	}
	return coordinator.Snapshot(), nil
}

// LastError returns the most recent cycle error for a device and cadence.
func (b *Bridge) LastError(deviceID string, kind poller.Kind) (error, error) {
	entry, err := b.entry(deviceID)
	if err != nil {
		return nil, err
	}
	coordinator, err := b.coordinator(entry, kind)
	if err != nil {
		return nil, err
	}
	return coordinator.LastError(), nil
}

// RequestRefresh schedules an immediate poll cycle.
func (b *Bridge) RequestRefresh(deviceID string, kind poller.Kind) error {
	entry, err := b.entry(deviceID)
	if err != nil {
		return err
	}
	if kind == poller.KindFast {
		if entry.fastRunner == nil {
			return ErrFastPollingDisabled
		}
		entry.fastRunner.RequestRefresh()
	} else {
		entry.normalRunner.RequestRefresh()
	}
	return nil
}

// GetAutoElevate returns the persisted auto-elevate flag for a device.
func (b *Bridge) GetAutoElevate(ctx context.Context, deviceID string) (bool, error) {
	if _, err := b.entry(deviceID); err != nil {
		return false, err
	}
	return b.store.GetAutoElevate(ctx, deviceID)
}

// SetAutoElevate persists the auto-elevate flag. The pollers read the flag
// through the store each cycle, so the change takes effect on the next
// normal cycle without restarting anything.
func (b *Bridge) SetAutoElevate(ctx context.Context, deviceID string, enabled bool) error {
	entry, err := b.entry(deviceID)
	if err != nil {
		return err
	}
	if err := b.store.SetAutoElevate(ctx, deviceID, enabled); err != nil {
		return err
	}
	b.logger.Info("Auto-elevate flag updated", "device_id", deviceID, "enabled", enabled)

	// An enable should take effect promptly, not on the next 30s tick.
	if enabled {
		entry.normalRunner.RequestRefresh()
	}
	return nil
}

// ElevateAccess manually triggers the elevation handshake for a device.
func (b *Bridge) ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error) {
	if _, err := b.entry(deviceID); err != nil {
		return nil, err
	}
	return b.api.ElevateAccess(ctx, deviceID)
}

// SetSetting forwards a setting update and refreshes the normal poller so
// observers see the new value without waiting a full interval.
func (b *Bridge) SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error) {
	entry, err := b.entry(deviceID)
	if err != nil {
		return nil, err
	}
	response, err := b.api.SetSetting(ctx, deviceID, name, value)
	if err != nil {
		b.logger.Error("Failed to set setting", "device_id", deviceID, "setting", name, "error", err)
		return nil, err
	}
	entry.normalRunner.RequestRefresh()
	return response, nil
}

// SetSmartControl forwards a SmartControl update.
func (b *Bridge) SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error) {
	entry, err := b.entry(deviceID)
	if err != nil {
		return nil, err
	}
	response, err := b.api.SetSmartControl(ctx, deviceID, spaceHeating, hotWater)
	if err != nil {
		b.logger.Error("Failed to set SmartControl", "device_id", deviceID, "error", err)
		return nil, err
	}
	entry.normalRunner.RequestRefresh()
	return response, nil
}

// SetExtraHotWater forwards an extra-hot-water command.
func (b *Bridge) SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error) {
	entry, err := b.entry(deviceID)
	if err != nil {
		return nil, err
	}
	response, err := b.api.SetExtraHotWater(ctx, deviceID, hours, indefinite)
	if err != nil {
		b.logger.Error("Failed to set extra hot water", "device_id", deviceID, "error", err)
		return nil, err
	}
	entry.normalRunner.RequestRefresh()
	return response, nil
}
