package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"heatbridge/internal/qvantum"
)

// Kind selects the polling cadence of a coordinator.
type Kind string

const (
	// KindNormal fetches the full data set on the regular interval.
	KindNormal Kind = "normal"
	// KindFast fetches only the small volatile metric subset.
	KindFast Kind = "fast"
)

// renewalWindow is how close to elevated-access expiry the normal poller
// starts renewing proactively.
const renewalWindow = 5 * time.Minute

// ErrUpdateFailed marks a cycle that failed loudly. The previous snapshot
// stays published so observers keep last-known-good values instead of
// flipping to unknown.
var ErrUpdateFailed = errors.New("update failed")

// DeviceAPI is the slice of the cloud client the pollers need.
type DeviceAPI interface {
	GetStatus(ctx context.Context, deviceID string) (map[string]any, error)
	GetSettings(ctx context.Context, deviceID string) (map[string]any, error)
	GetInternalMetrics(ctx context.Context, deviceID string, names []string) (map[string]any, error)
	GetSettingsInventory(ctx context.Context, deviceID string) (map[string]any, error)
	GetMetricsInventory(ctx context.Context, deviceID string) (map[string]any, error)
	GetAlarms(ctx context.Context, deviceID string) (map[string]any, error)
	GetAlarmsInventory(ctx context.Context, deviceID string) (map[string]any, error)
	GetAccessLevel(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error)
	ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error)
}

// FlagStore is the read-through view of the persisted auto-elevate flag.
// Both coordinators of a device share one external key, not object state.
type FlagStore interface {
	GetAutoElevate(ctx context.Context, deviceID string) (bool, error)
}

// Snapshot is the result of one poll cycle. Immutable once built and
// published atomically; observers never see a partially filled snapshot.
// Nil maps mean the corresponding endpoint was unavailable this cycle,
// except Alarms (always present, possibly empty) and AccessLevel (always
// present, conservative default on failure).
type Snapshot struct {
	Status            map[string]any       `json:"status,omitempty"`
	Settings          map[string]any       `json:"settings,omitempty"`
	InternalMetrics   map[string]any       `json:"internal_metrics,omitempty"`
	SettingsInventory map[string]any       `json:"settings_inventory,omitempty"`
	MetricsInventory  map[string]any       `json:"metrics_inventory,omitempty"`
	Alarms            map[string]any       `json:"alarms,omitempty"`
	AlarmsInventory   map[string]any       `json:"alarms_inventory,omitempty"`
	AccessLevel       *qvantum.AccessLevel `json:"access_level,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Update is delivered to listeners after every successful publish.
type Update struct {
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"kind"`
	Snapshot *Snapshot `json:"snapshot"`
}

// Coordinator polls one device on one cadence. The normal coordinator owns
// the inventory caches and the elevation side effects; the fast coordinator
// fetches nothing but the fast metric set.
type Coordinator struct {
	api      DeviceAPI
	flags    FlagStore
	deviceID string
	kind     Kind
	logger   *slog.Logger
	now      func() time.Time

	// Inventory caches, local to a normal coordinator. Write-once: a nil
	// cache is retried every cycle until a fetch succeeds.
	settingsInventory map[string]any
	metricsInventory  map[string]any
	alarmsInventory   map[string]any

	mu          sync.RWMutex
	snapshot    *Snapshot
	lastError   error
	lastSuccess time.Time

	listenerMu sync.Mutex
	listeners  []func(Update)
}

// NewCoordinator creates a coordinator for one device and cadence.
func NewCoordinator(api DeviceAPI, flags FlagStore, deviceID string, kind Kind, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		api:      api,
		flags:    flags,
		deviceID: deviceID,
		kind:     kind,
		logger: logger.With(
			"component", "poller",
			"device_id", deviceID,
			"kind", string(kind),
		),
		now: time.Now,
	}
}

// DeviceID returns the device this coordinator polls.
func (c *Coordinator) DeviceID() string { return c.deviceID }

// Kind returns the coordinator cadence kind.
func (c *Coordinator) Kind() Kind { return c.kind }

// Snapshot returns the last successfully published snapshot, or nil before
// the first successful cycle.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LastError returns the error from the most recent cycle, or nil if it
// succeeded.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// AddListener registers a callback invoked after every successful publish.
func (c *Coordinator) AddListener(fn func(Update)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RunCycle performs one full poll cycle. On success the new snapshot is
// published atomically and listeners are notified; on loud failure the
// previous snapshot is retained and ErrUpdateFailed is returned.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	var snapshot *Snapshot
	var err error

	if c.kind == KindFast {
		snapshot, err = c.updateFast(ctx)
	} else {
		snapshot, err = c.updateNormal(ctx)
	}

	if err != nil {
		c.mu.Lock()
		c.lastError = err
		c.mu.Unlock()
		return err
	}

	snapshot.UpdatedAt = c.now()

	c.mu.Lock()
	c.snapshot = snapshot
	c.lastError = nil
	c.lastSuccess = snapshot.UpdatedAt
	c.mu.Unlock()

	c.notify(Update{DeviceID: c.deviceID, Kind: c.kind, Snapshot: snapshot})
	return nil
}

func (c *Coordinator) notify(update Update) {
	c.listenerMu.Lock()
	listeners := make([]func(Update), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
}

// autoElevateEnabled reads the persisted flag. Store failures are treated
// as false so a broken database never blocks polling.
func (c *Coordinator) autoElevateEnabled(ctx context.Context) bool {
	enabled, err := c.flags.GetAutoElevate(ctx, c.deviceID)
	if err != nil {
		c.logger.Warn("Could not read auto-elevate flag", "error", err)
		return false
	}
	return enabled
}

// updateFast fetches only the fast metric set. Transient server failures
// fail the cycle loudly; any other failure yields a snapshot without the
// metrics key.
func (c *Coordinator) updateFast(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}

	metrics, err := c.api.GetInternalMetrics(ctx, c.deviceID, qvantum.FastMetricNames)
	if err != nil {
		if qvantum.IsTransientServerError(err) {
			c.logger.Warn("Transient server error fetching fast metrics, previous values retained", "error", err)
			return nil, fmt.Errorf("%w: transient server error: %v", ErrUpdateFailed, err)
		}
		c.logger.Error("Error fetching fast metrics", "error", err)
		return snapshot, nil
	}

	snapshot.InternalMetrics = metrics
	return snapshot, nil
}

// updateNormal runs the full fetch sequence. Each fetch is independently
// fault-isolated: a failure is logged and its key omitted, except internal
// metrics (transient failures abort the cycle), alarms (failure becomes an
// empty list) and access level (failure becomes a conservative default).
func (c *Coordinator) updateNormal(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}
	autoElevate := c.autoElevateEnabled(ctx)

	// Pre-emptive elevation so advanced settings are readable this cycle.
	// Best-effort: the cycle proceeds on any failure here.
	if autoElevate {
		if level, err := c.api.GetAccessLevel(ctx, c.deviceID); err != nil {
			c.logger.Debug("Could not check access level", "error", err)
		} else if !level.Elevated() {
			c.logger.Debug("Auto-elevate enabled but access is insufficient, elevating",
				"write_level", level.WriteAccessLevel,
			)
			if _, err := c.api.ElevateAccess(ctx, c.deviceID); err != nil {
				c.logger.Debug("Could not elevate access", "error", err)
			}
		}
	}

	// Status and settings are optional endpoints; not every device exposes
	// them, so absence is not an error.
	if status, err := c.api.GetStatus(ctx, c.deviceID); err != nil {
		c.logger.Debug("Status endpoint not available", "error", err)
	} else {
		snapshot.Status = status
	}

	if settings, err := c.api.GetSettings(ctx, c.deviceID); err != nil {
		c.logger.Debug("Settings endpoint not available", "error", err)
	} else {
		snapshot.Settings = settings
	}

	if metrics, err := c.api.GetInternalMetrics(ctx, c.deviceID, qvantum.MetricNames); err != nil {
		if qvantum.IsTransientServerError(err) {
			c.logger.Warn("Transient server error fetching internal metrics, previous values retained", "error", err)
			return nil, fmt.Errorf("%w: transient server error: %v", ErrUpdateFailed, err)
		}
		c.logger.Error("Error fetching internal metrics", "error", err)
	} else {
		snapshot.InternalMetrics = metrics
	}

	// Inventories change only with firmware updates; fetch each once per
	// process and retry only while the cache is still empty.
	if c.settingsInventory == nil {
		if inventory, err := c.api.GetSettingsInventory(ctx, c.deviceID); err != nil {
			c.logger.Error("Error fetching settings inventory", "error", err)
		} else {
			c.settingsInventory = inventory
		}
	}
	snapshot.SettingsInventory = c.settingsInventory

	if c.metricsInventory == nil {
		if inventory, err := c.api.GetMetricsInventory(ctx, c.deviceID); err != nil {
			c.logger.Error("Error fetching metrics inventory", "error", err)
		} else {
			c.metricsInventory = inventory
		}
	}
	snapshot.MetricsInventory = c.metricsInventory

	// Alarms must never be missing, only empty.
	if alarms, err := c.api.GetAlarms(ctx, c.deviceID); err != nil {
		c.logger.Error("Error fetching alarms", "error", err)
		snapshot.Alarms = map[string]any{"alarms": []any{}}
	} else {
		snapshot.Alarms = alarms
	}

	if c.alarmsInventory == nil {
		if inventory, err := c.api.GetAlarmsInventory(ctx, c.deviceID); err != nil {
			c.logger.Error("Error fetching alarms inventory", "error", err)
		} else {
			c.alarmsInventory = inventory
		}
	}
	snapshot.AlarmsInventory = c.alarmsInventory

	if level, err := c.api.GetAccessLevel(ctx, c.deviceID); err != nil {
		c.logger.Debug("Error fetching access level", "error", err)
		// Assume normal user level rather than dropping the key.
		snapshot.AccessLevel = &qvantum.AccessLevel{ReadAccessLevel: 10, WriteAccessLevel: 10}
	} else {
		snapshot.AccessLevel = level
		if autoElevate {
			c.maybeRenewElevation(ctx, snapshot)
		}
	}

	return snapshot, nil
}

// maybeRenewElevation re-runs the elevation handshake when elevated access
// is about to expire, so write access never lapses while auto-elevate is
// on. Renewal failures are logged, never escalated.
func (c *Coordinator) maybeRenewElevation(ctx context.Context, snapshot *Snapshot) {
	level := snapshot.AccessLevel
	if !level.Elevated() || level.ExpiresAt == "" {
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, level.ExpiresAt)
	if err != nil {
		c.logger.Debug("Could not parse access expiry", "expires_at", level.ExpiresAt, "error", err)
		return
	}

	untilExpiry := expiresAt.Sub(c.now())
	if untilExpiry <= 0 || untilExpiry >= renewalWindow {
		return
	}

	c.logger.Info("Elevated access expiring soon, renewing",
		"expires_in", untilExpiry.Round(time.Second).String(),
	)

	renewed, err := c.api.ElevateAccess(ctx, c.deviceID)
	if err != nil {
		c.logger.Warn("Failed to renew elevated access", "error", err)
		return
	}
	snapshot.AccessLevel = renewed
	c.logger.Info("Elevated access renewed", "new_expiry", renewed.ExpiresAt)
}
