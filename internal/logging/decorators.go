package logging

import (
	"context"
	"log/slog"
	"time"

	"heatbridge/internal/qvantum"
)

// CommandAPI is the command surface that gets call/duration logging. The
// concrete implementation is the Qvantum client; the bridge consumes the
// decorated value through its own interface.
type CommandAPI interface {
	ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error)
	SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error)
	SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error)
	SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error)
}

// CommandLogger wraps a CommandAPI and logs every call with its outcome
// and duration. Commands are user-initiated and infrequent, so each one is
// worth an info-level record.
type CommandLogger struct {
	api    CommandAPI
	logger *slog.Logger
}

// NewCommandLogger creates a logging decorator for the command surface.
func NewCommandLogger(api CommandAPI, logger *slog.Logger) *CommandLogger {
	return &CommandLogger{
		api:    api,
		logger: logger.With("interface", "CommandAPI"),
	}
}

func (l *CommandLogger) ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error) {
	start := time.Now()
	l.logger.Info("ElevateAccess called", "device_id", deviceID)

	level, err := l.api.ElevateAccess(ctx, deviceID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("ElevateAccess failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("ElevateAccess completed",
		"device_id", deviceID,
		"write_level", level.WriteAccessLevel,
		"duration", duration)
	return level, nil
}

func (l *CommandLogger) SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error) {
	start := time.Now()
	l.logger.Info("SetSetting called",
		"device_id", deviceID,
		"setting", name,
		"value", value)

	response, err := l.api.SetSetting(ctx, deviceID, name, value)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SetSetting failed",
			"device_id", deviceID,
			"setting", name,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("SetSetting completed",
		"device_id", deviceID,
		"setting", name,
		"duration", duration)
	return response, nil
}

func (l *CommandLogger) SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error) {
	start := time.Now()
	l.logger.Info("SetSmartControl called",
		"device_id", deviceID,
		"space_heating_mode", spaceHeating,
		"hot_water_mode", hotWater)

	response, err := l.api.SetSmartControl(ctx, deviceID, spaceHeating, hotWater)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SetSmartControl failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("SetSmartControl completed",
		"device_id", deviceID,
		"duration", duration)
	return response, nil
}

func (l *CommandLogger) SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error) {
	start := time.Now()
	l.logger.Info("SetExtraHotWater called",
		"device_id", deviceID,
		"hours", hours,
		"indefinite", indefinite)

	response, err := l.api.SetExtraHotWater(ctx, deviceID, hours, indefinite)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("SetExtraHotWater failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info("SetExtraHotWater completed",
		"device_id", deviceID,
		"duration", duration)
	return response, nil
}
