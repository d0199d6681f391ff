package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"heatbridge/internal/bridge"
	"heatbridge/internal/poller"
	"heatbridge/internal/qvantum"

	"github.com/gin-gonic/gin"
)

// Bridge is the control surface the handlers consume.
type Bridge interface {
	Devices() []qvantum.Device
	Snapshot(deviceID string, kind poller.Kind) (*poller.Snapshot, error)
	LastError(deviceID string, kind poller.Kind) (error, error)
	RequestRefresh(deviceID string, kind poller.Kind) error
	GetAutoElevate(ctx context.Context, deviceID string) (bool, error)
	SetAutoElevate(ctx context.Context, deviceID string, enabled bool) error
	ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error)
	SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error)
	SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error)
	SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error)
}

// DevicesHandler handles device listing and snapshot requests
type DevicesHandler struct {
	bridge Bridge
	logger *slog.Logger
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(bridge Bridge, logger *slog.Logger) *DevicesHandler {
	return &DevicesHandler{
		bridge: bridge,
		logger: logger,
	}
}

// ListDevices returns all registered heat pumps
// GET /devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	devices := h.bridge.Devices()

	response := make([]gin.H, 0, len(devices))
	for _, device := range devices {
		response = append(response, gin.H{
			"id":     device.ID,
			"name":   device.Name,
			"model":  device.Model,
			"serial": device.Serial,
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetSnapshot returns the latest normal-cadence snapshot for a device
// GET /devices/:id/snapshot
func (h *DevicesHandler) GetSnapshot(c *gin.Context) {
	h.snapshot(c, poller.KindNormal)
}

// GetFastSnapshot returns the latest fast-cadence snapshot for a device
// GET /devices/:id/snapshot/fast
func (h *DevicesHandler) GetFastSnapshot(c *gin.Context) {
	h.snapshot(c, poller.KindFast)
}

func (h *DevicesHandler) snapshot(c *gin.Context, kind poller.Kind) {
	deviceID := c.Param("id")

	snapshot, err := h.bridge.Snapshot(deviceID, kind)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No data available yet",
			"code":  "NOT_READY",
		})
		return
	}

	lastError, _ := h.bridge.LastError(deviceID, kind)
	response := gin.H{
		"device_id": deviceID,
		"kind":      string(kind),
		"data":      snapshot,
	}
	if lastError != nil {
		response["last_error"] = lastError.Error()
	}

	c.JSON(http.StatusOK, response)
}

// RequestRefresh schedules an immediate poll cycle for a device
// POST /devices/:id/refresh
func (h *DevicesHandler) RequestRefresh(c *gin.Context) {
	deviceID := c.Param("id")

	kind := poller.KindNormal
	if c.Query("kind") == string(poller.KindFast) {
		kind = poller.KindFast
	}

	if err := h.bridge.RequestRefresh(deviceID, kind); err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"device_id": deviceID,
		"kind":      string(kind),
		"status":    "refresh scheduled",
	})
}

// respondBridgeError maps bridge errors to HTTP responses.
func respondBridgeError(c *gin.Context, logger *slog.Logger, deviceID string, err error) {
	if errors.Is(err, bridge.ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Device not found",
			"code":  "DEVICE_NOT_FOUND",
		})
		return
	}

	if errors.Is(err, bridge.ErrFastPollingDisabled) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Fast polling is disabled",
			"code":  "FAST_POLLING_DISABLED",
		})
		return
	}

	var connErr *qvantum.ConnectionError
	var authErr *qvantum.AuthenticationError
	if errors.As(err, &connErr) || errors.As(err, &authErr) {
		logger.Error("Cloud request failed",
			"component", "api",
			"device_id", deviceID,
			"error", err,
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Cloud request failed: " + err.Error(),
			"code":  "UPSTREAM_ERROR",
		})
		return
	}

	logger.Error("Bridge operation failed",
		"component", "api",
		"device_id", deviceID,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal error",
		"code":  "INTERNAL_ERROR",
	})
}
