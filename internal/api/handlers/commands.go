package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CommandsHandler handles command and access-control requests
type CommandsHandler struct {
	bridge Bridge
	logger *slog.Logger
}

// NewCommandsHandler creates a new commands handler
func NewCommandsHandler(bridge Bridge, logger *slog.Logger) *CommandsHandler {
	return &CommandsHandler{
		bridge: bridge,
		logger: logger,
	}
}

// SetSetting writes a single heat pump setting
// POST /devices/:id/settings
func (h *CommandsHandler) SetSetting(c *gin.Context) {
	deviceID := c.Param("id")

	var req struct {
		Name  string `json:"name" binding:"required"`
		Value any    `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	response, err := h.bridge.SetSetting(c.Request.Context(), deviceID, req.Name, req.Value)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"setting":   req.Name,
		"response":  response,
	})
}

// SetSmartControl updates the SmartControl operating modes
// POST /devices/:id/smartcontrol
func (h *CommandsHandler) SetSmartControl(c *gin.Context) {
	deviceID := c.Param("id")

	var req struct {
		SpaceHeatingMode *int `json:"space_heating_mode" binding:"required"`
		HotWaterMode     *int `json:"hot_water_mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	response, err := h.bridge.SetSmartControl(c.Request.Context(), deviceID, *req.SpaceHeatingMode, *req.HotWaterMode)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"response":  response,
	})
}

// SetExtraHotWater starts or cancels an extra hot water boost
// POST /devices/:id/extra-hot-water
func (h *CommandsHandler) SetExtraHotWater(c *gin.Context) {
	deviceID := c.Param("id")

	var req struct {
		Hours      int  `json:"hours"`
		Indefinite bool `json:"indefinite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
		return
	}
	if req.Hours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Hours must not be negative",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	response, err := h.bridge.SetExtraHotWater(c.Request.Context(), deviceID, req.Hours, req.Indefinite)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"response":  response,
	})
}

// ElevateAccess runs the access elevation handshake for a device
// POST /devices/:id/elevate
func (h *CommandsHandler) ElevateAccess(c *gin.Context) {
	deviceID := c.Param("id")

	level, err := h.bridge.ElevateAccess(c.Request.Context(), deviceID)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id":    deviceID,
		"access_level": level,
		"elevated":     level.Elevated(),
	})
}

// GetAutoElevate returns the persisted auto-elevate flag
// GET /devices/:id/auto-elevate
func (h *CommandsHandler) GetAutoElevate(c *gin.Context) {
	deviceID := c.Param("id")

	enabled, err := h.bridge.GetAutoElevate(c.Request.Context(), deviceID)
	if err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"enabled":   enabled,
	})
}

// SetAutoElevate updates the persisted auto-elevate flag
// PUT /devices/:id/auto-elevate
func (h *CommandsHandler) SetAutoElevate(c *gin.Context) {
	deviceID := c.Param("id")

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	if err := h.bridge.SetAutoElevate(c.Request.Context(), deviceID, *req.Enabled); err != nil {
		respondBridgeError(c, h.logger, deviceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"enabled":   *req.Enabled,
	})
}
