package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"heatbridge/internal/bridge"
	"heatbridge/internal/poller"
	"heatbridge/internal/qvantum"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBridge struct {
	devices     []qvantum.Device
	snapshot    *poller.Snapshot
	snapshotErr error
	lastError   error

	refreshed   []poller.Kind
	autoElevate bool
	setFlag     *bool

	accessLevel *qvantum.AccessLevel
	elevateErr  error

	commandResponse map[string]any
	commandErr      error

	setName    string
	setValue   any
	shMode     int
	dhwMode    int
	ehwHours   int
	ehwForever bool
}

func (m *mockBridge) Devices() []qvantum.Device { return m.devices }

func (m *mockBridge) Snapshot(deviceID string, kind poller.Kind) (*poller.Snapshot, error) {
	if deviceID == "missing" {
		return nil, bridge.ErrDeviceNotFound
	}
	return m.snapshot, m.snapshotErr
}

func (m *mockBridge) LastError(deviceID string, kind poller.Kind) (error, error) {
	return m.lastError, nil
}

func (m *mockBridge) RequestRefresh(deviceID string, kind poller.Kind) error {
	if deviceID == "missing" {
		return bridge.ErrDeviceNotFound
	}
	m.refreshed = append(m.refreshed, kind)
	return nil
}

func (m *mockBridge) GetAutoElevate(ctx context.Context, deviceID string) (bool, error) {
	if deviceID == "missing" {
		return false, bridge.ErrDeviceNotFound
	}
	return m.autoElevate, nil
}

func (m *mockBridge) SetAutoElevate(ctx context.Context, deviceID string, enabled bool) error {
	if deviceID == "missing" {
		return bridge.ErrDeviceNotFound
	}
	m.setFlag = &enabled
	return nil
}

func (m *mockBridge) ElevateAccess(ctx context.Context, deviceID string) (*qvantum.AccessLevel, error) {
	if m.elevateErr != nil {
		return nil, m.elevateErr
	}
	return m.accessLevel, nil
}

func (m *mockBridge) SetSetting(ctx context.Context, deviceID, name string, value any) (map[string]any, error) {
	m.setName = name
	m.setValue = value
	return m.commandResponse, m.commandErr
}

func (m *mockBridge) SetSmartControl(ctx context.Context, deviceID string, spaceHeating, hotWater int) (map[string]any, error) {
	m.shMode = spaceHeating
	m.dhwMode = hotWater
	return m.commandResponse, m.commandErr
}

func (m *mockBridge) SetExtraHotWater(ctx context.Context, deviceID string, hours int, indefinite bool) (map[string]any, error) {
	m.ehwHours = hours
	m.ehwForever = indefinite
	return m.commandResponse, m.commandErr
}

func testRouter(b Bridge) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))

	router := gin.New()
	devices := NewDevicesHandler(b, logger)
	commands := NewCommandsHandler(b, logger)
	health := NewHealthHandler()

	router.GET("/health", health.GetHealth)
	router.GET("/devices", devices.ListDevices)
	router.GET("/devices/:id/snapshot", devices.GetSnapshot)
	router.GET("/devices/:id/snapshot/fast", devices.GetFastSnapshot)
	router.POST("/devices/:id/refresh", devices.RequestRefresh)
	router.POST("/devices/:id/settings", commands.SetSetting)
	router.POST("/devices/:id/smartcontrol", commands.SetSmartControl)
	router.POST("/devices/:id/extra-hot-water", commands.SetExtraHotWater)
	router.POST("/devices/:id/elevate", commands.ElevateAccess)
	router.GET("/devices/:id/auto-elevate", commands.GetAutoElevate)
	router.PUT("/devices/:id/auto-elevate", commands.SetAutoElevate)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestGetHealth(t *testing.T) {
	router := testRouter(&mockBridge{})

	recorder := doRequest(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "heatbridge", body["service"])
}

func TestListDevices(t *testing.T) {
	mock := &mockBridge{
		devices: []qvantum.Device{
			{ID: "hp-1", Name: "Garage", Model: "QE12", Serial: "A100"},
			{ID: "hp-2", Name: "House", Model: "QE15", Serial: "A200"},
		},
	}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodGet, "/devices", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "hp-1", body[0]["id"])
	assert.Equal(t, "Garage", body[0]["name"])
	assert.Equal(t, "QE15", body[1]["model"])
}

func TestGetSnapshot_DeviceNotFound(t *testing.T) {
	router := testRouter(&mockBridge{})

	recorder := doRequest(t, router, http.MethodGet, "/devices/missing/snapshot", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "DEVICE_NOT_FOUND", body["code"])
}

func TestGetSnapshot_NotReadyBeforeFirstCycle(t *testing.T) {
	router := testRouter(&mockBridge{snapshot: nil})

	recorder := doRequest(t, router, http.MethodGet, "/devices/hp-1/snapshot", nil)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "NOT_READY", body["code"])
}

func TestGetSnapshot_ReturnsDataAndLastError(t *testing.T) {
	mock := &mockBridge{
		snapshot: &poller.Snapshot{
			Status:    map[string]any{"mode": "heating"},
			UpdatedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		},
		lastError: assert.AnError,
	}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodGet, "/devices/hp-1/snapshot", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "hp-1", body["device_id"])
	assert.Equal(t, "normal", body["kind"])
	assert.NotEmpty(t, body["last_error"])
	data := body["data"].(map[string]any)
	status := data["status"].(map[string]any)
	assert.Equal(t, "heating", status["mode"])
}

func TestGetFastSnapshot_UsesFastKind(t *testing.T) {
	mock := &mockBridge{
		snapshot: &poller.Snapshot{InternalMetrics: map[string]any{"powertotal": 1.5}},
	}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodGet, "/devices/hp-1/snapshot/fast", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "fast", body["kind"])
}

func TestRequestRefresh(t *testing.T) {
	mock := &mockBridge{}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/refresh", nil)
	assert.Equal(t, http.StatusAccepted, recorder.Code)

	recorder = doRequest(t, router, http.MethodPost, "/devices/hp-1/refresh?kind=fast", nil)
	assert.Equal(t, http.StatusAccepted, recorder.Code)

	assert.Equal(t, []poller.Kind{poller.KindNormal, poller.KindFast}, mock.refreshed)
}

func TestSetSetting(t *testing.T) {
	mock := &mockBridge{commandResponse: map[string]any{"response": map[string]any{"tap_water_capacity_target": "ok"}}}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/settings", gin.H{
		"name":  "tap_water_capacity_target",
		"value": 60,
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "tap_water_capacity_target", mock.setName)
	assert.Equal(t, float64(60), mock.setValue)
	body := decodeBody(t, recorder)
	assert.Equal(t, "tap_water_capacity_target", body["setting"])
}

func TestSetSetting_MissingName(t *testing.T) {
	router := testRouter(&mockBridge{})

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/settings", gin.H{"value": 60})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestSetSetting_UpstreamError(t *testing.T) {
	mock := &mockBridge{
		commandErr: &qvantum.ConnectionError{APIError: qvantum.APIError{Message: "Server error 502", StatusCode: 502}},
	}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/settings", gin.H{
		"name":  "tap_water_capacity_target",
		"value": 60,
	})

	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "UPSTREAM_ERROR", body["code"])
}

func TestSetSmartControl(t *testing.T) {
	mock := &mockBridge{commandResponse: map[string]any{}}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/smartcontrol", gin.H{
		"space_heating_mode": 1,
		"hot_water_mode":     2,
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, mock.shMode)
	assert.Equal(t, 2, mock.dhwMode)
}

func TestSetSmartControl_AcceptsDisableValues(t *testing.T) {
	mock := &mockBridge{commandResponse: map[string]any{}}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/smartcontrol", gin.H{
		"space_heating_mode": -1,
		"hot_water_mode":     -1,
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, -1, mock.shMode)
	assert.Equal(t, -1, mock.dhwMode)
}

func TestSetExtraHotWater(t *testing.T) {
	mock := &mockBridge{commandResponse: map[string]any{}}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/extra-hot-water", gin.H{
		"hours": 3,
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 3, mock.ehwHours)
	assert.False(t, mock.ehwForever)
}

func TestSetExtraHotWater_RejectsNegativeHours(t *testing.T) {
	router := testRouter(&mockBridge{})

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/extra-hot-water", gin.H{
		"hours": -2,
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestElevateAccess(t *testing.T) {
	mock := &mockBridge{
		accessLevel: &qvantum.AccessLevel{ReadAccessLevel: 20, WriteAccessLevel: 20, ExpiresAt: "2026-08-28T12:00:00Z"},
	}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodPost, "/devices/hp-1/elevate", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, true, body["elevated"])
	level := body["access_level"].(map[string]any)
	assert.Equal(t, float64(20), level["writeAccessLevel"])
}

func TestAutoElevateRoundTrip(t *testing.T) {
	mock := &mockBridge{autoElevate: false}
	router := testRouter(mock)

	recorder := doRequest(t, router, http.MethodGet, "/devices/hp-1/auto-elevate", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, false, body["enabled"])

	recorder = doRequest(t, router, http.MethodPut, "/devices/hp-1/auto-elevate", gin.H{"enabled": true})
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, mock.setFlag)
	assert.True(t, *mock.setFlag)
}

func TestSetAutoElevate_MissingField(t *testing.T) {
	router := testRouter(&mockBridge{})

	recorder := doRequest(t, router, http.MethodPut, "/devices/hp-1/auto-elevate", gin.H{})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
