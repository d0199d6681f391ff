package qvantum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default service endpoints. The internal API shares a host with the public
// API in production but is configurable separately because the paths are
// versioned independently.
const (
	DefaultAPIEndpoint         = "https://api.qvantum.com"
	DefaultInternalAPIEndpoint = "https://api.qvantum.com"
	DefaultAuthServer          = "https://identitytoolkit.googleapis.com"
	DefaultTokenServer         = "https://securetoken.googleapis.com"

	requestTimeout = 30 * time.Second
	userAgent      = "heatbridge"
)

// Credentials identifies a Qvantum cloud account. Immutable for the
// lifetime of a Client.
type Credentials struct {
	Email               string
	Password            string
	APIKey              string
	APIEndpoint         string
	InternalAPIEndpoint string
	AuthServer          string
	TokenServer         string
}

// Device is one heat pump on the account.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
}

// AccessLevel is the server-side permission tier for one device. Write
// access of 20 or more denotes elevated (service technician) access.
type AccessLevel struct {
	ReadAccessLevel  int    `json:"readAccessLevel"`
	WriteAccessLevel int    `json:"writeAccessLevel"`
	ExpiresAt        string `json:"expiresAt"`
}

// ElevatedWriteLevel is the write access level required for advanced
// settings commands.
const ElevatedWriteLevel = 20

// Elevated reports whether the level grants service-technician write access.
func (a *AccessLevel) Elevated() bool {
	return a != nil && a.WriteAccessLevel >= ElevatedWriteLevel
}

// Client is a client for the Qvantum cloud API. It owns the bearer-token
// lifecycle and classifies failures into the package error taxonomy. Safe
// for concurrent use by the fast and normal pollers of every device.
type Client struct {
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger

	tokenMu     sync.Mutex
	tokens      *tokenSet
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient creates a new Qvantum API client. Empty endpoint fields fall
// back to the production defaults.
func NewClient(creds Credentials, logger *slog.Logger) *Client {
	if creds.APIEndpoint == "" {
		creds.APIEndpoint = DefaultAPIEndpoint
	}
	if creds.InternalAPIEndpoint == "" {
		creds.InternalAPIEndpoint = DefaultInternalAPIEndpoint
	}
	if creds.AuthServer == "" {
		creds.AuthServer = DefaultAuthServer
	}
	if creds.TokenServer == "" {
		creds.TokenServer = DefaultTokenServer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// doRequest performs one HTTP request and decodes the JSON response into
// result. With authenticated set, a valid bearer token is ensured first and
// attached. Empty 2xx bodies leave result untouched. No retries happen at
// this layer; retry policy belongs to callers.
func (c *Client) doRequest(ctx context.Context, method, url string, body any, result any, authenticated bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return newAPIError(fmt.Sprintf("failed to marshal request: %v", err), 0)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return newAPIError(fmt.Sprintf("failed to create request: %v", err), 0)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if authenticated {
		token, err := c.ensureValidTokens(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("API request",
		"component", "qvantum",
		"method", method,
		"url", url,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return newConnectionError(fmt.Sprintf("Request timeout: %v", err), 0)
		}
		return newAPIError(fmt.Sprintf("API error: %v", err), 0)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newAPIError(fmt.Sprintf("failed to read response: %v", err), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return newAuthError("Authentication failed")
		case resp.StatusCode >= 500:
			return newConnectionError(fmt.Sprintf("Server error %d", resp.StatusCode), resp.StatusCode)
		default:
			return newAPIError(fmt.Sprintf("API error %d: %s", resp.StatusCode, string(respBody)), resp.StatusCode)
		}
	}

	// Some endpoints return empty bodies on success (e.g. approve access).
	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return newAPIError(fmt.Sprintf("failed to unmarshal response: %v", err), resp.StatusCode)
		}
	}
	return nil
}

// get performs an authenticated GET against the public API.
func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doRequest(ctx, "GET", c.creds.APIEndpoint+"/"+path, nil, result, true)
}

// getInternal performs an authenticated GET against the internal API.
func (c *Client) getInternal(ctx context.Context, path string, result any) error {
	return c.doRequest(ctx, "GET", c.creds.InternalAPIEndpoint+"/"+path, nil, result, true)
}

// post performs an authenticated POST against the public API and returns
// the decoded response, or an empty map for 2xx-with-empty-body responses.
func (c *Client) post(ctx context.Context, path string, body any) (map[string]any, error) {
	result := map[string]any{}
	if err := c.doRequest(ctx, "POST", c.creds.APIEndpoint+"/"+path, body, &result, true); err != nil {
		return nil, err
	}
	return result, nil
}

// GetDevices returns all devices on the account.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var response struct {
		Devices []Device `json:"devices"`
	}
	if err := c.get(ctx, "api/inventory/v1/users/me/devices", &response); err != nil {
		return nil, err
	}
	c.logger.Info("Found devices", "component", "qvantum", "count", len(response.Devices))
	return response.Devices, nil
}

// GetStatus returns the device status. Not every device supports this
// endpoint; callers treat failures as absence.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/device-info/v1/devices/%s/status?metrics=now", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSettings returns the current device settings.
func (c *Client) GetSettings(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/device-info/v1/devices/%s/settings", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSettingsInventory returns the catalog of available settings and their
// metadata. The inventory rarely changes; pollers cache it.
func (c *Client) GetSettingsInventory(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/inventory/v1/devices/%s/settings", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetMetricsInventory returns the catalog of available metrics.
func (c *Client) GetMetricsInventory(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/inventory/v1/devices/%s/metrics", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetInternalMetrics fetches current values for the named internal metrics
// in one batched request.
func (c *Client) GetInternalMetrics(ctx context.Context, deviceID string, names []string) (map[string]any, error) {
	params := make([]string, 0, len(names))
	for _, name := range names {
		params = append(params, "names="+name)
	}
	path := fmt.Sprintf("api/internal/v1/devices/%s/values?use_internal_names=true&timeout=12&%s",
		deviceID, strings.Join(params, "&"))

	result := map[string]any{}
	if err := c.getInternal(ctx, path, &result); err != nil {
		return nil, err
	}
	// The endpoint wraps the readings in a values object.
	if values, ok := result["values"].(map[string]any); ok {
		return values, nil
	}
	return result, nil
}

// GetAlarms returns the active alarms for a device.
func (c *Client) GetAlarms(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/events/v1/devices/%s/alarms", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAlarmsInventory returns the catalog of possible alarms.
func (c *Client) GetAlarmsInventory(ctx context.Context, deviceID string) (map[string]any, error) {
	result := map[string]any{}
	path := fmt.Sprintf("api/inventory/v1/devices/%s/alarms", deviceID)
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAccessLevel returns the caller's current access level for a device.
func (c *Client) GetAccessLevel(ctx context.Context, deviceID string) (*AccessLevel, error) {
	var level AccessLevel
	path := fmt.Sprintf("api/internal/v1/auth/device/%s/my-access-level?use_internal_names=true", deviceID)
	if err := c.getInternal(ctx, path, &level); err != nil {
		return nil, err
	}
	return &level, nil
}
