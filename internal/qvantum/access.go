package qvantum

import (
	"context"
	"fmt"
)

// Access elevation is a three-step handshake against the internal auth API:
// generate a one-time access code, claim the grant with it, then approve
// the claimed grant. The resulting elevated level (writeAccessLevel >= 20)
// is temporary and entirely server-side; the client only observes it.
//
// Each step is a single API call with no internal retries. A failure at any
// step aborts the handshake and returns the error to the caller, who
// decides whether to try again on a later cycle.

// ElevateAccess obtains service-technician write access for a device.
//
// If the current level is already elevated it is returned unchanged after a
// single level fetch. Otherwise the full handshake runs and the level is
// re-fetched and returned regardless of whether it actually increased; the
// caller is responsible for noticing a silently failed elevation.
func (c *Client) ElevateAccess(ctx context.Context, deviceID string) (*AccessLevel, error) {
	level, err := c.GetAccessLevel(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if level.Elevated() {
		c.logger.Debug("Access level already sufficient",
			"component", "qvantum",
			"device_id", deviceID,
			"write_level", level.WriteAccessLevel,
		)
		return level, nil
	}

	c.logger.Info("Access level insufficient, elevating",
		"component", "qvantum",
		"device_id", deviceID,
		"write_level", level.WriteAccessLevel,
	)

	code, err := c.generateAccessCode(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access code: %w", err)
	}

	if err := c.claimGrant(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to claim grant: %w", err)
	}

	if err := c.approveAccess(ctx, deviceID, code); err != nil {
		return nil, fmt.Errorf("failed to approve access: %w", err)
	}

	updated, err := c.GetAccessLevel(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Elevated access for device",
		"component", "qvantum",
		"device_id", deviceID,
		"old_write_level", level.WriteAccessLevel,
		"new_write_level", updated.WriteAccessLevel,
	)
	return updated, nil
}

// generateAccessCode requests a one-time access code for the device.
func (c *Client) generateAccessCode(ctx context.Context, deviceID string) (string, error) {
	path := fmt.Sprintf("api/internal/v1/auth/device/%s/generate-access-code?use_internal_names=true", deviceID)
	response, err := c.post(ctx, path, map[string]any{})
	if err != nil {
		return "", err
	}

	code, _ := response["accessCode"].(string)
	if code == "" {
		return "", newAPIError("no access code in response", 0)
	}
	return code, nil
}

// claimGrant claims the grant associated with an access code.
func (c *Client) claimGrant(ctx context.Context, accessCode string) error {
	path := fmt.Sprintf("api/internal/v1/auth/device/claim-grant?access_code=%s&use_internal_names=true", accessCode)
	_, err := c.post(ctx, path, map[string]any{})
	return err
}

// approveAccess approves the claimed grant for the device.
func (c *Client) approveAccess(ctx context.Context, deviceID, accessCode string) error {
	path := fmt.Sprintf("api/internal/v1/auth/device/%s/access-grants?access_code=%s&approve=true&use_internal_names=true",
		deviceID, accessCode)
	_, err := c.post(ctx, path, map[string]any{})
	return err
}
