package storage

import (
	"context"
)

// Storage defines the interface for bridge state persistence. The only
// durable state is the per-device auto-elevate flag; everything else is
// re-fetched from the cloud after a restart.
type Storage interface {
	// GetAutoElevate returns the auto-elevate flag for a device. Unseen
	// devices default to false.
	GetAutoElevate(ctx context.Context, deviceID string) (bool, error)

	// SetAutoElevate persists the auto-elevate flag for a device.
	SetAutoElevate(ctx context.Context, deviceID string, enabled bool) error

	// Lifecycle
	Close() error
}
