// Package storage defines the common interface implemented by storage
// backend clients.
package storage

import "context"

// HealthChecker verifies a storage connection.
type HealthChecker func() error

// Client is the common surface of a storage backend client.
type Client interface {
	// Name returns the storage type identifier.
	Name() string

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the connection gracefully.
	Close() error

	// Health returns a HealthChecker for health monitoring.
	Health() HealthChecker
}
