// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// The transport stores a logger carrying conn_id and remote fields under it.
type LoggerKey struct{}

// ConnIDKey is the context key type for the connection identifier.
type ConnIDKey struct{}
