// Package pkg provides shared utilities for the usbengine protocol engine.
//
// This package contains common functionality used across the engine,
// including:
//
//   - Structured logging via [github.com/apex/log]
//   - Sentinel error types for USB protocol errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [github.com/apex/log] with engine-specific
// context:
//
//	pkg.SetLogLevel(log.DebugLevel)
//	pkg.LogInfo(pkg.ComponentDevice, "device configured", "config", 1)
//
// # Errors
//
// Common USB errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrStall) {
//	    // Handle endpoint stall
//	}
package pkg
