// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so a host process can keep stdout for
// its own output.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Session started", zap.String("sink", "net"))
//	logger.Warn("Delivery failed", zap.Error(err))
package logging
