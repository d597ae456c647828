// Package logging provides structured logging for the fieldlink agent.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the agent. It provides both general logging functions
// and specialized functions for manager-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (blob hex dumps, request claims, scan results)
//   - Info: Normal operations (state transitions, network selection, announcements)
//   - Warn: Non-fatal issues (association drops, retries, fallback to defaults)
//   - Error: Fatal issues (startup failures, rejected transitions)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Network selected",
//	    zap.String("ssid", "barn-north"),
//	    zap.Int("rssi", -52),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogTransition("wifi", "none", "sta")
//	logging.LogRequest("persist", "write")
//	logging.LogBlob("Encoded configuration", blob)
//
// # Configuration
//
// Initialize logging at agent startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// The persisted unit configuration carries its own log level; once loaded,
// the persistence manager applies it with SetLevel, so a unit's verbosity
// follows its stored configuration across reboots.
//
// # Output Format
//
// Logs are written to stdout in console format (human-readable):
//
//	2026-08-25T10:30:45.123-0800  INFO  State transition
//	  manager=wifi from=none to=sta
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
