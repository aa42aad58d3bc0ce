// Package logging provides structured logging for the esplink CLI.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used by the command-line tool. The library packages take an
// injected *zap.Logger instead; this package exists so the commands share
// one logger and one verbosity switch.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame hex dumps, request correlation)
//   - Info: Normal operations (connect, authenticate, session lifecycle)
//   - Warn: Non-fatal issues (decode failures on unsolicited messages)
//   - Error: Fatal issues (handshake failures, transport errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device connected",
//	    zap.String("address", "192.168.1.100:6053"),
//	    zap.String("name", "garden-lights"),
//	    zap.String("esphome_version", "2025.6.0"),
//	)
//
// # Frame Debugging
//
// LogFrame emits capped hex and ascii dumps at debug level for wire
// analysis:
//
//	logging.LogFrame("recv", uint32(msgType), payload)
//
// # Configuration
//
// Commands initialize from the ESPLINK_LOG_LEVEL environment variable at
// startup; unset means silent, so normal CLI output stays clean:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Logs go to stderr in console format, keeping stdout free for command
// output.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
