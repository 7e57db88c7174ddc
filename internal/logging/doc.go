// Package logging provides structured logging for drawbridge.
//
// It wraps log/slog with a JSON handler and adds child loggers that carry
// the session instance ID, the bound diagram path, or the component name on
// every entry, so one editing session can be followed through the asset
// server, the message router and the lifecycle policy.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sessionLog := logger.WithComponent("session").WithInstance(id)
//	sessionLog.Info("export persisted", "path", path, "bytes", n)
//
// Messages dropped by protocol validation are logged at DEBUG only; they are
// expected noise, not failures.
//
// # Rotation
//
// [NewLoggerWithRotation] backs the logger with a [RotatingWriter], which
// renames the file to .1, .2, ... once it exceeds RotationConfig.MaxSizeMB and
// optionally gzips the backups.
//
// # Reading Logs
//
// [ReadLogs] and [FilterLogs] parse the JSON lines back for the logs command.
//
// # Thread Safety
//
// Logger, its children and RotatingWriter are safe for concurrent use.
package logging
