// Package logging provides structured logging for tandem.
//
// It wraps log/slog with a JSON handler and adds persistent context attributes,
// so every line emitted while a pipeline rebuilds or a child process restarts
// carries the pipeline and component that produced it.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".tandem", "info")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	hostLog := logger.WithPipeline("main").WithComponent("hot-reload")
//	hostLog.Info("child started", "pid", 4242)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"child started","pipeline":"main","component":"hot-reload","pid":4242}
//
// # Log Rotation
//
// A watch session can run for hours. [NewLoggerWithRotation] caps the log file
// size and keeps a bounded number of numbered backups (tandem.log.1 is newest).
//
// # Testing
//
// Use [NopLogger] to discard output.
package logging
