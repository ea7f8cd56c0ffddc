// Package logging provides a leveled, structured logger and a process-wide
// holder for the shared logger instance.
//
// Records carry a level, a message and an optional set of fields. They are
// rendered twice: a short, colored line for the console and a structured
// entry (zap) for the optional rotating log file.
//
// # Levels
//
// Levels are ordered by priority, lower values being more important:
//
//	success=0  error=1  warning=5  info=10  notice=15  debug=100
//
// Non-debug records are always emitted. Debug records are emitted only when
// the configured threshold is LevelDebug or higher, so a threshold of 0
// keeps a logger quiet apart from its regular output.
//
// # Shared logger
//
// Initialize the shared logger once at startup and fetch it anywhere else:
//
//	logging.Initialize(nil) // default console logger
//
//	log, err := logging.Get()
//	if err != nil {
//	    return err // logging.ErrUninitialized
//	}
//	log.Info("Task started", logging.Fields{"id": 123})
//	log.Success("Task completed")
//
// Get never builds a logger on its own. Tests call Reset to start from a
// clean state, or use their own Context from NewContext.
package logging
