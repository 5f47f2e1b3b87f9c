// Package logger provides structured logging attribute helpers built on Go's
// standard slog package.
//
// All helpers follow the empty Attr pattern for nil safety: passing a nil error
// or value yields an empty attribute that slog silently drops, so call sites
// never need explicit nil checks:
//
//	log.Info("receiver connected",
//		logger.Component("signal"),
//		logger.ID("receiver", r.Name()),
//		logger.Error(err), // safe even when err is nil
//	)
package logger
