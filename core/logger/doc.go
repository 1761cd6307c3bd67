// Package logger provides structured logging utilities built on Go's standard
// slog package: a small factory for configured loggers and a set of pre-built,
// nil-safe attribute helpers for the event hub's domain vocabulary.
//
// # Basic Usage
//
// Create loggers using the factory function with configuration options:
//
//	import "github.com/dmitrymomot/eventhub/core/logger"
//
//	// Development: text format, debug level
//	log := logger.New(logger.WithDevelopment("eventhub"))
//
//	// Production: JSON format, info level
//	log := logger.New(logger.WithProduction("eventhub"))
//
//	// Custom configuration
//	log := logger.New(
//		logger.WithLevel(slog.LevelWarn),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("service", "realtime")),
//		logger.WithOutput(os.Stderr),
//	)
//
// # Attribute Helpers
//
// The helpers return an empty Attr for zero values, so call sites never need
// nil checks:
//
//	log.Info("subscription granted",
//		logger.ConnectionID(connID),
//		logger.SubjectID(subjectID),
//		logger.Channels(granted),
//	)
//
//	log.Warn("publish partially failed",
//		logger.Channel(channel),
//		logger.Delivered(n),
//		logger.Error(err),
//	)
//
// Components in this module accept a *slog.Logger through their WithLogger
// options and default to a discarding logger, so logging stays opt-in.
package logger
