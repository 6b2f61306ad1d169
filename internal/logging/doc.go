// Package logging provides the structured logging capability.
//
// Logging is a development-build capability with a fixed minimum level of
// Info. Text output uses a colour handler; "json" switches to slog's JSON
// handler:
//
//	logging:
//	  format: "text"   # text, json
//	  no_color: false
//
// Components derive child loggers with logger.With("component", name).
package logging
