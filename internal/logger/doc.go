// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stdout,
//   - an optional rotating log file (lumberjack) tee'd next to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and convenience functions (Infof, WarnKV, etc.).
//
// Pipeline stages accept a context and extract the logger from it, so every
// entry carries the stage and source it belongs to.
package logger
