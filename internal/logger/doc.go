// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, InfoKV, Warnf, ErrorKV, ...).
//
// The run loop carries the logger in its context so the boot path, the
// debug loop and the alarm loop all log under their own names.
package logger
