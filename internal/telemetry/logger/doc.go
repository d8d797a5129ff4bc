// Package logger provides structured logging for syncmesh on top of
// log/slog.
//
// Records logged with a context carry its request and session IDs, and
// credential attributes are redacted. The level is process-wide so a config
// reload can change it. Replication components take the *slog.Logger
// returned by Logger.Slog.
package logger
