// Package log provides relaygate's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. The Logger methods format each
// entry with the configured formatter and write it to the configured outputs
// directly. NewLogger also builds a slog handler bridge over the same
// formatter and outputs; the Logger methods do not pass through it.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("ns", "default"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting to a console output. NewLogger accepts further outputs
// (console, null) via WithOutput. WithRedactions and WithSampling configure
// the slog bridge only; entries logged through the Logger methods are neither
// redacted nor sampled.
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (net/http.Server's
// ErrorLog, for instance), use ToStdLogger or RedirectStdLog.
package log
