// Package config loads relaygate's configuration.
//
// # Overview
//
// Default() returns the built-in configuration. Load(path) overlays an
// optional JSON file on top of defaults. FromEnv(&cfg) overlays RELAYGATE_*
// environment variables on top of whatever cfg already holds, so the typical
// startup sequence is:
//
//	cfg, err := config.Load(flagPath) // flagPath may be ""
//	config.FromEnv(&cfg)
//
// Durations are expressed in the Config struct as time.Duration, but both
// the JSON file format and the environment variables use plain milliseconds
// (JSON keys suffixed Ms, environment variables suffixed _MS) to avoid
// requiring Go duration string syntax at the edges.
package config
