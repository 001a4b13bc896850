// Package session implements the connection front-end's per-connection
// bookkeeping: admission capping, a sliding-window rate limiter, and the
// Session type the subscription registry and dispatcher address sessions
// through.
package session
