// Package serverrun wires together every relaygate component — upstream
// pool, caches, dispatcher, poll driver, health probe, connection
// front-end, and HTTP introspection — into one running process.
package serverrun
