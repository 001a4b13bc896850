// Package gateway implements the request dispatcher: closed-set method
// resolution, argument validation, cache-backed and pass-through upstream
// reads, subscribe/unsubscribe handling with immediate-snapshot delivery,
// and the bounded work queue connecting the transport front-end to it.
package gateway
