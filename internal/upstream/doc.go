// Package upstream manages the pool of blockchain node endpoints this
// gateway fans requests out to: health-tracked sticky endpoint selection
// (Pool), bounded retry with failover (RetryingCaller), and the default
// JSON-RPC-over-HTTP wire client (HTTPCaller).
//
// The dispatcher and the poll driver depend only on narrow caller interfaces
// they define themselves, which RetryingCaller satisfies, so they never know
// whether they're talking to a RetryingCaller or a test fake. The health
// probe and the HTTP introspection surface use *Pool directly.
package upstream
