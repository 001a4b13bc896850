// Package ws implements the gateway's WebSocket transport front-end:
// connection admission, the synchronous hello frame, and one read-pump
// plus one write-pump goroutine per session.
package ws
