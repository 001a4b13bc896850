package session

import "errors"

// errClosed is returned by Session.Send once the session has been closed.
var errClosed = errors.New("session: closed")
