package memory

import "errors"

// ErrNoActiveSession is returned when an operation needs an active session
// and none has been selected with SetChatID or CreateSession.
var ErrNoActiveSession = errors.New("no active session")

// ErrActiveSession is returned when deleting the session that is
// currently active.
var ErrActiveSession = errors.New("cannot delete the active session")

// ErrInvalidText is returned by StoreResponse for text that is not valid
// UTF-8, which the codec could never decode again.
var ErrInvalidText = errors.New("turn text is not valid UTF-8")

// ErrTextTooLarge is returned by StoreResponse for text longer than the
// codec can decode.
var ErrTextTooLarge = errors.New("turn text exceeds the maximum stored size")
