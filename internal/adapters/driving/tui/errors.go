package tui

import "errors"

// ErrMissingSession is returned when no chat session is provided.
var ErrMissingSession = errors.New("tui: chat session is required")
