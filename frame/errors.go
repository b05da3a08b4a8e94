package frame

import "errors"

var (
	ErrNoStore      = errors.New("frame: no tree store attached")
	ErrNoDispatcher = errors.New("frame: no raycast dispatcher attached")
)
