package admission

import "errors"

var (
	// ErrRoundFull means the current round already holds the table's song
	// limit and is still being sung. Never retried automatically; the
	// caller shows a "wait for this round to finish" message.
	ErrRoundFull = errors.New("round is full")

	ErrVisitNotFound  = errors.New("visit not found or not online")
	ErrSongNotFound   = errors.New("song not found")
	ErrSongNotPending = errors.New("song already started")
	ErrRateLimited    = errors.New("rate limited")
)
