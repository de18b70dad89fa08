package repository

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrTableOccupied  = errors.New("table already occupied")
	ErrTableInactive  = errors.New("table inactive")
	ErrVisitClosed    = errors.New("visit already closed")
	ErrSongNotPending = errors.New("song not pending")
)
