package visits

import "errors"

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrTableOccupied  = errors.New("table already occupied")
	ErrTableInactive  = errors.New("table is out of service")
	ErrVisitNotFound  = errors.New("visit not found")
	ErrVisitClosed    = errors.New("visit already closed")
	ErrGuestNotFound  = errors.New("guest request not found")
	ErrNotParticipant = errors.New("user is not a participant")

	// ErrStoreUnavailable is returned once the fixed retry budget for a
	// transaction is exhausted. State is unchanged; the caller surfaces a
	// connectivity message.
	ErrStoreUnavailable = errors.New("store unavailable")
)
