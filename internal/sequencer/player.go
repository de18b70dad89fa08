package sequencer

// PlayerEventType enumerates the terminal and progress signals a playback
// device reports back. Ready/Started/Buffer are informational; Ended and
// Error drive state transitions.
type PlayerEventType string

const (
	PlayerReady   PlayerEventType = "ready"
	PlayerStarted PlayerEventType = "started"
	PlayerEnded   PlayerEventType = "ended"
	PlayerError   PlayerEventType = "error"
	PlayerBuffer  PlayerEventType = "buffer"
)

type PlayerEvent struct {
	Type        PlayerEventType
	Code        int
	BufferedSec float64
}

// Player is the playback collaborator: it consumes one URL at a time and
// reports what happened on its event channel. Implementations wrap the
// actual screen/embed; the sequencer never touches media itself.
type Player interface {
	// Play loads and starts the given URL, interrupting whatever was
	// playing before.
	Play(url string)
	// Stop halts playback without emitting an Ended event.
	Stop()
	// Events delivers player signals. The channel is owned by the player
	// and closed when the player shuts down.
	Events() <-chan PlayerEvent
}
