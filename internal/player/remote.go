// Package player bridges the sequencer to the playback screen. The screen
// is a browser, not a local device: Play records what it should be showing
// and the screen reports back what actually happened over HTTP.
package player

import (
	"sync"

	"github.com/kirinyoku/kara-go/internal/sequencer"
)

type Remote struct {
	mu      sync.Mutex
	current string
	playing bool

	events chan sequencer.PlayerEvent
	closed bool
}

func NewRemote() *Remote {
	return &Remote{
		events: make(chan sequencer.PlayerEvent, 16),
	}
}

// Play records the media the screen should load. The screen picks it up on
// its next poll of the playback state.
func (p *Remote) Play(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = url
	p.playing = true
}

func (p *Remote) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = ""
	p.playing = false
}

// Current returns the media the screen should be showing, if any.
func (p *Remote) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current, p.playing
}

func (p *Remote) Events() <-chan sequencer.PlayerEvent {
	return p.events
}

// Report feeds one screen-originated event into the sequencer. Events are
// dropped when the loop is badly backed up; the screen retries terminal
// events until the state it polls moves on.
func (p *Remote) Report(ev sequencer.PlayerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	select {
	case p.events <- ev:
	default:
	}
}

// Close releases the event channel once the runner is done with it.
func (p *Remote) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.events)
	}
}
