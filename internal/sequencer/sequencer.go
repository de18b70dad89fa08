// Package sequencer decides what the playback screen shows next: the head
// of the cross-table queue, a table-welcome clip when the active table
// changes, or nothing. The decision logic is a pure reducer over an event
// stream, so it can be tested without a store, a player or a clock; the
// runner in this package feeds it real events and executes its commands.
package sequencer

import (
	"github.com/google/uuid"

	"github.com/kirinyoku/kara-go/internal/domain"
)

type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhasePlayingSong    Phase = "playing_song"
	PhasePlayingWelcome Phase = "playing_welcome"
	// PhaseGrace is the short pause between a finished song and the next
	// one (applause window). Externally it reads as part of PlayingSong.
	PhaseGrace   Phase = "grace"
	PhaseStopped Phase = "stopped"
)

// State is the sequencer's entire memory. Queue always holds the latest
// ordered snapshot; Current identifies the active song by ID and SeqNum so
// a redundant snapshot delivery reduces to a no-op.
type State struct {
	Phase   Phase              `json:"phase"`
	Current *domain.QueueEntry `json:"current,omitempty"`
	// Next is the entry remembered across a welcome clip or grace window.
	// It is resolved against the snapshot again at the boundary, because
	// it may have been deleted meanwhile.
	Next        *domain.QueueEntry `json:"next,omitempty"`
	LastTableID int64              `json:"last_table_id"`
	// WelcomeArmed forces a welcome clip before the next song even if the
	// table did not change. Set on cold start resets by the operator.
	WelcomeArmed bool `json:"welcome_armed"`
	// FallbackTried marks that the current welcome already substituted the
	// fallback clip once; a second failure skips the welcome entirely.
	FallbackTried bool               `json:"fallback_tried"`
	Queue         []domain.QueueEntry `json:"-"`
}

// Events.

type Event interface{ isEvent() }

// QueueUpdated carries a fresh ordered snapshot of the cross-table queue.
type QueueUpdated struct{ Entries []domain.QueueEntry }

// SongEnded fires when the active song finished normally.
type SongEnded struct{}

// SongFailed fires when the active song could not load or play. It is
// handled exactly like SongEnded: playback errors never halt the machine.
type SongFailed struct{ Code int }

// WelcomeEnded fires when the welcome clip finished.
type WelcomeEnded struct{}

// WelcomeFailed fires when the welcome clip could not load or play.
type WelcomeFailed struct{ Code int }

// GraceElapsed fires when the post-song pause ran out.
type GraceElapsed struct{}

// Paused and Resumed are the operator's auto-play toggle; Reset re-arms
// the first-welcome opportunity.
type Paused struct{}
type Resumed struct{}
type Reset struct{}

func (QueueUpdated) isEvent()  {}
func (SongEnded) isEvent()     {}
func (SongFailed) isEvent()    {}
func (WelcomeEnded) isEvent()  {}
func (WelcomeFailed) isEvent() {}
func (GraceElapsed) isEvent()  {}
func (Paused) isEvent()        {}
func (Resumed) isEvent()       {}
func (Reset) isEvent()         {}

// Commands.

type Command interface{ isCommand() }

// PlaySong starts the entry's track and marks it singing.
type PlaySong struct{ Entry domain.QueueEntry }

// PlayWelcome starts a table-welcome clip.
type PlayWelcome struct {
	URL     string
	TableID int64
}

// MarkCompleted persists the terminal status of a finished song.
type MarkCompleted struct{ Entry domain.QueueEntry }

// StartGrace schedules a GraceElapsed event after the configured delay.
type StartGrace struct{}

// StopPlayback halts the player without advancing.
type StopPlayback struct{}

func (PlaySong) isCommand()      {}
func (PlayWelcome) isCommand()   {}
func (MarkCompleted) isCommand() {}
func (StartGrace) isCommand()    {}
func (StopPlayback) isCommand()  {}

// Machine holds the static pieces of the reduction: the fallback clip URL
// substituted once when a welcome fails.
type Machine struct {
	FallbackWelcomeURL string
}

// Reduce applies one event to the state and returns the commands to
// execute. It is deterministic and side-effect free; running it twice on
// the same inputs yields the same outputs, which makes the at-least-once
// delivery of snapshot events harmless.
func (m Machine) Reduce(st State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case QueueUpdated:
		return m.onQueueUpdated(st, e.Entries)
	case SongEnded:
		return m.onSongTerminal(st)
	case SongFailed:
		// One failed load advances the queue exactly like a completion.
		return m.onSongTerminal(st)
	case WelcomeEnded:
		return m.onWelcomeDone(st)
	case WelcomeFailed:
		return m.onWelcomeFailed(st)
	case GraceElapsed:
		return m.onGraceElapsed(st)
	case Paused:
		st.Phase = PhaseStopped
		st.Current = nil
		st.Next = nil
		return st, []Command{StopPlayback{}}
	case Resumed:
		if st.Phase != PhaseStopped {
			return st, nil
		}
		st.Phase = PhaseIdle
		return m.onQueueUpdated(st, st.Queue)
	case Reset:
		st.WelcomeArmed = true
		if st.Phase == PhaseIdle {
			return m.onQueueUpdated(st, st.Queue)
		}
		return st, nil
	}

	return st, nil
}

func (m Machine) onQueueUpdated(st State, entries []domain.QueueEntry) (State, []Command) {
	st.Queue = entries

	switch st.Phase {
	case PhaseIdle:
		return m.selectNext(st, headOf(entries))
	case PhasePlayingSong:
		// Guard: if the active song is still in the snapshot this delivery
		// changes nothing. If it vanished (deleted externally) it is
		// treated as completed and the machine advances immediately, with
		// no grace and nothing to mark.
		if st.Current != nil && findEntry(entries, st.Current.ID) == nil {
			st.Current = nil
			return m.selectNext(st, headOf(entries))
		}
	}

	return st, nil
}

// onSongTerminal handles both a normal completion and a playback error on
// the active song: mark it completed, then either advance straight away
// (welcome-exempt tables skip the applause pause) or open the grace
// window with the successor remembered.
func (m Machine) onSongTerminal(st State) (State, []Command) {
	if st.Phase != PhasePlayingSong || st.Current == nil {
		return st, nil
	}

	finished := *st.Current
	cmds := []Command{MarkCompleted{Entry: finished}}

	// Advance by scanning the snapshot the head was computed from, in the
	// same order, rather than re-deriving the head: a fresher snapshot may
	// not have round-tripped the just-finished mark yet and would hand the
	// same song back.
	next := successorOf(st.Queue, finished.ID)

	st.Current = nil
	// Drop the finished entry from the held snapshot. Until a fresh one
	// arrives it still lists the song as singing, and a head fallback at
	// the grace boundary must never hand it back.
	st.Queue = without(st.Queue, finished.ID)

	if finished.WelcomeExempt {
		st2, moreCmds := m.selectNext(st, next)
		return st2, append(cmds, moreCmds...)
	}

	st.Phase = PhaseGrace
	st.Next = next
	return st, append(cmds, StartGrace{})
}

func (m Machine) onGraceElapsed(st State) (State, []Command) {
	if st.Phase != PhaseGrace {
		return st, nil
	}

	next := resolveNext(st.Queue, st.Next)
	st.Next = nil

	return m.selectNext(st, next)
}

func (m Machine) onWelcomeDone(st State) (State, []Command) {
	if st.Phase != PhasePlayingWelcome {
		return st, nil
	}

	next := resolveNext(st.Queue, st.Next)
	st.Next = nil
	st.FallbackTried = false

	if next == nil {
		st.Phase = PhaseIdle
		return st, nil
	}

	return m.play(st, *next)
}

// onWelcomeFailed substitutes the fixed fallback clip exactly once; when
// the fallback fails too, the welcome is skipped and the remembered song
// starts directly.
func (m Machine) onWelcomeFailed(st State) (State, []Command) {
	if st.Phase != PhasePlayingWelcome {
		return st, nil
	}

	if !st.FallbackTried && m.FallbackWelcomeURL != "" {
		st.FallbackTried = true
		tableID := int64(0)
		if st.Next != nil {
			tableID = st.Next.TableID
		}
		return st, []Command{PlayWelcome{URL: m.FallbackWelcomeURL, TableID: tableID}}
	}

	return m.onWelcomeDone(st)
}

// selectNext is the single advance rule: given the candidate entry, decide
// between Idle, a welcome clip and direct playback.
func (m Machine) selectNext(st State, next *domain.QueueEntry) (State, []Command) {
	if next == nil {
		st.Phase = PhaseIdle
		st.Next = nil
		return st, nil
	}

	if m.needsWelcome(st, *next) {
		st.Phase = PhasePlayingWelcome
		st.Next = next
		st.WelcomeArmed = false
		st.FallbackTried = false
		return st, []Command{PlayWelcome{URL: next.WelcomeVideo, TableID: next.TableID}}
	}

	return m.play(st, *next)
}

func (m Machine) play(st State, entry domain.QueueEntry) (State, []Command) {
	st.Phase = PhasePlayingSong
	st.Current = &entry
	st.LastTableID = entry.TableID
	st.WelcomeArmed = false
	return st, []Command{PlaySong{Entry: entry}}
}

// needsWelcome: a welcome plays when the upcoming song sits at a different
// table than the last one played, or when the operator armed it manually.
// Welcome-exempt tables never get one.
func (m Machine) needsWelcome(st State, next domain.QueueEntry) bool {
	if next.WelcomeExempt {
		return false
	}
	if st.WelcomeArmed {
		return true
	}
	return st.LastTableID != 0 && next.TableID != st.LastTableID
}

// resolveNext re-resolves a remembered entry against the snapshot at the
// boundary it was remembered across: deleted or no longer playable falls
// back to the head, which may itself be nil.
func resolveNext(entries []domain.QueueEntry, next *domain.QueueEntry) *domain.QueueEntry {
	if next != nil {
		if cur := findEntry(entries, next.ID); cur != nil && playable(*cur) {
			e := *cur
			return &e
		}
	}
	return headOf(entries)
}

func playable(e domain.QueueEntry) bool {
	return e.Status == domain.SongPending || e.Status == domain.SongSinging
}

func headOf(entries []domain.QueueEntry) *domain.QueueEntry {
	for i := range entries {
		if playable(entries[i]) {
			e := entries[i]
			return &e
		}
	}
	return nil
}

// successorOf returns the entry after the given one in snapshot order, or
// the head when the entry is no longer present.
func successorOf(entries []domain.QueueEntry, afterID uuid.UUID) *domain.QueueEntry {
	for i := range entries {
		if entries[i].ID == afterID {
			for j := i + 1; j < len(entries); j++ {
				if playable(entries[j]) {
					e := entries[j]
					return &e
				}
			}
			return nil
		}
	}
	return headOf(entries)
}

func without(entries []domain.QueueEntry, id uuid.UUID) []domain.QueueEntry {
	out := make([]domain.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func findEntry(entries []domain.QueueEntry, id uuid.UUID) *domain.QueueEntry {
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return nil
}
