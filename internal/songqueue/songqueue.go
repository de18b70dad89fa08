// Package songqueue holds the pure helper logic over a visit's song list
// and the cross-table queue. No I/O happens here: every function is a
// deterministic computation over an immutable snapshot, and callers must
// re-fetch the snapshot before each decision rather than reuse a stale one.
package songqueue

import (
	"sort"

	"github.com/kirinyoku/kara-go/internal/domain"
)

// Latest returns the song with the highest sequence number, or nil for an
// empty list. The anchor for admission decisions is the global order, not
// the physical position in the slice: deletions can reorder the array.
func Latest(songs []domain.Song) *domain.Song {
	var last *domain.Song
	for i := range songs {
		if last == nil || songs[i].SeqNum > last.SeqNum {
			last = &songs[i]
		}
	}
	return last
}

// InRound filters the songs belonging to one round.
func InRound(songs []domain.Song, round int) []domain.Song {
	var out []domain.Song
	for _, s := range songs {
		if s.Round == round {
			out = append(out, s)
		}
	}
	return out
}

// RoundClosed reports whether every song of the given round has finished.
// An empty round counts as closed.
func RoundClosed(songs []domain.Song) bool {
	for _, s := range songs {
		if s.Status != domain.SongCompleted {
			return false
		}
	}
	return true
}

// SortEntries orders a cross-table queue snapshot ascending by request time,
// ties broken by ascending sequence number. This is the one total order the
// playback sequencer derives its head from; it must stay bit-exact. The
// sort is stable so that the (rare, tolerated) duplicate sequence numbers
// produced by racing admissions do not make the order flap between
// snapshots.
func SortEntries(entries []domain.QueueEntry) []domain.QueueEntry {
	out := make([]domain.QueueEntry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].SeqNum < out[j].SeqNum
	})

	return out
}
