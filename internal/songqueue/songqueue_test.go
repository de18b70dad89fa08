package songqueue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/songqueue"
)

func song(seq, round int, status domain.SongStatus) domain.Song {
	return domain.Song{SeqNum: seq, Round: round, Status: status}
}

func TestLatest(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		assert.Nil(t, songqueue.Latest(nil))
	})

	t.Run("picks max seq regardless of slice order", func(t *testing.T) {
		songs := []domain.Song{
			song(3, 2, domain.SongPending),
			song(1, 1, domain.SongCompleted),
			song(2, 1, domain.SongCompleted),
		}

		last := songqueue.Latest(songs)
		require.NotNil(t, last)
		assert.Equal(t, 3, last.SeqNum)
		assert.Equal(t, 2, last.Round)
	})
}

func TestInRound(t *testing.T) {
	songs := []domain.Song{
		song(1, 1, domain.SongCompleted),
		song(2, 1, domain.SongCompleted),
		song(3, 2, domain.SongPending),
	}

	assert.Len(t, songqueue.InRound(songs, 1), 2)
	assert.Len(t, songqueue.InRound(songs, 2), 1)
	assert.Empty(t, songqueue.InRound(songs, 3))
}

func TestRoundClosed(t *testing.T) {
	tests := []struct {
		name  string
		songs []domain.Song
		want  bool
	}{
		{"empty round", nil, true},
		{
			"all completed",
			[]domain.Song{song(1, 1, domain.SongCompleted), song(2, 1, domain.SongCompleted)},
			true,
		},
		{
			"one still pending",
			[]domain.Song{song(1, 1, domain.SongCompleted), song(2, 1, domain.SongPending)},
			false,
		},
		{
			"one singing",
			[]domain.Song{song(1, 1, domain.SongSinging)},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, songqueue.RoundClosed(tt.songs))
		})
	}
}

func TestSortEntries(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	entry := func(table int64, seq int, at time.Time) domain.QueueEntry {
		return domain.QueueEntry{
			Song:    domain.Song{SeqNum: seq, RequestedAt: at},
			TableID: table,
		}
	}

	t.Run("date is the primary key, not table arrival order", func(t *testing.T) {
		// Table A is mid-session (high seq numbers), table B queued a song
		// earlier in wall-clock time before A's latest. B must win.
		in := []domain.QueueEntry{
			entry(1, 10, t0.Add(5*time.Minute)),
			entry(2, 7, t0),
		}

		got := songqueue.SortEntries(in)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].TableID)
		assert.Equal(t, 7, got[0].SeqNum)
	})

	t.Run("seq breaks timestamp ties", func(t *testing.T) {
		in := []domain.QueueEntry{
			entry(1, 4, t0),
			entry(1, 2, t0),
			entry(1, 3, t0),
		}

		got := songqueue.SortEntries(in)
		assert.Equal(t, []int{2, 3, 4}, []int{got[0].SeqNum, got[1].SeqNum, got[2].SeqNum})
	})

	t.Run("does not mutate the input snapshot", func(t *testing.T) {
		in := []domain.QueueEntry{
			entry(1, 2, t0.Add(time.Minute)),
			entry(1, 1, t0),
		}

		_ = songqueue.SortEntries(in)
		assert.Equal(t, 2, in[0].SeqNum)
	})

	t.Run("deterministic under duplicate seq numbers", func(t *testing.T) {
		in := []domain.QueueEntry{
			entry(1, 5, t0),
			entry(2, 5, t0),
		}

		first := songqueue.SortEntries(in)
		second := songqueue.SortEntries(in)
		assert.Equal(t, first, second)
	})
}
