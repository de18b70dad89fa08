package admission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/service/admission"
)

func song(seq, round int, status domain.SongStatus) domain.Song {
	return domain.Song{SeqNum: seq, Round: round, Status: status}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		songs     []domain.Song
		limit     int
		wantRound int
		wantSeq   int
		wantErr   error
	}{
		{
			name:      "empty queue opens round one",
			songs:     nil,
			limit:     2,
			wantRound: 1,
			wantSeq:   1,
		},
		{
			name: "completed tail starts a new round",
			songs: []domain.Song{
				song(1, 1, domain.SongCompleted),
				song(2, 1, domain.SongCompleted),
			},
			limit:     2,
			wantRound: 2,
			wantSeq:   3,
		},
		{
			name: "joins current round under the limit",
			songs: []domain.Song{
				song(1, 1, domain.SongSinging),
			},
			limit:     2,
			wantRound: 1,
			wantSeq:   2,
		},
		{
			name: "refuses when round full and still open",
			songs: []domain.Song{
				song(1, 1, domain.SongCompleted),
				song(2, 1, domain.SongSinging),
			},
			limit:   2,
			wantErr: admission.ErrRoundFull,
		},
		{
			name: "refuses while any song of a full round is open",
			songs: []domain.Song{
				song(1, 1, domain.SongCompleted),
				song(2, 1, domain.SongPending),
			},
			limit:   2,
			wantErr: admission.ErrRoundFull,
		},
		{
			name: "anchor is max seq, not slice order",
			songs: []domain.Song{
				song(3, 2, domain.SongPending),
				song(1, 1, domain.SongCompleted),
				song(2, 1, domain.SongCompleted),
			},
			limit:     2,
			wantRound: 2,
			wantSeq:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round, seq, err := admission.Decide(tt.songs, tt.limit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRound, round)
			assert.Equal(t, tt.wantSeq, seq)
		})
	}
}

// Scenario from the playback floor: limit 2, admit X and Y, a third request
// must wait, and once the round is sung through the third request opens
// round two.
func TestDecide_LimitLifecycle(t *testing.T) {
	const limit = 2

	var songs []domain.Song

	admit := func() domain.Song {
		round, seq, err := admission.Decide(songs, limit)
		require.NoError(t, err)
		s := song(seq, round, domain.SongPending)
		songs = append(songs, s)
		return s
	}

	x := admit()
	y := admit()
	assert.Equal(t, 1, x.Round)
	assert.Equal(t, 1, x.SeqNum)
	assert.Equal(t, 1, y.Round)
	assert.Equal(t, 2, y.SeqNum)

	_, _, err := admission.Decide(songs, limit)
	require.ErrorIs(t, err, admission.ErrRoundFull)
	require.Len(t, songs, 2, "refusal must not grow the queue")

	for i := range songs {
		songs[i].Status = domain.SongCompleted
	}

	z := admit()
	assert.Equal(t, 2, z.Round)
	assert.Equal(t, 3, z.SeqNum)
}

// Round numbers never decrease and sequence numbers strictly increase, no
// matter how statuses flip between admissions.
func TestDecide_Monotonicity(t *testing.T) {
	const limit = 3

	var songs []domain.Song
	lastRound, lastSeq := 0, 0

	step := func(completeFirst bool) {
		if completeFirst {
			for i := range songs {
				if songs[i].Status != domain.SongCompleted {
					songs[i].Status = domain.SongCompleted
					break
				}
			}
		}

		round, seq, err := admission.Decide(songs, limit)
		if err != nil {
			// round full: complete everything and retry once
			for i := range songs {
				songs[i].Status = domain.SongCompleted
			}
			round, seq, err = admission.Decide(songs, limit)
			require.NoError(t, err)
		}

		assert.GreaterOrEqual(t, round, lastRound)
		assert.Greater(t, seq, lastSeq)
		lastRound, lastSeq = round, seq

		songs = append(songs, song(seq, round, domain.SongPending))
	}

	for i := 0; i < 12; i++ {
		step(i%3 == 0)
	}
}
