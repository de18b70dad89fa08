package admission

import (
	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/songqueue"
)

// Decide assigns round and sequence number for a song about to join the
// visit's queue, or refuses it. It is a pure function of the songs snapshot
// and the table's song limit; rules apply in order, first match wins:
//
//  1. Empty queue: round 1, seq 1.
//  2. Latest song completed: the whole tail is done, open the next round.
//  3. Current round below the limit: join it.
//  4. Current round at the limit but fully completed: open the next round.
//  5. Otherwise the round is full and still open: refuse.
func Decide(songs []domain.Song, songLimit int) (round, seq int, err error) {
	last := songqueue.Latest(songs)
	if last == nil {
		return 1, 1, nil
	}

	if last.Status == domain.SongCompleted {
		return last.Round + 1, last.SeqNum + 1, nil
	}

	current := songqueue.InRound(songs, last.Round)
	if len(current) < songLimit {
		return last.Round, last.SeqNum + 1, nil
	}

	if songqueue.RoundClosed(current) {
		return last.Round + 1, last.SeqNum + 1, nil
	}

	return 0, 0, ErrRoundFull
}
