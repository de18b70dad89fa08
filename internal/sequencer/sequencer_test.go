package sequencer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/songqueue"
)

const fallbackURL = "https://cdn.example.com/welcome-not-found.mp4"

var t0 = time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)

type entryOpt func(*domain.QueueEntry)

func exempt() entryOpt {
	return func(e *domain.QueueEntry) { e.WelcomeExempt = true }
}

func entry(table int64, seq int, offset time.Duration, opts ...entryOpt) domain.QueueEntry {
	e := domain.QueueEntry{
		Song: domain.Song{
			ID:          uuid.New(),
			SeqNum:      seq,
			Status:      domain.SongPending,
			RequestedAt: t0.Add(offset),
			Title:       "song",
			TrackID:     "track",
		},
		TableID:      table,
		TableName:    "table",
		WelcomeVideo: "https://cdn.example.com/welcome.mp4",
	}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func machine() Machine {
	return Machine{FallbackWelcomeURL: fallbackURL}
}

func playSongCmd(t *testing.T, cmds []Command) PlaySong {
	t.Helper()
	for _, c := range cmds {
		if ps, ok := c.(PlaySong); ok {
			return ps
		}
	}
	t.Fatalf("no PlaySong in %v", cmds)
	return PlaySong{}
}

func countWelcomes(cmds []Command) int {
	n := 0
	for _, c := range cmds {
		if _, ok := c.(PlayWelcome); ok {
			n++
		}
	}
	return n
}

func TestIdleToPlayingSong(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)

	st, cmds := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a}})

	assert.Equal(t, PhasePlayingSong, st.Phase)
	require.NotNil(t, st.Current)
	assert.Equal(t, a.ID, st.Current.ID)
	assert.Equal(t, int64(1), st.LastTableID)
	assert.Equal(t, a.ID, playSongCmd(t, cmds).Entry.ID)
	assert.Zero(t, countWelcomes(cmds), "no prior table means no welcome")
}

func TestHeadDeterminism(t *testing.T) {
	m := machine()

	snapshot := songqueue.SortEntries([]domain.QueueEntry{
		entry(1, 10, 5*time.Minute),
		entry(2, 7, 0),
		entry(1, 11, 6*time.Minute),
	})

	first, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	for i := 0; i < 5; i++ {
		again, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
		require.NotNil(t, again.Current)
		assert.Equal(t, first.Current.ID, again.Current.ID)
	}

	// Date order wins over table arrival order: table 2's older request
	// (seq 7) beats table 1's newer one (seq 10).
	assert.Equal(t, int64(2), first.Current.TableID)
	assert.Equal(t, 7, first.Current.SeqNum)
}

func TestRedundantSnapshotIsNoOp(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	snapshot := []domain.QueueEntry{a}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	require.Equal(t, PhasePlayingSong, st.Phase)

	// At-least-once delivery: the same snapshot again must not restart
	// anything.
	st2, cmds := m.Reduce(st, QueueUpdated{Entries: snapshot})
	assert.Equal(t, st.Current.ID, st2.Current.ID)
	assert.Empty(t, cmds)
}

func TestTableChangeInsertsOneWelcome(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(2, 1, time.Minute)
	snapshot := []domain.QueueEntry{a, b}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	require.Equal(t, a.ID, st.Current.ID)

	// Song A finishes; grace runs; B sits at another table.
	st, cmds := m.Reduce(st, SongEnded{})
	assert.Equal(t, PhaseGrace, st.Phase)
	assert.IsType(t, MarkCompleted{}, cmds[0])

	st, cmds = m.Reduce(st, GraceElapsed{})
	assert.Equal(t, PhasePlayingWelcome, st.Phase)
	require.Equal(t, 1, countWelcomes(cmds))
	require.NotNil(t, st.Next)
	assert.Equal(t, b.ID, st.Next.ID)

	// Welcome done: exactly the remembered song starts, no second welcome.
	st, cmds = m.Reduce(st, WelcomeEnded{})
	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, b.ID, playSongCmd(t, cmds).Entry.ID)
	assert.Zero(t, countWelcomes(cmds))
	assert.Equal(t, int64(2), st.LastTableID)
}

func TestExemptTableGetsNoWelcome(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(9, 1, time.Minute, exempt())
	snapshot := []domain.QueueEntry{a, b}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	st, _ = m.Reduce(st, SongEnded{})
	st, cmds := m.Reduce(st, GraceElapsed{})

	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Zero(t, countWelcomes(cmds))
	assert.Equal(t, b.ID, playSongCmd(t, cmds).Entry.ID)
}

func TestExemptTableSkipsGrace(t *testing.T) {
	m := machine()
	a := entry(9, 1, 0, exempt())
	b := entry(9, 2, time.Minute, exempt())
	snapshot := []domain.QueueEntry{a, b}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	require.Equal(t, a.ID, st.Current.ID)

	// No applause pause at the exempt table: the next song starts in the
	// same reduction.
	st, cmds := m.Reduce(st, SongEnded{})
	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, b.ID, playSongCmd(t, cmds).Entry.ID)
	for _, c := range cmds {
		assert.NotEqual(t, StartGrace{}, c)
	}
}

func TestErrorAdvancesLikeCompletion(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(1, 2, time.Minute)
	snapshot := []domain.QueueEntry{a, b}

	begin, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})

	ended, endedCmds := m.Reduce(begin, SongEnded{})
	failed, failedCmds := m.Reduce(begin, SongFailed{Code: 150})

	assert.Equal(t, ended.Phase, failed.Phase)
	assert.Equal(t, ended.Next, failed.Next)
	assert.Equal(t, endedCmds, failedCmds)
}

func TestWelcomeFallbackOnceThenSkip(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(2, 1, time.Minute)
	snapshot := []domain.QueueEntry{a, b}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})
	st, _ = m.Reduce(st, SongEnded{})
	st, _ = m.Reduce(st, GraceElapsed{})
	require.Equal(t, PhasePlayingWelcome, st.Phase)

	// First failure: the fixed fallback clip is substituted once.
	st, cmds := m.Reduce(st, WelcomeFailed{Code: 404})
	require.Equal(t, PhasePlayingWelcome, st.Phase)
	require.Equal(t, 1, countWelcomes(cmds))
	pw := cmds[0].(PlayWelcome)
	assert.Equal(t, fallbackURL, pw.URL)

	// Second failure: no third attempt, straight to the remembered song.
	st, cmds = m.Reduce(st, WelcomeFailed{Code: 404})
	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Zero(t, countWelcomes(cmds))
	assert.Equal(t, b.ID, playSongCmd(t, cmds).Entry.ID)
}

func TestActiveSongDisappearsAdvancesImmediately(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(1, 2, time.Minute)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a, b}})
	require.Equal(t, a.ID, st.Current.ID)

	// A is deleted externally: the snapshot arrives without it. No mark,
	// no grace, B starts at once.
	st, cmds := m.Reduce(st, QueueUpdated{Entries: []domain.QueueEntry{b}})
	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, b.ID, playSongCmd(t, cmds).Entry.ID)
	for _, c := range cmds {
		assert.NotEqual(t, StartGrace{}, c)
		_, marked := c.(MarkCompleted)
		assert.False(t, marked, "a deleted song cannot be marked")
	}
}

func TestRememberedNextDeletedDuringWelcome(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(2, 1, time.Minute)
	c := entry(2, 2, 2*time.Minute)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a, b, c}})
	st, _ = m.Reduce(st, SongEnded{})
	st, _ = m.Reduce(st, GraceElapsed{})
	require.Equal(t, PhasePlayingWelcome, st.Phase)
	require.Equal(t, b.ID, st.Next.ID)

	// B vanishes while its welcome is on screen.
	st, _ = m.Reduce(st, QueueUpdated{Entries: []domain.QueueEntry{c}})
	st, cmds := m.Reduce(st, WelcomeEnded{})

	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, c.ID, playSongCmd(t, cmds).Entry.ID)
}

func TestTailSongFinishesToIdle(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a}})
	require.Equal(t, a.ID, st.Current.ID)

	// The last song of the night ends and no fresher snapshot ever
	// arrives: the one on hand still lists A as singing. The grace
	// boundary must settle on idle, not hand A back to the player.
	st, _ = m.Reduce(st, SongEnded{})
	require.Equal(t, PhaseGrace, st.Phase)
	assert.Nil(t, st.Next)

	st, cmds := m.Reduce(st, GraceElapsed{})
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, cmds)
}

func TestRememberedNextCancelledDuringGrace(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(1, 2, time.Minute)
	c := entry(1, 3, 2*time.Minute)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a, b, c}})
	st, _ = m.Reduce(st, SongEnded{})
	require.Equal(t, PhaseGrace, st.Phase)
	require.Equal(t, b.ID, st.Next.ID)

	// Staff cancel B while the applause pause runs. B is still present in
	// the fresh snapshot, just no longer playable, so C starts instead.
	bCancelled := b
	bCancelled.Status = domain.SongCancelled
	st, _ = m.Reduce(st, QueueUpdated{Entries: []domain.QueueEntry{bCancelled, c}})
	st, cmds := m.Reduce(st, GraceElapsed{})

	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, c.ID, playSongCmd(t, cmds).Entry.ID)
}

func TestQueueDrainsToIdle(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a}})
	st, _ = m.Reduce(st, SongEnded{})
	st, _ = m.Reduce(st, QueueUpdated{Entries: nil})
	st, cmds := m.Reduce(st, GraceElapsed{})

	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, cmds)
}

func TestPauseResume(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	snapshot := []domain.QueueEntry{a}

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: snapshot})

	st, cmds := m.Reduce(st, Paused{})
	assert.Equal(t, PhaseStopped, st.Phase)
	assert.Contains(t, cmds, Command(StopPlayback{}))

	// Events while stopped change nothing.
	st, cmds = m.Reduce(st, SongEnded{})
	assert.Equal(t, PhaseStopped, st.Phase)
	assert.Empty(t, cmds)

	// Resume re-enters evaluation against the held snapshot.
	st, cmds = m.Reduce(st, Resumed{})
	assert.Equal(t, PhasePlayingSong, st.Phase)
	assert.Equal(t, a.ID, playSongCmd(t, cmds).Entry.ID)
}

func TestResetArmsFirstWelcome(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)
	b := entry(1, 2, time.Minute)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a, b}})
	st, _ = m.Reduce(st, SongEnded{})
	st, _ = m.Reduce(st, GraceElapsed{})
	require.Equal(t, PhasePlayingSong, st.Phase, "same table, no welcome in the normal flow")

	// Operator reset: even though table 1 was just playing, the next
	// selection gets a welcome.
	st, _ = m.Reduce(st, SongEnded{})
	st, _ = m.Reduce(st, Reset{})
	c := entry(1, 3, 2*time.Minute)
	st, _ = m.Reduce(st, QueueUpdated{Entries: []domain.QueueEntry{c}})
	st, cmds := m.Reduce(st, GraceElapsed{})

	assert.Equal(t, PhasePlayingWelcome, st.Phase)
	assert.Equal(t, 1, countWelcomes(cmds))
	require.NotNil(t, st.Next)
	assert.Equal(t, c.ID, st.Next.ID)
}

func TestGraceEventIgnoredOutsideGrace(t *testing.T) {
	m := machine()
	a := entry(1, 1, 0)

	st, _ := m.Reduce(State{Phase: PhaseIdle}, QueueUpdated{Entries: []domain.QueueEntry{a}})

	// A stale timer fires while a song plays: nothing happens.
	st2, cmds := m.Reduce(st, GraceElapsed{})
	assert.Equal(t, st, st2)
	assert.Empty(t, cmds)
}
