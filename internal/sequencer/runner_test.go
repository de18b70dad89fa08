package sequencer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/kara-go/internal/domain"
)

type fakeQueue struct {
	mu      sync.Mutex
	entries []domain.QueueEntry
}

func (q *fakeQueue) set(entries []domain.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = entries
}

func (q *fakeQueue) CrossTableQueue(ctx context.Context) ([]domain.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

type mark struct {
	visitID  uuid.UUID
	tableID  int64
	songID   uuid.UUID
	from, to domain.SongStatus
}

type fakeMarker struct {
	mu    sync.Mutex
	marks []mark
}

func (m *fakeMarker) MarkSong(ctx context.Context, visitID uuid.UUID, tableID int64, songID uuid.UUID, from, to domain.SongStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = append(m.marks, mark{visitID, tableID, songID, from, to})
	return nil
}

func (m *fakeMarker) all() []mark {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mark, len(m.marks))
	copy(out, m.marks)
	return out
}

type fakeFeed struct{}

func (fakeFeed) Subscribe(ctx context.Context, handler func(ctx context.Context, visitID string, tableID int64)) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	events chan PlayerEvent
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan PlayerEvent, 8)}
}

func (p *fakePlayer) Play(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, url)
}

func (p *fakePlayer) Stop() {}

func (p *fakePlayer) Events() <-chan PlayerEvent { return p.events }

func (p *fakePlayer) playedURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

func TestRunnerPlaysThroughQueue(t *testing.T) {
	visitID := uuid.New()
	a := entry(1, 1, 0)
	a.TrackID = "track-a"
	a.VisitID = visitID
	b := entry(1, 2, time.Minute)
	b.TrackID = "track-b"
	b.VisitID = visitID

	queue := &fakeQueue{}
	queue.set([]domain.QueueEntry{a, b})
	marker := &fakeMarker{}
	plr := newFakePlayer()

	r := NewRunner(queue, marker, fakeFeed{}, plr, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		GraceDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Seed snapshot plays the head.
	require.Eventually(t, func() bool {
		return len(plr.playedURLs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"track-a"}, plr.playedURLs())
	assert.Equal(t, PhasePlayingSong, r.State().Phase)

	// The screen reports the song ended: mark, grace, then the successor.
	plr.events <- PlayerEvent{Type: PlayerEnded}

	require.Eventually(t, func() bool {
		return len(plr.playedURLs()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "track-b", plr.playedURLs()[1])

	// Each mark carries the visit and table the song belongs to, so the
	// marker can invalidate the cached visit and notify the change feed.
	marks := marker.all()
	require.GreaterOrEqual(t, len(marks), 3)
	assert.Equal(t, mark{visitID, 1, a.ID, domain.SongPending, domain.SongSinging}, marks[0])
	assert.Equal(t, mark{visitID, 1, a.ID, domain.SongSinging, domain.SongCompleted}, marks[1])
	assert.Equal(t, mark{visitID, 1, b.ID, domain.SongPending, domain.SongSinging}, marks[2])

	cancel()
	require.NoError(t, <-done)
}

func TestRunnerIdlesAfterLastSong(t *testing.T) {
	a := entry(1, 1, 0)
	a.TrackID = "track-a"

	queue := &fakeQueue{}
	queue.set([]domain.QueueEntry{a})
	plr := newFakePlayer()

	r := NewRunner(queue, &fakeMarker{}, fakeFeed{}, plr, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		GraceDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(plr.playedURLs()) == 1
	}, time.Second, 5*time.Millisecond)

	// The tail song ends and no feed message arrives: the held snapshot
	// still lists it as active, yet the grace boundary must settle on
	// idle, never replay the song it just finished.
	plr.events <- PlayerEvent{Type: PlayerEnded}

	require.Eventually(t, func() bool {
		return r.State().Phase == PhaseIdle
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, plr.playedURLs(), 1)

	cancel()
	require.NoError(t, <-done)
}

func TestRunnerPauseStopsAdvancing(t *testing.T) {
	a := entry(1, 1, 0)
	a.TrackID = "track-a"

	queue := &fakeQueue{}
	queue.set([]domain.QueueEntry{a})
	plr := newFakePlayer()

	r := NewRunner(queue, &fakeMarker{}, fakeFeed{}, plr, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		GraceDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(plr.playedURLs()) == 1
	}, time.Second, 5*time.Millisecond)

	r.Pause()
	require.Eventually(t, func() bool {
		return r.State().Phase == PhaseStopped
	}, time.Second, 5*time.Millisecond)

	// Terminal events while stopped change nothing.
	plr.events <- PlayerEvent{Type: PlayerEnded}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, PhaseStopped, r.State().Phase)
	assert.Len(t, plr.playedURLs(), 1)

	// Resume re-evaluates the held snapshot and replays the pending head.
	r.Resume()
	require.Eventually(t, func() bool {
		return len(plr.playedURLs()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
