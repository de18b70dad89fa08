package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/repository"
)

// QueueSource supplies the ordered cross-table queue snapshot.
type QueueSource interface {
	CrossTableQueue(ctx context.Context) ([]domain.QueueEntry, error)
}

// SongMarker persists song status transitions decided by the sequencer.
// Implementations also propagate the change to caches and the change feed;
// the marks would otherwise be invisible to the snapshot source until its
// TTL ran out.
type SongMarker interface {
	MarkSong(ctx context.Context, visitID uuid.UUID, tableID int64, songID uuid.UUID, from, to domain.SongStatus) error
}

// Feed is the realtime change subscription; Subscribe blocks until ctx is
// cancelled.
type Feed interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, visitID string, tableID int64)) error
}

type Config struct {
	// GraceDelay is the pause between a finished song and the next one,
	// long enough for the applause cue. Tests override it.
	GraceDelay time.Duration
	// FallbackWelcomeURL is substituted once when a table's welcome clip
	// fails to load.
	FallbackWelcomeURL string
}

// Runner owns the sequencer event loop. All events — snapshot refreshes,
// player signals, the grace timer, operator toggles — funnel through one
// channel and are reduced one at a time, so the state needs no locking
// beyond the snapshot copy handed out by State().
type Runner struct {
	machine Machine
	queue   QueueSource
	marker  SongMarker
	feed    Feed
	player  Player
	logger  *slog.Logger
	cfg     Config

	events chan Event
	// refresh coalesces bursts of change-feed messages into at most one
	// pending snapshot fetch.
	refresh chan struct{}

	mu    sync.Mutex
	state State
}

func NewRunner(
	queue QueueSource,
	marker SongMarker,
	feed Feed,
	player Player,
	logger *slog.Logger,
	cfg Config,
) *Runner {
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = 3 * time.Second
	}

	return &Runner{
		machine: Machine{FallbackWelcomeURL: cfg.FallbackWelcomeURL},
		queue:   queue,
		marker:  marker,
		feed:    feed,
		player:  player,
		logger:  logger,
		cfg:     cfg,
		events:  make(chan Event, 64),
		refresh: make(chan struct{}, 1),
		state:   State{Phase: PhaseIdle},
	}
}

// State returns a copy of the current sequencer state for the operator
// screen.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state
	st.Queue = nil
	return st
}

// Pause, Resume and Reset are the operator controls. They enqueue events
// and return immediately.
func (r *Runner) Pause()  { r.push(Paused{}) }
func (r *Runner) Resume() { r.push(Resumed{}) }
func (r *Runner) Reset()  { r.push(Reset{}) }

func (r *Runner) push(ev Event) {
	select {
	case r.events <- ev:
	default:
		// The loop is badly backed up; drop rather than block a caller.
		// Snapshot refreshes are re-requested by the next feed message.
		r.logger.Warn("sequencer event dropped", "event", ev)
	}
}

func (r *Runner) requestRefresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled. It subscribes to the change
// feed, seeds an initial snapshot and then processes events strictly one
// at a time.
func (r *Runner) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.feed.Subscribe(gCtx, func(ctx context.Context, visitID string, tableID int64) {
			r.requestRefresh()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case ev, ok := <-r.player.Events():
				if !ok {
					return nil
				}
				r.handlePlayerEvent(ev)
			}
		}
	})

	g.Go(func() error {
		r.requestRefresh()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-r.refresh:
				entries, err := r.queue.CrossTableQueue(gCtx)
				if err != nil {
					// The feed will trigger another fetch; the machine
					// keeps its last snapshot meanwhile.
					r.logger.Error("queue snapshot fetch failed", "error", err)
					continue
				}
				r.step(gCtx, QueueUpdated{Entries: entries})
			case ev := <-r.events:
				r.step(gCtx, ev)
			}
		}
	})

	return g.Wait()
}

// handlePlayerEvent translates raw player signals into sequencer events
// based on what is currently on screen.
func (r *Runner) handlePlayerEvent(ev PlayerEvent) {
	r.mu.Lock()
	phase := r.state.Phase
	r.mu.Unlock()

	switch ev.Type {
	case PlayerEnded:
		if phase == PhasePlayingWelcome {
			r.push(WelcomeEnded{})
		} else {
			r.push(SongEnded{})
		}
	case PlayerError:
		if phase == PhasePlayingWelcome {
			r.push(WelcomeFailed{Code: ev.Code})
		} else {
			r.push(SongFailed{Code: ev.Code})
		}
	}
}

func (r *Runner) step(ctx context.Context, ev Event) {
	r.mu.Lock()
	st := r.state
	r.mu.Unlock()

	next, cmds := r.machine.Reduce(st, ev)

	r.mu.Lock()
	r.state = next
	r.mu.Unlock()

	for _, cmd := range cmds {
		r.exec(ctx, cmd)
	}
}

func (r *Runner) exec(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case PlaySong:
		if err := r.marker.MarkSong(ctx, c.Entry.VisitID, c.Entry.TableID, c.Entry.ID, domain.SongPending, domain.SongSinging); err != nil {
			// Already singing after a redundant snapshot, or deleted under
			// us. Either way the queue feed will straighten it out.
			if !errors.Is(err, repository.ErrNotFound) {
				r.logger.Error("mark singing failed", "song", c.Entry.ID, "error", err)
			}
		}
		r.logger.Info("now playing",
			"song", c.Entry.ID,
			"title", c.Entry.Title,
			"table", c.Entry.TableName,
			"round", c.Entry.Round,
			"seq", c.Entry.SeqNum,
		)
		r.player.Play(c.Entry.TrackID)

	case PlayWelcome:
		r.logger.Info("playing welcome", "table", c.TableID, "url", c.URL)
		r.player.Play(c.URL)

	case MarkCompleted:
		if err := r.marker.MarkSong(ctx, c.Entry.VisitID, c.Entry.TableID, c.Entry.ID, domain.SongSinging, domain.SongCompleted); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				r.logger.Error("mark completed failed", "song", c.Entry.ID, "error", err)
			}
		}

	case StartGrace:
		time.AfterFunc(r.cfg.GraceDelay, func() {
			r.push(GraceElapsed{})
		})

	case StopPlayback:
		r.player.Stop()
	}
}
