package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/kara-go/internal/domain"
	redisx "github.com/kirinyoku/kara-go/internal/redis"
	"github.com/kirinyoku/kara-go/internal/repository"
	postgresrepo "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/uow"
)

type Config struct {
	// TxAttempts and TxBackoff bound the retry loop around reservation-path
	// transactions. Only serialization failures are retried; after the
	// budget runs out the caller gets ErrStoreUnavailable and no state has
	// changed.
	TxAttempts int
	TxBackoff  time.Duration
}

// Service drives the table/visit state machine: available → pending →
// online → completed/cancelled, with the table freed on every terminal
// transition. Every operation that touches more than one record runs in a
// single unit of work.
type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisx.VisitsPubSub
	uow    *uow.UoW
	cfg    Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.VisitsPubSub,
	cfg Config,
) *Service {
	if cfg.TxAttempts <= 0 {
		cfg.TxAttempts = 3
	}

	if cfg.TxBackoff <= 0 {
		cfg.TxBackoff = time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
		cfg:    cfg,
	}
}

// withRetry re-runs fn on transient serialization failures with a fixed
// backoff. Domain errors pass through on the first occurrence.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for attempt := 0; attempt < s.cfg.TxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.TxBackoff):
			}
		}

		err = fn()
		if err == nil || !postgresrepo.IsRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Reserve seats a host at a table: marks the user online, flips the table
// to occupied and creates the pending visit, all in one transaction. A
// failure at any step leaves nothing behind.
//
// Returns:
//   - *domain.Visit: the created visit in pending status.
//   - error: visits.ErrTableOccupied if the table is taken.
//   - error: visits.ErrTableNotFound if the table does not exist.
//   - error: visits.ErrStoreUnavailable after the retry budget.
func (s *Service) Reserve(
	ctx context.Context,
	tableID int64,
	userID int64,
	userName string,
) (*domain.Visit, error) {
	const op = "service.visits.Reserve"

	var visit domain.Visit

	err := s.withRetry(ctx, func() error {
		return s.uow.Do(ctx, func(
			ctx context.Context,
			tx postgresrepo.DB,
			after func(uow.AfterCommit),
		) error {
			tables := s.store.Tables().With(tx)
			visitsRepo := s.store.Visits().With(tx)

			table, err := tables.Get(ctx, tableID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrTableNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := tables.Occupy(ctx, tableID); err != nil {
				if errors.Is(err, repository.ErrTableOccupied) {
					return fmt.Errorf("%s:%w", op, ErrTableOccupied)
				}
				if errors.Is(err, repository.ErrTableInactive) {
					return fmt.Errorf("%s:%w", op, ErrTableInactive)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := visitsRepo.UpsertUser(ctx, userID, userName, true); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			visit = domain.Visit{
				ID:        uuid.New(),
				HostID:    userID,
				HostName:  userName,
				TableID:   table.ID,
				TableName: table.Name,
				Status:    domain.VisitPending,
			}

			if err := visitsRepo.Create(ctx, visit); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return fmt.Errorf("%s:%w", op, ErrTableOccupied)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := visitsRepo.AddParticipant(ctx, visit.ID, userID); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			after(func(ctx context.Context) {
				_ = s.cache.InvalidateTables(ctx, tableID)
				_ = s.cache.InvalidateVisit(ctx, visit.ID.String())
				_ = s.pubsub.PublishVisitChanged(ctx, visit.ID.String(), tableID)
			})

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &visit, nil
}

// Accept moves a pending visit online (staff accepted the reservation).
//
// Returns:
//   - error: visits.ErrVisitNotFound / visits.ErrVisitClosed.
func (s *Service) Accept(ctx context.Context, visitID uuid.UUID) error {
	const op = "service.visits.Accept"

	return s.withRetry(ctx, func() error {
		return s.uow.Do(ctx, func(
			ctx context.Context,
			tx postgresrepo.DB,
			after func(uow.AfterCommit),
		) error {
			visitsRepo := s.store.Visits().With(tx)

			visit, err := visitsRepo.Get(ctx, visitID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			err = visitsRepo.SetStatus(ctx, visitID,
				[]domain.VisitStatus{domain.VisitPending}, domain.VisitOnline)
			if err != nil {
				if errors.Is(err, repository.ErrVisitClosed) {
					return fmt.Errorf("%s:%w", op, ErrVisitClosed)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			after(func(ctx context.Context) {
				_ = s.cache.InvalidateVisit(ctx, visitID.String())
				_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
			})

			return nil
		})
	})
}

// Reject cancels a pending visit and frees the table.
func (s *Service) Reject(ctx context.Context, visitID uuid.UUID) error {
	const op = "service.visits.Reject"

	return s.withRetry(ctx, func() error {
		return s.cancel(ctx, op, visitID, []domain.VisitStatus{domain.VisitPending})
	})
}

// HostExit cancels a pending or online visit, frees the table and evicts
// every participant.
func (s *Service) HostExit(ctx context.Context, visitID uuid.UUID) error {
	const op = "service.visits.HostExit"

	return s.withRetry(ctx, func() error {
		return s.cancel(ctx, op, visitID,
			[]domain.VisitStatus{domain.VisitPending, domain.VisitOnline})
	})
}

func (s *Service) cancel(
	ctx context.Context,
	op string,
	visitID uuid.UUID,
	from []domain.VisitStatus,
) error {
	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visitsRepo := s.store.Visits().With(tx)

		visit, err := visitsRepo.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		participants, err := visitsRepo.Participants(ctx, visitID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visitsRepo.SetStatus(ctx, visitID, from, domain.VisitCancelled); err != nil {
			if errors.Is(err, repository.ErrVisitClosed) {
				return fmt.Errorf("%s:%w", op, ErrVisitClosed)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := s.store.Tables().With(tx).Release(ctx, visit.TableID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visitsRepo.SetUsersOffline(ctx, participants); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateTables(ctx, visit.TableID)
			_ = s.cache.InvalidateVisit(ctx, visitID.String())
			_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
		})

		return nil
	})
}

// RequestJoin records a guest's request to join a visit. Staff accept or
// reject it later; until then the guest is not a participant.
func (s *Service) RequestJoin(
	ctx context.Context,
	visitID uuid.UUID,
	userID int64,
	userName string,
) (*domain.GuestRequest, error) {
	const op = "service.visits.RequestJoin"

	req := domain.GuestRequest{
		ID:       uuid.New(),
		VisitID:  visitID,
		UserID:   userID,
		UserName: userName,
		Status:   domain.GuestPending,
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visitsRepo := s.store.Visits().With(tx)

		visit, err := visitsRepo.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if visit.Status != domain.VisitPending && visit.Status != domain.VisitOnline {
			return fmt.Errorf("%s:%w", op, ErrVisitClosed)
		}

		if err := visitsRepo.CreateGuestRequest(ctx, req); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateVisit(ctx, visitID.String())
			_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &req, nil
}

// AcceptGuest flips one pending guest request to online and adds the user
// to the participant list, reading the current guest list inside the same
// transaction so concurrent requests are never lost.
//
// Returns:
//   - error: visits.ErrGuestNotFound if no pending request matches.
func (s *Service) AcceptGuest(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "service.visits.AcceptGuest"

	return s.withRetry(ctx, func() error {
		return s.uow.Do(ctx, func(
			ctx context.Context,
			tx postgresrepo.DB,
			after func(uow.AfterCommit),
		) error {
			visitsRepo := s.store.Visits().With(tx)

			visit, err := visitsRepo.Get(ctx, visitID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			name, err := visitsRepo.AcceptGuestRequest(ctx, visitID, userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrGuestNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := visitsRepo.AddParticipant(ctx, visitID, userID); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := visitsRepo.UpsertUser(ctx, userID, name, true); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			after(func(ctx context.Context) {
				_ = s.cache.InvalidateVisit(ctx, visitID.String())
				_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
			})

			return nil
		})
	})
}

// RejectGuest drops one guest request without touching the participant
// list.
func (s *Service) RejectGuest(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "service.visits.RejectGuest"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visitsRepo := s.store.Visits().With(tx)

		visit, err := visitsRepo.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visitsRepo.DeleteGuestRequest(ctx, visitID, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrGuestNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateVisit(ctx, visitID.String())
			_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
		})

		return nil
	})
}

// GuestExit removes one participant, leaving the visit and the table
// untouched.
func (s *Service) GuestExit(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "service.visits.GuestExit"

	return s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visitsRepo := s.store.Visits().With(tx)

		visit, err := visitsRepo.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visitsRepo.RemoveParticipant(ctx, visitID, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrNotParticipant)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visitsRepo.SetUsersOffline(ctx, []int64{userID}); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateVisit(ctx, visitID.String())
			_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
		})

		return nil
	})
}

// SetCallWaiter toggles the call-waiter flag on an active visit.
func (s *Service) SetCallWaiter(ctx context.Context, visitID uuid.UUID, on bool) error {
	const op = "service.visits.SetCallWaiter"

	visit, err := s.store.Visits().Get(ctx, visitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Visits().SetCallWaiter(ctx, visitID, on); err != nil {
		if errors.Is(err, repository.ErrVisitClosed) {
			return fmt.Errorf("%s:%w", op, ErrVisitClosed)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateVisit(ctx, visitID.String())
	_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)

	return nil
}

// MarkSong persists a playback status transition on one song and pushes
// the change out the same way every other mutation does: the cached visit
// and cross-table queue are dropped and a feed message goes out, so the
// next snapshot the playback screen derives already reflects the mark.
//
// Returns:
//   - error: wrapping repository.ErrNotFound when no song matched the
//     status guard; the sequencer treats that as an already-applied
//     transition.
func (s *Service) MarkSong(
	ctx context.Context,
	visitID uuid.UUID,
	tableID int64,
	songID uuid.UUID,
	from domain.SongStatus,
	to domain.SongStatus,
) error {
	const op = "service.visits.MarkSong"

	if err := s.store.Visits().SetSongStatus(ctx, songID, from, to); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateVisit(ctx, visitID.String())
	_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), tableID)

	return nil
}

// CompleteResult reports the per-participant counter updates that failed
// after a successful completion. The completion itself is never rolled
// back over these.
type CompleteResult struct {
	VisitID     uuid.UUID `json:"visit_id"`
	FailedUsers []int64   `json:"failed_users,omitempty"`
}

// Complete closes an online visit: records points and consumption, frees
// the table and marks participants offline, all atomically. The lifetime
// counter bump of each participant then runs independently; failures are
// collected into the result instead of aborting the others.
//
// Returns:
//   - *CompleteResult: always set on success, listing users whose counters
//     could not be updated.
//   - error: visits.ErrVisitNotFound / visits.ErrVisitClosed.
func (s *Service) Complete(
	ctx context.Context,
	visitID uuid.UUID,
	points int,
	consumptionCents int,
) (*CompleteResult, error) {
	const op = "service.visits.Complete"

	var participants []int64
	var tableID int64

	err := s.withRetry(ctx, func() error {
		return s.uow.Do(ctx, func(
			ctx context.Context,
			tx postgresrepo.DB,
			after func(uow.AfterCommit),
		) error {
			visitsRepo := s.store.Visits().With(tx)

			visit, err := visitsRepo.Get(ctx, visitID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			tableID = visit.TableID

			participants, err = visitsRepo.Participants(ctx, visitID)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := visitsRepo.Complete(ctx, visitID, points, consumptionCents); err != nil {
				if errors.Is(err, repository.ErrVisitClosed) {
					return fmt.Errorf("%s:%w", op, ErrVisitClosed)
				}
				return fmt.Errorf("%s:%w", op, err)
			}

			if err := s.store.Tables().With(tx).Release(ctx, visit.TableID); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			after(func(ctx context.Context) {
				_ = s.cache.InvalidateTables(ctx, tableID)
				_ = s.cache.InvalidateVisit(ctx, visitID.String())
				_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), tableID)
			})

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	res := &CompleteResult{VisitID: visitID}
	for _, uid := range participants {
		if err := s.store.Visits().BumpUserCounters(ctx, uid, points); err != nil {
			res.FailedUsers = append(res.FailedUsers, uid)
		}
	}

	return res, nil
}
