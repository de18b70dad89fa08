package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/kara-go/internal/domain"
	redisx "github.com/kirinyoku/kara-go/internal/redis"
	"github.com/kirinyoku/kara-go/internal/repository"
	postgresrepo "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/uow"
)

// Service is the single entry point for mutating a visit's song list. The
// admission check and the append run inside one serializable transaction,
// so two guests racing on the same stale snapshot cannot both commit; the
// loser retries at the HTTP layer or sees the round as full.
type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisx.VisitsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	uow     *uow.UoW
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.VisitsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		uow:     uow.NewUoW(store),
	}
}

// SongRequest is the payload of a guest's request; round and sequence
// number are assigned here, never by the caller.
type SongRequest struct {
	TrackID     string
	Title       string
	DurationSec int
	Thumbnail   string
	Greeting    string
	RequestedBy int64
}

// RequestSong admits one song into a visit's queue.
//
// Parameters:
//   - ctx: request-scoped context.
//   - visitID: target visit; must be online.
//   - req: the requested song payload.
//   - rlKey: rate-limit key for the requesting client, empty to skip.
//
// Returns:
//   - *domain.Song: the admitted song with round and seq assigned.
//   - error: admission.ErrRoundFull if the current round is at the limit.
//   - error: admission.ErrVisitNotFound if the visit is missing or not online.
//   - error: admission.ErrRateLimited if the client is over budget.
func (s *Service) RequestSong(
	ctx context.Context,
	visitID uuid.UUID,
	req SongRequest,
	rlKey string,
) (*domain.Song, error) {
	const op = "service.admission.RequestSong"

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	var admitted domain.Song

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visits := s.store.Visits().With(tx)

		visit, err := visits.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if visit.Status != domain.VisitOnline {
			return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
		}

		table, err := s.store.Tables().With(tx).Get(ctx, visit.TableID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		songs, err := visits.Songs(ctx, visitID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		round, seq, err := Decide(songs, table.SongLimit)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		admitted = domain.Song{
			ID:          uuid.New(),
			VisitID:     visitID,
			TrackID:     req.TrackID,
			Title:       req.Title,
			DurationSec: req.DurationSec,
			Thumbnail:   req.Thumbnail,
			Greeting:    req.Greeting,
			Round:       round,
			SeqNum:      seq,
			Status:      domain.SongPending,
			RequestedBy: req.RequestedBy,
		}

		if err := visits.AppendSong(ctx, admitted); err != nil {
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

	return &admitted, nil
}

// RemoveSong deletes a song that is still pending. Requesters may remove
// their own songs; staff may remove any.
//
// Returns:
//   - error: admission.ErrSongNotFound if the song does not exist.
//   - error: admission.ErrSongNotPending if it already started playing.
func (s *Service) RemoveSong(ctx context.Context, visitID, songID uuid.UUID) error {
	const op = "service.admission.RemoveSong"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		visits := s.store.Visits().With(tx)

		visit, err := visits.Get(ctx, visitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrVisitNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := visits.DeletePendingSong(ctx, visitID, songID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrSongNotFound)
			}
			if errors.Is(err, repository.ErrSongNotPending) {
				return fmt.Errorf("%s:%w", op, ErrSongNotPending)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateVisit(ctx, visitID.String())
			_ = s.pubsub.PublishVisitChanged(ctx, visitID.String(), visit.TableID)
		})

		return nil
	})

	return err
}

// LikeSong bumps the like counter of one song. A single-record increment,
// no transaction needed.
func (s *Service) LikeSong(ctx context.Context, visitID, songID uuid.UUID) (int, error) {
	const op = "service.admission.LikeSong"

	likes, err := s.store.Visits().LikeSong(ctx, songID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%s:%w", op, ErrSongNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidateVisit(ctx, visitID.String())

	return likes, nil
}
