package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/repository"
	postgresrepo "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/songqueue"
)

type Config struct {
	TableListTTL   time.Duration
	VisitDetailTTL time.Duration
	QueueTTL       time.Duration
}

// Service is the read side: table listings, visit detail for the guest
// screen and the cross-table queue for the playback screen. Everything is
// cached with short TTLs; mutators invalidate through their after-commit
// hooks, so the TTL only bounds staleness when an invalidation is lost.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.TableListTTL <= 0 {
		cfg.TableListTTL = 60 * time.Second
	}

	if cfg.VisitDetailTTL <= 0 {
		cfg.VisitDetailTTL = 5 * time.Second
	}

	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = 2 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// ListTables lists all tables with their live status.
func (s *Service) ListTables(ctx context.Context) ([]domain.Table, error) {
	const op = "service.query.ListTables"

	tables, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyTableList(),
		s.cfg.TableListTTL,
		func(ctx context.Context) ([]domain.Table, error) {
			return s.store.Tables().List(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tables, nil
}

// GetTable retrieves one table.
//
// Returns:
//   - *domain.Table: the table, or nil if not found.
//   - error: query.ErrTableNotFound if the table is not found.
func (s *Service) GetTable(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "service.query.GetTable"

	table, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyTable(id),
		s.cfg.TableListTTL,
		func(ctx context.Context) (domain.Table, error) {
			t, err := s.store.Tables().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Table{}, ErrTableNotFound
				}

				return domain.Table{}, err
			}

			return *t, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &table, nil
}

// GetVisit retrieves a visit with songs, participants and guest requests.
//
// Returns:
//   - *domain.Visit: the visit, or nil if not found.
//   - error: query.ErrVisitNotFound if the visit is not found.
func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*domain.Visit, error) {
	const op = "service.query.GetVisit"

	visit, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyVisit(id.String()),
		s.cfg.VisitDetailTTL,
		func(ctx context.Context) (domain.Visit, error) {
			v, err := s.store.Visits().GetDetail(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Visit{}, ErrVisitNotFound
				}

				return domain.Visit{}, err
			}

			return *v, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &visit, nil
}

// CrossTableQueue returns the globally ordered queue of all active songs
// across online visits. The (requested_at, seq_num) sort happens in memory
// so the order the sequencer sees is exactly the order clients see.
func (s *Service) CrossTableQueue(ctx context.Context) ([]domain.QueueEntry, error) {
	const op = "service.query.CrossTableQueue"

	entries, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyCrossTableQueue(),
		s.cfg.QueueTTL,
		func(ctx context.Context) ([]domain.QueueEntry, error) {
			raw, err := s.store.Queue().CrossTable(ctx)
			if err != nil {
				return nil, err
			}

			return songqueue.SortEntries(raw), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}
