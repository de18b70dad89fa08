package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/repository"
	postgresrepo "github.com/kirinyoku/kara-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/kara-go/internal/repository/redis"
	"github.com/kirinyoku/kara-go/internal/uow"
)

// Service covers the venue setup operations behind the staff login:
// creating tables and taking them in and out of service.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	uow   *uow.UoW
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache) *Service {
	return &Service{
		store: store,
		cache: cache,
		uow:   uow.NewUoW(store),
	}
}

// CreateTable creates a table record and returns its ID.
//
// Returns:
//   - int64: the created table ID on success.
//   - error: staff.ErrTableConflict if a table with the same name exists.
func (s *Service) CreateTable(ctx context.Context, t domain.Table) (int64, error) {
	const op = "service.staff.CreateTable"

	if t.Status == "" {
		t.Status = domain.TableAvailable
	}
	if t.SongLimit <= 0 {
		t.SongLimit = 1
	}

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Tables().With(tx).Create(ctx, t)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrTableConflict)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateTables(ctx, id)
		})
		return nil
	})

	return id, err
}

// SetTableActive takes a table in or out of service. An occupied table
// cannot be deactivated; close its visit first.
//
// Returns:
//   - error: staff.ErrTableNotFound / staff.ErrTableOccupied.
func (s *Service) SetTableActive(ctx context.Context, tableID int64, active bool) error {
	const op = "service.staff.SetTableActive"

	if err := s.store.Tables().SetActive(ctx, tableID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTableNotFound)
		}
		if errors.Is(err, repository.ErrTableOccupied) {
			return fmt.Errorf("%s: %w", op, ErrTableOccupied)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.cache.InvalidateTables(ctx, tableID)

	return nil
}
