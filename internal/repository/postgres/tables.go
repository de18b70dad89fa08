package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/repository"
)

type TableRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TableRepo) With(db DB) *TableRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TableRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a new table.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - t: table to insert; ID is assigned by the database.
//
// Returns:
//   - int64: the new table ID.
//   - error: repository.ErrConflict if a table with the same name exists.
func (r *TableRepo) Create(ctx context.Context, t domain.Table) (int64, error) {
	const op = "postgres.TableRepo.Create"

	db := r.handle()

	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO tables(name, abbreviation, song_limit, status, welcome_video, welcome_exempt)
       	 VALUES ($1, $2, $3, $4, $5, $6)
      	 RETURNING id`,
		t.Name, t.Abbreviation, t.SongLimit, t.Status, t.WelcomeVideo, t.WelcomeExempt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// Get retrieves a table by its ID.
//
// Returns:
//   - *domain.Table: the table when found.
//   - error: repository.ErrNotFound if the table is not found.
func (r *TableRepo) Get(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "postgres.TableRepo.Get"

	db := r.handle()

	var t domain.Table
	err := db.QueryRow(ctx,
		`SELECT id, name, abbreviation, song_limit, status, welcome_video, welcome_exempt
       	 FROM tables WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Abbreviation, &t.SongLimit, &t.Status, &t.WelcomeVideo, &t.WelcomeExempt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &t, nil
}

// List lists all tables ordered by name.
func (r *TableRepo) List(ctx context.Context) ([]domain.Table, error) {
	const op = "postgres.TableRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, name, abbreviation, song_limit, status, welcome_video, welcome_exempt
		 FROM tables
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.SongLimit, &t.Status, &t.WelcomeVideo, &t.WelcomeExempt); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// Occupy flips an available table to occupied. It is the compare-and-set
// half of the reservation transaction.
//
// Returns:
//   - error: repository.ErrTableOccupied if the table is taken.
//   - error: repository.ErrTableInactive if the table is out of service.
//   - error: repository.ErrNotFound if the table does not exist.
func (r *TableRepo) Occupy(ctx context.Context, id int64) error {
	const op = "postgres.TableRepo.Occupy"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE tables SET status = 'occupied'
      	 WHERE id = $1 AND status = 'available'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var status domain.TableStatus
		if err := db.QueryRow(ctx,
			`SELECT status FROM tables WHERE id = $1`, id,
		).Scan(&status); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if status == domain.TableInactive {
			return fmt.Errorf("%s:%w", op, repository.ErrTableInactive)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrTableOccupied)
	}

	return nil
}

// SetActive flips a table between available and inactive. Occupied tables
// cannot be deactivated.
//
// Returns:
//   - error: repository.ErrTableOccupied if the table is currently occupied.
//   - error: repository.ErrNotFound if the table does not exist.
func (r *TableRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const op = "postgres.TableRepo.SetActive"

	db := r.handle()

	to := domain.TableInactive
	if active {
		to = domain.TableAvailable
	}

	tag, err := db.Exec(ctx,
		`UPDATE tables SET status = $2
	      	 WHERE id = $1 AND status <> 'occupied'`,
		id, to,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tables WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrTableOccupied)
	}

	return nil
}

// Release returns an occupied table to available. Inactive tables keep
// their status.
func (r *TableRepo) Release(ctx context.Context, id int64) error {
	const op = "postgres.TableRepo.Release"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE tables SET status = 'available'
      	 WHERE id = $1 AND status = 'occupied'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
