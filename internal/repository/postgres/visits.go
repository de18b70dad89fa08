package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/kara-go/internal/domain"
	"github.com/kirinyoku/kara-go/internal/repository"
)

type VisitRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *VisitRepo) With(db DB) *VisitRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *VisitRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a new visit in pending status.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - v: visit to insert; ID must be set by the caller.
//
// Returns:
//   - error: repository.ErrConflict if the table already has an active visit.
func (r *VisitRepo) Create(ctx context.Context, v domain.Visit) error {
	const op = "postgres.VisitRepo.Create"

	db := r.handle()

	// Partial unique index on visits(table_id) WHERE status IN
	// ('pending','online') backs the one-active-visit-per-table invariant.
	_, err := db.Exec(ctx,
		`INSERT INTO visits(id, host_id, host_name, table_id, table_name, status, call_waiter, created_at)
       	 VALUES ($1, $2, $3, $4, $5, 'pending', false, now())`,
		v.ID, v.HostID, v.HostName, v.TableID, v.TableName,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves a visit row by its ID, without songs or guest requests.
//
// Returns:
//   - *domain.Visit: the visit when found.
//   - error: repository.ErrNotFound if the visit is not found.
func (r *VisitRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Visit, error) {
	const op = "postgres.VisitRepo.Get"

	db := r.handle()

	var v domain.Visit
	err := db.QueryRow(ctx,
		`SELECT id, host_id, host_name, table_id, table_name, status, call_waiter,
       	        points, consumption_cents, created_at
       	 FROM visits WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.HostID, &v.HostName, &v.TableID, &v.TableName, &v.Status,
		&v.CallWaiter, &v.Points, &v.ConsumptionCents, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &v, nil
}

// GetDetail retrieves a visit with its participants, guest requests and
// songs (songs ordered by seq_num).
func (r *VisitRepo) GetDetail(ctx context.Context, id uuid.UUID) (*domain.Visit, error) {
	const op = "postgres.VisitRepo.GetDetail"

	v, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT user_id FROM visit_participants WHERE visit_id = $1 ORDER BY joined_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		v.Participants = append(v.Participants, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	rows, err = db.Query(ctx,
		`SELECT id, visit_id, user_id, user_name, status, created_at
		 FROM guest_requests WHERE visit_id = $1 ORDER BY created_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	for rows.Next() {
		var g domain.GuestRequest
		if err := rows.Scan(&g.ID, &g.VisitID, &g.UserID, &g.UserName, &g.Status, &g.Created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		v.GuestRequests = append(v.GuestRequests, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	songs, err := r.Songs(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Songs = songs

	return v, nil
}

// SetStatus transitions a visit between statuses with a guard on the
// current status. Zero affected rows means the visit was not in any of the
// expected statuses.
//
// Returns:
//   - error: repository.ErrVisitClosed if the transition guard failed.
//   - error: repository.ErrNotFound if the visit does not exist.
func (r *VisitRepo) SetStatus(
	ctx context.Context,
	id uuid.UUID,
	from []domain.VisitStatus,
	to domain.VisitStatus,
) error {
	const op = "postgres.VisitRepo.SetStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE visits SET status = $3
      	 WHERE id = $1 AND status = ANY($2)`,
		id, statusStrings(from), to,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM visits WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrVisitClosed)
	}

	return nil
}

// Complete closes an online visit, recording points and consumption.
//
// Returns:
//   - error: repository.ErrVisitClosed if the visit is not online.
func (r *VisitRepo) Complete(ctx context.Context, id uuid.UUID, points, consumptionCents int) error {
	const op = "postgres.VisitRepo.Complete"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE visits SET status = 'completed', points = $2, consumption_cents = $3
      	 WHERE id = $1 AND status = 'online'`,
		id, points, consumptionCents,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrVisitClosed)
	}

	return nil
}

func (r *VisitRepo) SetCallWaiter(ctx context.Context, id uuid.UUID, on bool) error {
	const op = "postgres.VisitRepo.SetCallWaiter"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE visits SET call_waiter = $2
      	 WHERE id = $1 AND status IN ('pending', 'online')`,
		id, on,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrVisitClosed)
	}

	return nil
}

// --- guest requests & participants ---

func (r *VisitRepo) CreateGuestRequest(ctx context.Context, g domain.GuestRequest) error {
	const op = "postgres.VisitRepo.CreateGuestRequest"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO guest_requests(id, visit_id, user_id, user_name, status, created_at)
       	 VALUES ($1, $2, $3, $4, 'pending', now())`,
		g.ID, g.VisitID, g.UserID, g.UserName,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// AcceptGuestRequest flips one pending guest request to online and returns
// the guest's display name, so the caller can add the participant in the
// same transaction.
//
// Returns:
//   - string: the display name of the accepted guest.
//   - error: repository.ErrNotFound if no pending request matches.
func (r *VisitRepo) AcceptGuestRequest(ctx context.Context, visitID uuid.UUID, userID int64) (string, error) {
	const op = "postgres.VisitRepo.AcceptGuestRequest"

	db := r.handle()

	var name string
	err := db.QueryRow(ctx,
		`UPDATE guest_requests SET status = 'online'
      	 WHERE visit_id = $1 AND user_id = $2 AND status = 'pending'
      	 RETURNING user_name`,
		visitID, userID,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return "", fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return name, nil
}

func (r *VisitRepo) DeleteGuestRequest(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "postgres.VisitRepo.DeleteGuestRequest"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM guest_requests WHERE visit_id = $1 AND user_id = $2`,
		visitID, userID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *VisitRepo) AddParticipant(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "postgres.VisitRepo.AddParticipant"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO visit_participants(visit_id, user_id, joined_at)
       	 VALUES ($1, $2, now())
       	 ON CONFLICT DO NOTHING`,
		visitID, userID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *VisitRepo) RemoveParticipant(ctx context.Context, visitID uuid.UUID, userID int64) error {
	const op = "postgres.VisitRepo.RemoveParticipant"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM visit_participants WHERE visit_id = $1 AND user_id = $2`,
		visitID, userID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Participants returns the user IDs currently attached to a visit.
func (r *VisitRepo) Participants(ctx context.Context, visitID uuid.UUID) ([]int64, error) {
	const op = "postgres.VisitRepo.Participants"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT user_id FROM visit_participants WHERE visit_id = $1 ORDER BY joined_at`,
		visitID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// --- songs ---

// Songs returns all songs of a visit ordered by seq_num. This is the
// snapshot admission decisions are made against.
func (r *VisitRepo) Songs(ctx context.Context, visitID uuid.UUID) ([]domain.Song, error) {
	const op = "postgres.VisitRepo.Songs"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+songColumns+`
		 FROM songs WHERE visit_id = $1
		 ORDER BY seq_num`,
		visitID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	songs, err := collectSongs(rows)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return songs, nil
}

// AppendSong inserts one admitted song. Round and SeqNum must already be
// assigned. A duplicate (visit_id, seq_num) is not rejected here: the
// ordering key is best-effort under concurrent admission.
func (r *VisitRepo) AppendSong(ctx context.Context, s domain.Song) error {
	const op = "postgres.VisitRepo.AppendSong"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO songs(id, visit_id, track_id, title, duration_sec, thumbnail, greeting,
		                   round, seq_num, likes, status, requested_by, requested_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 'pending', $10, now())`,
		s.ID, s.VisitID, s.TrackID, s.Title, s.DurationSec, s.Thumbnail, s.Greeting,
		s.Round, s.SeqNum, s.RequestedBy,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// SetSongStatus transitions one song with a guard on its current status.
//
// Returns:
//   - error: repository.ErrNotFound if no song matched the guard. Callers
//     that re-apply transitions after an at-least-once feed event treat
//     this as a no-op.
func (r *VisitRepo) SetSongStatus(
	ctx context.Context,
	songID uuid.UUID,
	from domain.SongStatus,
	to domain.SongStatus,
) error {
	const op = "postgres.VisitRepo.SetSongStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE songs SET status = $3
      	 WHERE id = $1 AND status = $2`,
		songID, from, to,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// DeletePendingSong removes a song that has not started playing yet.
//
// Returns:
//   - error: repository.ErrSongNotPending if the song exists but already
//     left pending status.
//   - error: repository.ErrNotFound if the song does not exist.
func (r *VisitRepo) DeletePendingSong(ctx context.Context, visitID, songID uuid.UUID) error {
	const op = "postgres.VisitRepo.DeletePendingSong"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM songs WHERE id = $1 AND visit_id = $2 AND status = 'pending'`,
		songID, visitID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM songs WHERE id = $1 AND visit_id = $2)`,
			songID, visitID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		if !exists {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrSongNotPending)
	}

	return nil
}

// LikeSong increments the like counter. Lost increments under races are
// impossible: the add happens in the database.
func (r *VisitRepo) LikeSong(ctx context.Context, songID uuid.UUID) (int, error) {
	const op = "postgres.VisitRepo.LikeSong"

	db := r.handle()

	var likes int
	err := db.QueryRow(ctx,
		`UPDATE songs SET likes = likes + 1 WHERE id = $1 RETURNING likes`,
		songID,
	).Scan(&likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return likes, nil
}

// --- users ---

// UpsertUser creates or refreshes a user row and sets the online flag.
func (r *VisitRepo) UpsertUser(ctx context.Context, userID int64, name string, online bool) error {
	const op = "postgres.VisitRepo.UpsertUser"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO users(id, name, online)
       	 VALUES ($1, $2, $3)
       	 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, online = EXCLUDED.online`,
		userID, name, online,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// SetUsersOffline clears the online flag for a batch of users.
func (r *VisitRepo) SetUsersOffline(ctx context.Context, userIDs []int64) error {
	const op = "postgres.VisitRepo.SetUsersOffline"

	if len(userIDs) == 0 {
		return nil
	}

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE users SET online = false WHERE id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// BumpUserCounters adds one completed visit and the earned points to a
// user's lifetime counters and clears the online flag.
func (r *VisitRepo) BumpUserCounters(ctx context.Context, userID int64, points int) error {
	const op = "postgres.VisitRepo.BumpUserCounters"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE users
      	 SET visit_count = visit_count + 1, points = points + $2, online = false
      	 WHERE id = $1`,
		userID, points,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func statusStrings(in []domain.VisitStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
