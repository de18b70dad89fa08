package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/kara-go/internal/domain"
)

type QueueRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueueRepo) With(db DB) *QueueRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueueRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CrossTable returns the flattened queue of every non-completed song across
// all online visits, annotated with its table and host. Rows come back in
// (requested_at, seq_num) order — the same total order the sequencer uses to
// pick its head — but callers still re-sort in memory and must not assume
// the database collation is the source of truth.
func (r *QueueRepo) CrossTable(ctx context.Context) ([]domain.QueueEntry, error) {
	const op = "postgres.QueueRepo.CrossTable"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT s.id, s.visit_id, s.track_id, s.title, s.duration_sec, s.thumbnail,
		        s.greeting, s.round, s.seq_num, s.likes, s.status, s.requested_by,
		        s.requested_at,
		        t.id, t.name, t.welcome_video, t.welcome_exempt, v.host_name
		 FROM songs s
		 JOIN visits v ON v.id = s.visit_id
		 JOIN tables t ON t.id = v.table_id
		 WHERE v.status = 'online'
		   AND s.status IN ('pending', 'singing')
		 ORDER BY s.requested_at, s.seq_num`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		if err := rows.Scan(
			&e.ID, &e.VisitID, &e.TrackID, &e.Title, &e.DurationSec, &e.Thumbnail,
			&e.Greeting, &e.Round, &e.SeqNum, &e.Likes, &e.Status, &e.RequestedBy,
			&e.RequestedAt,
			&e.TableID, &e.TableName, &e.WelcomeVideo, &e.WelcomeExempt, &e.HostName,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}
