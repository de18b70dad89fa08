package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/kara-go/internal/domain"
)

const songColumns = `id, visit_id, track_id, title, duration_sec, thumbnail, greeting,
	round, seq_num, likes, status, requested_by, requested_at`

func scanSong(row pgx.Row) (domain.Song, error) {
	var s domain.Song
	err := row.Scan(
		&s.ID, &s.VisitID, &s.TrackID, &s.Title, &s.DurationSec, &s.Thumbnail,
		&s.Greeting, &s.Round, &s.SeqNum, &s.Likes, &s.Status,
		&s.RequestedBy, &s.RequestedAt,
	)
	return s, err
}

func collectSongs(rows pgx.Rows) ([]domain.Song, error) {
	defer rows.Close()

	var out []domain.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
