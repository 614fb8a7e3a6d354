package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pipeband-quiz-service/internal/domain"
)

// Store is the Postgres catalog, user and result store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and checks the server is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) SampleTracks(ctx context.Context, n int) ([]domain.Track, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, media_ref, band, year, title, COALESCE(album, ''), COALESCE(preview_url, '')
		FROM tracks
		ORDER BY random()
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("sample tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		var t domain.Track
		if err := rows.Scan(&t.ID, &t.MediaRef, &t.Band, &t.Year, &t.Title, &t.Album, &t.PreviewURL); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, domain.ErrNoTracks
	}
	return tracks, nil
}

func (s *Store) DistinctBands(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT band FROM tracks ORDER BY band`)
	if err != nil {
		return nil, fmt.Errorf("distinct bands: %w", err)
	}
	defer rows.Close()

	var bands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan band: %w", err)
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

func (s *Store) DistinctYears(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT year FROM tracks ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("distinct years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// ReplaceTracks swaps the whole catalog in one transaction.
func (s *Store) ReplaceTracks(ctx context.Context, tracks []domain.Track) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tracks`); err != nil {
		return fmt.Errorf("clear tracks: %w", err)
	}

	seen := make(map[string]struct{}, len(tracks))
	rows := make([][]interface{}, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		rows = append(rows, []interface{}{t.ID, t.MediaRef, t.Band, t.Year, t.Title, nullable(t.Album), nullable(t.PreviewURL)})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"tracks"},
		[]string{"id", "media_ref", "band", "year", "title", "album", "preview_url"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy tracks: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) UpsertUser(ctx context.Context, u domain.User) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (spotify_id, display_name, email, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (spotify_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = now()
		RETURNING id::text`,
		u.SpotifyID, nullable(u.DisplayName), nullable(u.Email), nullable(u.AvatarURL),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}
	return id, nil
}

func (s *Store) CreateGameSession(ctx context.Context, r domain.GameResult) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO game_sessions (user_id, score, correct_answers, total_questions, time_taken_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text`,
		r.UserID, r.Score, r.CorrectAnswers, r.TotalQuestions, r.TimeTakenSeconds,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert game session: %w", err)
	}
	return id, nil
}

func (s *Store) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id::text, display_name, COALESCE(avatar_url, ''), best_score, best_correct
		FROM top_scores
		ORDER BY best_score DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.AvatarURL, &e.Score, &e.CorrectAnswers); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
