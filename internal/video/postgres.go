package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const videoColumns = `id, video_file, thumbnail, title, description, duration, views, is_published, owner_id, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (Video, error) {
	var v Video
	err := row.Scan(&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration,
		&v.Views, &v.IsPublished, &v.Owner, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *PostgresRepository) ListPublished(ctx context.Context, limit int) ([]Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+`
		FROM videos
		WHERE is_published
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func (r *PostgresRepository) Create(ctx context.Context, input NewVideo) (Video, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Video{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	v := Video{
		ID:          id.String(),
		VideoFile:   input.VideoFile,
		Thumbnail:   input.Thumbnail,
		Title:       input.Title,
		Description: input.Description,
		Duration:    input.Duration,
		IsPublished: true,
		Owner:       input.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, TRUE, $7, $8, $8)
	`, v.ID, v.VideoFile, v.Thumbnail, v.Title, v.Description, v.Duration, v.Owner, now)
	if err != nil {
		return Video{}, fmt.Errorf("insert video: %w", err)
	}

	return v, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("query video: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) RecordView(ctx context.Context, videoID, viewerID string) (Video, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Video{}, fmt.Errorf("begin record view tx: %w", err)
	}
	defer tx.Rollback()

	v, err := scanVideo(tx.QueryRowContext(ctx, `
		UPDATE videos SET views = views + 1
		WHERE id = $1
		RETURNING `+videoColumns,
		videoID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("increment views: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, video_id)
		DO UPDATE SET watched_at = EXCLUDED.watched_at
	`, viewerID, videoID, time.Now().UTC()); err != nil {
		return Video{}, fmt.Errorf("upsert watch history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM watch_history
		WHERE user_id = $1
		AND video_id NOT IN (
			SELECT video_id FROM watch_history
			WHERE user_id = $1
			ORDER BY watched_at DESC
			LIMIT $2
		)
	`, viewerID, MaxWatchHistory); err != nil {
		return Video{}, fmt.Errorf("trim watch history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Video{}, fmt.Errorf("commit record view tx: %w", err)
	}

	return v, nil
}
