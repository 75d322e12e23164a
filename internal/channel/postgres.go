package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"videotube-backend/internal/video"
)

type PostgresQueries struct {
	db *sql.DB
}

func NewPostgresQueries(db *sql.DB) *PostgresQueries {
	return &PostgresQueries{db: db}
}

func (q *PostgresQueries) ChannelProfile(ctx context.Context, username, viewerID string) (Profile, error) {
	var p Profile
	err := q.db.QueryRowContext(ctx, `
		SELECT
			u.id, u.full_name, u.username, u.email, u.avatar, u.cover_image,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
		FROM users u
		WHERE u.username = $1
	`, username, viewerID).Scan(
		&p.ID, &p.FullName, &p.Username, &p.Email, &p.Avatar, &p.CoverImage,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("query channel profile: %w", err)
	}
	return p, nil
}

func (q *PostgresQueries) WatchHistory(ctx context.Context, userID string) ([]WatchedVideo, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT
			v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration, v.views, v.created_at,
			o.id, o.username, o.full_name, o.avatar
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE h.user_id = $1
		ORDER BY h.watched_at DESC
		LIMIT $2
	`, userID, video.MaxWatchHistory)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := make([]WatchedVideo, 0)
	for rows.Next() {
		var w WatchedVideo
		if err := rows.Scan(
			&w.ID, &w.VideoFile, &w.Thumbnail, &w.Title, &w.Description, &w.Duration, &w.Views, &w.CreatedAt,
			&w.Owner.ID, &w.Owner.Username, &w.Owner.FullName, &w.Owner.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		history = append(history, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

func (q *PostgresQueries) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
	`, subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read delete result: %w", err)
	}
	if deleted > 0 {
		return false, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("generate uuid v7: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`, id.String(), subscriberID, channelID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return true, nil
}

var _ Queries = (*PostgresQueries)(nil)
