package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `
	u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image, u.password_hash,
	u.refresh_token, u.refresh_token_expires_at,
	COALESCE((
		SELECT string_agg(w.video_id, ',' ORDER BY w.watched_at DESC)
		FROM watch_history w
		WHERE w.user_id = u.id
	), ''),
	u.created_at, u.updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u            User
		refreshToken sql.NullString
		expiresAt    sql.NullTime
		history      string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage, &u.PasswordHash,
		&refreshToken, &expiresAt, &history, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	u.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		value := expiresAt.Time.UTC()
		u.RefreshTokenExpiresAt = &value
	}
	u.WatchHistory = []string{}
	if history != "" {
		u.WatchHistory = strings.Split(history, ",")
	}
	return u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.queryOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error) {
	username = NormalizeHandle(username)
	email = NormalizeHandle(email)
	if username == "" && email == "" {
		return User{}, ErrNotFound
	}

	return s.queryOne(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE ($1 <> '' AND u.username = $1) OR ($2 <> '' AND u.email = $2)
		LIMIT 1
	`, username, email)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Create(ctx context.Context, input NewUser) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	u := User{
		ID:           id.String(),
		Username:     NormalizeHandle(input.Username),
		Email:        NormalizeHandle(input.Email),
		FullName:     input.FullName,
		Avatar:       input.Avatar,
		CoverImage:   input.CoverImage,
		PasswordHash: input.PasswordHash,
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, u.ID, u.Username, u.Email, u.FullName, u.Avatar, u.CoverImage, u.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (s *PostgresStore) UpdateDetails(ctx context.Context, id, fullName, email string) (User, error) {
	return s.queryOne(ctx, `
		UPDATE users AS u
		SET full_name = $2, email = $3, updated_at = $4
		WHERE u.id = $1
		RETURNING `+userColumns,
		id, fullName, NormalizeHandle(email), time.Now().UTC())
}

func (s *PostgresStore) UpdateImage(ctx context.Context, id string, field ImageField, url string) (User, error) {
	column := "avatar"
	if field == ImageCover {
		column = "cover_image"
	}

	return s.queryOne(ctx, `
		UPDATE users AS u
		SET `+column+` = $2, updated_at = $3
		WHERE u.id = $1
		RETURNING `+userColumns,
		id, url, time.Now().UTC())
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx, "update password", `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
}

func (s *PostgresStore) SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return s.exec(ctx, "set refresh token", `
		UPDATE users SET refresh_token = $2, refresh_token_expires_at = $3 WHERE id = $1
	`, id, token, expiresAt.UTC())
}

func (s *PostgresStore) ClearRefreshToken(ctx context.Context, id string) error {
	return s.exec(ctx, "clear refresh token", `
		UPDATE users SET refresh_token = NULL, refresh_token_expires_at = NULL WHERE id = $1
	`, id)
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearExpiredRefreshTokens(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = NULL, refresh_token_expires_at = NULL
		WHERE id IN (
			SELECT id FROM users
			WHERE refresh_token_expires_at <= $1
			LIMIT $2
		)
	`, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("clear expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
