// Package users holds the credential store: user records, their password
// hash, and the single refresh token currently valid for each user.
package users

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or email already taken")
)

type User struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	Avatar                string     `json:"avatar"`
	CoverImage            string     `json:"coverImage"`
	PasswordHash          string     `json:"-"`
	RefreshToken          string     `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	WatchHistory          []string   `json:"watchHistory"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Profile is the only representation of a user that leaves the service.
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) Sanitize() Profile {
	history := u.WatchHistory
	if history == nil {
		history = []string{}
	}

	return Profile{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		WatchHistory: history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type NewUser struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Avatar       string
	CoverImage   string
}

type ImageField string

const (
	ImageAvatar ImageField = "avatar"
	ImageCover  ImageField = "coverImage"
)

type Store interface {
	FindByID(ctx context.Context, id string) (User, error)
	// FindByUsernameOrEmail matches either field; empty arguments are ignored.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error)
	Create(ctx context.Context, input NewUser) (User, error)
	UpdateDetails(ctx context.Context, id, fullName, email string) (User, error)
	UpdateImage(ctx context.Context, id string, field ImageField, url string) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetRefreshToken overwrites only the refresh token fields.
	SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id string) error
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time, limit int) (int64, error)
	Ping(ctx context.Context) error
}

func NormalizeHandle(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
