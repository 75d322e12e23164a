// Package userstest provides an in-memory users.Store for tests.
package userstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"videotube-backend/internal/users"
)

type Store struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]users.User

	// Err, when set, is returned by every method.
	Err error
}

func NewStore() *Store {
	return &Store{byID: make(map[string]users.User)}
}

var _ users.Store = (*Store)(nil)

func (s *Store) FindByID(_ context.Context, id string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return users.User{}, s.Err
	}

	u, ok := s.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) FindByUsernameOrEmail(_ context.Context, username, email string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return users.User{}, s.Err
	}

	username = users.NormalizeHandle(username)
	email = users.NormalizeHandle(email)
	for _, u := range s.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return clone(u), nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (s *Store) Create(_ context.Context, input users.NewUser) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return users.User{}, s.Err
	}

	username := users.NormalizeHandle(input.Username)
	email := users.NormalizeHandle(input.Email)
	for _, u := range s.byID {
		if u.Username == username || u.Email == email {
			return users.User{}, users.ErrDuplicate
		}
	}

	s.nextID++
	now := time.Now().UTC()
	u := users.User{
		ID:           fmt.Sprintf("u%d", s.nextID),
		Username:     username,
		Email:        email,
		FullName:     input.FullName,
		Avatar:       input.Avatar,
		CoverImage:   input.CoverImage,
		PasswordHash: input.PasswordHash,
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = u
	return clone(u), nil
}

func (s *Store) UpdateDetails(_ context.Context, id, fullName, email string) (users.User, error) {
	return s.update(id, func(u *users.User) error {
		email = users.NormalizeHandle(email)
		for otherID, other := range s.byID {
			if otherID != id && other.Email == email {
				return users.ErrDuplicate
			}
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (s *Store) UpdateImage(_ context.Context, id string, field users.ImageField, url string) (users.User, error) {
	return s.update(id, func(u *users.User) error {
		if field == users.ImageCover {
			u.CoverImage = url
		} else {
			u.Avatar = url
		}
		return nil
	})
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := s.update(id, func(u *users.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (s *Store) SetRefreshToken(_ context.Context, id, token string, expiresAt time.Time) error {
	_, err := s.update(id, func(u *users.User) error {
		u.RefreshToken = token
		u.RefreshTokenExpiresAt = &expiresAt
		return nil
	})
	return err
}

func (s *Store) ClearRefreshToken(_ context.Context, id string) error {
	_, err := s.update(id, func(u *users.User) error {
		u.RefreshToken = ""
		u.RefreshTokenExpiresAt = nil
		return nil
	})
	return err
}

func (s *Store) ClearExpiredRefreshTokens(_ context.Context, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	var cleared int64
	for id, u := range s.byID {
		if cleared >= int64(limit) {
			break
		}
		if u.RefreshTokenExpiresAt != nil && !u.RefreshTokenExpiresAt.After(now) {
			u.RefreshToken = ""
			u.RefreshTokenExpiresAt = nil
			s.byID[id] = u
			cleared++
		}
	}
	return cleared, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

// Put stores u as-is, replacing any record with the same id.
func (s *Store) Put(u users.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = clone(u)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) update(id string, fn func(*users.User) error) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return users.User{}, s.Err
	}

	u, ok := s.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return users.User{}, err
	}
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	return clone(u), nil
}

func clone(u users.User) users.User {
	u.WatchHistory = append([]string{}, u.WatchHistory...)
	if u.RefreshTokenExpiresAt != nil {
		value := *u.RefreshTokenExpiresAt
		u.RefreshTokenExpiresAt = &value
	}
	return u
}
