// Package account implements the profile operations available to a signed-in
// user.
package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/auth"
	"videotube-backend/internal/media"
	"videotube-backend/internal/users"
)

type Service struct {
	store    users.Store
	uploader media.Uploader
	logger   *zap.Logger
}

func NewService(store users.Store, uploader media.Uploader, logger *zap.Logger) *Service {
	return &Service{store: store, uploader: uploader, logger: logger.Named("account")}
}

// ChangePassword keeps the current refresh token; other sessions are not
// signed out.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return apperror.Validation("oldPassword and newPassword are required")
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return s.storeError(err, "failed to change password")
	}

	if !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return apperror.Validation("Invalid old password")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperror.Internal("failed to change password", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return s.storeError(err, "failed to change password")
	}

	s.logger.Info("password_changed", zap.String("user_id", userID))
	return nil
}

func (s *Service) UpdateDetails(ctx context.Context, userID, fullName, email string) (users.Profile, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" || email == "" {
		return users.Profile{}, apperror.Validation("All fields are required")
	}

	user, err := s.store.UpdateDetails(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return users.Profile{}, apperror.Conflict("Email is already in use")
		}
		return users.Profile{}, s.storeError(err, "failed to update account details")
	}
	return user.Sanitize(), nil
}

func (s *Service) UpdateImage(ctx context.Context, userID string, field users.ImageField, file *media.File) (users.Profile, error) {
	if file == nil {
		if field == users.ImageCover {
			return users.Profile{}, apperror.Validation("Cover image file is missing")
		}
		return users.Profile{}, apperror.Validation("Avatar file is missing")
	}

	url, err := s.uploader.Upload(ctx, *file)
	if err != nil {
		return users.Profile{}, apperror.Internal("Error while uploading "+string(field), err)
	}

	user, err := s.store.UpdateImage(ctx, userID, field, url)
	if err != nil {
		return users.Profile{}, s.storeError(err, "failed to update "+string(field))
	}
	return user.Sanitize(), nil
}

func (s *Service) storeError(err error, message string) error {
	if errors.Is(err, users.ErrNotFound) {
		return apperror.NotFound("User does not exist")
	}
	return apperror.Internal(message, err)
}
