package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/media"
	"videotube-backend/internal/users"
)

type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User   users.Profile
	Tokens TokenPair
}

type Service struct {
	store    users.Store
	issuer   *TokenIssuer
	verifier *TokenVerifier
	uploader media.Uploader
	logger   *zap.Logger
}

func NewService(store users.Store, issuer *TokenIssuer, verifier *TokenVerifier, uploader media.Uploader, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		issuer:   issuer,
		verifier: verifier,
		uploader: uploader,
		logger:   logger.Named("auth"),
	}
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (users.Profile, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	if input.Username == "" || input.Email == "" || input.FullName == "" || strings.TrimSpace(input.Password) == "" {
		return users.Profile{}, apperror.Validation("All fields are required")
	}

	_, err := s.store.FindByUsernameOrEmail(ctx, input.Username, input.Email)
	switch {
	case err == nil:
		return users.Profile{}, apperror.Conflict("User with given username or email already exists")
	case !errors.Is(err, users.ErrNotFound):
		return users.Profile{}, apperror.Internal("User could not be registered", err)
	}

	if input.Avatar == nil {
		return users.Profile{}, apperror.Validation("Avatar file is required")
	}

	avatarURL, err := s.uploader.Upload(ctx, *input.Avatar)
	if err != nil {
		return users.Profile{}, apperror.Internal("Avatar could not be uploaded", err)
	}

	var coverURL string
	if input.CoverImage != nil {
		coverURL, err = s.uploader.Upload(ctx, *input.CoverImage)
		if err != nil {
			return users.Profile{}, apperror.Internal("Cover image could not be uploaded", err)
		}
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return users.Profile{}, apperror.Internal("User could not be registered", err)
	}

	user, err := s.store.Create(ctx, users.NewUser{
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return users.Profile{}, apperror.Conflict("User with given username or email already exists")
		}
		return users.Profile{}, apperror.Internal("User could not be registered", err)
	}

	s.logger.Info("user_registered", zap.String("user_id", user.ID))
	return user.Sanitize(), nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if input.Username == "" && input.Email == "" {
		return LoginResult{}, apperror.Validation("username or email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return LoginResult{}, apperror.Validation("password is required")
	}

	user, err := s.store.FindByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return LoginResult{}, apperror.NotFound("User does not exist")
		}
		return LoginResult{}, apperror.Internal("failed to login", err)
	}

	if !CheckPassword(user.PasswordHash, input.Password) {
		s.logger.Info("login_rejected", zap.String("user_id", user.ID))
		return LoginResult{}, apperror.Unauthorized("Invalid user credentials")
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{User: user.Sanitize(), Tokens: pair}, nil
}

// Logout invalidates the stored refresh token. Access tokens already issued
// stay valid until they expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, users.ErrNotFound) {
		return apperror.Internal("failed to logout", err)
	}
	return nil
}

// Refresh rotates the refresh token: the presented value stops being valid
// once the new pair is persisted.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, apperror.Unauthorized("Unauthorized request")
	}

	user, err := s.verifier.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	return s.issuer.Issue(ctx, user.ID)
}
