package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/users"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 10 * 24 * time.Hour
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = defaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = defaultRefreshTTL
	}
	return c
}

func (c TokenConfig) secret(kind TokenKind) []byte {
	if kind == KindRefresh {
		return []byte(c.RefreshSecret)
	}
	return []byte(c.AccessSecret)
}

func (c TokenConfig) ttl(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return c.RefreshTTL
	}
	return c.AccessTTL
}

type Claims struct {
	Kind TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

const msgTokenGeneration = "Something went wrong while generating refresh and access token"

// TokenIssuer mints access/refresh pairs and records the refresh token as the
// only one currently valid for the user.
type TokenIssuer struct {
	config TokenConfig
	store  users.Store
	now    func() time.Time
}

func NewTokenIssuer(config TokenConfig, store users.Store) *TokenIssuer {
	return &TokenIssuer{config: config.withDefaults(), store: store, now: time.Now}
}

func (i *TokenIssuer) Issue(ctx context.Context, userID string) (TokenPair, error) {
	now := i.now().UTC()

	access, err := i.sign(KindAccess, userID, now)
	if err != nil {
		return TokenPair{}, apperror.Internal(msgTokenGeneration, err)
	}
	refresh, err := i.sign(KindRefresh, userID, now)
	if err != nil {
		return TokenPair{}, apperror.Internal(msgTokenGeneration, err)
	}

	if err := i.store.SetRefreshToken(ctx, userID, refresh, now.Add(i.config.RefreshTTL)); err != nil {
		return TokenPair{}, apperror.Internal(msgTokenGeneration, fmt.Errorf("persist refresh token: %w", err))
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *TokenIssuer) sign(kind TokenKind, userID string, now time.Time) (string, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.ttl(kind))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.secret(kind))
	if err != nil {
		return "", fmt.Errorf("sign %s jwt: %w", kind, err)
	}
	return signed, nil
}

type TokenVerifier struct {
	config TokenConfig
	store  users.Store
	now    func() time.Time
}

func NewTokenVerifier(config TokenConfig, store users.Store) *TokenVerifier {
	return &TokenVerifier{config: config.withDefaults(), store: store, now: time.Now}
}

// VerifyAccess returns the token's user with password hash and refresh token
// stripped.
func (v *TokenVerifier) VerifyAccess(ctx context.Context, token string) (users.User, error) {
	claims, err := v.parse(token, KindAccess)
	if err != nil {
		return users.User{}, apperror.Unauthorized("Invalid Access Token")
	}

	user, err := v.load(ctx, claims.Subject, "Invalid Access Token")
	if err != nil {
		return users.User{}, err
	}

	user.PasswordHash = ""
	user.RefreshToken = ""
	user.RefreshTokenExpiresAt = nil
	return user, nil
}

// VerifyRefresh accepts token only if it is the exact value stored for its
// subject; rotated or cleared tokens fail even before they expire.
func (v *TokenVerifier) VerifyRefresh(ctx context.Context, token string) (users.User, error) {
	claims, err := v.parse(token, KindRefresh)
	if err != nil {
		return users.User{}, apperror.Unauthorized("Invalid refresh token")
	}

	user, err := v.load(ctx, claims.Subject, "Invalid refresh token")
	if err != nil {
		return users.User{}, err
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(token)) != 1 {
		return users.User{}, apperror.Unauthorized("Refresh token is expired or used")
	}
	return user, nil
}

func (v *TokenVerifier) parse(token string, kind TokenKind) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.config.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return Claims{}, errors.New("unexpected token claims")
	}
	return claims, nil
}

func (v *TokenVerifier) load(ctx context.Context, userID, unauthorizedMessage string) (users.User, error) {
	user, err := v.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, apperror.Unauthorized(unauthorizedMessage)
		}
		return users.User{}, apperror.Internal("failed to load user", err)
	}
	return user, nil
}
