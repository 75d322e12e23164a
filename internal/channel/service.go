package channel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/users"
)

type Service struct {
	queries Queries
	users   users.Store
	logger  *zap.Logger
}

func NewService(queries Queries, store users.Store, logger *zap.Logger) *Service {
	return &Service{queries: queries, users: store, logger: logger.Named("channel")}
}

func (s *Service) Profile(ctx context.Context, username, viewerID string) (Profile, error) {
	username = users.NormalizeHandle(username)
	if username == "" {
		return Profile{}, apperror.Validation("username is missing")
	}

	profile, err := s.queries.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, apperror.NotFound("channel does not exist")
		}
		return Profile{}, apperror.Internal("failed to load channel", err)
	}
	return profile, nil
}

func (s *Service) WatchHistory(ctx context.Context, userID string) ([]WatchedVideo, error) {
	history, err := s.queries.WatchHistory(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("failed to load watch history", err)
	}
	return history, nil
}

func (s *Service) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if channelID == "" {
		return false, apperror.Validation("channel id is missing")
	}
	if channelID == subscriberID {
		return false, apperror.Validation("You cannot subscribe to your own channel")
	}

	if _, err := s.users.FindByID(ctx, channelID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return false, apperror.NotFound("channel does not exist")
		}
		return false, apperror.Internal("failed to load channel", err)
	}

	subscribed, err := s.queries.ToggleSubscription(ctx, subscriberID, channelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, apperror.NotFound("channel does not exist")
		}
		return false, apperror.Internal("failed to toggle subscription", err)
	}

	s.logger.Debug("subscription_toggled",
		zap.String("subscriber_id", subscriberID),
		zap.String("channel_id", channelID),
		zap.Bool("subscribed", subscribed),
	)
	return subscribed, nil
}
