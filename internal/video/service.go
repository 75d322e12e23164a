package video

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/media"
)

type PublishInput struct {
	Title       string
	Description string
	Duration    string
	VideoFile   *media.File
	Thumbnail   *media.File
}

type Service struct {
	repo     Repository
	uploader media.Uploader
	logger   *zap.Logger
}

func NewService(repo Repository, uploader media.Uploader, logger *zap.Logger) *Service {
	return &Service{repo: repo, uploader: uploader, logger: logger.Named("video")}
}

func (s *Service) List(ctx context.Context) ([]Video, error) {
	videos, err := s.repo.ListPublished(ctx, listLimit)
	if err != nil {
		return nil, apperror.Internal("failed to list videos", err)
	}
	return videos, nil
}

func (s *Service) Publish(ctx context.Context, ownerID string, input PublishInput) (Video, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if title == "" {
		return Video{}, apperror.Validation("title is required")
	}
	if !utf8.ValidString(title) || utf8.RuneCountInString(title) > 150 {
		return Video{}, apperror.Validation("title is invalid")
	}
	if !utf8.ValidString(description) || utf8.RuneCountInString(description) > 5000 {
		return Video{}, apperror.Validation("description is invalid")
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(input.Duration), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return Video{}, apperror.Validation("duration must be a positive number")
	}
	if input.VideoFile == nil {
		return Video{}, apperror.Validation("videoFile is required")
	}
	if input.Thumbnail == nil {
		return Video{}, apperror.Validation("thumbnail is required")
	}

	videoURL, err := s.uploader.Upload(ctx, *input.VideoFile)
	if err != nil {
		return Video{}, apperror.Internal("Video file could not be uploaded", err)
	}
	thumbnailURL, err := s.uploader.Upload(ctx, *input.Thumbnail)
	if err != nil {
		return Video{}, apperror.Internal("Thumbnail could not be uploaded", err)
	}

	v, err := s.repo.Create(ctx, NewVideo{
		VideoFile:   videoURL,
		Thumbnail:   thumbnailURL,
		Title:       title,
		Description: description,
		Duration:    duration,
		Owner:       ownerID,
	})
	if err != nil {
		return Video{}, apperror.Internal("failed to publish video", err)
	}

	s.logger.Info("video_published", zap.String("video_id", v.ID), zap.String("owner_id", ownerID))
	return v, nil
}

// Watch returns the video and records the view. Unpublished videos are only
// visible to their owner.
func (s *Service) Watch(ctx context.Context, videoID, viewerID string) (Video, error) {
	v, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		return Video{}, s.repoError(err, "failed to load video")
	}
	if !v.IsPublished && v.Owner != viewerID {
		return Video{}, apperror.NotFound("Video not found")
	}

	v, err = s.repo.RecordView(ctx, videoID, viewerID)
	if err != nil {
		return Video{}, s.repoError(err, "failed to record view")
	}
	return v, nil
}

func (s *Service) repoError(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("Video not found")
	}
	return apperror.Internal(message, err)
}
