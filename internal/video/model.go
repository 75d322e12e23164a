// Package video publishes, lists and plays videos. Playing a video counts a
// view and moves it to the front of the viewer's watch history.
package video

import (
	"context"
	"errors"
	"time"
)

const (
	MaxWatchHistory = 100
	listLimit       = 50
)

var ErrNotFound = errors.New("video not found")

type Video struct {
	ID          string    `json:"id"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type NewVideo struct {
	VideoFile   string
	Thumbnail   string
	Title       string
	Description string
	Duration    float64
	Owner       string
}

type Repository interface {
	ListPublished(ctx context.Context, limit int) ([]Video, error)
	Create(ctx context.Context, input NewVideo) (Video, error)
	FindByID(ctx context.Context, id string) (Video, error)
	// RecordView increments the view count and records videoID as the most
	// recent entry of viewerID's watch history.
	RecordView(ctx context.Context, videoID, viewerID string) (Video, error)
}
