// Package channel serves read-side aggregations over users, videos and
// subscriptions: channel profiles, watch history and subscription toggling.
package channel

import (
	"context"
	"errors"
	"time"
)

const SubscriptionsCollection = "subscriptions"

var ErrNotFound = errors.New("channel not found")

type Profile struct {
	ID                        string `json:"id"`
	FullName                  string `json:"fullName"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

type WatchedVideo struct {
	ID          string    `json:"id"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	Owner       Owner     `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Queries interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (Profile, error)
	// WatchHistory returns the user's watched videos, most recent first.
	WatchHistory(ctx context.Context, userID string) ([]WatchedVideo, error)
	// ToggleSubscription reports whether subscriberID is subscribed to
	// channelID after the call.
	ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error)
}
