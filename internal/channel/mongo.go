package channel

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"videotube-backend/internal/users"
	"videotube-backend/internal/video"
)

type profileDocument struct {
	ID                        primitive.ObjectID `bson:"_id"`
	FullName                  string             `bson:"fullName"`
	Username                  string             `bson:"username"`
	Email                     string             `bson:"email"`
	Avatar                    string             `bson:"avatar"`
	CoverImage                string             `bson:"coverImage"`
	SubscribersCount          int64              `bson:"subscribersCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed"`
}

type ownerDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	FullName string             `bson:"fullName"`
	Avatar   string             `bson:"avatar"`
}

type watchedDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	Owner       ownerDocument      `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type historyDocument struct {
	WatchHistory []primitive.ObjectID `bson:"watchHistory"`
	Videos       []watchedDocument    `bson:"videos"`
}

type subscriptionDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Subscriber primitive.ObjectID `bson:"subscriber"`
	Channel    primitive.ObjectID `bson:"channel"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

type MongoQueries struct {
	users         *mongo.Collection
	subscriptions *mongo.Collection
}

func NewMongoQueries(database *mongo.Database) *MongoQueries {
	return &MongoQueries{
		users:         database.Collection(users.CollectionName),
		subscriptions: database.Collection(SubscriptionsCollection),
	}
}

func (q *MongoQueries) ChannelProfile(ctx context.Context, username, viewerID string) (Profile, error) {
	viewer, err := primitive.ObjectIDFromHex(viewerID)
	if err != nil {
		viewer = primitive.NilObjectID
	}

	cursor, err := q.users.Aggregate(ctx, channelProfilePipeline(username, viewer))
	if err != nil {
		return Profile{}, fmt.Errorf("aggregate channel profile: %w", err)
	}

	var docs []profileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return Profile{}, fmt.Errorf("decode channel profile: %w", err)
	}
	if len(docs) == 0 {
		return Profile{}, ErrNotFound
	}

	doc := docs[0]
	return Profile{
		ID:                        doc.ID.Hex(),
		FullName:                  doc.FullName,
		Username:                  doc.Username,
		Email:                     doc.Email,
		Avatar:                    doc.Avatar,
		CoverImage:                doc.CoverImage,
		SubscribersCount:          doc.SubscribersCount,
		ChannelsSubscribedToCount: doc.ChannelsSubscribedToCount,
		IsSubscribed:              doc.IsSubscribed,
	}, nil
}

func channelProfilePipeline(username string, viewer primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SubscriptionsCollection,
			"localField":   "_id",
			"foreignField": "channel",
			"as":           "subscribers",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SubscriptionsCollection,
			"localField":   "_id",
			"foreignField": "subscriber",
			"as":           "subscribedTo",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"subscribersCount":          bson.M{"$size": "$subscribers"},
			"channelsSubscribedToCount": bson.M{"$size": "$subscribedTo"},
			"isSubscribed":              bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}},
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":                  1,
			"username":                  1,
			"email":                     1,
			"avatar":                    1,
			"coverImage":                1,
			"subscribersCount":          1,
			"channelsSubscribedToCount": 1,
			"isSubscribed":              1,
		}}},
	}
}

func (q *MongoQueries) WatchHistory(ctx context.Context, userID string) ([]WatchedVideo, error) {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []WatchedVideo{}, nil
	}

	cursor, err := q.users.Aggregate(ctx, watchHistoryPipeline(objID))
	if err != nil {
		return nil, fmt.Errorf("aggregate watch history: %w", err)
	}

	var docs []historyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode watch history: %w", err)
	}
	if len(docs) == 0 {
		return []WatchedVideo{}, nil
	}

	return orderHistory(docs[0]), nil
}

func watchHistoryPipeline(userID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         video.CollectionName,
			"localField":   "watchHistory",
			"foreignField": "_id",
			"as":           "videos",
			"pipeline": bson.A{
				bson.M{"$lookup": bson.M{
					"from":         users.CollectionName,
					"localField":   "owner",
					"foreignField": "_id",
					"as":           "owner",
					"pipeline": bson.A{
						bson.M{"$project": bson.M{"username": 1, "fullName": 1, "avatar": 1}},
					},
				}},
				bson.M{"$addFields": bson.M{"owner": bson.M{"$first": "$owner"}}},
			},
		}}},
		{{Key: "$project", Value: bson.M{"watchHistory": 1, "videos": 1}}},
	}
}

// orderHistory restores watch order, since $lookup does not preserve the
// order of the local array.
func orderHistory(doc historyDocument) []WatchedVideo {
	byID := make(map[primitive.ObjectID]watchedDocument, len(doc.Videos))
	for _, v := range doc.Videos {
		byID[v.ID] = v
	}

	out := make([]WatchedVideo, 0, len(doc.Videos))
	for _, id := range doc.WatchHistory {
		v, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, WatchedVideo{
			ID:          v.ID.Hex(),
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Title:       v.Title,
			Description: v.Description,
			Duration:    v.Duration,
			Views:       v.Views,
			Owner: Owner{
				ID:       v.Owner.ID.Hex(),
				Username: v.Owner.Username,
				FullName: v.Owner.FullName,
				Avatar:   v.Owner.Avatar,
			},
			CreatedAt: v.CreatedAt,
		})
	}
	return out
}

func (q *MongoQueries) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	subscriber, err := primitive.ObjectIDFromHex(subscriberID)
	if err != nil {
		return false, fmt.Errorf("invalid subscriber id %q: %w", subscriberID, err)
	}
	channelObjID, err := primitive.ObjectIDFromHex(channelID)
	if err != nil {
		return false, ErrNotFound
	}

	filter := bson.M{"subscriber": subscriber, "channel": channelObjID}
	res, err := q.subscriptions.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	if res.DeletedCount > 0 {
		return false, nil
	}

	_, err = q.subscriptions.InsertOne(ctx, subscriptionDocument{
		ID:         primitive.NewObjectID(),
		Subscriber: subscriber,
		Channel:    channelObjID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return true, nil
}

var _ Queries = (*MongoQueries)(nil)
