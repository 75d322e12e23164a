package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"videotube-backend/internal/users"
)

const CollectionName = "videos"

type videoDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	Owner       primitive.ObjectID `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d videoDocument) toVideo() Video {
	return Video{
		ID:          d.ID.Hex(),
		VideoFile:   d.VideoFile,
		Thumbnail:   d.Thumbnail,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		Views:       d.Views,
		IsPublished: d.IsPublished,
		Owner:       d.Owner.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type MongoRepository struct {
	videos *mongo.Collection
	users  *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) *MongoRepository {
	return &MongoRepository{
		videos: database.Collection(CollectionName),
		users:  database.Collection(users.CollectionName),
	}
}

func (r *MongoRepository) ListPublished(ctx context.Context, limit int) ([]Video, error) {
	cursor, err := r.videos.Find(ctx, bson.M{"isPublished": true},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}

	var docs []videoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}

	videos := make([]Video, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, doc.toVideo())
	}
	return videos, nil
}

func (r *MongoRepository) Create(ctx context.Context, input NewVideo) (Video, error) {
	owner, err := primitive.ObjectIDFromHex(input.Owner)
	if err != nil {
		return Video{}, fmt.Errorf("invalid owner id %q: %w", input.Owner, err)
	}

	now := time.Now().UTC()
	doc := videoDocument{
		ID:          primitive.NewObjectID(),
		VideoFile:   input.VideoFile,
		Thumbnail:   input.Thumbnail,
		Title:       input.Title,
		Description: input.Description,
		Duration:    input.Duration,
		IsPublished: true,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.videos.InsertOne(ctx, doc); err != nil {
		return Video{}, fmt.Errorf("insert video: %w", err)
	}
	return doc.toVideo(), nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (Video, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Video{}, ErrNotFound
	}

	var doc videoDocument
	if err := r.videos.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("find video: %w", err)
	}
	return doc.toVideo(), nil
}

// RecordView is not transactional. A failed history update leaves the view
// counted.
func (r *MongoRepository) RecordView(ctx context.Context, videoID, viewerID string) (Video, error) {
	videoObjID, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return Video{}, ErrNotFound
	}
	viewerObjID, err := primitive.ObjectIDFromHex(viewerID)
	if err != nil {
		return Video{}, fmt.Errorf("invalid viewer id %q: %w", viewerID, err)
	}

	var doc videoDocument
	err = r.videos.FindOneAndUpdate(ctx,
		bson.M{"_id": videoObjID},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("increment views: %w", err)
	}

	if _, err := r.users.UpdateByID(ctx, viewerObjID, watchHistoryPipeline(videoObjID)); err != nil {
		return Video{}, fmt.Errorf("update watch history: %w", err)
	}

	return doc.toVideo(), nil
}

// watchHistoryPipeline prepends videoID, drops its older occurrence and caps
// the list at MaxWatchHistory.
func watchHistoryPipeline(videoID primitive.ObjectID) mongo.Pipeline {
	existing := bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$watchHistory", bson.A{}}},
		"cond":  bson.M{"$ne": bson.A{"$$this", videoID}},
	}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"watchHistory": bson.M{"$slice": bson.A{
				bson.M{"$concatArrays": bson.A{bson.A{videoID}, existing}},
				MaxWatchHistory,
			}},
		}}},
	}
}
