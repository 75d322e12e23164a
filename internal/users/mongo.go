package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const CollectionName = "users"

type userDocument struct {
	ID                    primitive.ObjectID   `bson:"_id,omitempty"`
	Username              string               `bson:"username"`
	Email                 string               `bson:"email"`
	FullName              string               `bson:"fullName"`
	Avatar                string               `bson:"avatar"`
	CoverImage            string               `bson:"coverImage"`
	Password              string               `bson:"password"`
	RefreshToken          *string              `bson:"refreshToken,omitempty"`
	RefreshTokenExpiresAt *time.Time           `bson:"refreshTokenExpiresAt,omitempty"`
	WatchHistory          []primitive.ObjectID `bson:"watchHistory"`
	CreatedAt             time.Time            `bson:"createdAt"`
	UpdatedAt             time.Time            `bson:"updatedAt"`
}

func (d userDocument) toUser() User {
	u := User{
		ID:                    d.ID.Hex(),
		Username:              d.Username,
		Email:                 d.Email,
		FullName:              d.FullName,
		Avatar:                d.Avatar,
		CoverImage:            d.CoverImage,
		PasswordHash:          d.Password,
		RefreshTokenExpiresAt: d.RefreshTokenExpiresAt,
		WatchHistory:          make([]string, 0, len(d.WatchHistory)),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
	if d.RefreshToken != nil {
		u.RefreshToken = *d.RefreshToken
	}
	for _, id := range d.WatchHistory {
		u.WatchHistory = append(u.WatchHistory, id.Hex())
	}
	return u
}

type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{
		client: database.Client(),
		col:    database.Collection(CollectionName),
	}
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": objID})
}

func (s *MongoStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error) {
	clauses := bson.A{}
	if username = NormalizeHandle(username); username != "" {
		clauses = append(clauses, bson.M{"username": username})
	}
	if email = NormalizeHandle(email); email != "" {
		clauses = append(clauses, bson.M{"email": email})
	}
	if len(clauses) == 0 {
		return User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"$or": clauses})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (User, error) {
	var doc userDocument
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) Create(ctx context.Context, input NewUser) (User, error) {
	now := time.Now().UTC()
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     NormalizeHandle(input.Username),
		Email:        NormalizeHandle(input.Email),
		FullName:     input.FullName,
		Avatar:       input.Avatar,
		CoverImage:   input.CoverImage,
		Password:     input.PasswordHash,
		WatchHistory: []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return doc.toUser(), nil
}

func (s *MongoStore) UpdateDetails(ctx context.Context, id, fullName, email string) (User, error) {
	return s.updateAndReturn(ctx, id, bson.M{"$set": bson.M{
		"fullName":  fullName,
		"email":     NormalizeHandle(email),
		"updatedAt": time.Now().UTC(),
	}})
}

func (s *MongoStore) UpdateImage(ctx context.Context, id string, field ImageField, url string) (User, error) {
	return s.updateAndReturn(ctx, id, bson.M{"$set": bson.M{
		string(field): url,
		"updatedAt":   time.Now().UTC(),
	}})
}

func (s *MongoStore) updateAndReturn(ctx context.Context, id string, update bson.M) (User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}

	var doc userDocument
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": time.Now().UTC(),
	}})
}

func (s *MongoStore) SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{
		"refreshToken":          token,
		"refreshTokenExpiresAt": expiresAt.UTC(),
	}})
}

func (s *MongoStore) ClearRefreshToken(ctx context.Context, id string) error {
	return s.updateByID(ctx, id, bson.M{"$unset": bson.M{
		"refreshToken":          "",
		"refreshTokenExpiresAt": "",
	}})
}

func (s *MongoStore) updateByID(ctx context.Context, id string, update bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.col.UpdateByID(ctx, objID, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ClearExpiredRefreshTokens(ctx context.Context, now time.Time, limit int) (int64, error) {
	filter := bson.M{"refreshTokenExpiresAt": bson.M{"$lte": now.UTC()}}
	cursor, err := s.col.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(int64(limit)),
	)
	if err != nil {
		return 0, fmt.Errorf("find expired refresh tokens: %w", err)
	}

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode expired refresh tokens: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	// The expiry filter is repeated so a token rotated in between survives.
	res, err := s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "refreshTokenExpiresAt": bson.M{"$lte": now.UTC()}},
		bson.M{"$unset": bson.M{"refreshToken": "", "refreshTokenExpiresAt": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear expired refresh tokens: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}
