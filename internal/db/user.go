package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-manager/internal/errs"
	"github.com/ukydev/fleet-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserCollection stores the accounts that may sign in. Lookups of a
// missing user fail with errs.ErrNotFound; a taken username or email
// fails inserts with errs.ErrConflict.
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// MongoUserCollection is a UserCollection on a MongoDB collection.
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// NewMongoUserCollection opens the users collection of database and makes
// sure usernames and emails are unique.
func NewMongoUserCollection(ctx context.Context, database *mongo.Database) (*MongoUserCollection, error) {
	c := &MongoUserCollection{Collection: database.Collection(models.CollectionUsers)}
	_, err := c.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, errs.Unavailable("create indexes", models.CollectionUsers, err)
	}
	return c, nil
}

func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.IsActive = true

	_, err := c.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", user.Username, errs.ErrConflict)
	}
	return errs.Unavailable("insert", models.CollectionUsers, err)
}

func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	filter, err := byUserID(id)
	if err != nil {
		return nil, err
	}
	return c.findOne(ctx, filter)
}

func (c *MongoUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"username": username})
}

func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"email": email})
}

// UpdateUser replaces the stored account with user, keeping its id.
func (c *MongoUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	filter, err := byUserID(id)
	if err != nil {
		return err
	}
	user.ID = filter["_id"].(primitive.ObjectID)
	user.UpdatedAt = time.Now()

	res, err := c.Collection.ReplaceOne(ctx, filter, user)
	if err != nil {
		return errs.Unavailable("replace", models.CollectionUsers, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	filter, err := byUserID(id)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.Collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_login": now, "updated_at": now}})
	return errs.Unavailable("update", models.CollectionUsers, err)
}

func (c *MongoUserCollection) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := c.Collection.FindOne(ctx, filter).Decode(&user)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("user: %w", errs.ErrNotFound)
	case err != nil:
		return nil, errs.Unavailable("find", models.CollectionUsers, err)
	}
	return &user, nil
}

// byUserID filters on the ObjectID hex id. Ids that cannot name a user
// are reported as not found.
func byUserID(id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", id, errs.ErrNotFound)
	}
	return bson.M{"_id": oid}, nil
}
