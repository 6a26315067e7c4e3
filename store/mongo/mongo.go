// Package mongo implements the authcore UserStore on MongoDB.
//
// The two concurrency-sensitive operations are expressed as single
// server-side updates: UpdateUser filters on the record version and
// ConsumeBackupCode filters on "this hash, not yet used", so double use of
// a backup code and lost-update races are closed at the storage layer.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/immolink/authcore"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const colUsers = "users"

// Store is the MongoDB-backed UserStore.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to MongoDB and prepares the unique email index.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	s := &Store{
		client: client,
		db:     client.Database(dbName),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) col() *mongo.Collection {
	return s.db.Collection(colUsers)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.col().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "email_verification_token", Value: 1}}},
		{Keys: bson.D{{Key: "password_reset_token", Value: 1}}},
	})
	return err
}

func (s *Store) CreateUser(ctx context.Context, user *authcore.User) error {
	_, err := s.col().InsertOne(ctx, toDoc(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return authcore.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByVerificationToken(ctx context.Context, token string) (*authcore.User, error) {
	if token == "" {
		return nil, authcore.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "email_verification_token", Value: token}})
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*authcore.User, error) {
	if token == "" {
		return nil, authcore.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "password_reset_token", Value: token}})
}

// UpdateUser writes the record iff the stored version matches, bumping the
// version in the same update. Stats fields are owned by RecordLogin and are
// never written here, so a concurrent login is not rolled back by a profile
// update.
func (s *Store) UpdateUser(ctx context.Context, user *authcore.User) error {
	doc := toDoc(user)
	doc.UpdatedAt = time.Now()

	filter := bson.D{
		{Key: "_id", Value: user.ID},
		{Key: "version", Value: user.Version},
	}
	update := bson.D{
		{Key: "$set", Value: doc.updateFields()},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	res, err := s.col().UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return authcore.ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		// Either the record is gone or the version moved under us.
		exists, err := s.exists(ctx, user.ID)
		if err != nil {
			return err
		}
		if !exists {
			return authcore.ErrNotFound
		}
		return authcore.ErrVersionConflict
	}

	user.Version++
	return nil
}

// RecordLogin updates the login stats server-side without touching the
// record version.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.col().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "last_login", Value: at}}},
			{Key: "$inc", Value: bson.D{{Key: "login_count", Value: 1}}},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return authcore.ErrNotFound
	}
	return nil
}

// ConsumeBackupCode flips one unused code to used in a single conditional
// update. The $elemMatch filter makes the not-already-used check and the
// flip one atomic server-side operation.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "two_factor_backup_codes", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "hash", Value: hash[:]},
			{Key: "used", Value: false},
		}}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "two_factor_backup_codes.$.used", Value: true}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}

	res, err := s.col().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	// Distinguish "unknown user" from "no such unused code".
	exists, err := s.exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, authcore.ErrNotFound
	}
	return false, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*authcore.User, error) {
	var doc userDoc
	err := s.col().FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, authcore.ErrNotFound
		}
		return nil, err
	}
	return fromDoc(&doc), nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	count, err := s.col().CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
