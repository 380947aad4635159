// Package mongodb implements credential.Store on MongoDB.
//
// Users live in a single collection. Settings are an embedded document keyed
// by index whose entries hold the value kind and its JSON text. The collection
// is created with a $jsonSchema validator that caps settings at
// settings.MaxEntries properties, and new indexes are only added by a
// conditional update that checks the current size.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/settings"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultDatabase is the default for Config.Database.
	DefaultDatabase = "sessiongate"

	// DefaultCollection is the default for Config.Collection.
	DefaultCollection = "users"

	codeNamespaceExists          = 48
	codeDocumentValidationFailed = 121
)

// Config configures the MongoDB credential store.
type Config struct {
	// URI is the connection string, e.g. mongodb://localhost:27017.
	URI string

	// Database name. Defaults to DefaultDatabase.
	Database string

	// Collection name. Defaults to DefaultCollection.
	Collection string
}

func (c *Config) withDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
}

// Store implements credential.Store.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	owned  bool
}

var _ credential.Store = (*Store)(nil)

type settingDoc struct {
	Kind string `bson:"kind"`
	JSON string `bson:"json"`
}

type userDoc struct {
	ID             string                `bson:"_id"`
	Email          string                `bson:"email"`
	FullName       string                `bson:"fullName"`
	PasswordHash   string                `bson:"passwordHash"`
	AvatarURL      string                `bson:"avatarUrl,omitempty"`
	Settings       map[string]settingDoc `bson:"settings"`
	MaxConnections int                   `bson:"maxConnections"`
	CreatedAt      time.Time             `bson:"createdAt"`
	UpdatedAt      time.Time             `bson:"updatedAt"`
}

// Connect dials cfg.URI and prepares the collection. The returned store owns
// the client and disconnects it on Close.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	s, err := New(ctx, client, cfg)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New prepares the collection on an existing client: it creates the
// collection with its validator when missing and ensures the unique email index.
func New(ctx context.Context, client *mongo.Client, cfg Config) (*Store, error) {
	cfg.withDefaults()
	db := client.Database(cfg.Database)

	err := db.CreateCollection(ctx, cfg.Collection, options.CreateCollection().SetValidator(validator()))
	var cmdErr mongo.CommandError
	if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists) {
		return nil, fmt.Errorf("creating users collection: %w", err)
	}

	users := db.Collection(cfg.Collection)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating email index: %w", err)
	}

	return &Store{client: client, users: users}, nil
}

func validator() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "fullName", "passwordHash", "settings", "maxConnections"},
			"properties": bson.M{
				"email":          bson.M{"bsonType": "string"},
				"fullName":       bson.M{"bsonType": "string"},
				"passwordHash":   bson.M{"bsonType": "string"},
				"maxConnections": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"settings": bson.M{
					"bsonType":      "object",
					"maxProperties": settings.MaxEntries,
					"additionalProperties": bson.M{
						"bsonType": "object",
						"required": bson.A{"kind", "json"},
						"properties": bson.M{
							"kind": bson.M{"enum": bson.A{settings.KindObject.String(), settings.KindList.String()}},
							"json": bson.M{"bsonType": "string"},
						},
					},
				},
			},
		},
	}
}

// Close disconnects the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Create inserts u. Returns credential.ErrDuplicateEmail when the email exists.
func (s *Store) Create(ctx context.Context, u *credential.User) error {
	doc := userDoc{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		PasswordHash:   u.PasswordHash,
		AvatarURL:      u.AvatarURL,
		Settings:       encodeSettings(u.Settings),
		MaxConnections: u.MaxConnections,
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt.UTC(),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credential.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// FindByEmail loads a user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*credential.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID loads a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (*credential.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return credential.ErrNotFound
	}
	return nil
}

// PutSetting overwrites idx when present, otherwise inserts it only while the
// stored map has room. Each step is a single-document atomic update.
func (s *Store) PutSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value) (settings.Map, error) {
	field := "settings." + string(idx)
	update := bson.M{"$set": bson.M{
		field:       settingDoc{Kind: v.Kind().String(), JSON: string(v.JSON())},
		"updatedAt": time.Now().UTC(),
	}}
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, field: bson.M{"$exists": true}},
		update, after,
	).Decode(&doc)
	if err == nil {
		return decodeSettings(doc.Settings)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("overwriting setting: %w", err)
	}

	hasRoom := bson.M{"$expr": bson.M{"$lt": bson.A{
		bson.M{"$size": bson.M{"$objectToArray": bson.M{"$ifNull": bson.A{"$settings", bson.M{}}}}},
		settings.MaxEntries,
	}}}
	filter := bson.M{"$and": bson.A{bson.M{"_id": userID}, hasRoom}}
	err = s.users.FindOneAndUpdate(ctx, filter, update, after).Decode(&doc)
	switch {
	case err == nil:
		return decodeSettings(doc.Settings)
	case isValidationFailure(err):
		return nil, settings.ErrFull
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("inserting setting: %w", err)
	}

	// Neither filter matched: the user is missing or at capacity.
	if _, err := s.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return nil, settings.ErrFull
}

// DeleteSetting removes idx if present and returns the remaining settings.
func (s *Store) DeleteSetting(ctx context.Context, userID string, idx settings.Index) (settings.Map, error) {
	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$unset": bson.M{"settings." + string(idx): ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, credential.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deleting setting: %w", err)
	}
	return decodeSettings(doc.Settings)
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*credential.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, credential.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	m, err := decodeSettings(doc.Settings)
	if err != nil {
		return nil, err
	}
	return &credential.User{
		ID:             doc.ID,
		FullName:       doc.FullName,
		Email:          doc.Email,
		PasswordHash:   doc.PasswordHash,
		AvatarURL:      doc.AvatarURL,
		Settings:       m,
		MaxConnections: doc.MaxConnections,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func encodeSettings(m settings.Map) map[string]settingDoc {
	out := make(map[string]settingDoc, len(m))
	for idx, v := range m {
		out[string(idx)] = settingDoc{Kind: v.Kind().String(), JSON: string(v.JSON())}
	}
	return out
}

func decodeSettings(docs map[string]settingDoc) (settings.Map, error) {
	out := make(settings.Map, len(docs))
	for idx, d := range docs {
		v, err := settings.FromStored(d.Kind, []byte(d.JSON))
		if err != nil {
			return nil, fmt.Errorf("decoding setting %q: %w", idx, err)
		}
		out[settings.Index(idx)] = v
	}
	return out, nil
}

func isValidationFailure(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeDocumentValidationFailed {
		return true
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeDocumentValidationFailed {
				return true
			}
		}
	}
	return false
}
