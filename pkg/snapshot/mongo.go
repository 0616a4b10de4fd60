package snapshot

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openhydro/sewerflow/pkg/change"
	"github.com/openhydro/sewerflow/pkg/errors"
)

// MongoConfig locates the snapshot collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one snapshot document per name, keyed by _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects and verifies the server is reachable.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connecting to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "pinging mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Save upserts the snapshot document for the name.
func (s *MongoStore) Save(ctx context.Context, name string, snap *change.Snapshot) error {
	doc := toDocument(name, snap)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "saving snapshot")
	}
	return nil
}

// Load returns the stored snapshot, or (nil, nil) when none exists.
func (s *MongoStore) Load(ctx context.Context, name string) (*change.Snapshot, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "loading snapshot")
	}
	return doc.snapshot(), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
