// Package mongo stores the report collection as a single MongoDB document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/0xbhavyaalag/EcoSphere/internal/store"
)

// CollectionName holds one document per key.
const CollectionName = "kv"

// KV implements store.KV on a MongoDB collection.
type KV struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type document struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Connect dials uri and verifies the connection within 10 seconds.
func Connect(ctx context.Context, uri, dbName string) (*KV, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &KV{
		client:     client,
		collection: client.Database(dbName).Collection(CollectionName),
	}, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := k.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return doc.Value, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte) error {
	doc := document{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := k.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// Documents over the 16MB BSON limit count as a full store.
		if isTooLarge(err) {
			return fmt.Errorf("%w: %v", store.ErrQuotaExceeded, err)
		}
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Ping checks the server connection.
func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx, nil)
}

// Disconnect closes the client.
func (k *KV) Disconnect(ctx context.Context) error {
	return k.client.Disconnect(ctx)
}

func isTooLarge(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 10334 || e.Code == 17419 {
				return true
			}
		}
	}
	return false
}
