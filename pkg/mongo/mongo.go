package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuemby/twicorder/pkg/log"
)

const (
	databaseName   = "twicorder"
	collectionName = "tweets"

	connectTimeout = 10 * time.Second
)

// Sink upserts captured records into a document database. All operations are
// best effort: failures are logged and never abort the query that produced
// the records.
type Sink struct {
	uri    string
	logger zerolog.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewSink creates a sink for the given connection URI. The connection is
// established lazily and re-established transparently when the server goes
// away mid-crawl.
func NewSink(uri string) *Sink {
	return &Sink{
		uri:    uri,
		logger: log.WithComponent("mongo"),
	}
}

// collection returns a live tweets collection, reconnecting if needed.
func (s *Sink) collection(ctx context.Context) (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := s.client.Ping(pingCtx, nil)
		cancel()
		if err == nil {
			return s.client.Database(databaseName).Collection(collectionName), nil
		}
		s.logger.Warn().Err(err).Msg("connection lost, reconnecting")
		_ = s.client.Disconnect(ctx)
		s.client = nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	s.client = client

	collection := client.Database(databaseName).Collection(collectionName)
	s.ensureIndexes(ctx, collection)
	return collection, nil
}

func (s *Sink) ensureIndexes(ctx context.Context, collection *mongo.Collection) {
	unique := options.Index().SetUnique(true)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "user.screen_name", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		s.logger.Warn().Err(err).Msg("failed to ensure indexes")
	}
}

// Save upserts each record into the tweets collection, keyed by id. Records
// without an id are skipped.
func (s *Sink) Save(ctx context.Context, records []map[string]any) {
	collection, err := s.collection(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("document db unavailable, skipping save")
		return
	}

	upsert := options.Replace().SetUpsert(true)
	saved := 0
	for _, record := range records {
		id, ok := record["id"]
		if !ok {
			continue
		}
		filter := bson.M{"id": id}
		if _, err := collection.ReplaceOne(ctx, filter, record, upsert); err != nil {
			s.logger.Error().Err(err).Interface("id", id).Msg("upsert failed")
			continue
		}
		saved++
	}
	s.logger.Debug().Int("saved", saved).Int("total", len(records)).Msg("records upserted")
}

// Close tears down the client connection.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	return err
}
