package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/repository"
)

const (
	batchesCollection       = "batches"
	cropsCollection         = "crops"
	tracesCollection        = "batch_traces"
	outboxCollection        = "outbox_events"
	listingsCollection      = "listings"
	notificationsCollection = "notifications"
)

// Repository implements repository.Store on MongoDB. Transactions need a
// replica set or a sharded cluster.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*Repository)(nil)

// NewMongoDBRepository connects, pings and ensures indexes.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &Repository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		batchesCollection: {
			{Keys: bson.D{{Key: "farmer_id", Value: 1}, {Key: "blocked", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "distributor_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		cropsCollection: {
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
		},
		tracesCollection: {
			{Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		},
		outboxCollection: {
			{Keys: bson.D{{Key: "delivered_at", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		listingsCollection: {
			{
				Keys:    bson.D{{Key: "batch_id", Value: 1}, {Key: "crop_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "user_role", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for coll, idx := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// RunInTransaction runs fn inside a multi-document transaction. The driver may
// invoke fn more than once on transient errors.
func (r *Repository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &sessionTx{r: r, sc: sc})
	}, txnOpts)
	return err
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Repository) collection(name string) *mongo.Collection {
	return r.db.Collection(name)
}
