package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// InstrumentedClient wraps a MongoDB Client with metrics and query logging
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		metrics:    c.metrics,
		logger:     c.logger,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Client returns the underlying MongoDB client
func (c *InstrumentedClient) Client() *mongo.Client {
	return c.client.Client()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck pings the server
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	return c.client.HealthCheck(ctx)
}

// WithTransaction executes a function within a transaction, recording the
// overall transaction latency and outcome.
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	start := time.Now()
	err := c.client.WithTransaction(ctx, fn)
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation("", "transaction", err == nil, time.Since(start))
	}
	return err
}

// RawClient returns the underlying Client for advanced operations
func (c *InstrumentedClient) RawClient() *Client {
	return c.client
}

// InstrumentedCollection wraps a MongoDB Collection with metrics and query logging
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

func (c *InstrumentedCollection) recordMetrics(ctx context.Context, operation string, success bool, duration time.Duration, rowsAffected int64) {
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, rowsAffected)
	}
}

// InsertOne inserts a single document with instrumentation
func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	start := time.Now()
	result, err := c.collection.InsertOne(ctx, document, opts...)

	var rowsAffected int64
	if err == nil {
		rowsAffected = 1
	}
	c.recordMetrics(ctx, "insertOne", err == nil, time.Since(start), rowsAffected)
	return result, err
}

// InsertMany inserts multiple documents with instrumentation
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	start := time.Now()
	result, err := c.collection.InsertMany(ctx, documents, opts...)

	var rowsAffected int64
	if err == nil && result != nil {
		rowsAffected = int64(len(result.InsertedIDs))
	}
	c.recordMetrics(ctx, "insertMany", err == nil, time.Since(start), rowsAffected)
	return result, err
}

// FindOne finds a single document with instrumentation
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	start := time.Now()
	result := c.collection.FindOne(ctx, filter, opts...)

	success := result.Err() == nil || result.Err() == mongo.ErrNoDocuments
	var rowsAffected int64
	if result.Err() == nil {
		rowsAffected = 1
	}
	c.recordMetrics(ctx, "findOne", success, time.Since(start), rowsAffected)
	return result
}

// Find finds multiple documents with instrumentation
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	start := time.Now()
	cursor, err := c.collection.Find(ctx, filter, opts...)

	// Count not available until cursor iteration
	c.recordMetrics(ctx, "find", err == nil, time.Since(start), 0)
	return cursor, err
}

// UpdateOne updates a single document with instrumentation
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	start := time.Now()
	result, err := c.collection.UpdateOne(ctx, filter, update, opts...)

	var rowsAffected int64
	if err == nil && result != nil {
		rowsAffected = result.ModifiedCount
	}
	c.recordMetrics(ctx, "updateOne", err == nil, time.Since(start), rowsAffected)
	return result, err
}

// CountDocuments counts documents with instrumentation
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	start := time.Now()
	count, err := c.collection.CountDocuments(ctx, filter, opts...)

	c.recordMetrics(ctx, "countDocuments", err == nil, time.Since(start), count)
	return count, err
}

// Aggregate runs an aggregation pipeline with instrumentation
func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	start := time.Now()
	cursor, err := c.collection.Aggregate(ctx, pipeline, opts...)

	c.recordMetrics(ctx, "aggregate", err == nil, time.Since(start), 0)
	return cursor, err
}

// CreateIndex creates an index with instrumentation
func (c *InstrumentedCollection) CreateIndex(ctx context.Context, model mongo.IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	start := time.Now()
	name, err := c.collection.Indexes().CreateOne(ctx, model, opts...)

	c.recordMetrics(ctx, "createIndex", err == nil, time.Since(start), 0)
	return name, err
}

// Underlying returns the underlying mongo.Collection
func (c *InstrumentedCollection) Underlying() *mongo.Collection {
	return c.collection
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}
