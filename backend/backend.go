// Package backend defines the document store contract the execution engine runs against.
// Filters, updates, projections and pipelines are passed in their native bson form.
package backend

import (
	"context"

	"github.com/autom8ter/docpipe/model"
	"go.mongodb.org/mongo-driver/bson"
)

// Conn is an open connection to a document store
type Conn interface {
	// Collection returns a handle to the named collection. Collections are created on first write.
	Collection(name string) Collection
	// DropAndRecreate drops the named collection, creates it empty and returns its handle
	DropAndRecreate(ctx context.Context, name string) (Collection, error)
	// Close closes the connection
	Close(ctx context.Context) error
}

// Collection exposes the primitive operations of a collection.
// All methods fail with an errors.Backend error. Implementations do not retry.
type Collection interface {
	Name() string
	InsertMany(ctx context.Context, documents model.Documents) (*InsertResult, error)
	DeleteOne(ctx context.Context, filter bson.D) (*DeleteResult, error)
	DeleteMany(ctx context.Context, filter bson.D) (*DeleteResult, error)
	UpdateMany(ctx context.Context, filter bson.D, update bson.D) (*UpdateResult, error)
	BulkWrite(ctx context.Context, writes []WriteModel) (*BulkResult, error)
	Find(ctx context.Context, filter bson.D, projection bson.D) (model.Cursor, error)
	Count(ctx context.Context, filter bson.D) (int64, error)
	Aggregate(ctx context.Context, pipeline []bson.D) (model.Cursor, error)
}

// InsertResult is the result of an InsertMany
type InsertResult struct {
	InsertedIDs []any
}

// DeleteResult is the result of a delete
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult is the result of an update
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
}

// BulkResult is the result of a bulk write
type BulkResult struct {
	InsertedCount int64
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
	UpsertedCount int64
}

// WriteModel is one write of a bulk write. Exactly one of the fields is set.
type WriteModel struct {
	InsertOne *InsertOneModel
	UpdateOne *UpdateOneModel
	DeleteOne *DeleteOneModel
}

// InsertOneModel inserts a document
type InsertOneModel struct {
	Document *model.Document
}

// UpdateOneModel updates the first document matching Filter
type UpdateOneModel struct {
	Filter bson.D
	Update bson.D
}

// DeleteOneModel deletes the first document matching Filter
type DeleteOneModel struct {
	Filter bson.D
}
