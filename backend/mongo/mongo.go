// Package mongo runs collection operations against a MongoDB server
package mongo

import (
	"context"
	"time"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	backend.Register("mongo", func(ctx context.Context, params map[string]any) (backend.Conn, error) {
		var cfg Config
		if err := util.Decode(params, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "invalid mongo params")
		}
		return Open(ctx, cfg)
	})
}

// DefaultConnectTimeout bounds connecting to and pinging the server
const DefaultConnectTimeout = 10 * time.Second

// Config configures the server connection
type Config struct {
	URI            string        `json:"uri" validate:"required"`
	Database       string        `json:"database" validate:"required"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// Conn is a connection to one database of a MongoDB server
type Conn struct {
	client   *mongo.Client
	database *mongo.Database
}

// Open connects to the server and pings it
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, errors.Connection, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.Connection, "failed to ping mongodb")
	}
	return &Conn{
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

func (c *Conn) Collection(name string) backend.Collection {
	return &collection{coll: c.database.Collection(name)}
}

func (c *Conn) DropAndRecreate(ctx context.Context, name string) (backend.Collection, error) {
	if err := c.database.Collection(name).Drop(ctx); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to drop collection '%s'", name)
	}
	if err := c.database.CreateCollection(ctx, name); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to create collection '%s'", name)
	}
	return c.Collection(name), nil
}

func (c *Conn) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.Backend, "failed to disconnect from mongodb")
	}
	return nil
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Name() string {
	return c.coll.Name()
}

func (c *collection) InsertMany(ctx context.Context, documents model.Documents) (*backend.InsertResult, error) {
	docs := make([]any, 0, len(documents))
	for _, document := range documents {
		d, err := toBSON(document)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	res, err := c.coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "insertMany on '%s' failed", c.Name())
	}
	return &backend.InsertResult{InsertedIDs: res.InsertedIDs}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.D) (*backend.DeleteResult, error) {
	filter, err := native(filter)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "deleteOne on '%s' failed", c.Name())
	}
	return &backend.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter bson.D) (*backend.DeleteResult, error) {
	filter, err := native(filter)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "deleteMany on '%s' failed", c.Name())
	}
	return &backend.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (c *collection) UpdateMany(ctx context.Context, filter bson.D, update bson.D) (*backend.UpdateResult, error) {
	docs, err := nativeAll(filter, update)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateMany(ctx, docs[0], docs[1])
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "updateMany on '%s' failed", c.Name())
	}
	return &backend.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}, nil
}

func (c *collection) BulkWrite(ctx context.Context, writes []backend.WriteModel) (*backend.BulkResult, error) {
	models := make([]mongo.WriteModel, 0, len(writes))
	for _, w := range writes {
		switch {
		case w.InsertOne != nil:
			d, err := toBSON(w.InsertOne.Document)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewInsertOneModel().SetDocument(d))
		case w.UpdateOne != nil:
			docs, err := nativeAll(w.UpdateOne.Filter, w.UpdateOne.Update)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewUpdateOneModel().SetFilter(docs[0]).SetUpdate(docs[1]))
		case w.DeleteOne != nil:
			filter, err := native(w.DeleteOne.Filter)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewDeleteOneModel().SetFilter(filter))
		default:
			return nil, errors.New(errors.Backend, "write model must set exactly one write")
		}
	}
	res, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "bulkWrite on '%s' failed", c.Name())
	}
	return &backend.BulkResult{
		InsertedCount: res.InsertedCount,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		DeletedCount:  res.DeletedCount,
		UpsertedCount: res.UpsertedCount,
	}, nil
}

func (c *collection) Find(ctx context.Context, filter bson.D, projection bson.D) (model.Cursor, error) {
	opts := options.Find()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}
	filter, err := native(filter)
	if err != nil {
		return nil, err
	}
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "find on '%s' failed", c.Name())
	}
	return &cursor{cursor: cur}, nil
}

func (c *collection) Count(ctx context.Context, filter bson.D) (int64, error) {
	filter, err := native(filter)
	if err != nil {
		return 0, err
	}
	count, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, errors.Backend, "count on '%s' failed", c.Name())
	}
	return count, nil
}

func (c *collection) Aggregate(ctx context.Context, pipeline []bson.D) (model.Cursor, error) {
	stages, err := nativeAll(pipeline...)
	if err != nil {
		return nil, err
	}
	cur, err := c.coll.Aggregate(ctx, mongo.Pipeline(stages))
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "aggregate on '%s' failed", c.Name())
	}
	return &cursor{cursor: cur}, nil
}

// native round trips d through relaxed extended json so values read back from result rows, such
// as {"$oid": "..."} identifiers, regain their bson types. A nil document becomes empty.
func native(d bson.D) (bson.D, error) {
	if len(d) == 0 {
		return bson.D{}, nil
	}
	bits, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to encode query document")
	}
	var out bson.D
	if err := bson.UnmarshalExtJSON(bits, false, &out); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to decode query document")
	}
	return out, nil
}

func nativeAll(docs ...bson.D) ([]bson.D, error) {
	out := make([]bson.D, 0, len(docs))
	for _, d := range docs {
		n, err := native(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// toBSON converts a json document into an ordered bson document, keeping its field order
func toBSON(document *model.Document) (bson.D, error) {
	if document == nil || !document.Valid() {
		return nil, errors.New(errors.Backend, "documents must be json objects")
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(document.Bytes(), false, &d); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to convert document to bson")
	}
	return d, nil
}
