// Package docpipe validates declarative database operations, executes them against a document
// store backend and summarizes their results.
package docpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
)

// Collections resolves collection handles by name
type Collections interface {
	Collection(name string) backend.Collection
}

// Engine executes operation descriptors
type Engine struct {
	collections Collections
	logger      Logger
	schemas     map[string]*JSONSchema
}

// New returns an Engine executing against the collections
func New(collections Collections, opts ...Option) *Engine {
	e := &Engine{
		collections: collections,
		logger:      NopLogger(),
		schemas:     map[string]*JSONSchema{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute validates and runs the operation. Validation failures never reach the backend.
// Failures are reported in the Result's Err.
func (e *Engine) Execute(ctx context.Context, op model.Operation) Result {
	start := time.Now()
	result := Result{Kind: op.Kind, Collection: op.Collection}
	summary, err := e.execute(ctx, op)
	tags := map[string]any{
		"kind":       op.Kind,
		"collection": op.Collection,
		"duration":   time.Since(start).String(),
	}
	if err != nil {
		result.Err = err
		e.logger.Error(ctx, "operation failed", err, tags)
		return result
	}
	result.Summary = summary
	if c, ok := summary.(*Counted); ok {
		tags["counts"] = c.String()
	}
	e.logger.Debug(ctx, "operation executed", tags)
	return result
}

func (e *Engine) execute(ctx context.Context, op model.Operation) (Summary, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if err := e.validateDocuments(op); err != nil {
		return nil, err
	}
	coll := e.collections.Collection(op.Collection)
	switch op.Kind {
	case model.KindInsert:
		res, err := coll.InsertMany(ctx, op.Documents)
		if err != nil {
			return nil, backendErr(err, op)
		}
		return &Counted{Inserted: count(int64(len(res.InsertedIDs)))}, nil
	case model.KindUpdate:
		res, err := coll.UpdateMany(ctx, FilterBSON(op.Filter), UpdateBSON(op.Update))
		if err != nil {
			return nil, backendErr(err, op)
		}
		return &Counted{
			Matched:  count(res.MatchedCount),
			Modified: count(res.ModifiedCount),
			Upserted: count(res.UpsertedCount),
		}, nil
	case model.KindDelete:
		filter := FilterBSON(op.Filter)
		// operations run sequentially, so the count matches what the delete sees
		matched, err := coll.Count(ctx, filter)
		if err != nil {
			return nil, backendErr(err, op)
		}
		del := coll.DeleteOne
		if op.Many {
			del = coll.DeleteMany
		}
		res, err := del(ctx, filter)
		if err != nil {
			return nil, backendErr(err, op)
		}
		return &Counted{Matched: count(matched), Deleted: count(res.DeletedCount)}, nil
	case model.KindBulkWrite:
		res, err := coll.BulkWrite(ctx, writeModels(op.Writes))
		if err != nil {
			return nil, backendErr(err, op)
		}
		return &Counted{
			Inserted: count(res.InsertedCount),
			Matched:  count(res.MatchedCount),
			Modified: count(res.ModifiedCount),
			Deleted:  count(res.DeletedCount),
			Upserted: count(res.UpsertedCount),
		}, nil
	case model.KindFind:
		cursor, err := coll.Find(ctx, FilterBSON(op.Filter), ProjectionBSON(op.Projection))
		if err != nil {
			return nil, backendErr(err, op)
		}
		return NewRows(cursor), nil
	case model.KindCount:
		n, err := coll.Count(ctx, FilterBSON(op.Filter))
		if err != nil {
			return nil, backendErr(err, op)
		}
		return &Scalar{Value: n}, nil
	case model.KindAggregate:
		cursor, err := coll.Aggregate(ctx, PipelineBSON(op.Pipeline))
		if err != nil {
			return nil, backendErr(err, op)
		}
		if !op.Pipeline.Scalar() {
			return NewRows(cursor), nil
		}
		docs, err := model.Drain(ctx, cursor)
		if err != nil {
			return nil, backendErr(err, op)
		}
		if len(docs) == 0 {
			return &Scalar{}, nil
		}
		return &Scalar{Value: docs[0]}, nil
	}
	return nil, errors.Validationf("kind", "unsupported operation kind '%s'", op.Kind)
}

// validateDocuments validates inserted documents against the collection's schema, if one is
// registered
func (e *Engine) validateDocuments(op model.Operation) error {
	schema, ok := e.schemas[op.Collection]
	if !ok {
		return nil
	}
	for i, doc := range op.Documents {
		if err := schema.Validate(fmt.Sprintf("documents[%d]", i), doc); err != nil {
			return err
		}
	}
	for i, w := range op.Writes {
		if w.Kind != model.InsertOne {
			continue
		}
		if err := schema.Validate(fmt.Sprintf("writes[%d].document", i), w.Document); err != nil {
			return err
		}
	}
	return nil
}

func backendErr(err error, op model.Operation) error {
	if errors.IsBackend(err) || errors.IsConnection(err) {
		return err
	}
	return errors.Wrap(err, errors.Backend, "%s on '%s' failed", op.Kind, op.Collection)
}
