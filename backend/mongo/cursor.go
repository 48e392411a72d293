package mongo

import (
	"context"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// cursor adapts a server cursor, converting each result into relaxed extended json
type cursor struct {
	cursor  *mongo.Cursor
	current *model.Document
	err     error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.cursor.Next(ctx) {
		c.current = nil
		return false
	}
	bits, err := bson.MarshalExtJSON(c.cursor.Current, false, false)
	if err != nil {
		c.err = errors.Wrap(err, errors.Backend, "failed to convert result document")
		return false
	}
	if c.current, err = model.NewDocumentFromBytes(bits); err != nil {
		c.err = errors.Wrap(err, errors.Backend, "failed to decode result document")
		return false
	}
	return true
}

func (c *cursor) Document() *model.Document {
	return c.current
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return errors.Wrap(c.cursor.Err(), errors.Backend, "cursor failed")
}

func (c *cursor) Close(ctx context.Context) error {
	return errors.Wrap(c.cursor.Close(ctx), errors.Backend, "failed to close cursor")
}
