package badger

import (
	"context"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/dgraph-io/badger/v3"
	"go.mongodb.org/mongo-driver/bson"
)

// cursor lazily scans a collection inside a read transaction. The transaction stays open until
// the cursor is exhausted, fails or is closed.
type cursor struct {
	txn        *badger.Txn
	iter       *badger.Iterator
	prefix     []byte
	filter     bson.D
	projection bson.D
	current    *model.Document
	err        error
	started    bool
	closed     bool
}

func newCursor(db *badger.DB, prefix []byte, filter, projection bson.D) *cursor {
	txn := db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	return &cursor{
		txn:        txn,
		iter:       txn.NewIterator(opts),
		prefix:     prefix,
		filter:     filter,
		projection: projection,
	}
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.fail(errors.Wrap(err, errors.Backend, "cursor interrupted"))
		return false
	}
	if !c.started {
		c.iter.Seek(c.prefix)
		c.started = true
	} else {
		c.iter.Next()
	}
	for ; c.iter.ValidForPrefix(c.prefix); c.iter.Next() {
		doc, err := decodeItem(c.iter.Item())
		if err != nil {
			c.fail(err)
			return false
		}
		ok, err := matches(doc, c.filter)
		if err != nil {
			c.fail(err)
			return false
		}
		if !ok {
			continue
		}
		if len(c.projection) > 0 {
			if doc, err = project(doc, c.projection); err != nil {
				c.fail(err)
				return false
			}
		}
		if c.current, err = model.NewDocumentFrom(doc); err != nil {
			c.fail(errors.Wrap(err, errors.Backend, "failed to encode result document"))
			return false
		}
		return true
	}
	c.release()
	return false
}

func (c *cursor) Document() *model.Document {
	if c.closed {
		return nil
	}
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close(ctx context.Context) error {
	c.release()
	return nil
}

func (c *cursor) fail(err error) {
	c.err = err
	c.release()
}

func (c *cursor) release() {
	if c.closed {
		return
	}
	c.closed = true
	c.current = nil
	c.iter.Close()
	c.txn.Discard()
}
