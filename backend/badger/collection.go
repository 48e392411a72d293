package badger

import (
	"context"
	"encoding/json"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
	"github.com/dgraph-io/badger/v3"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
	"go.mongodb.org/mongo-driver/bson"
)

type collection struct {
	db   *badger.DB
	name string
}

// record is a stored document and its key
type record struct {
	key []byte
	doc map[string]any
}

func (c *collection) Name() string {
	return c.name
}

func (c *collection) begin(ctx context.Context) error {
	if err := validName(c.name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.Backend, "")
	}
	return nil
}

// update runs fn in a read-write transaction; nothing is written when fn fails
func (c *collection) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	return wrapTxn(c.db.Update(fn))
}

func (c *collection) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	return wrapTxn(c.db.View(fn))
}

func wrapTxn(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.Wrap(err, errors.Backend, "badger transaction failed")
}

// scan collects the documents of the collection matching filter in insertion order. limit <= 0
// means no limit. The iterator is closed before scan returns so callers may write in the same
// transaction.
func (c *collection) scan(txn *badger.Txn, filter bson.D, limit int) ([]record, error) {
	p := prefix(docPrefix, c.name)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = p
	iter := txn.NewIterator(opts)
	defer iter.Close()
	var out []record
	for iter.Seek(p); iter.ValidForPrefix(p); iter.Next() {
		item := iter.Item()
		doc, err := decodeItem(item)
		if err != nil {
			return nil, err
		}
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, record{key: item.KeyCopy(nil), doc: doc})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func decodeItem(item *badger.Item) (map[string]any, error) {
	var doc map[string]any
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to decode stored document")
	}
	return doc, nil
}

func idKey(collection string, id any) []byte {
	return key(idPrefix, collection, []byte(util.JSONString(normalize(id))))
}

func (c *collection) nextSeq(txn *badger.Txn) ([]byte, error) {
	k := key(seqPrefix, c.name, nil)
	var seq uint64
	item, err := txn.Get(k)
	switch {
	case err == badger.ErrKeyNotFound:
	case err != nil:
		return nil, err
	default:
		if err := item.Value(func(val []byte) error {
			seq = util.DecodeUint64(val)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	seq++
	encoded := util.EncodeUint64(seq)
	if err := txn.Set(k, encoded); err != nil {
		return nil, err
	}
	return encoded, nil
}

func (c *collection) insert(txn *badger.Txn, document *model.Document) (any, error) {
	if document == nil || !document.Valid() {
		return nil, errors.New(errors.Backend, "documents must be json objects")
	}
	doc := normalize(document.Value()).(map[string]any)
	if _, ok := doc[model.IDField]; !ok {
		doc[model.IDField] = ksuid.New().String()
	}
	id := doc[model.IDField]
	ik := idKey(c.name, id)
	if _, err := txn.Get(ik); err == nil {
		return nil, errors.New(errors.Backend, "duplicate key error: collection '%s' already contains _id %s", c.name, util.JSONString(id))
	} else if err != badger.ErrKeyNotFound {
		return nil, err
	}
	seq, err := c.nextSeq(txn)
	if err != nil {
		return nil, err
	}
	dk := key(docPrefix, c.name, seq)
	bits, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.Backend, "failed to encode document")
	}
	if err := txn.Set(dk, bits); err != nil {
		return nil, err
	}
	if err := txn.Set(ik, dk); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *collection) remove(txn *badger.Txn, rec record) error {
	if err := txn.Delete(rec.key); err != nil {
		return err
	}
	return txn.Delete(idKey(c.name, rec.doc[model.IDField]))
}

// modify applies the update to the record, writing it back only when its content changed
func (c *collection) modify(txn *badger.Txn, rec record, update bson.D) (bool, error) {
	doc := cloneDoc(rec.doc)
	changed, err := applyUpdate(doc, update)
	if err != nil || !changed {
		return false, err
	}
	bits, err := json.Marshal(doc)
	if err != nil {
		return false, errors.Wrap(err, errors.Backend, "failed to encode document")
	}
	return true, txn.Set(rec.key, bits)
}

// InsertMany inserts the documents in order, assigning an _id to documents without one. The
// insert is atomic: a duplicate _id rejects the whole batch.
func (c *collection) InsertMany(ctx context.Context, documents model.Documents) (*backend.InsertResult, error) {
	result := &backend.InsertResult{}
	err := c.update(ctx, func(txn *badger.Txn) error {
		for _, document := range documents {
			id, err := c.insert(txn, document)
			if err != nil {
				return err
			}
			result.InsertedIDs = append(result.InsertedIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.D) (*backend.DeleteResult, error) {
	return c.delete(ctx, filter, 1)
}

func (c *collection) DeleteMany(ctx context.Context, filter bson.D) (*backend.DeleteResult, error) {
	return c.delete(ctx, filter, 0)
}

func (c *collection) delete(ctx context.Context, filter bson.D, limit int) (*backend.DeleteResult, error) {
	result := &backend.DeleteResult{}
	err := c.update(ctx, func(txn *badger.Txn) error {
		records, err := c.scan(txn, filter, limit)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := c.remove(txn, rec); err != nil {
				return err
			}
		}
		result.DeletedCount = int64(len(records))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateMany applies the update to every matching document. Documents whose content is unchanged
// by the update count as matched but not modified.
func (c *collection) UpdateMany(ctx context.Context, filter bson.D, update bson.D) (*backend.UpdateResult, error) {
	if len(update) == 0 {
		return nil, errPathf("update document must contain at least one operator")
	}
	result := &backend.UpdateResult{}
	err := c.update(ctx, func(txn *badger.Txn) error {
		records, err := c.scan(txn, filter, 0)
		if err != nil {
			return err
		}
		for _, rec := range records {
			changed, err := c.modify(txn, rec, update)
			if err != nil {
				return err
			}
			if changed {
				result.ModifiedCount++
			}
		}
		result.MatchedCount = int64(len(records))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkWrite applies the writes in order inside one transaction. Each write observes the effects
// of the writes before it. The first failing write aborts the whole batch.
func (c *collection) BulkWrite(ctx context.Context, writes []backend.WriteModel) (*backend.BulkResult, error) {
	if len(writes) == 0 {
		return nil, errPathf("bulk write requires at least one write")
	}
	result := &backend.BulkResult{}
	err := c.update(ctx, func(txn *badger.Txn) error {
		for i, w := range writes {
			if err := c.write(txn, w, result); err != nil {
				return errors.Wrap(err, errors.Backend, "write %d failed", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *collection) write(txn *badger.Txn, w backend.WriteModel, result *backend.BulkResult) error {
	switch {
	case w.InsertOne != nil:
		if _, err := c.insert(txn, w.InsertOne.Document); err != nil {
			return err
		}
		result.InsertedCount++
	case w.UpdateOne != nil:
		records, err := c.scan(txn, w.UpdateOne.Filter, 1)
		if err != nil {
			return err
		}
		for _, rec := range records {
			changed, err := c.modify(txn, rec, w.UpdateOne.Update)
			if err != nil {
				return err
			}
			result.MatchedCount++
			if changed {
				result.ModifiedCount++
			}
		}
	case w.DeleteOne != nil:
		records, err := c.scan(txn, w.DeleteOne.Filter, 1)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := c.remove(txn, rec); err != nil {
				return err
			}
			result.DeletedCount++
		}
	default:
		return errPathf("write model must set exactly one write")
	}
	return nil
}

// Find returns a lazy cursor over the matching documents in insertion order. A filter that only
// matches on a literal _id is served from the _id index.
func (c *collection) Find(ctx context.Context, filter bson.D, projection bson.D) (model.Cursor, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	if id, ok := idLookup(filter); ok {
		var docs []map[string]any
		if err := c.view(ctx, func(txn *badger.Txn) error {
			doc, err := c.getByID(txn, id)
			if err != nil || doc == nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		}); err != nil {
			return nil, err
		}
		return sliceCursor(docs, projection)
	}
	return newCursor(c.db, prefix(docPrefix, c.name), filter, projection), nil
}

func idLookup(filter bson.D) (any, bool) {
	if len(filter) != 1 || filter[0].Key != model.IDField {
		return nil, false
	}
	if _, isOp := operatorDoc(filter[0].Value); isOp {
		return nil, false
	}
	return filter[0].Value, true
}

func (c *collection) getByID(txn *badger.Txn, id any) (map[string]any, error) {
	item, err := txn.Get(idKey(c.name, id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dk, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	docItem, err := txn.Get(dk)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeItem(docItem)
}

func (c *collection) Count(ctx context.Context, filter bson.D) (int64, error) {
	var count int64
	err := c.view(ctx, func(txn *badger.Txn) error {
		records, err := c.scan(txn, filter, 0)
		count = int64(len(records))
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Aggregate runs the pipeline over a snapshot of the collection
func (c *collection) Aggregate(ctx context.Context, pipeline []bson.D) (model.Cursor, error) {
	var docs []map[string]any
	err := c.view(ctx, func(txn *badger.Txn) error {
		records, err := c.scan(txn, nil, 0)
		if err != nil {
			return err
		}
		docs, err = runPipeline(lo.Map(records, func(r record, _ int) map[string]any { return r.doc }), pipeline)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sliceCursor(docs, nil)
}

func sliceCursor(docs []map[string]any, projection bson.D) (model.Cursor, error) {
	documents := make(model.Documents, 0, len(docs))
	for _, doc := range docs {
		if len(projection) > 0 {
			projected, err := project(doc, projection)
			if err != nil {
				return nil, err
			}
			doc = projected
		}
		document, err := model.NewDocumentFrom(doc)
		if err != nil {
			return nil, errors.Wrap(err, errors.Backend, "failed to encode result document")
		}
		documents = append(documents, document)
	}
	return model.NewSliceCursor(documents), nil
}
