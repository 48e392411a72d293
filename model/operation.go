package model

import (
	"fmt"
	"reflect"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/util"
)

// Kind is the kind of database operation a descriptor performs
type Kind string

const (
	KindInsert    Kind = "insert"
	KindUpdate    Kind = "update"
	KindDelete    Kind = "delete"
	KindFind      Kind = "find"
	KindAggregate Kind = "aggregate"
	KindCount     Kind = "count"
	KindBulkWrite Kind = "bulkWrite"
)

// WriteKind is the kind of a single write inside a bulk write
type WriteKind string

const (
	InsertOne WriteKind = "insertOne"
	UpdateOne WriteKind = "updateOne"
	DeleteOne WriteKind = "deleteOne"
)

// WriteOp is a single write of a bulk write
type WriteOp struct {
	Kind     WriteKind `json:"kind" validate:"required,oneof=insertOne updateOne deleteOne"`
	Filter   Filter    `json:"filter,omitempty"`
	Update   Update    `json:"update,omitempty"`
	Document *Document `json:"document,omitempty"`
}

// Operation is a declarative description of one database operation
type Operation struct {
	Kind       Kind       `json:"kind" validate:"required,oneof=insert update delete find aggregate count bulkWrite"`
	Collection string     `json:"collection" validate:"required,excludesall=$"`
	Filter     Filter     `json:"filter,omitempty"`
	Update     Update     `json:"update,omitempty"`
	Pipeline   Pipeline   `json:"pipeline,omitempty"`
	Projection Projection `json:"projection,omitempty"`
	Documents  Documents  `json:"documents,omitempty"`
	Writes     []WriteOp  `json:"writes,omitempty"`
	// Many deletes every matching document instead of the first
	Many bool `json:"many,omitempty"`
}

// InsertMany describes inserting documents into collection
func InsertMany(collection string, documents ...*Document) Operation {
	return Operation{Kind: KindInsert, Collection: collection, Documents: documents}
}

// UpdateMany describes applying update to every document in collection matching filter
func UpdateMany(collection string, filter Filter, update Update) Operation {
	return Operation{Kind: KindUpdate, Collection: collection, Filter: filter, Update: update}
}

// DeleteFirst describes deleting the first document in collection matching filter
func DeleteFirst(collection string, filter Filter) Operation {
	return Operation{Kind: KindDelete, Collection: collection, Filter: filter}
}

// DeleteMany describes deleting every document in collection matching filter
func DeleteMany(collection string, filter Filter) Operation {
	return Operation{Kind: KindDelete, Collection: collection, Filter: filter, Many: true}
}

// FindAll describes reading the documents in collection matching filter
func FindAll(collection string, filter Filter, projection ...ProjectField) Operation {
	return Operation{Kind: KindFind, Collection: collection, Filter: filter, Projection: projection}
}

// CountWhere describes counting the documents in collection matching filter
func CountWhere(collection string, filter Filter) Operation {
	return Operation{Kind: KindCount, Collection: collection, Filter: filter}
}

// AggregateWith describes running the pipeline stages against collection
func AggregateWith(collection string, stages ...Stage) Operation {
	return Operation{Kind: KindAggregate, Collection: collection, Pipeline: stages}
}

// Bulk describes running the writes against collection in order
func Bulk(collection string, writes ...WriteOp) Operation {
	return Operation{Kind: KindBulkWrite, Collection: collection, Writes: writes}
}

// InsertOneWrite describes inserting document as part of a bulk write
func InsertOneWrite(document *Document) WriteOp {
	return WriteOp{Kind: InsertOne, Document: document}
}

// UpdateOneWrite describes updating the first document matching filter as part of a bulk write
func UpdateOneWrite(filter Filter, update Update) WriteOp {
	return WriteOp{Kind: UpdateOne, Filter: filter, Update: update}
}

// DeleteOneWrite describes deleting the first document matching filter as part of a bulk write
func DeleteOneWrite(filter Filter) WriteOp {
	return WriteOp{Kind: DeleteOne, Filter: filter}
}

// Validate validates the structural invariants of the descriptor
func (o Operation) Validate() error {
	if err := util.ValidateStruct(&o); err != nil {
		return err
	}
	if o.Update != nil && o.Kind != KindUpdate {
		return errors.Validationf("update", "only allowed for %s operations", KindUpdate)
	}
	if o.Pipeline != nil && o.Kind != KindAggregate {
		return errors.Validationf("pipeline", "only allowed for %s operations", KindAggregate)
	}
	if o.Projection != nil && o.Kind != KindFind {
		return errors.Validationf("projection", "only allowed for %s operations", KindFind)
	}
	if o.Documents != nil && o.Kind != KindInsert {
		return errors.Validationf("documents", "only allowed for %s operations", KindInsert)
	}
	if o.Writes != nil && o.Kind != KindBulkWrite {
		return errors.Validationf("writes", "only allowed for %s operations", KindBulkWrite)
	}
	if o.Many && o.Kind != KindDelete {
		return errors.Validationf("many", "only allowed for %s operations", KindDelete)
	}
	switch o.Kind {
	case KindUpdate, KindDelete, KindFind, KindCount:
		if o.Filter == nil {
			return errors.Validationf("filter", "required for %s operations", o.Kind)
		}
	default:
		if o.Filter != nil {
			return errors.Validationf("filter", "not allowed for %s operations", o.Kind)
		}
	}
	if err := o.Filter.Validate("filter"); err != nil {
		return err
	}
	switch o.Kind {
	case KindInsert:
		if len(o.Documents) == 0 {
			return errors.Validationf("documents", "at least one document is required")
		}
		for i, d := range o.Documents {
			if d == nil || !d.Valid() {
				return errors.Validationf(indexPath("documents", i), "invalid document")
			}
		}
	case KindUpdate:
		return o.Update.Validate("update")
	case KindFind:
		return o.Projection.Validate("projection")
	case KindAggregate:
		if len(o.Pipeline) == 0 {
			return errors.Validationf("pipeline", "at least one stage is required")
		}
		return o.Pipeline.Validate("pipeline")
	case KindBulkWrite:
		if len(o.Writes) == 0 {
			return errors.Validationf("writes", "at least one write is required")
		}
		for i, w := range o.Writes {
			if err := w.Validate(indexPath("writes", i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate validates the write. path is the descriptor path reported on failure.
func (w WriteOp) Validate(path string) error {
	if err := util.ValidateStruct(&w); err != nil {
		e := errors.Extract(err)
		e.Field = path + "." + e.Field
		return e
	}
	switch w.Kind {
	case InsertOne:
		if w.Document == nil || !w.Document.Valid() {
			return errors.Validationf(path+".document", "required for %s", w.Kind)
		}
		if w.Filter != nil || w.Update != nil {
			return errors.Validationf(path, "%s only accepts a document", w.Kind)
		}
	case UpdateOne:
		if w.Filter == nil {
			return errors.Validationf(path+".filter", "required for %s", w.Kind)
		}
		if w.Document != nil {
			return errors.Validationf(path+".document", "not allowed for %s", w.Kind)
		}
		if err := w.Filter.Validate(path + ".filter"); err != nil {
			return err
		}
		return w.Update.Validate(path + ".update")
	case DeleteOne:
		if w.Filter == nil {
			return errors.Validationf(path+".filter", "required for %s", w.Kind)
		}
		if w.Update != nil || w.Document != nil {
			return errors.Validationf(path, "%s only accepts a filter", w.Kind)
		}
		return w.Filter.Validate(path + ".filter")
	}
	return nil
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}
