package docpipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/util"
)

// Summary is the normalized outcome of an operation: one of *Counted, *Rows or *Scalar
type Summary interface {
	isSummary()
}

// Counted reports the counts of a write. Counts the backend did not report are nil.
type Counted struct {
	Matched  *int64 `json:"matched,omitempty"`
	Modified *int64 `json:"modified,omitempty"`
	Inserted *int64 `json:"inserted,omitempty"`
	Deleted  *int64 `json:"deleted,omitempty"`
	Upserted *int64 `json:"upserted,omitempty"`
}

func (*Counted) isSummary() {}

type namedCount struct {
	name  string
	value *int64
}

func (c *Counted) counts() []namedCount {
	return []namedCount{
		{"matched", c.Matched},
		{"modified", c.Modified},
		{"inserted", c.Inserted},
		{"deleted", c.Deleted},
		{"upserted", c.Upserted},
	}
}

// Map returns the reported counts by name
func (c *Counted) Map() map[string]int64 {
	out := map[string]int64{}
	for _, f := range c.counts() {
		if f.value != nil {
			out[f.name] = *f.value
		}
	}
	return out
}

func (c *Counted) String() string {
	var parts []string
	for _, f := range c.counts() {
		if f.value != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", f.name, *f.value))
		}
	}
	return strings.Join(parts, " ")
}

func count(n int64) *int64 {
	return &n
}

// Rows is a lazy sequence of result documents. It is consumed once: after All, Next reports
// false and All returns the documents it already read.
//
// Callers must drain Rows with All (or Decode) or call Close. An open Rows holds backend
// resources such as a badger read transaction or a mongo server cursor.
type Rows struct {
	cursor  model.Cursor
	read    model.Documents
	drained bool
}

func (*Rows) isSummary() {}

// NewRows returns Rows reading from the cursor
func NewRows(cursor model.Cursor) *Rows {
	return &Rows{cursor: cursor}
}

// Next advances to the next document
func (r *Rows) Next(ctx context.Context) bool {
	if r.drained {
		return false
	}
	if !r.cursor.Next(ctx) {
		r.drained = true
		return false
	}
	r.read = append(r.read, r.cursor.Document())
	return true
}

// Document returns the current document
func (r *Rows) Document() *model.Document {
	if r.drained || len(r.read) == 0 {
		return nil
	}
	return r.read[len(r.read)-1]
}

// Err returns the error that stopped iteration
func (r *Rows) Err() error {
	return r.cursor.Err()
}

// Close releases the underlying cursor
func (r *Rows) Close(ctx context.Context) error {
	r.drained = true
	return r.cursor.Close(ctx)
}

// All reads every remaining document and closes the rows
func (r *Rows) All(ctx context.Context) (model.Documents, error) {
	if !r.drained {
		rest, err := model.Drain(ctx, r.cursor)
		r.read = append(r.read, rest...)
		r.drained = true
		if err != nil {
			return r.read, errors.Wrap(err, errors.Backend, "failed to read rows")
		}
	}
	return r.read, nil
}

// Decode reads every document and decodes them into out, a pointer to a slice
func (r *Rows) Decode(ctx context.Context, out any) error {
	docs, err := r.All(ctx)
	if err != nil {
		return err
	}
	values := make([]map[string]any, 0, len(docs))
	docs.ForEach(func(next *model.Document, i int) {
		values = append(values, next.Value())
	})
	return util.Decode(values, out)
}

// Scalar is a single value: a count, or the lone document of a reducing pipeline (nil when it
// produced nothing)
type Scalar struct {
	Value any `json:"value"`
}

func (*Scalar) isSummary() {}

// Document returns the scalar's document, or nil when it is not a document
func (s *Scalar) Document() *model.Document {
	doc, _ := s.Value.(*model.Document)
	return doc
}

// Int returns the scalar as a count
func (s *Scalar) Int() int64 {
	n, _ := s.Value.(int64)
	return n
}

// Empty reports whether the scalar holds no value
func (s *Scalar) Empty() bool {
	if s.Value == nil {
		return true
	}
	doc, ok := s.Value.(*model.Document)
	return ok && doc == nil
}

// Result is the outcome of executing one operation. Exactly one of Summary and Err is set.
type Result struct {
	Kind       model.Kind `json:"kind"`
	Collection string     `json:"collection"`
	Summary    Summary    `json:"summary,omitempty"`
	Err        error      `json:"-"`
}

// Counted returns the counted summary, if any
func (r Result) Counted() (*Counted, bool) {
	c, ok := r.Summary.(*Counted)
	return c, ok
}

// Rows returns the rows summary, if any
func (r Result) Rows() (*Rows, bool) {
	rows, ok := r.Summary.(*Rows)
	return rows, ok
}

// Scalar returns the scalar summary, if any
func (r Result) Scalar() (*Scalar, bool) {
	s, ok := r.Summary.(*Scalar)
	return s, ok
}
