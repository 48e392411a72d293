package model

import "context"

// Cursor is a lazy, finite sequence of documents. A cursor is consumed once.
type Cursor interface {
	// Next advances the cursor, returning false when it is exhausted or failed
	Next(ctx context.Context) bool
	// Document returns the current document
	Document() *Document
	// Err returns the error that stopped iteration, if any
	Err() error
	// Close releases the cursor's resources
	Close(ctx context.Context) error
}

// NewSliceCursor returns a cursor over documents already in memory
func NewSliceCursor(documents Documents) Cursor {
	return &sliceCursor{documents: documents, index: -1}
}

type sliceCursor struct {
	documents Documents
	index     int
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil || s.index+1 >= len(s.documents) {
		s.index = len(s.documents)
		return false
	}
	s.index++
	return true
}

func (s *sliceCursor) Document() *Document {
	if s.index < 0 || s.index >= len(s.documents) {
		return nil
	}
	return s.documents[s.index]
}

func (s *sliceCursor) Err() error {
	return nil
}

func (s *sliceCursor) Close(ctx context.Context) error {
	s.index = len(s.documents)
	return nil
}

// Drain reads every remaining document from the cursor and closes it
func Drain(ctx context.Context, cursor Cursor) (Documents, error) {
	defer cursor.Close(ctx)
	var documents Documents
	for cursor.Next(ctx) {
		documents = append(documents, cursor.Document())
	}
	if err := cursor.Err(); err != nil {
		return documents, err
	}
	return documents, ctx.Err()
}
